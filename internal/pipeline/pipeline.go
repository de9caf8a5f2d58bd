package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Bhavik2205/leader-watch/internal/alert"
	"github.com/Bhavik2205/leader-watch/internal/data"
	"github.com/Bhavik2205/leader-watch/internal/extract"
	"github.com/Bhavik2205/leader-watch/internal/model"
)

// Prometheus metrics
var (
	snippetsClassified = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snippets_classified_total",
			Help: "Total number of snippets run through the sentiment model",
		},
	)
	snippetsFlagged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snippets_flagged_total",
			Help: "Total number of snippets flagged as negative above threshold",
		},
	)
)

func init() {
	prometheus.MustRegister(snippetsClassified, snippetsFlagged)
}

// PageFetcher fetches one target page's raw markup.
type PageFetcher interface {
	Get(ctx context.Context, pageURL string) (string, error)
}

// Driver runs one monitoring pass end to end. It owns the only mutable state,
// the accumulating alert list; targets are processed strictly one at a time.
type Driver struct {
	fetcher          PageFetcher
	classifier       model.Classifier
	notifier         alert.Notifier
	leaders          []string
	minNegativeScore float64
	logger           *zap.SugaredLogger
}

func NewDriver(
	fetcher PageFetcher,
	classifier model.Classifier,
	notifier alert.Notifier,
	leaders []string,
	minNegativeScore float64,
	logger *zap.SugaredLogger,
) *Driver {
	return &Driver{
		fetcher:          fetcher,
		classifier:       classifier,
		notifier:         notifier,
		leaders:          leaders,
		minNegativeScore: minNegativeScore,
		logger:           logger,
	}
}

// Run fetches every target, classifies leader mentions, and sends one alert
// email when anything is flagged. Per-target and per-snippet failures are
// logged and skipped so the remaining targets still get checked; they are
// joined into the returned error. A mail-transport failure is returned
// immediately.
func (d *Driver) Run(ctx context.Context, targetURLs []string) error {
	var flagged []alert.Alert
	var errs []error

	for _, url := range targetURLs {
		d.logger.Infow("Checking target", "url", url)

		html, err := d.fetcher.Get(ctx, url)
		if err != nil {
			d.logger.Warnw("Failed to fetch target", "url", url, "error", err)
			errs = append(errs, err)
			continue
		}

		mentions := extract.Mentions(html, url, d.leaders)
		d.logger.Infow("Found candidate snippets", "url", url, "count", len(mentions))

		for _, mention := range mentions {
			text := data.CleanText(mention.Text)
			if text == "" {
				continue
			}

			res, err := d.classifier.Classify(ctx, text)
			if err != nil {
				d.logger.Errorw("Sentiment call failed", "url", url, "leader", mention.Leader, "error", err)
				errs = append(errs, fmt.Errorf("classifying snippet from %s: %w", url, err))
				continue
			}
			snippetsClassified.Inc()

			d.logger.Infow("Classified snippet",
				"leader", mention.Leader, "label", res.Label, "score", res.Score)

			if model.Flagged(res, d.minNegativeScore) {
				snippetsFlagged.Inc()
				flagged = append(flagged, alert.Alert{
					Leader:  mention.Leader,
					Text:    mention.Text,
					Context: mention.Context,
					URL:     url,
					Score:   res.Score,
				})
			}
		}
	}

	flagged = dedupe(flagged)

	if len(flagged) > 0 {
		if err := d.notifier.Notify(ctx, flagged); err != nil {
			return errors.Join(append(errs, err)...)
		}
		d.logger.Infow("Run complete", "flagged", len(flagged))
	} else {
		d.logger.Infow("Run complete, no negative mentions found")
	}

	return errors.Join(errs...)
}

// dedupe removes repeated (leader, snippet, URL) triples; the same comment can
// surface through more than one block on the same page.
func dedupe(alerts []alert.Alert) []alert.Alert {
	seen := make(map[string]struct{})
	result := make([]alert.Alert, 0, len(alerts))
	for _, a := range alerts {
		key := fmt.Sprintf("%s\x00%s\x00%s", a.Leader, a.Text, a.URL)
		if _, found := seen[key]; found {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, a)
	}
	return result
}
