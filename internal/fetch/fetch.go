package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	pageFetchCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_fetch_requests_total",
			Help: "Total number of page fetch requests per host",
		},
		[]string{"host"},
	)
	pageFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_fetch_errors_total",
			Help: "Total number of errors while fetching pages per host",
		},
		[]string{"host"},
	)
	pageFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "page_fetch_duration_seconds",
			Help:    "Duration of page fetch HTTP requests per host",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 0.1s to ~12.8s
		},
		[]string{"host"},
	)
)

func init() {
	prometheus.MustRegister(pageFetchCount, pageFetchErrors, pageFetchDuration)
}

const userAgent = "Mozilla/5.0 (compatible; LeaderWatch/1.0; +https://example.com)"

// Fetcher performs one GET per target page. There is deliberately no retry or
// backoff: a failed target is the caller's problem to skip or abort on.
type Fetcher struct {
	client *http.Client
	logger *zap.SugaredLogger
}

func New(timeout time.Duration, logger *zap.SugaredLogger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Get fetches one page and returns its raw markup.
func (f *Fetcher) Get(ctx context.Context, pageURL string) (string, error) {
	host := hostLabel(pageURL)
	pageFetchCount.WithLabelValues(host).Inc()

	start := time.Now()
	body, err := f.get(ctx, pageURL)
	pageFetchDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())

	if err != nil {
		pageFetchErrors.WithLabelValues(host).Inc()
		return "", err
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetching %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", pageURL, err)
	}

	f.logger.Debugw("Fetched page", "url", pageURL, "bytes", len(body))
	return string(body), nil
}

func hostLabel(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
