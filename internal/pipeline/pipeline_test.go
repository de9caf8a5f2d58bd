package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Bhavik2205/leader-watch/internal/alert"
	"github.com/Bhavik2205/leader-watch/internal/model"
)

type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Get(_ context.Context, pageURL string) (string, error) {
	f.calls = append(f.calls, pageURL)
	page, ok := f.pages[pageURL]
	if !ok {
		return "", errors.New("connection refused")
	}
	return page, nil
}

// keywordClassifier labels snippets negative when they contain a trigger word,
// positive otherwise.
type keywordClassifier struct {
	trigger string
	err     error
}

func (c *keywordClassifier) Classify(_ context.Context, text string) (model.Result, error) {
	if c.err != nil {
		return model.Result{}, c.err
	}
	if strings.Contains(strings.ToLower(text), c.trigger) {
		return model.Result{Label: model.Negative, Score: 0.95}, nil
	}
	return model.Result{Label: model.Positive, Score: 0.9}, nil
}

type recordingNotifier struct {
	called int
	alerts []alert.Alert
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, alerts []alert.Alert) error {
	n.called++
	n.alerts = alerts
	return n.err
}

func newDriver(f *fakeFetcher, c model.Classifier, n alert.Notifier, leaders ...string) *Driver {
	return NewDriver(f, c, n, leaders, 0.6, zap.NewNop().Sugar())
}

func TestRunEmptyTargetList(t *testing.T) {
	fetcher := &fakeFetcher{}
	notifier := &recordingNotifier{}
	d := newDriver(fetcher, &keywordClassifier{trigger: "terrible"}, notifier, "Jane Smith")

	err := d.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, fetcher.calls, "no network calls expected for an empty target list")
	assert.Zero(t, notifier.called, "notifier must not be invoked")
}

func TestRunNoNegativesSendsNothing(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://a.example.com": "<p>Everyone praised Jane Smith for the excellent town hall last night.</p>",
	}}
	notifier := &recordingNotifier{}
	d := newDriver(fetcher, &keywordClassifier{trigger: "terrible"}, notifier, "Jane Smith")

	err := d.Run(context.Background(), []string{"https://a.example.com"})

	require.NoError(t, err)
	assert.Zero(t, notifier.called)
}

func TestRunOneNegativeOfTwoTargets(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://good.example.com": "<p>Everyone praised Jane Smith for the excellent town hall last night.</p>",
		"https://bad.example.com":  "<p>People were talking about Jane Smith being terrible all afternoon.</p>",
	}}
	notifier := &recordingNotifier{}
	d := newDriver(fetcher, &keywordClassifier{trigger: "terrible"}, notifier, "Jane Smith")

	err := d.Run(context.Background(), []string{"https://good.example.com", "https://bad.example.com"})

	require.NoError(t, err)
	require.Equal(t, 1, notifier.called, "exactly one email")
	require.Len(t, notifier.alerts, 1, "exactly one snippet in the email")

	a := notifier.alerts[0]
	assert.Equal(t, "Jane Smith", a.Leader)
	assert.Equal(t, "https://bad.example.com", a.URL)
	assert.Contains(t, a.Text, "Jane Smith")
	assert.GreaterOrEqual(t, a.Score, 0.6)
}

func TestRunJaneSmithScenario(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/post": "<html><body><div><p>So much chatter today. People keep talking about Jane Smith being terrible at running the council.</p></div></body></html>",
	}}
	notifier := &recordingNotifier{}
	d := newDriver(fetcher, &keywordClassifier{trigger: "terrible"}, notifier, "Jane Smith")

	err := d.Run(context.Background(), []string{"https://example.com/post"})

	require.NoError(t, err)
	require.Equal(t, 1, notifier.called)
	require.Len(t, notifier.alerts, 1)
	assert.Contains(t, notifier.alerts[0].Text, "Jane Smith")
}

func TestRunFetchFailureContinues(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		// First target missing from the map, so it fails to fetch.
		"https://up.example.com": "<p>Commenters called Jane Smith terrible for skipping the debate.</p>",
	}}
	notifier := &recordingNotifier{}
	d := newDriver(fetcher, &keywordClassifier{trigger: "terrible"}, notifier, "Jane Smith")

	err := d.Run(context.Background(), []string{"https://down.example.com", "https://up.example.com"})

	require.Error(t, err, "fetch failure must surface in the joined error")
	assert.Len(t, fetcher.calls, 2, "remaining targets still checked")
	require.Equal(t, 1, notifier.called)
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "https://up.example.com", notifier.alerts[0].URL)
}

func TestRunClassifierFailureSkipsSnippet(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://a.example.com": "<p>People keep talking about Jane Smith being terrible at her job.</p>",
	}}
	notifier := &recordingNotifier{}
	d := newDriver(fetcher, &keywordClassifier{err: errors.New("model unavailable")}, notifier, "Jane Smith")

	err := d.Run(context.Background(), []string{"https://a.example.com"})

	require.Error(t, err)
	assert.Zero(t, notifier.called, "nothing flagged, no email")
}

func TestRunMailFailurePropagates(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://a.example.com": "<p>People keep talking about Jane Smith being terrible at her job.</p>",
	}}
	notifier := &recordingNotifier{err: errors.New("smtp: 535 authentication failed")}
	d := newDriver(fetcher, &keywordClassifier{trigger: "terrible"}, notifier, "Jane Smith")

	err := d.Run(context.Background(), []string{"https://a.example.com"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestDedupe(t *testing.T) {
	a := alert.Alert{Leader: "Jane Smith", Text: "same snippet", URL: "https://x/1", Score: 0.9}
	b := alert.Alert{Leader: "Jane Smith", Text: "same snippet", URL: "https://x/2", Score: 0.9}

	got := dedupe([]alert.Alert{a, a, b, a})

	require.Len(t, got, 2)
	assert.Equal(t, a, got[0])
	assert.Equal(t, b, got[1])
}

func TestRunDeduplicatesAcrossBlocks(t *testing.T) {
	// The same sentence surfaces through the div and its child paragraph;
	// extraction dedupes per page, and the pipeline dedupe is the backstop.
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://a.example.com": "<div><p>Commenters called Jane Smith terrible for skipping the debate.</p></div>",
	}}
	notifier := &recordingNotifier{}
	d := newDriver(fetcher, &keywordClassifier{trigger: "terrible"}, notifier, "Jane Smith")

	err := d.Run(context.Background(), []string{"https://a.example.com"})

	require.NoError(t, err)
	require.Equal(t, 1, notifier.called)
	assert.Len(t, notifier.alerts, 1)
}
