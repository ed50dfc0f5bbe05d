package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/logging"
	"MarketAdvisor/internal/metrics"
	"MarketAdvisor/internal/ports"
	"MarketAdvisor/internal/retry"
	"MarketAdvisor/internal/store"
)

const validRecommendation = "```json\n" + `{
  "buy_zone": {"min": "60,000", "max": 61000},
  "sell_zone": {"min": 65000, "max": "$66000"},
  "stop_loss": {"min": 58000, "max": 58500},
}` + "\n```"

type reasonerFunc func(ctx context.Context, p ports.Prompt) (ports.Response, error)

func (f reasonerFunc) Invoke(ctx context.Context, p ports.Prompt) (ports.Response, error) {
	return f(ctx, p)
}

func ok(body string) (ports.Response, error) {
	return ports.Response{Status: http.StatusOK, Body: body}, nil
}

func promptStage(p ports.Prompt) string {
	switch {
	case strings.HasPrefix(p.Text, "Select the articles"):
		return StageFilter
	case strings.HasPrefix(p.Text, "The attached screenshots"):
		return StageSummarize
	case strings.HasPrefix(p.Text, "Act as a cryptocurrency analyst"):
		return StageAnalyze
	case strings.Contains(p.Text, "Weigh the opinions"), strings.Contains(p.Text, "No other expert opinions"):
		return StageFinalize
	default:
		return StageOpine
	}
}

// promptLinks extracts the candidate links listed in a filter prompt.
func promptLinks(p ports.Prompt) []string {
	var links []string
	for _, line := range strings.Split(p.Text, "\n") {
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		fields := strings.Split(line, " | ")
		links = append(links, strings.TrimSpace(fields[len(fields)-1]))
	}
	return links
}

// happyReasoner answers every stage; filter accepts the first candidate of each partition.
func happyReasoner(ctx context.Context, p ports.Prompt) (ports.Response, error) {
	switch promptStage(p) {
	case StageFilter:
		links := promptLinks(p)
		return ok(fmt.Sprintf(`["%s"]`, links[0]))
	case StageSummarize:
		return ok("Title: headline\nContent: figures moved")
	case StageAnalyze:
		return ok("risk-on sentiment")
	default:
		return ok(validRecommendation)
	}
}

type fakeSource struct {
	name     string
	articles []domain.Article
	err      error
}

func (s fakeSource) Name() string { return s.name }

func (s fakeSource) Fetch(context.Context, time.Time) ([]domain.Article, error) {
	return s.articles, s.err
}

// eightArticles returns a0..a7 published an hour apart, split over two sources.
func eightArticles(day time.Time) []ports.NewsSource {
	var first, second []domain.Article
	for i := range 8 {
		a := domain.Article{
			ID:          fmt.Sprintf("a%d", i),
			Title:       fmt.Sprintf("story %d", i),
			Link:        fmt.Sprintf("https://news.example/a%d", i),
			PublishedAt: day.Add(-time.Duration(8-i) * time.Hour),
		}
		if i%2 == 0 {
			first = append(first, a)
		} else {
			second = append(second, a)
		}
	}
	return []ports.NewsSource{
		fakeSource{name: "even", articles: first},
		fakeSource{name: "odd", articles: second},
	}
}

type fakeBrowser struct {
	down map[string]bool

	mu       sync.Mutex
	articles []string
	charts   []string
}

func (b *fakeBrowser) CaptureChart(_ context.Context, endpoint, outputPath string) (string, error) {
	b.mu.Lock()
	b.charts = append(b.charts, endpoint)
	b.mu.Unlock()
	if b.down[endpoint] {
		return "", errors.New("endpoint unreachable")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", err
	}
	return outputPath, os.WriteFile(outputPath, []byte("chart"), 0o644)
}

func (b *fakeBrowser) CaptureArticle(_ context.Context, url, endpoint, outputDir string) ([]string, error) {
	b.mu.Lock()
	b.articles = append(b.articles, url)
	b.mu.Unlock()
	if b.down[endpoint] {
		return nil, errors.New("endpoint unreachable")
	}
	f, err := os.CreateTemp(outputDir, "shot-*_1.png")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.WriteString("segment"); err != nil {
		return nil, err
	}
	return []string{f.Name()}, nil
}

type recordingSink struct {
	mu   sync.Mutex
	recs []domain.Recommendation
}

func (s *recordingSink) SaveRecommendation(_ context.Context, rec domain.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *recordingSink) count(kind domain.RecommendationKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.recs {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	recs []domain.Recommendation
}

func (n *recordingNotifier) PublishRecommendation(_ context.Context, rec domain.Recommendation) error {
	n.recs = append(n.recs, rec)
	return nil
}

type recordingDiagnostics struct {
	mu    sync.Mutex
	diags []domain.Diagnostic
}

func (d *recordingDiagnostics) Capture(_ context.Context, diag domain.Diagnostic) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.diags = append(d.diags, diag)
	return nil
}

func (d *recordingDiagnostics) forStage(stage string) []domain.Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.Diagnostic
	for _, diag := range d.diags {
		if diag.Stage == stage {
			out = append(out, diag)
		}
	}
	return out
}

type harness struct {
	store    *store.Memory
	browser  *fakeBrowser
	sink     *recordingSink
	notifier *recordingNotifier
	diags    *recordingDiagnostics
	metrics  *metrics.Metrics
	settings Settings
	deps     Deps
}

func newHarness(t *testing.T, reasoner reasonerFunc, sources []ports.NewsSource) *harness {
	t.Helper()
	h := &harness{
		store:    store.NewMemory(),
		browser:  &fakeBrowser{down: map[string]bool{}},
		sink:     &recordingSink{},
		notifier: &recordingNotifier{},
		diags:    &recordingDiagnostics{},
		metrics:  metrics.New(),
	}
	h.settings = Settings{
		WorkerCount:  4,
		EnsembleSize: 3,
		Retry:        retry.Policy{MaxAttempts: 3, BackoffDelay: time.Millisecond},
		Endpoints:    []string{"ws://browser-a:9222", "ws://browser-b:9222"},
		Workspace:    t.TempDir(),
		LookbackDays: 1,
		Symbol:       "BTC",
	}
	h.deps = Deps{
		Store:       h.store,
		Sources:     sources,
		Reasoning:   reasoner,
		Browser:     h.browser,
		Sink:        h.sink,
		Diagnostics: h.diags,
		Notifier:    h.notifier,
		Metrics:     h.metrics,
		Logger:      logging.Discard(),
	}
	return h
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(h.settings, h.deps)
	require.NoError(t, err)
	return o
}

func (h *harness) decode(t *testing.T, key string, kind domain.ArtifactKind, v any) domain.Artifact {
	t.Helper()
	art, err := h.store.Get(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, art.Decode(kind, v))
	return art
}

func (h *harness) put(t *testing.T, key string, kind domain.ArtifactKind, v any) {
	t.Helper()
	art, err := domain.NewArtifact(kind, v, time.Now())
	require.NoError(t, err)
	require.NoError(t, h.store.Put(context.Background(), key, art))
}
