package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/fanout"
	"MarketAdvisor/internal/logging"
)

func TestParseLinks(t *testing.T) {
	links, err := parseLinks("```json\n[\"https://a.example/1\", \"https://b.example/2\",]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/1", "https://b.example/2"}, links)

	links, err = parseLinks("[]")
	require.NoError(t, err)
	assert.Empty(t, links)

	_, err = parseLinks("I could not find any relevant article.")
	assert.Error(t, err)
}

func TestParseRecommendation(t *testing.T) {
	rec, err := parseRecommendation(validRecommendation)
	require.NoError(t, err)
	assert.Equal(t, domain.Zone{Min: 60000, Max: 61000}, rec.BuyZone)
	assert.Equal(t, domain.Zone{Min: 65000, Max: 66000}, rec.SellZone)
	assert.Equal(t, domain.Zone{Min: 58000, Max: 58500}, rec.StopLoss)

	tests := map[string]string{
		"inverted zone": `{"buy_zone": {"min": 2, "max": 1}, "sell_zone": {"min": 3, "max": 4}, "stop_loss": {"min": 1, "max": 1}}`,
		"missing zone":  `{"buy_zone": {"min": 1, "max": 2}, "sell_zone": {"min": 3, "max": 4}}`,
		"bad price":     `{"buy_zone": {"min": "cheap", "max": 2}}`,
		"empty":         "  ",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseRecommendation(body)
			assert.Error(t, err)
		})
	}
}

func TestDedupeArticles(t *testing.T) {
	day := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	items := []domain.Article{
		{Link: "https://x.example/b", PublishedAt: day},
		{Link: "https://x.example/a"},
		{Link: "https://x.example/a", PublishedAt: day.Add(time.Hour)},
		{Link: "https://x.example/c", PublishedAt: day},
		{Link: ""},
		{Link: "https://x.example/b", Title: "duplicate"},
	}

	out := dedupeArticles(items)
	require.Len(t, out, 3)
	assert.Equal(t, "https://x.example/a", out[0].Link)
	assert.False(t, out[0].PublishedAt.IsZero())
	assert.Equal(t, "https://x.example/b", out[1].Link)
	assert.Empty(t, out[1].Title)
	assert.Equal(t, "https://x.example/c", out[2].Link)
}

func TestAcceptedLinks(t *testing.T) {
	links := acceptedLinks([]string{
		" https://b.example/2 ",
		"https://a.example/1",
		"ftp://files.example/x",
		"not a link",
		"https://a.example/1",
		"http://c.example/3",
	})
	assert.Equal(t, []string{"http://c.example/3", "https://a.example/1", "https://b.example/2"}, links)
	assert.NotNil(t, acceptedLinks(nil))
}

func TestFilterPromptListsCandidates(t *testing.T) {
	day := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	text := filterPrompt([]domain.Article{
		{Title: " Rates cut ", Link: "https://x.example/1", PublishedAt: day},
		{Title: "Undated", Link: "https://x.example/2"},
	}, day.AddDate(0, 0, -1))

	assert.Contains(t, text, "from 2026-10-17 onwards")
	assert.Contains(t, text, "- Rates cut | 2026-10-18T12:00:00Z | https://x.example/1\n")
	assert.Contains(t, text, "- Undated | unknown | https://x.example/2\n")
}

func TestFinalPromptMentionsOpinions(t *testing.T) {
	analysis := domain.MarketAnalysis{Text: "calm markets"}
	assert.Contains(t, finalPrompt("BTC", analysis, nil), "No other expert opinions")

	text := finalPrompt("ETH", analysis, []domain.Recommendation{{
		Member:   2,
		BuyZone:  domain.Zone{Min: 1, Max: 2},
		SellZone: domain.Zone{Min: 3, Max: 4},
		StopLoss: domain.Zone{Min: 0.5, Max: 0.9},
	}})
	assert.Contains(t, text, "short-term ETH trader")
	assert.Contains(t, text, "expert 2")
	assert.True(t, strings.Contains(text, "calm markets"))
}

func TestSettingsValidate(t *testing.T) {
	err := Settings{}.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, fanout.ErrInvalidWorkerCount)
	assert.Contains(t, err.Error(), "ensemble size")
	assert.Contains(t, err.Error(), "workspace")

	assert.NoError(t, Settings{
		WorkerCount:  1,
		EnsembleSize: 1,
		Endpoints:    []string{"ws://localhost:9222"},
		Workspace:    t.TempDir(),
	}.Validate())
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "image/jpeg", mimeType("/tmp/a.JPG"))
	assert.Equal(t, "image/png", mimeType("/tmp/a.png"))
	assert.Equal(t, "image/png", mimeType("/tmp/a"))
}

type fakeDriver struct {
	mu      sync.Mutex
	job     func(time.Time)
	stopped bool
}

func (d *fakeDriver) Start(_ context.Context, job func(time.Time)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.job = job
	return nil
}

func (d *fakeDriver) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

type runnerFunc func(ctx context.Context, day time.Time) (Report, error)

func (f runnerFunc) Run(ctx context.Context, day time.Time) (Report, error) {
	return f(ctx, day)
}

func TestSchedulerTriggersRunWithTimeout(t *testing.T) {
	driver := &fakeDriver{}
	var (
		gotDay      time.Time
		hasDeadline bool
	)
	runner := runnerFunc(func(ctx context.Context, day time.Time) (Report, error) {
		gotDay = day
		_, hasDeadline = ctx.Deadline()
		return Report{RunID: "r1"}, nil
	})

	s := NewScheduler(driver, runner, time.Minute, logging.Discard())
	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)

	trigger := time.Date(2026, 10, 19, 0, 30, 0, 0, time.UTC)
	driver.job(trigger)
	assert.Equal(t, trigger, gotDay)
	assert.True(t, hasDeadline)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

func TestSchedulerSurvivesFailedRun(t *testing.T) {
	driver := &fakeDriver{}
	calls := 0
	runner := runnerFunc(func(ctx context.Context, day time.Time) (Report, error) {
		calls++
		_, ok := ctx.Deadline()
		assert.False(t, ok)
		return Report{}, errors.New("boom")
	})

	s := NewScheduler(driver, runner, 0, logging.Discard())
	require.NoError(t, s.Start(context.Background()))
	driver.job(time.Now())
	driver.job(time.Now())
	assert.Equal(t, 2, calls)
}

func TestSchedulerWithoutDriverIsNoop(t *testing.T) {
	s := NewScheduler(nil, nil, 0, nil)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
