package usecase

import (
	"context"
	"sort"
	"sync/atomic"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/fanout"
	"MarketAdvisor/internal/ports"
	"MarketAdvisor/internal/retry"
)

// summarizeStage digests each captured article with a single reasoning call.
type summarizeStage struct {
	env *env
}

func (s *summarizeStage) Name() string     { return StageSummarize }
func (s *summarizeStage) Inputs() []string { return []string{domain.KeySnapshots} }
func (s *summarizeStage) Output() string   { return domain.KeySummaries }

func (s *summarizeStage) Run(ctx context.Context, in StageInput) (StageOutput, error) {
	var manifest []domain.SnapshotEntry
	if err := in.decode(domain.KeySnapshots, domain.ArtifactSnapshots, &manifest); err != nil {
		return StageOutput{}, err
	}

	entries := make([]domain.SnapshotEntry, 0, len(manifest))
	for _, e := range manifest {
		if e.HasEvidence() {
			entries = append(entries, e)
		}
	}

	partitions, err := fanout.Split(len(entries), s.env.settings.WorkerCount)
	if err != nil {
		return StageOutput{}, err
	}

	var dropped atomic.Int64
	res := fanout.Run(ctx, partitions, func(ctx context.Context, p fanout.Partition) ([]domain.Summary, error) {
		var summaries []domain.Summary
		for _, entry := range fanout.Chunk(entries, p) {
			summary, ok := s.summarize(ctx, in, entry)
			if !ok {
				dropped.Add(1)
				continue
			}
			summaries = append(summaries, summary)
		}
		return summaries, nil
	})

	summaries := res.Items
	if summaries == nil {
		summaries = []domain.Summary{}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].URL < summaries[j].URL })

	failures := int(dropped.Load()) + len(res.Failures)
	s.env.deps.Metrics.WorkerFailures(StageSummarize, failures)

	art, err := domain.NewArtifact(domain.ArtifactSummaries, summaries, s.env.now())
	if err != nil {
		return StageOutput{}, err
	}
	return StageOutput{Artifact: art.WithFailures(failures), Items: len(summaries)}, nil
}

// summarize makes exactly one attempt; a failed entry is omitted.
func (s *summarizeStage) summarize(ctx context.Context, in StageInput, entry domain.SnapshotEntry) (domain.Summary, bool) {
	images, err := loadImages(entry.Images)
	if err != nil {
		in.Log.Warn("snapshot unreadable", "url", entry.URL, "error", err)
		return domain.Summary{}, false
	}

	out := invoke(ctx, s.env, in, StageSummarize, retry.SingleAttempt(), ports.Prompt{
		Text:   summarizePrompt(entry.URL),
		Images: images,
	}, retry.Text)
	if !out.OK() {
		return domain.Summary{}, false
	}
	return domain.Summary{URL: entry.URL, Text: out.Value, GeneratedAt: out.GeneratedAt}, true
}
