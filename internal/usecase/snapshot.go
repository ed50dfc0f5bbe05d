package usecase

import (
	"context"
	"fmt"
	"os"
	"sort"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/fanout"
)

// snapshotStage captures article screenshots, one partition per browser endpoint.
type snapshotStage struct {
	env *env
}

func (s *snapshotStage) Name() string     { return StageSnapshot }
func (s *snapshotStage) Inputs() []string { return []string{domain.KeyArticleURLs} }
func (s *snapshotStage) Output() string   { return domain.KeySnapshots }

func (s *snapshotStage) Run(ctx context.Context, in StageInput) (StageOutput, error) {
	var links []string
	if err := in.decode(domain.KeyArticleURLs, domain.ArtifactURLs, &links); err != nil {
		return StageOutput{}, err
	}

	dir := s.env.articleImageDir()
	if err := resetDir(dir); err != nil {
		return StageOutput{}, err
	}

	endpoints := s.env.settings.Endpoints
	partitions, err := fanout.Split(len(links), len(endpoints))
	if err != nil {
		return StageOutput{}, err
	}

	res := fanout.Run(ctx, partitions, func(ctx context.Context, p fanout.Partition) ([]domain.SnapshotEntry, error) {
		endpoint := endpoints[p.Index]
		entries := make([]domain.SnapshotEntry, 0, p.Len())
		for pos := p.Start; pos < p.End; pos++ {
			entries = append(entries, s.capture(ctx, in, pos, links[pos], endpoint, dir))
		}
		return entries, nil
	})

	manifest := res.Items
	if manifest == nil {
		manifest = []domain.SnapshotEntry{}
	}
	sort.Slice(manifest, func(i, j int) bool { return manifest[i].Position < manifest[j].Position })

	failures := len(res.Failures)
	for _, e := range manifest {
		if !e.HasEvidence() {
			failures++
		}
	}
	s.env.deps.Metrics.WorkerFailures(StageSnapshot, failures)

	art, err := domain.NewArtifact(domain.ArtifactSnapshots, manifest, s.env.now())
	if err != nil {
		return StageOutput{}, err
	}
	return StageOutput{Artifact: art.WithFailures(failures), Items: len(manifest)}, nil
}

// capture never fails: a broken URL yields an entry without images.
func (s *snapshotStage) capture(ctx context.Context, in StageInput, pos int, link, endpoint, dir string) domain.SnapshotEntry {
	entry := domain.SnapshotEntry{Position: pos, URL: link, Endpoint: endpoint, Images: []string{}}
	if s.env.deps.Browser == nil {
		entry.Error = "browser is not configured"
		return entry
	}

	images, err := s.env.deps.Browser.CaptureArticle(ctx, link, endpoint, dir)
	if err != nil {
		in.Log.Warn("article capture failed", "url", link, "endpoint", endpoint, "error", err)
		entry.Error = err.Error()
		return entry
	}
	if images != nil {
		entry.Images = images
	}
	return entry
}

// resetDir empties the image workspace so a run never reads a previous run's files.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clean %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
