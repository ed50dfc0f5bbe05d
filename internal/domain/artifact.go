package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ArtifactKind tags the payload carried by an Artifact.
type ArtifactKind string

const (
	ArtifactArticles       ArtifactKind = "articles"
	ArtifactURLs           ArtifactKind = "urls"
	ArtifactSnapshots      ArtifactKind = "snapshots"
	ArtifactSummaries      ArtifactKind = "summaries"
	ArtifactAnalysis       ArtifactKind = "analysis"
	ArtifactOpinions       ArtifactKind = "opinions"
	ArtifactRecommendation ArtifactKind = "recommendation"
)

// Store keys written by the pipeline stages.
const (
	KeyArticles          = "articles"
	KeyArticleURLs       = "article_urls"
	KeySnapshots         = "snapshot_manifest"
	KeySummaries         = "summaries"
	KeyMarketAnalysis    = "market_analysis"
	KeyOpinions          = "opinions"
	KeyRecommendation    = "recommendation"
	OpinionKeyPrefix     = "opinion/"
	RecommendationPrefix = "recommendations/"
)

// OpinionKey is the per-member key of an ensemble opinion.
func OpinionKey(member int) string {
	return fmt.Sprintf("%s%d", OpinionKeyPrefix, member)
}

// RecommendationRecordKey is the accumulating key of a recommendation record.
func RecommendationRecordKey(rec Recommendation, suffix string) string {
	return fmt.Sprintf("%s%s/%s-%s", RecommendationPrefix, rec.Kind, rec.GeneratedAt.UTC().Format("20060102T150405.000000000"), suffix)
}

// Artifact is the durable output of a stage. Degraded marks artifacts assembled
// despite failed contributions; Failures counts them.
type Artifact struct {
	Kind      ArtifactKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
	Degraded  bool         `json:"degraded"`
	Failures  int          `json:"failures"`
	Payload   []byte       `json:"payload"`
}

// NewArtifact encodes v as the payload of a new artifact.
func NewArtifact(kind ArtifactKind, v any, createdAt time.Time) (Artifact, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Artifact{}, fmt.Errorf("encode %s artifact: %w", kind, err)
	}
	return Artifact{Kind: kind, CreatedAt: createdAt, Payload: payload}, nil
}

// Decode unmarshals the payload into v after checking the kind.
func (a Artifact) Decode(kind ArtifactKind, v any) error {
	if a.Kind != kind {
		return fmt.Errorf("artifact kind %q, want %q", a.Kind, kind)
	}
	if err := json.Unmarshal(a.Payload, v); err != nil {
		return fmt.Errorf("decode %s artifact: %w", kind, err)
	}
	return nil
}

// WithFailures marks the artifact degraded when failures > 0.
func (a Artifact) WithFailures(failures int) Artifact {
	a.Failures = failures
	a.Degraded = failures > 0
	return a
}
