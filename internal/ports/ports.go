package ports

import (
	"context"
	"time"

	"MarketAdvisor/internal/domain"
)

// NewsSource pulls article candidates from one upstream provider.
type NewsSource interface {
	Name() string
	Fetch(ctx context.Context, day time.Time) ([]domain.Article, error)
}

// Image is inline visual evidence attached to a prompt.
type Image struct {
	MIMEType string
	Data     []byte
}

// Prompt is the payload sent to the reasoning service.
type Prompt struct {
	Text   string
	Images []Image
	// JSON asks the service for a JSON-only response.
	JSON bool
}

// Response is the reasoning service's answer. Status follows HTTP semantics.
// Raw keeps the undecoded envelope when Body could not be extracted.
type Response struct {
	Status int
	Body   string
	Raw    string
}

// Success reports a 2xx status.
func (r Response) Success() bool {
	return r.Status >= 200 && r.Status < 300
}

// ReasoningService invokes the external model. A non-nil error is a transport failure.
type ReasoningService interface {
	Invoke(ctx context.Context, prompt Prompt) (Response, error)
}

// Browser drives a remote browser-automation endpoint.
type Browser interface {
	CaptureChart(ctx context.Context, endpoint, outputPath string) (string, error)
	CaptureArticle(ctx context.Context, url, endpoint, outputDir string) ([]string, error)
}

// PipelineStore is the durable hand-off between stages.
type PipelineStore interface {
	Put(ctx context.Context, key string, artifact domain.Artifact) error
	// Get fails with store.ErrNotFound for keys never written.
	Get(ctx context.Context, key string) (domain.Artifact, error)
	// List returns artifacts whose key starts with prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]domain.Artifact, error)
	Close() error
}

// RecommendationSink persists recommendation records.
type RecommendationSink interface {
	SaveRecommendation(ctx context.Context, rec domain.Recommendation) error
}

// DiagnosticSink captures raw payloads of exhausted calls for offline inspection.
type DiagnosticSink interface {
	Capture(ctx context.Context, diag domain.Diagnostic) error
}

// Notifier announces the final recommendation.
type Notifier interface {
	PublishRecommendation(ctx context.Context, rec domain.Recommendation) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
