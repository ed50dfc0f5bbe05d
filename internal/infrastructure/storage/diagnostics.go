package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/ports"
)

// DiagnosticLog appends exhausted-call diagnostics as JSON lines to <dir>/<stage>.jsonl.
type DiagnosticLog struct {
	dir string
	mu  sync.Mutex
}

var _ ports.DiagnosticSink = (*DiagnosticLog)(nil)

// NewDiagnosticLog ensures dir exists.
func NewDiagnosticLog(dir string) (*DiagnosticLog, error) {
	if dir == "" {
		return nil, errors.New("diagnostic log: directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create diagnostics dir: %w", err)
	}
	return &DiagnosticLog{dir: dir}, nil
}

// Capture appends diag to its stage file.
func (l *DiagnosticLog) Capture(_ context.Context, diag domain.Diagnostic) error {
	line, err := json.Marshal(diag)
	if err != nil {
		return fmt.Errorf("encode diagnostic: %w", err)
	}
	line = append(line, '\n')

	stage := diag.Stage
	if stage == "" {
		stage = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(l.dir, stage+".jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open diagnostic file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write diagnostic: %w", err)
	}
	return f.Close()
}

// MultiSink forwards every recommendation to all sinks and joins their errors.
type MultiSink []ports.RecommendationSink

var _ ports.RecommendationSink = MultiSink(nil)

// SaveRecommendation implements ports.RecommendationSink.
func (m MultiSink) SaveRecommendation(ctx context.Context, rec domain.Recommendation) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.SaveRecommendation(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
