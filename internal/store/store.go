// Package store implements the durable artifact hand-off between stages.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/ports"
)

// ErrNotFound is returned by Get for keys that were never written.
var ErrNotFound = errors.New("artifact not found")

func notFound(key string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}

func encode(a domain.Artifact) ([]byte, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return raw, nil
}

func decode(raw []byte) (domain.Artifact, error) {
	var a domain.Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return domain.Artifact{}, fmt.Errorf("decode artifact: %w", err)
	}
	return a, nil
}

var (
	_ ports.PipelineStore = (*Memory)(nil)
	_ ports.PipelineStore = (*Badger)(nil)
	_ ports.PipelineStore = (*Redis)(nil)
)
