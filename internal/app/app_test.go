package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketAdvisor/internal/config"
	"MarketAdvisor/internal/logging"
	"MarketAdvisor/internal/usecase"
)

func loadTestConfig(t *testing.T, driver string) config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "pipeline:\n" +
		"  workerCount: 2\n" +
		"  workspace: " + filepath.Join(dir, "workspace") + "\n" +
		"reasoning:\n" +
		"  provider: http\n" +
		"  endpoint: http://127.0.0.1:1/v1/generate\n" +
		"  requestsPerMinute: 0\n" +
		"store:\n" +
		"  driver: " + driver + "\n" +
		"recommendations:\n" +
		"  parquetDir: " + filepath.Join(dir, "parquet") + "\n" +
		"sites:\n" +
		"  - name: feeds\n" +
		"    scanner: rss\n" +
		"    categories:\n" +
		"      - name: markets\n" +
		"        url: http://127.0.0.1:1/rss\n" +
		"  - name: headlines\n" +
		"    scanner: newsapi\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	return cfg
}

func TestNewWiresInMemoryApplication(t *testing.T) {
	cfg := loadTestConfig(t, config.StoreMemory)

	application, err := New(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	assert.Equal(t, []string{
		usecase.StageCrawl, usecase.StageFilter, usecase.StageSnapshot, usecase.StageSummarize,
		usecase.StageAnalyze, usecase.StageOpine, usecase.StageFinalize,
	}, application.Stages())
	assert.DirExists(t, filepath.Join(cfg.Pipeline.Workspace, "diagnostics"))
	assert.DirExists(t, cfg.Recommendations.ParquetDir)
}

func TestNewRejectsUnknownStoreDriver(t *testing.T) {
	cfg := loadTestConfig(t, "etcd")

	_, err := New(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etcd")
}

func TestNewRequiresGeminiKey(t *testing.T) {
	cfg := loadTestConfig(t, config.StoreMemory)
	cfg.Reasoning.Provider = config.ProviderGenAI
	cfg.Reasoning.APIKey = ""

	_, err := New(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

func TestSettingsMapping(t *testing.T) {
	cfg := loadTestConfig(t, config.StoreMemory)
	s := Settings(cfg)

	assert.Equal(t, 2, s.WorkerCount)
	assert.Equal(t, cfg.Pipeline.EnsembleSize, s.EnsembleSize)
	assert.Equal(t, cfg.Browser.Endpoints, s.Endpoints)
	assert.Equal(t, cfg.Market.Symbol, s.Symbol)
	assert.NoError(t, s.Validate())
}
