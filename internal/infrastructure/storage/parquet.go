package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/ports"
)

// recommendationDateLayout is the human-readable generation time stored in every row.
const recommendationDateLayout = "2006-01-02 15:04:05"

// RecommendationRow is the flattened columnar layout of a recommendation.
type RecommendationRow struct {
	RunID       string  `parquet:"run_id"`
	Kind        string  `parquet:"kind"`
	Member      int64   `parquet:"member"`
	BuyZoneMin  float64 `parquet:"buy_zone_min"`
	BuyZoneMax  float64 `parquet:"buy_zone_max"`
	SellZoneMin float64 `parquet:"sell_zone_min"`
	SellZoneMax float64 `parquet:"sell_zone_max"`
	StopLossMin float64 `parquet:"stop_loss_min"`
	StopLossMax float64 `parquet:"stop_loss_max"`
	Date        string  `parquet:"date"`
	GeneratedAt int64   `parquet:"generated_at_unix_nano"`
}

// ParquetSink writes one parquet file per recommendation generation timestamp.
type ParquetSink struct {
	dir string
}

var _ ports.RecommendationSink = (*ParquetSink)(nil)

// NewParquetSink ensures dir exists.
func NewParquetSink(dir string) (*ParquetSink, error) {
	if dir == "" {
		return nil, errors.New("parquet sink: directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create parquet dir: %w", err)
	}
	return &ParquetSink{dir: dir}, nil
}

// SaveRecommendation writes rec to its own file. Empty recommendations are skipped.
func (s *ParquetSink) SaveRecommendation(ctx context.Context, rec domain.Recommendation) error {
	if rec.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(s.dir, RecommendationFileName(rec))
	if err := parquet.WriteFile(path, []RecommendationRow{toRow(rec)}); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}

// RecommendationFileName is recommendation_<date>_<kind>[-<member>].parquet, with
// spaces and colons of the timestamp replaced by underscores.
func RecommendationFileName(rec domain.Recommendation) string {
	stamp := rec.GeneratedAt.UTC().Format("2006-01-02 15:04:05.000000000")
	stamp = strings.NewReplacer(" ", "_", ":", "_").Replace(stamp)

	suffix := string(rec.Kind)
	if rec.Kind == domain.KindOpinion {
		suffix = fmt.Sprintf("%s-%d", rec.Kind, rec.Member)
	}
	return fmt.Sprintf("recommendation_%s_%s.parquet", stamp, suffix)
}

// ReadRecommendations loads every row from a file written by ParquetSink.
func ReadRecommendations(path string) ([]RecommendationRow, error) {
	rows, err := parquet.ReadFile[RecommendationRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}

func toRow(rec domain.Recommendation) RecommendationRow {
	return RecommendationRow{
		RunID:       rec.RunID,
		Kind:        string(rec.Kind),
		Member:      int64(rec.Member),
		BuyZoneMin:  float64(rec.BuyZone.Min),
		BuyZoneMax:  float64(rec.BuyZone.Max),
		SellZoneMin: float64(rec.SellZone.Min),
		SellZoneMax: float64(rec.SellZone.Max),
		StopLossMin: float64(rec.StopLoss.Min),
		StopLossMax: float64(rec.StopLoss.Max),
		Date:        rec.GeneratedAt.UTC().Format(recommendationDateLayout),
		GeneratedAt: rec.GeneratedAt.UnixNano(),
	}
}
