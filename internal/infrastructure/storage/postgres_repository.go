package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/ports"
)

const recommendationsTable = "recommendations"

const createRecommendationsTable = `CREATE TABLE IF NOT EXISTS recommendations (
    id            BIGSERIAL PRIMARY KEY,
    run_id        TEXT NOT NULL,
    kind          TEXT NOT NULL,
    member        INTEGER NOT NULL DEFAULT 0,
    buy_zone_min  DOUBLE PRECISION NOT NULL,
    buy_zone_max  DOUBLE PRECISION NOT NULL,
    sell_zone_min DOUBLE PRECISION NOT NULL,
    sell_zone_max DOUBLE PRECISION NOT NULL,
    stop_loss_min DOUBLE PRECISION NOT NULL,
    stop_loss_max DOUBLE PRECISION NOT NULL,
    generated_at  TIMESTAMPTZ NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var recommendationColumns = []string{
	"run_id", "kind", "member",
	"buy_zone_min", "buy_zone_max",
	"sell_zone_min", "sell_zone_max",
	"stop_loss_min", "stop_loss_max",
	"generated_at",
}

// PostgresRepository keeps an append-only ledger of recommendations in Postgres.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.RecommendationSink = (*PostgresRepository)(nil)

// OpenPostgres connects through lib/pq and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the recommendations table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, createRecommendationsTable); err != nil {
		return fmt.Errorf("create recommendations table: %w", err)
	}
	return nil
}

// SaveRecommendation appends one row; empty recommendations are skipped.
func (r *PostgresRepository) SaveRecommendation(ctx context.Context, rec domain.Recommendation) error {
	if r.db == nil || rec.Empty() {
		return nil
	}

	query, args, err := r.insertQuery(rec)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

// Recent returns up to limit recommendations of kind, newest first.
func (r *PostgresRepository) Recent(ctx context.Context, kind domain.RecommendationKind, limit uint64) ([]domain.Recommendation, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := r.recentQuery(kind, limit)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}

	var result []domain.Recommendation
	for rows.Next() {
		var (
			rec         domain.Recommendation
			kindValue   string
			generatedAt time.Time
		)
		if err := rows.Scan(&rec.RunID, &kindValue, &rec.Member,
			&rec.BuyZone.Min, &rec.BuyZone.Max,
			&rec.SellZone.Min, &rec.SellZone.Max,
			&rec.StopLoss.Min, &rec.StopLoss.Max,
			&generatedAt,
		); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		rec.Kind = domain.RecommendationKind(kindValue)
		rec.GeneratedAt = generatedAt.UTC()
		result = append(result, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func (r *PostgresRepository) insertQuery(rec domain.Recommendation) (string, []interface{}, error) {
	return r.builder.
		Insert(recommendationsTable).
		Columns(recommendationColumns...).
		Values(rec.RunID, string(rec.Kind), rec.Member,
			float64(rec.BuyZone.Min), float64(rec.BuyZone.Max),
			float64(rec.SellZone.Min), float64(rec.SellZone.Max),
			float64(rec.StopLoss.Min), float64(rec.StopLoss.Max),
			rec.GeneratedAt.UTC(),
		).
		ToSql()
}

func (r *PostgresRepository) recentQuery(kind domain.RecommendationKind, limit uint64) (string, []interface{}, error) {
	if limit == 0 {
		limit = 10
	}
	return r.builder.
		Select(recommendationColumns...).
		From(recommendationsTable).
		Where(sq.Eq{"kind": string(kind)}).
		OrderBy("generated_at DESC").
		Limit(limit).
		ToSql()
}
