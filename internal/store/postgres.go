package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS pareto_frontiers (
	frontier_id UUID PRIMARY KEY,
	sweep_id    UUID NOT NULL,
	tag         TEXT NOT NULL UNIQUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pareto_points (
	point_id        UUID PRIMARY KEY,
	frontier_id     UUID NOT NULL REFERENCES pareto_frontiers(frontier_id) ON DELETE CASCADE,
	ordinal         INT NOT NULL,
	total_cost      DOUBLE PRECISION NOT NULL,
	total_emissions DOUBLE PRECISION NOT NULL,
	social_welfare  DOUBLE PRECISION NOT NULL,
	epsilon         DOUBLE PRECISION,
	elasticity_tag  TEXT NOT NULL,
	solve_time      DOUBLE PRECISION NOT NULL DEFAULT 0,
	run_dir         TEXT NOT NULL DEFAULT '',
	UNIQUE (frontier_id, ordinal)
);`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the frontier tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var pointColumns = []string{
	"point_id", "frontier_id", "ordinal",
	"total_cost", "total_emissions", "social_welfare",
	"epsilon", "elasticity_tag", "solve_time", "run_dir",
}

// SaveFrontier replaces the tag's frontier and its points in one transaction.
func (s *PostgresStore) SaveFrontier(ctx context.Context, f *Frontier) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM pareto_frontiers WHERE tag = $1`, f.Tag); err != nil {
		return fmt.Errorf("delete previous frontier: %w", err)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO pareto_frontiers (frontier_id, sweep_id, tag, created_at)
		VALUES ($1, $2, $3, $4)`,
		f.ID, f.SweepID, f.Tag, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert frontier: %w", err)
	}

	rows := make([][]interface{}, len(f.Points))
	for i := range f.Points {
		p := &f.Points[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		rows[i] = []interface{}{
			p.ID, f.ID, i,
			p.TotalCost, p.TotalEmissions, p.SocialWelfare,
			p.Epsilon, p.ElasticityTag, p.SolveTime, p.RunDir,
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"pareto_points"}, pointColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("insert points: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFrontier(ctx context.Context, tag string) (*Frontier, error) {
	f := &Frontier{Tag: tag}
	err := s.pool.QueryRow(ctx, `
		SELECT frontier_id, sweep_id, created_at
		FROM pareto_frontiers WHERE tag = $1`, tag,
	).Scan(&f.ID, &f.SweepID, &f.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT point_id, total_cost, total_emissions, social_welfare,
			epsilon, elasticity_tag, solve_time, run_dir
		FROM pareto_points WHERE frontier_id = $1
		ORDER BY ordinal ASC`, f.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	f.Points = []Point{}
	for rows.Next() {
		var p Point
		if err := rows.Scan(
			&p.ID, &p.TotalCost, &p.TotalEmissions, &p.SocialWelfare,
			&p.Epsilon, &p.ElasticityTag, &p.SolveTime, &p.RunDir,
		); err != nil {
			return nil, err
		}
		f.Points = append(f.Points, p)
	}
	return f, rows.Err()
}

func (s *PostgresStore) ListFrontiers(ctx context.Context) ([]Summary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.frontier_id, f.sweep_id, f.tag, f.created_at,
			COUNT(p.point_id),
			COALESCE(MIN(p.total_emissions), 0),
			COALESCE(MAX(p.total_emissions), 0),
			COALESCE(MAX(p.social_welfare), 0)
		FROM pareto_frontiers f
		LEFT JOIN pareto_points p ON p.frontier_id = f.frontier_id
		GROUP BY f.frontier_id
		ORDER BY f.tag ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.SweepID, &sum.Tag, &sum.CreatedAt,
			&sum.Points, &sum.MinEmissions, &sum.MaxEmissions, &sum.MaxWelfare); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
