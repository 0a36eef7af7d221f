package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/universe-mcp/harvester/pkg/model"
)

// PostgresStore keeps records in a single jsonb-backed table. Schema-wise a
// record stays the same flat document the file store writes; the database
// only adds the (category, id) uniqueness and faster whole-corpus reads.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const recordsTable = `
CREATE TABLE IF NOT EXISTS records (
    category     TEXT        NOT NULL,
    id           TEXT        NOT NULL,
    data         JSONB       NOT NULL,
    harvested_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (category, id)
)`

// NewPostgresStore connects, pings, and creates the records table.
func NewPostgresStore(ctx context.Context, connectionURI string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connectionURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Postgres config: %w", err)
	}
	config.MaxConns = 10
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, recordsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create records table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec *model.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidInput)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO records (category, id, data, harvested_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (category, id)
		DO UPDATE SET data = EXCLUDED.data, harvested_at = EXCLUDED.harvested_at`,
		string(rec.Category), rec.ID, data, rec.HarvestedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, category model.Category, id string) (*model.Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM records WHERE category = $1 AND id = $2`,
		string(category), id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}

	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *PostgresStore) List(ctx context.Context, category model.Category) ([]*model.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM records WHERE category = $1 ORDER BY id`,
		string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", category, err)
	}
	defer rows.Close()

	var records []*model.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var rec model.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context, category model.Category) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM records WHERE category = $1`,
		string(category)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", category, err)
	}
	return count, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
