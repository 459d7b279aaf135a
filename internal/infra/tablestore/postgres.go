package tablestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pandemetrix/pandemetrix/internal/domain/etl"
)

// PostgresStore implements etl.CollectionStore on a single JSONB table.
// Collections are only ever read in bulk and replaced wholesale, so one
// row per record with a collection discriminator is enough.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs the store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the backing table when absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS collections (
			id BIGSERIAL PRIMARY KEY,
			collection TEXT NOT NULL,
			payload JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS collections_name_idx ON collections (collection);
	`)
	return err
}

// Replace swaps the named collection wholesale inside one transaction.
func (s *PostgresStore) Replace(ctx context.Context, name string, records []map[string]any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM collections WHERE collection = $1`, name); err != nil {
		return fmt.Errorf("clear collection %s: %w", name, err)
	}
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record for %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO collections (collection, payload) VALUES ($1, $2)`,
			name, payload); err != nil {
			return fmt.Errorf("insert record into %s: %w", name, err)
		}
	}
	return tx.Commit(ctx)
}

// Fetch returns every record of the named collection.
func (s *PostgresStore) Fetch(ctx context.Context, name string) ([]map[string]any, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM collections WHERE collection = $1 ORDER BY id`, name)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", name, err)
	}
	defer rows.Close()

	var records []map[string]any
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec map[string]any
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode record of %s: %w", name, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Infos lists collections with row counts and sampled columns.
func (s *PostgresStore) Infos(ctx context.Context) ([]etl.CollectionInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT collection, COUNT(*) AS rows
		FROM collections
		GROUP BY collection
		ORDER BY collection
	`)
	if err != nil {
		return nil, fmt.Errorf("query collection infos: %w", err)
	}
	defer rows.Close()

	var infos []etl.CollectionInfo
	for rows.Next() {
		var info etl.CollectionInfo
		if err := rows.Scan(&info.Name, &info.Rows); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range infos {
		var payload []byte
		err := s.pool.QueryRow(ctx,
			`SELECT payload FROM collections WHERE collection = $1 ORDER BY id LIMIT 1`,
			infos[i].Name).Scan(&payload)
		if err != nil {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal(payload, &rec); err != nil {
			continue
		}
		infos[i].Columns = columnsOf([]map[string]any{rec})
	}
	return infos, nil
}
