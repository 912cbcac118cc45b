// Package postgres implements the storage.Repository contract on
// PostgreSQL using pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tabxml/internal/schema"
	"tabxml/internal/storage"
)

// Repo implements storage.Repository for Postgres.
//
// The inferred schema and row payloads are stored as JSONB, so ad-hoc
// SQL against imported data stays possible alongside the XML artifacts.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a Postgres-backed Repo.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

func (r *Repo) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS datasets (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	source_file TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	schema_json JSONB NOT NULL,
	xml_path    TEXT NOT NULL DEFAULT '',
	xsd_path    TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS dataset_rows (
	dataset_id BIGINT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	row_number BIGINT NOT NULL,
	data       JSONB NOT NULL,
	PRIMARY KEY (dataset_id, row_number)
);`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *Repo) CreateDataset(ctx context.Context, ds *schema.Dataset) (int64, error) {
	schemaJSON, err := json.Marshal(ds.Schema)
	if err != nil {
		return 0, fmt.Errorf("marshal schema: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO datasets (name, source_file, status, schema_json, xml_path, xsd_path)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		ds.Name, ds.SourceFile, ds.Status, schemaJSON, ds.XMLPath, ds.XSDPath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create dataset %s: %w", ds.Name, err)
	}
	return id, nil
}

// InsertRows batches the whole slice into a single round trip.
func (r *Repo) InsertRows(ctx context.Context, datasetID int64, start int, rows []schema.Row) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal row %d: %w", start+i, err)
		}
		batch.Queue(
			`INSERT INTO dataset_rows (dataset_id, row_number, data) VALUES ($1, $2, $3)`,
			datasetID, start+i, data)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert row %d: %w", start+i, err)
		}
	}
	return nil
}

func (r *Repo) FetchRows(ctx context.Context, datasetID int64, offset, limit int) ([]schema.Row, error) {
	q := `SELECT data FROM dataset_rows WHERE dataset_id = $1 ORDER BY row_number OFFSET $2`
	args := []any{datasetID, offset}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.Row
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var row schema.Row
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, fmt.Errorf("unmarshal row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repo) GetDataset(ctx context.Context, name string) (*schema.Dataset, error) {
	var (
		ds         schema.Dataset
		schemaJSON []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, source_file, status, schema_json, xml_path, xsd_path
		 FROM datasets WHERE name = $1`, name).
		Scan(&ds.ID, &ds.Name, &ds.SourceFile, &ds.Status, &schemaJSON, &ds.XMLPath, &ds.XSDPath)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrDatasetNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(schemaJSON, &ds.Schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema for %s: %w", name, err)
	}
	return &ds, nil
}

func (r *Repo) SetStatus(ctx context.Context, datasetID int64, status, xmlPath, xsdPath string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE datasets SET status = $1,
		 xml_path = CASE WHEN $2 = '' THEN xml_path ELSE $2 END,
		 xsd_path = CASE WHEN $3 = '' THEN xsd_path ELSE $3 END
		 WHERE id = $4`,
		status, xmlPath, xsdPath, datasetID)
	return err
}

func (r *Repo) DeleteDataset(ctx context.Context, datasetID int64) error {
	// dataset_rows goes with it via ON DELETE CASCADE.
	_, err := r.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, datasetID)
	return err
}
