// Package sqlite implements the storage.Repository contract on SQLite
// via the pure-Go modernc.org driver. It is the default backend: no
// server, a single file (or memory) DSN, and full SQL semantics.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"tabxml/internal/schema"
	"tabxml/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// Key design points:
//   - The inferred schema and each row are stored as JSON text. SQLite
//     has no native JSON column type; TEXT affinity round-trips cleanly.
//   - Rows carry an explicit row_number so retrieval order never depends
//     on insertion order or rowid behavior.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS datasets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	source_file TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	schema_json TEXT NOT NULL,
	xml_path    TEXT NOT NULL DEFAULT '',
	xsd_path    TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS dataset_rows (
	dataset_id INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	row_number INTEGER NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (dataset_id, row_number)
);`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *Repo) CreateDataset(ctx context.Context, ds *schema.Dataset) (int64, error) {
	schemaJSON, err := json.Marshal(ds.Schema)
	if err != nil {
		return 0, fmt.Errorf("marshal schema: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO datasets (name, source_file, status, schema_json, xml_path, xsd_path)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ds.Name, ds.SourceFile, ds.Status, string(schemaJSON), ds.XMLPath, ds.XSDPath)
	if err != nil {
		return 0, fmt.Errorf("create dataset %s: %w", ds.Name, err)
	}
	return res.LastInsertId()
}

func (r *Repo) InsertRows(ctx context.Context, datasetID int64, start int, rows []schema.Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dataset_rows (dataset_id, row_number, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal row %d: %w", start+i, err)
		}
		if _, err := stmt.ExecContext(ctx, datasetID, start+i, string(data)); err != nil {
			return fmt.Errorf("insert row %d: %w", start+i, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) FetchRows(ctx context.Context, datasetID int64, offset, limit int) ([]schema.Row, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means unlimited
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM dataset_rows WHERE dataset_id = ?
		 ORDER BY row_number LIMIT ? OFFSET ?`,
		datasetID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.Row
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var row schema.Row
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, fmt.Errorf("unmarshal row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repo) GetDataset(ctx context.Context, name string) (*schema.Dataset, error) {
	var (
		ds         schema.Dataset
		schemaJSON string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, source_file, status, schema_json, xml_path, xsd_path
		 FROM datasets WHERE name = ?`, name).
		Scan(&ds.ID, &ds.Name, &ds.SourceFile, &ds.Status, &schemaJSON, &ds.XMLPath, &ds.XSDPath)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", storage.ErrDatasetNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(schemaJSON), &ds.Schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema for %s: %w", name, err)
	}
	return &ds, nil
}

func (r *Repo) SetStatus(ctx context.Context, datasetID int64, status, xmlPath, xsdPath string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE datasets SET status = ?,
		 xml_path = CASE WHEN ? = '' THEN xml_path ELSE ? END,
		 xsd_path = CASE WHEN ? = '' THEN xsd_path ELSE ? END
		 WHERE id = ?`,
		status, xmlPath, xmlPath, xsdPath, xsdPath, datasetID)
	return err
}

func (r *Repo) DeleteDataset(ctx context.Context, datasetID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Foreign keys default off in SQLite; delete rows explicitly rather
	// than relying on ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM dataset_rows WHERE dataset_id = ?`, datasetID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM datasets WHERE id = ?`, datasetID); err != nil {
		return err
	}
	return tx.Commit()
}
