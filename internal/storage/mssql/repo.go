// Package mssql implements the storage.Repository contract on
// Microsoft SQL Server via database/sql.
package mssql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"tabxml/internal/schema"
	"tabxml/internal/storage"
)

// Repo implements storage.Repository for SQL Server.
//
// Differences from the other backends:
//   - Identity retrieval uses OUTPUT INSERTED.id; LastInsertId is not
//     supported by the sqlserver driver.
//   - Pagination uses OFFSET ... FETCH, which requires an ORDER BY.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens a SQL Server connection. The go-mssqldb driver registers
// itself under the name "sqlserver".
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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
	const datasetsDDL = `
IF OBJECT_ID('datasets', 'U') IS NULL
CREATE TABLE datasets (
	id          BIGINT IDENTITY(1,1) PRIMARY KEY,
	name        NVARCHAR(450) NOT NULL UNIQUE,
	source_file NVARCHAR(MAX) NOT NULL DEFAULT '',
	status      NVARCHAR(32) NOT NULL DEFAULT 'pending',
	schema_json NVARCHAR(MAX) NOT NULL,
	xml_path    NVARCHAR(MAX) NOT NULL DEFAULT '',
	xsd_path    NVARCHAR(MAX) NOT NULL DEFAULT ''
);`
	const rowsDDL = `
IF OBJECT_ID('dataset_rows', 'U') IS NULL
CREATE TABLE dataset_rows (
	dataset_id BIGINT NOT NULL,
	row_number BIGINT NOT NULL,
	data       NVARCHAR(MAX) NOT NULL,
	CONSTRAINT pk_dataset_rows PRIMARY KEY (dataset_id, row_number)
);`
	for _, ddl := range []string{datasetsDDL, rowsDDL} {
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (r *Repo) CreateDataset(ctx context.Context, ds *schema.Dataset) (int64, error) {
	schemaJSON, err := json.Marshal(ds.Schema)
	if err != nil {
		return 0, fmt.Errorf("marshal schema: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO datasets (name, source_file, status, schema_json, xml_path, xsd_path)
		 OUTPUT INSERTED.id
		 VALUES (@p1, @p2, @p3, @p4, @p5, @p6)`,
		ds.Name, ds.SourceFile, ds.Status, string(schemaJSON), ds.XMLPath, ds.XSDPath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create dataset %s: %w", ds.Name, err)
	}
	return id, nil
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
		`INSERT INTO dataset_rows (dataset_id, row_number, data) VALUES (@p1, @p2, @p3)`)
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
	q := `SELECT data FROM dataset_rows WHERE dataset_id = @p1
	      ORDER BY row_number OFFSET @p2 ROWS`
	args := []any{datasetID, offset}
	if limit > 0 {
		q += ` FETCH NEXT @p3 ROWS ONLY`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
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
		 FROM datasets WHERE name = @p1`, name).
		Scan(&ds.ID, &ds.Name, &ds.SourceFile, &ds.Status, &schemaJSON, &ds.XMLPath, &ds.XSDPath)
	if errors.Is(err, sql.ErrNoRows) {
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
		`UPDATE datasets SET status = @p1,
		 xml_path = CASE WHEN @p2 = '' THEN xml_path ELSE @p2 END,
		 xsd_path = CASE WHEN @p3 = '' THEN xsd_path ELSE @p3 END
		 WHERE id = @p4`,
		status, xmlPath, xsdPath, datasetID)
	return err
}

func (r *Repo) DeleteDataset(ctx context.Context, datasetID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM dataset_rows WHERE dataset_id = @p1`, datasetID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM datasets WHERE id = @p1`, datasetID); err != nil {
		return err
	}
	return tx.Commit()
}
