// Package dataset orchestrates the import pipeline: read a tabular
// source, infer its schema, persist rows, generate the XML/XSD artifact
// pair, and expose validation and querying over the result.
package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"tabxml/internal/infer"
	"tabxml/internal/metrics"
	"tabxml/internal/query"
	"tabxml/internal/schema"
	"tabxml/internal/source"
	"tabxml/internal/storage"
	"tabxml/internal/validate"
	"tabxml/internal/xmlgen"
	"tabxml/internal/xsdgen"
)

// Pipeline stages reported by ImportError and recorded in metrics.
const (
	StageAnalyze   = "analyze"
	StageSchema    = "schema"
	StagePersist   = "persist"
	StageRows      = "rows"
	StageArtifacts = "artifacts"
)

// DefaultBatchSize bounds the number of rows per storage call during
// import. Purely a peak-memory cap, not a concurrency mechanism.
const DefaultBatchSize = 500

// ImportError reports which pipeline stage an import failed in.
type ImportError struct {
	Stage string
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import failed at stage %s: %v", e.Stage, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Service runs dataset operations against one repository. OutputDir is
// where generated artifact pairs land; BatchSize defaults to
// DefaultBatchSize when zero.
type Service struct {
	Repo      storage.Repository
	OutputDir string
	BatchSize int
}

func (s *Service) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return DefaultBatchSize
}

// Import reads the source, infers a schema, and durably persists the
// dataset and its rows. Import is all-or-nothing: a failure at any
// stage deletes whatever was written and surfaces an ImportError naming
// the stage. Callers importing the same dataset name concurrently must
// serialize; independent names are safe in parallel.
func (s *Service) Import(ctx context.Context, src source.Source, name string) (*schema.Dataset, error) {
	if name == "" {
		name = src.Name()
	}

	start := time.Now()
	headers, raw, err := src.Read()
	if err != nil {
		metrics.RecordStage(StageAnalyze, "error", time.Since(start).Seconds())
		return nil, &ImportError{Stage: StageAnalyze, Err: err}
	}
	metrics.RecordStage(StageAnalyze, "ok", time.Since(start).Seconds())

	start = time.Now()
	sc := infer.BuildSchema(name, headers, raw)
	if err := sc.Validate(); err != nil {
		metrics.RecordStage(StageSchema, "error", time.Since(start).Seconds())
		return nil, &ImportError{Stage: StageSchema, Err: err}
	}
	rows := infer.CoerceRows(&sc, raw)
	metrics.RecordStage(StageSchema, "ok", time.Since(start).Seconds())

	ds := &schema.Dataset{
		Name:       name,
		SourceFile: src.Name(),
		Status:     schema.StatusProcessing,
		Schema:     sc,
	}

	start = time.Now()
	id, err := s.Repo.CreateDataset(ctx, ds)
	if err != nil {
		metrics.RecordStage(StagePersist, "error", time.Since(start).Seconds())
		return nil, &ImportError{Stage: StagePersist, Err: err}
	}
	ds.ID = id
	metrics.RecordStage(StagePersist, "ok", time.Since(start).Seconds())

	start = time.Now()
	if err := s.insertBatched(ctx, id, rows); err != nil {
		metrics.RecordStage(StageRows, "error", time.Since(start).Seconds())
		s.rollback(ctx, id)
		return nil, &ImportError{Stage: StageRows, Err: err}
	}
	metrics.RecordStage(StageRows, "ok", time.Since(start).Seconds())
	metrics.AddRows(len(rows))

	if err := s.Repo.SetStatus(ctx, id, schema.StatusCompleted, "", ""); err != nil {
		s.rollback(ctx, id)
		return nil, &ImportError{Stage: StagePersist, Err: err}
	}
	ds.Status = schema.StatusCompleted
	return ds, nil
}

func (s *Service) insertBatched(ctx context.Context, id int64, rows []schema.Row) error {
	size := s.batchSize()
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.Repo.InsertRows(ctx, id, start, rows[start:end]); err != nil {
			return err
		}
		metrics.AddBatch()
	}
	return nil
}

// rollback discards all partial writes for a failed import. Best
// effort: the import error, not a rollback error, is what the caller
// needs to see.
func (s *Service) rollback(ctx context.Context, id int64) {
	_ = s.Repo.SetStatus(ctx, id, schema.StatusFailed, "", "")
	_ = s.Repo.DeleteDataset(ctx, id)
}

// GenerateArtifacts writes the schema artifact and the structural
// document for a previously imported dataset, then records their paths.
// limit > 0 caps the number of records in the document.
func (s *Service) GenerateArtifacts(ctx context.Context, name string, limit int) (xmlPath, xsdPath string, err error) {
	ds, err := s.Repo.GetDataset(ctx, name)
	if err != nil {
		return "", "", err
	}

	start := time.Now()
	rows, err := s.fetchAll(ctx, ds.ID, limit)
	if err != nil {
		metrics.RecordStage(StageArtifacts, "error", time.Since(start).Seconds())
		return "", "", err
	}

	xmlPath = filepath.Join(s.OutputDir, ds.Name+".xml")
	xsdPath = filepath.Join(s.OutputDir, ds.Name+".xsd")

	if err := xsdgen.WriteFile(&ds.Schema, xsdPath); err != nil {
		metrics.RecordStage(StageArtifacts, "error", time.Since(start).Seconds())
		return "", "", fmt.Errorf("generate schema artifact: %w", err)
	}
	if err := xmlgen.WriteFile(&ds.Schema, rows, limit, xmlPath); err != nil {
		metrics.RecordStage(StageArtifacts, "error", time.Since(start).Seconds())
		return "", "", fmt.Errorf("generate document: %w", err)
	}

	if err := s.Repo.SetStatus(ctx, ds.ID, schema.StatusCompleted, xmlPath, xsdPath); err != nil {
		return "", "", err
	}
	metrics.RecordStage(StageArtifacts, "ok", time.Since(start).Seconds())
	return xmlPath, xsdPath, nil
}

// fetchAll pages through stored rows in batch-sized chunks. limit > 0
// stops early once enough rows are in hand.
func (s *Service) fetchAll(ctx context.Context, id int64, limit int) ([]schema.Row, error) {
	size := s.batchSize()
	var out []schema.Row
	for offset := 0; ; offset += size {
		want := size
		if limit > 0 && limit-len(out) < want {
			want = limit - len(out)
		}
		page, err := s.Repo.FetchRows(ctx, id, offset, want)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < want {
			break
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Validate checks the dataset's generated document against its schema
// artifact. The returned report separates "ran and found problems" from
// the error return, which means validation could not run at all.
func (s *Service) Validate(ctx context.Context, name string) (*validate.Report, error) {
	ds, err := s.Repo.GetDataset(ctx, name)
	if err != nil {
		return nil, err
	}
	report, err := validate.ValidateFiles(ds.XMLPath, ds.XSDPath)
	if err != nil {
		return nil, err
	}
	metrics.RecordValidation(report.IsValid)
	return report, nil
}

// Query returns a query engine over the dataset's generated document.
// The document is loaded lazily on first query.
func (s *Service) Query(ctx context.Context, name string) (*query.Engine, error) {
	ds, err := s.Repo.GetDataset(ctx, name)
	if err != nil {
		return nil, err
	}
	return query.NewEngine(ds.XMLPath), nil
}
