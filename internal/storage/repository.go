// Package storage defines the persistence contract for datasets and
// their rows, plus a factory registry for pluggable backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tabxml/internal/schema"
)

// ErrDatasetNotFound is returned by GetDataset when no dataset with the
// requested name exists.
var ErrDatasetNotFound = errors.New("storage: dataset not found")

// Config is the minimal configuration needed to create a repository.
//
// When to use:
//   - Use Config when constructing a Repository via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//
// Errors:
//   - New returns an error if Kind is empty or unsupported.
type Config struct {
	Kind string
	DSN  string
}

// Repository is a backend-agnostic interface for dataset persistence.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the import pipeline needs. Each backend implements these
// semantics in its own idiomatic way (Postgres RETURNING, SQL Server
// OUTPUT INSERTED, etc).
type Repository interface {
	// Close releases any backend resources (connections, prepared statements, etc).
	//
	// Edge cases:
	//   - Callers should treat Close as "call once" at shutdown.
	Close()

	// EnsureSchema creates the dataset and row tables if they do not exist.
	// Idempotent; safe to call on every startup.
	EnsureSchema(ctx context.Context) error

	// CreateDataset durably records a dataset and its inferred schema,
	// returning the new dataset id. The dataset name must be unique.
	CreateDataset(ctx context.Context, ds *schema.Dataset) (int64, error)

	// InsertRows bulk-inserts a batch of rows for the dataset, keyed by
	// (dataset id, row number). start is the zero-based row number of the
	// first row in the batch; row order within the batch is preserved.
	InsertRows(ctx context.Context, datasetID int64, start int, rows []schema.Row) error

	// FetchRows returns rows ordered by row number, skipping offset rows
	// and returning at most limit. limit <= 0 means no cap.
	FetchRows(ctx context.Context, datasetID int64, offset, limit int) ([]schema.Row, error)

	// GetDataset looks a dataset up by name.
	//
	// Errors:
	//   - ErrDatasetNotFound when the name is unknown.
	GetDataset(ctx context.Context, name string) (*schema.Dataset, error)

	// SetStatus updates the dataset status and, when non-empty, the
	// recorded artifact paths.
	SetStatus(ctx context.Context, datasetID int64, status, xmlPath, xsdPath string) error

	// DeleteDataset removes the dataset and all of its rows. Used both
	// for explicit deletes and for rolling back a failed import.
	DeleteDataset(ctx context.Context, datasetID int64) error
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast
//     and avoid ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
