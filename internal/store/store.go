// Package store persists the empleaido collection.
//
// Every backend exposes the same whole-collection contract: callers load all
// records, change them in memory and write the full set back. Serializing those
// read-modify-write cycles is the caller's job.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PratikDhanave/empleaido-factory/internal/models"
)

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Store is the record persistence contract.
type Store interface {
	// LoadAll returns every record in insertion order. A store with no data
	// returns an empty, non-nil slice.
	LoadAll(ctx context.Context) ([]models.Empleaido, error)
	// ReplaceAll overwrites the collection with records.
	ReplaceAll(ctx context.Context, records []models.Empleaido) error
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend    string
	DataFile   string
	SQLitePath string
	DBURL      string
	Logger     *slog.Logger
}

// Open builds the configured backend. The file backend also starts watching
// its file for outside edits until ctx is done.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		fs := NewFileStore(opts.DataFile, opts.Logger)
		if err := fs.Watch(ctx); err != nil {
			// the store still works without the watcher, it just won't see outside edits
			logger(opts.Logger).Warn("records file watch disabled", "path", opts.DataFile, "error", err)
		}
		return fs, nil
	case BackendSQLite:
		return NewSQLiteStore(ctx, opts.SQLitePath)
	case BackendPostgres:
		pg, err := NewPostgresStore(ctx, opts.DBURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func cloneAll(records []models.Empleaido) []models.Empleaido {
	out := make([]models.Empleaido, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
