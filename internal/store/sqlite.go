package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/PratikDhanave/empleaido-factory/internal/fsutil"
	"github.com/PratikDhanave/empleaido-factory/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS empleaidos (
    ord                INTEGER PRIMARY KEY,
    id                 TEXT    NOT NULL UNIQUE,
    name               TEXT    NOT NULL,
    role               TEXT    NOT NULL,
    specialty          TEXT    NOT NULL,
    sefirot_activation TEXT    NOT NULL DEFAULT '[]',
    skills             TEXT    NOT NULL DEFAULT '[]',
    status             TEXT    NOT NULL,
    created_at         TEXT    NOT NULL,
    deployed           INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore keeps records in an embedded SQLite database. List fields are
// stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := fsutil.EnsureParent(path); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	// One connection keeps pragmas and in-memory databases consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// LoadAll implements Store.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]models.Empleaido, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, role, specialty, sefirot_activation, skills, status, created_at, deployed
		FROM empleaidos
		ORDER BY ord
	`)
	if err != nil {
		return nil, fmt.Errorf("store: query records: %w", err)
	}
	defer rows.Close()

	records := []models.Empleaido{}
	for rows.Next() {
		var (
			r               models.Empleaido
			sefirot, skills string
			deployed        int
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Role, &r.Specialty, &sefirot, &skills,
			&r.Status, &r.CreatedAt, &deployed); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(sefirot), &r.SefirotActivation); err != nil {
			return nil, fmt.Errorf("store: record %s sefirot_activation: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(skills), &r.Skills); err != nil {
			return nil, fmt.Errorf("store: record %s skills: %w", r.ID, err)
		}
		r.Deployed = deployed != 0
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate records: %w", err)
	}
	return records, nil
}

// ReplaceAll implements Store. The swap is a single transaction.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, records []models.Empleaido) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM empleaidos`); err != nil {
		return fmt.Errorf("store: clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO empleaidos (ord, id, name, role, specialty, sefirot_activation, skills, status, created_at, deployed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		sefirot, err := json.Marshal(nonNil(r.SefirotActivation))
		if err != nil {
			return err
		}
		skills, err := json.Marshal(nonNil(r.Skills))
		if err != nil {
			return err
		}
		deployed := 0
		if r.Deployed {
			deployed = 1
		}
		if _, err := stmt.ExecContext(ctx, i, r.ID, r.Name, r.Role, r.Specialty,
			string(sefirot), string(skills), r.Status, r.CreatedAt, deployed); err != nil {
			return fmt.Errorf("store: insert record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
