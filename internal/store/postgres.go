package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/empleaido-factory/internal/models"
)

// schemaSQL is embedded so the service can bootstrap its own tables.
//
//go:embed schema.sql
var schemaSQL string

var recordColumns = []string{
	"ord", "id", "name", "role", "specialty",
	"sefirot_activation", "skills", "status", "created_at", "deployed",
}

// PostgresStore keeps records in PostgreSQL, for deployments that share one
// collection across hosts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if the DB is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("store: DB_URL required for postgres backend")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	return nil
}

// LoadAll implements Store.
func (p *PostgresStore) LoadAll(ctx context.Context) ([]models.Empleaido, error) {
	rows, err := p.pool.Query(ctx, `
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
		var r models.Empleaido
		if err := rows.Scan(&r.ID, &r.Name, &r.Role, &r.Specialty, &r.SefirotActivation,
			&r.Skills, &r.Status, &r.CreatedAt, &r.Deployed); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate records: %w", err)
	}
	return records, nil
}

// ReplaceAll implements Store. Rows are swapped inside one transaction and
// bulk-loaded with COPY.
func (p *PostgresStore) ReplaceAll(ctx context.Context, records []models.Empleaido) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM empleaidos`); err != nil {
		return fmt.Errorf("store: clear records: %w", err)
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			i, r.ID, r.Name, r.Role, r.Specialty,
			nonNil(r.SefirotActivation), nonNil(r.Skills), r.Status, r.CreatedAt, r.Deployed,
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"empleaidos"}, recordColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("store: copy records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Ping is used by the readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
