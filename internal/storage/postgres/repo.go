// Package postgres implements a Postgres repository using pgx v5. Load runs
// schema/table DDL, optional delete, and a COPY-based bulk insert inside one
// transaction so partial loads are never visible.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"yelpetl/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	// DSN is the connection string for pgxpool, e.g. "postgresql://...".
	DSN string
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool}, closeFn, nil
}

// Load implements storage.Repository.Load.
//
// All statements run on one acquired connection inside one transaction:
//
//	CREATE SCHEMA IF NOT EXISTS → CREATE TABLE IF NOT EXISTS (all TEXT)
//	→ optional DELETE → COPY
//
// Any failure rolls the whole transaction back; the connection is released
// on every exit path.
func (r *Repository) Load(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	if len(spec.Columns) == 0 {
		return 0, fmt.Errorf("postgres: no columns in table spec")
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: acquire: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	// Rollback is a no-op once the transaction committed.
	defer func() { _ = tx.Rollback(ctx) }()

	if spec.Schema != "" {
		if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(spec.Schema)); err != nil {
			return 0, fmt.Errorf("postgres: create schema: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, createTableSQL(spec)); err != nil {
		return 0, fmt.Errorf("postgres: create table: %w", err)
	}
	if spec.Truncate {
		if _, err := tx.Exec(ctx, "DELETE FROM "+tableFQN(spec)); err != nil {
			return 0, fmt.Errorf("postgres: delete rows: %w", err)
		}
	}

	inserted, err := tx.CopyFrom(ctx, tableIdent(spec), spec.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("postgres: copy: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("postgres: copy: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return inserted, nil
}

// TopGroups implements storage.Repository.TopGroups.
//
// The value column is stored as TEXT; NULLIF guards empty cells and the
// ::numeric cast pushes type errors to query time by design.
func (r *Repository) TopGroups(ctx context.Context, spec storage.AggregateSpec) ([]storage.AggregateRow, error) {
	group := pgIdent(spec.GroupColumn)
	value := pgIdent(spec.ValueColumn)
	query := fmt.Sprintf(
		`SELECT %s, ROUND(AVG(NULLIF(%s, '')::numeric), 2) AS avg_value
		 FROM %s
		 WHERE %s IS NOT NULL AND %s <> ''
		 GROUP BY %s
		 ORDER BY avg_value DESC
		 LIMIT %d`,
		group, value, tableFQN(storage.TableSpec{Schema: spec.Schema, Table: spec.Table}),
		group, group, group, spec.Limit,
	)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: aggregate query: %w", err)
	}
	defer rows.Close()

	var out []storage.AggregateRow
	for rows.Next() {
		var row storage.AggregateRow
		if err := rows.Scan(&row.Group, &row.Average); err != nil {
			return nil, fmt.Errorf("postgres: aggregate scan: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: aggregate rows: %w", err)
	}
	return out, nil
}

// createTableSQL builds the all-TEXT CREATE TABLE statement for spec.
func createTableSQL(spec storage.TableSpec) string {
	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = pgIdent(c) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableFQN(spec), strings.Join(cols, ", "))
}

// tableIdent returns the pgx.Identifier for spec's table, schema-qualified
// when a schema is set.
func tableIdent(spec storage.TableSpec) pgx.Identifier {
	if spec.Schema != "" {
		return pgx.Identifier{spec.Schema, spec.Table}
	}
	return pgx.Identifier{spec.Table}
}

// tableFQN returns the quoted, possibly schema-qualified table name.
func tableFQN(spec storage.TableSpec) string {
	if spec.Schema != "" {
		return pgIdent(spec.Schema) + "." + pgIdent(spec.Table)
	}
	return pgIdent(spec.Table)
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
