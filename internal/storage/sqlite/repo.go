// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the CGo-free modernc driver. SQLite has no bulk-load
// primitive like Postgres COPY; batched INSERTs inside one transaction keep
// performance acceptable for this pipeline's volumes, and give the loader the
// same all-or-nothing semantics as the Postgres backend.
//
// SQLite also has no schemas; a non-empty TableSpec.Schema is flattened into
// the table name as "<schema>_<table>".
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"yelpetl/internal/storage"
)

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:pipeline.db?cache=shared"
	//   "pipeline.db"
	DSN string
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// Fail fast on invalid DSNs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Load implements storage.Repository.Load: ensure table (all TEXT), optional
// full delete, then per-row prepared INSERTs, all within one transaction.
func (r *Repository) Load(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	if len(spec.Columns) == 0 {
		return 0, fmt.Errorf("sqlite: no columns in table spec")
	}

	table := tableName(spec.Schema, spec.Table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = quoteIdent(c) + " TEXT"
	}
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(cols, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("sqlite: create table: %w", err)
	}

	if spec.Truncate {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+quoteIdent(table)); err != nil {
			return 0, fmt.Errorf("sqlite: delete rows: %w", err)
		}
	}

	colList := make([]string, len(spec.Columns))
	placeholders := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		colList[i] = quoteIdent(c)
		placeholders[i] = "?"
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(colList, ", "), strings.Join(placeholders, ", "),
	))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(spec.Columns) {
			return 0, fmt.Errorf("sqlite: row length %d != columns length %d", len(row), len(spec.Columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("sqlite: insert: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// TopGroups implements storage.Repository.TopGroups using SQLite's CAST in
// place of the Postgres ::numeric syntax. Unlike Postgres, SQLite's CAST of
// non-numeric text yields 0.0 instead of erroring; the loader's all-TEXT
// typing makes this a documented cross-backend difference rather than a bug
// this package can fix.
func (r *Repository) TopGroups(ctx context.Context, spec storage.AggregateSpec) ([]storage.AggregateRow, error) {
	group := quoteIdent(spec.GroupColumn)
	value := quoteIdent(spec.ValueColumn)
	query := fmt.Sprintf(
		`SELECT %s, ROUND(AVG(CAST(NULLIF(%s, '') AS REAL)), 2) AS avg_value
		 FROM %s
		 WHERE %s IS NOT NULL AND %s <> ''
		 GROUP BY %s
		 ORDER BY avg_value DESC
		 LIMIT %d`,
		group, value, quoteIdent(tableName(spec.Schema, spec.Table)),
		group, group, group, spec.Limit,
	)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregate query: %w", err)
	}
	defer rows.Close()

	var out []storage.AggregateRow
	for rows.Next() {
		var row storage.AggregateRow
		if err := rows.Scan(&row.Group, &row.Average); err != nil {
			return nil, fmt.Errorf("sqlite: aggregate scan: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: aggregate rows: %w", err)
	}
	return out, nil
}

// tableName flattens an optional schema into the table name.
func tableName(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "_" + table
}

// quoteIdent safely quotes an identifier for SQLite.
func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
