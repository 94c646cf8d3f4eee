// Package loader implements the load stage: it reads the merged CSV, infers
// the table layout from its header, and hands the rows to a storage
// repository for a single-transaction load.
//
// Error handling is deliberately asymmetric. Input problems (missing file,
// malformed CSV) fail the stage so the orchestrator can retry it. A
// database-layer failure is caught here instead: the backend has already
// rolled the transaction back, so the stage logs the error and reports zero
// rows — the run stays retryable without crashing mid-graph.
package loader

import (
	"context"
	"fmt"
	"io"
	"log"

	"yelpetl/internal/datasource/file"
	"yelpetl/internal/parser/csv"
	"yelpetl/internal/storage"
)

// Config configures one load run.
type Config struct {
	// CSV is the merged CSV path produced by the merge stage.
	CSV string

	// Schema and Table name the destination. Columns are inferred from the
	// CSV header; every column is TEXT.
	Schema string
	Table  string

	// Append controls semantics: false deletes all prior rows inside the
	// load transaction (truncate-and-reload, idempotent); true appends.
	Append bool
}

// Run loads cfg.CSV into the repository and returns the number of rows
// inserted.
//
// A CSV with no data rows is a no-op returning (0, nil) without touching the
// database. A storage failure also returns (0, nil) after logging; the
// transaction was rolled back by the backend, so no partial state is visible.
func Run(ctx context.Context, repo storage.Repository, cfg Config) (int64, error) {
	columns, rows, err := readCSV(ctx, cfg.CSV)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		log.Printf("loader: no rows found in %s; nothing to insert", cfg.CSV)
		return 0, nil
	}

	inserted, err := repo.Load(ctx, storage.TableSpec{
		Schema:   cfg.Schema,
		Table:    cfg.Table,
		Columns:  columns,
		Truncate: !cfg.Append,
	}, rows)
	if err != nil {
		log.Printf("loader: database error, transaction rolled back: %v", err)
		return 0, nil
	}

	log.Printf("loader: inserted=%d schema=%s table=%s append=%t", inserted, cfg.Schema, cfg.Table, cfg.Append)
	return inserted, nil
}

// readCSV reads the whole merged CSV into memory as insert tuples. Empty
// cells become nil so they are stored as SQL NULL rather than empty text.
func readCSV(ctx context.Context, path string) ([]string, [][]any, error) {
	src, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: %w", err)
	}
	defer src.Close()

	r := csv.NewReader(src)
	header, err := csv.ReadHeader(r)
	if err == io.EOF {
		// No header at all: treat like an empty file.
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loader: %s: %w", path, err)
	}

	var rows [][]any
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("loader: read %s: %w", path, err)
		}
		row := make([]any, len(header))
		for i := range header {
			if i < len(rec) && rec[i] != "" {
				row[i] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
