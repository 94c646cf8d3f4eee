// Package sampler implements the first pipeline stage: it reads a
// newline-delimited JSON file, takes a prefix of its records, and writes them
// as a CSV sample for the merge stage.
//
// The CSV header is derived from the first record's key set, in the order the
// keys appear in that record. Later records may have a different shape; keys
// not present in the header are dropped and missing keys are written blank.
// That is the historical contract of these sample files and downstream stages
// rely on the header staying stable within one run.
package sampler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"yelpetl/internal/artifact"
	"yelpetl/internal/datasource/file"
	jsonparser "yelpetl/internal/parser/json"
)

// Config configures one sampling run. Two instances (business, review) run
// with no shared state.
type Config struct {
	// Input is the NDJSON source path, one JSON object per line.
	Input string

	// Output is the CSV destination path. Its directory is created if absent.
	Output string

	// SampleSize is the nominal cutoff. The stage writes SampleSize+1 data
	// rows when the input is long enough: the loop breaks only after writing
	// one record past the nominal size. This off-by-one is inherited behavior
	// that downstream row counts depend on; do not "fix" it silently.
	SampleSize int
}

// Run samples cfg.Input into cfg.Output and returns the number of data rows
// written.
//
// Failure mode is fail-fast: a missing input file or a line that is not a
// valid JSON object aborts the stage with an error. There is no per-line
// recovery; retries belong to the orchestrator.
func Run(ctx context.Context, cfg Config) (int, error) {
	src, err := file.NewLocal(cfg.Input).Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("sampler: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
		return 0, fmt.Errorf("sampler: create output dir: %w", err)
	}
	out, err := os.Create(cfg.Output)
	if err != nil {
		return 0, fmt.Errorf("sampler: create %s: %w", cfg.Output, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	dec := jsonparser.NewDecoder(src)

	var (
		header []string
		rows   int
	)
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return rows, ctx.Err()
		default:
		}

		rec, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("sampler: %s line %d: %w", cfg.Input, i+1, err)
		}

		if header == nil {
			header = rec.Keys
			if err := w.Write(header); err != nil {
				return rows, fmt.Errorf("sampler: write header: %w", err)
			}
		}

		row := make([]string, len(header))
		for j, key := range header {
			row[j] = fieldString(rec.Fields[key])
		}
		if err := w.Write(row); err != nil {
			return rows, fmt.Errorf("sampler: write row %d: %w", i+1, err)
		}
		rows++

		// Break AFTER writing once i reaches the nominal size, so the sample
		// holds SampleSize+1 rows. See Config.SampleSize.
		if i >= cfg.SampleSize {
			break
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return rows, fmt.Errorf("sampler: flush %s: %w", cfg.Output, err)
	}
	if err := out.Close(); err != nil {
		return rows, fmt.Errorf("sampler: close %s: %w", cfg.Output, err)
	}

	if sum, err := artifact.Fingerprint(cfg.Output); err == nil {
		log.Printf("sampler: wrote rows=%d output=%s %s", rows, cfg.Output, artifact.String(sum))
	} else {
		log.Printf("sampler: wrote rows=%d output=%s (fingerprint unavailable: %v)", rows, cfg.Output, err)
	}
	return rows, nil
}

// fieldString flattens one decoded JSON value into its CSV cell text.
// Strings pass through, numbers keep their original notation (json.Number),
// null becomes an empty cell, and nested objects/arrays are re-encoded as
// compact JSON.
func fieldString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
