// Package merger implements the join stage: a hash join between the business
// and review samples produced by the sampler.
//
// The business CSV is loaded fully into memory, keyed by business_id
// (last-write-wins on duplicates). The review CSV is streamed row by row and
// probed against that map; matches are projected onto a fixed five-column
// layout. Memory cost is O(business sample size), which is acceptable because
// the sampler caps that side.
package merger

import (
	"context"
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"yelpetl/internal/artifact"
	"yelpetl/internal/datasource/file"
	"yelpetl/internal/parser/csv"
)

// Columns is the fixed merged-CSV layout. The loader infers the table schema
// from this header at load time; changing order or names breaks the load
// stage silently, so treat it as a wire contract.
var Columns = []string{"business_id", "name", "city", "review_stars", "review_text"}

// Config configures one merge run.
type Config struct {
	// BusinessCSV and ReviewCSV are the sampled inputs.
	BusinessCSV string
	ReviewCSV   string

	// Output is the merged CSV destination path.
	Output string

	// MaxRows caps emitted rows; once reached, remaining review rows are left
	// unread. Partial processing, not an error. Zero or negative means no cap.
	MaxRows int

	// TextLimit truncates review_text to at most this many characters.
	TextLimit int
}

// Run performs the join and returns the number of merged rows written.
//
// Review rows whose business_id has no business match are skipped silently;
// only the end-of-run summary counts them. Everything else is fail-fast.
func Run(ctx context.Context, cfg Config) (int, error) {
	businesses, err := loadBusinesses(ctx, cfg.BusinessCSV)
	if err != nil {
		return 0, err
	}

	src, err := file.NewLocal(cfg.ReviewCSV).Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("merger: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
		return 0, fmt.Errorf("merger: create output dir: %w", err)
	}
	out, err := os.Create(cfg.Output)
	if err != nil {
		return 0, fmt.Errorf("merger: create %s: %w", cfg.Output, err)
	}
	defer out.Close()

	r := csv.NewReader(src)
	header, err := csv.ReadHeader(r)
	if err == io.EOF {
		return 0, fmt.Errorf("merger: %s: empty review sample", cfg.ReviewCSV)
	}
	if err != nil {
		return 0, fmt.Errorf("merger: %s: %w", cfg.ReviewCSV, err)
	}
	idx := csv.Index(header)
	if err := csv.RequireColumns(idx, "business_id", "stars", "text"); err != nil {
		return 0, fmt.Errorf("merger: %s: %w", cfg.ReviewCSV, err)
	}

	w := stdcsv.NewWriter(out)
	if err := w.Write(Columns); err != nil {
		return 0, fmt.Errorf("merger: write header: %w", err)
	}

	var merged, unmatched int
	for cfg.MaxRows <= 0 || merged < cfg.MaxRows {
		select {
		case <-ctx.Done():
			return merged, ctx.Err()
		default:
		}

		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return merged, fmt.Errorf("merger: read %s: %w", cfg.ReviewCSV, err)
		}

		bid := rec[idx["business_id"]]
		b, ok := businesses[bid]
		if !ok {
			unmatched++
			continue
		}

		row := []string{
			bid,
			b.name,
			b.city,
			rec[idx["stars"]],
			truncate(rec[idx["text"]], cfg.TextLimit),
		}
		if err := w.Write(row); err != nil {
			return merged, fmt.Errorf("merger: write row: %w", err)
		}
		merged++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return merged, fmt.Errorf("merger: flush %s: %w", cfg.Output, err)
	}
	if err := out.Close(); err != nil {
		return merged, fmt.Errorf("merger: close %s: %w", cfg.Output, err)
	}

	if sum, err := artifact.Fingerprint(cfg.Output); err == nil {
		log.Printf("merger: merged=%d unmatched=%d businesses=%d output=%s %s",
			merged, unmatched, len(businesses), cfg.Output, artifact.String(sum))
	} else {
		log.Printf("merger: merged=%d unmatched=%d businesses=%d output=%s (fingerprint unavailable: %v)",
			merged, unmatched, len(businesses), cfg.Output, err)
	}
	return merged, nil
}

// business is the projection of a business row kept for the join.
type business struct {
	name string
	city string
}

// loadBusinesses reads the whole business sample into a business_id-keyed
// map. Duplicate ids keep the last row read (last-write-wins).
func loadBusinesses(ctx context.Context, path string) (map[string]business, error) {
	src, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("merger: %w", err)
	}
	defer src.Close()

	r := csv.NewReader(src)
	header, err := csv.ReadHeader(r)
	if err == io.EOF {
		return nil, fmt.Errorf("merger: %s: empty business sample", path)
	}
	if err != nil {
		return nil, fmt.Errorf("merger: %s: %w", path, err)
	}
	idx := csv.Index(header)
	if err := csv.RequireColumns(idx, "business_id", "name", "city"); err != nil {
		return nil, fmt.Errorf("merger: %s: %w", path, err)
	}

	m := map[string]business{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("merger: read %s: %w", path, err)
		}
		m[rec[idx["business_id"]]] = business{
			name: rec[idx["name"]],
			city: rec[idx["city"]],
		}
	}
	return m, nil
}

// truncate returns at most limit characters of s. The inputs are UTF-8 text,
// so the limit counts runes, not bytes.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
