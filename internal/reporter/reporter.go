// Package reporter implements the analysis stage: it runs the ranked-average
// aggregate against the loaded table, prints the result for the operator, and
// renders it as a bar chart image.
//
// The stars column is stored as TEXT (see the loader), so the numeric cast
// happens inside the backend's aggregate query. A non-numeric value there is
// a query-time error and fails the stage; that trade-off belongs to the
// all-TEXT load design, not to this package.
package reporter

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"unicode"

	chart "github.com/wcharczuk/go-chart/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"yelpetl/internal/config"
	"yelpetl/internal/storage"
)

// Config configures one report run.
type Config struct {
	// Schema and Table name the loaded destination to aggregate over.
	Schema string
	Table  string

	// Limit is the number of ranked groups to report.
	Limit int

	// Chart is the PNG output path. Empty skips rendering.
	Chart string

	// Options carries presentation knobs (title, width, height).
	Options config.Options
}

// Run executes the aggregate, prints the ranked summary, and renders the
// chart. The repository is owned by the caller and released there.
func Run(ctx context.Context, repo storage.Repository, cfg Config) error {
	result, err := repo.TopGroups(ctx, storage.AggregateSpec{
		Schema:      cfg.Schema,
		Table:       cfg.Table,
		GroupColumn: config.DefaultGroupColumn,
		ValueColumn: config.DefaultAverageColumn,
		Limit:       cfg.Limit,
	})
	if err != nil {
		return fmt.Errorf("reporter: %w", err)
	}

	fmt.Printf("\nTop %d Cities by Average Stars:\n\n", cfg.Limit)
	for _, row := range result {
		fmt.Printf("%-20s  %.2f\n", row.Group, row.Average)
	}

	if cfg.Chart == "" {
		log.Printf("reporter: chart path not configured; skipping render")
		return nil
	}
	if len(result) == 0 {
		log.Printf("reporter: aggregate returned no rows; skipping render")
		return nil
	}

	if err := renderChart(cfg, result); err != nil {
		return err
	}
	log.Printf("reporter: chart saved at %s", cfg.Chart)
	return nil
}

// renderChart writes the aggregate as a bar chart PNG.
func renderChart(cfg Config, result []storage.AggregateRow) error {
	bars := make([]chart.Value, len(result))
	for i, row := range result {
		bars[i] = chart.Value{
			// Axis labels are folded to their base letters; the default chart
			// font renders combining marks poorly at small sizes.
			Label: foldLabel(row.Group),
			Value: row.Average,
		}
	}

	graph := chart.BarChart{
		Title:    cfg.Options.String("title", "Top Cities by Average Review Stars"),
		Width:    cfg.Options.Int("width", 1000),
		Height:   cfg.Options.Int("height", 600),
		BarWidth: 60,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		XAxis: chart.Style{
			TextRotationDegrees: 45,
		},
		Bars: bars,
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Chart), 0o755); err != nil {
		return fmt.Errorf("reporter: create output dir: %w", err)
	}
	f, err := os.Create(cfg.Chart)
	if err != nil {
		return fmt.Errorf("reporter: create %s: %w", cfg.Chart, err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("reporter: render chart: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("reporter: close %s: %w", cfg.Chart, err)
	}
	return nil
}

// labelFolder decomposes to NFD, strips combining marks, and recomposes.
var labelFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldLabel returns s with diacritics folded to base letters. On transform
// errors the original string is kept; a worse-looking label beats a missing
// bar.
func foldLabel(s string) string {
	out, _, err := transform.String(labelFolder, s)
	if err != nil {
		return s
	}
	return out
}
