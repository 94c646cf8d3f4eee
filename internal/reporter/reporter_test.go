package reporter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"yelpetl/internal/config"
	"yelpetl/internal/storage"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// fakeRepo returns a canned aggregate result.
type fakeRepo struct {
	spec   storage.AggregateSpec
	result []storage.AggregateRow
	err    error
}

func (f *fakeRepo) Load(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) TopGroups(ctx context.Context, spec storage.AggregateSpec) ([]storage.AggregateRow, error) {
	f.spec = spec
	return f.result, f.err
}

func (f *fakeRepo) Close() {}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestRunRendersChart(t *testing.T) {
	t.Parallel()

	chartPath := filepath.Join(t.TempDir(), "out", "chart.png")
	repo := &fakeRepo{result: []storage.AggregateRow{
		{Group: "Austin", Average: 4.5},
		{Group: "Dallas", Average: 3.25},
		{Group: "Húsavík", Average: 3.0},
	}}

	err := Run(context.Background(), repo, Config{
		Schema:  "wk",
		Table:   "yelp_merged",
		Limit:   10,
		Chart:   chartPath,
		Options: config.Options{"title": "Test Chart", "width": float64(640), "height": float64(480)},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(chartPath)
	if err != nil {
		t.Fatalf("chart not written: %v", err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Error("chart does not start with PNG magic bytes")
	}

	if repo.spec.GroupColumn != config.DefaultGroupColumn || repo.spec.ValueColumn != config.DefaultAverageColumn {
		t.Errorf("aggregate spec = %+v, want city/review_stars", repo.spec)
	}
	if repo.spec.Limit != 10 {
		t.Errorf("aggregate limit = %d, want 10", repo.spec.Limit)
	}
}

func TestRunSkipsRender(t *testing.T) {
	t.Parallel()

	t.Run("no chart path", func(t *testing.T) {
		t.Parallel()
		repo := &fakeRepo{result: []storage.AggregateRow{{Group: "Austin", Average: 4.5}}}
		if err := Run(context.Background(), repo, Config{Limit: 5}); err != nil {
			t.Fatalf("Run: %v", err)
		}
	})

	t.Run("no rows", func(t *testing.T) {
		t.Parallel()
		chartPath := filepath.Join(t.TempDir(), "chart.png")
		repo := &fakeRepo{}
		if err := Run(context.Background(), repo, Config{Limit: 5, Chart: chartPath}); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if _, err := os.Stat(chartPath); !os.IsNotExist(err) {
			t.Error("chart rendered despite the aggregate returning no rows")
		}
	})
}

func TestRunPropagatesQueryError(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{err: errors.New("invalid input syntax for type numeric")}
	err := Run(context.Background(), repo, Config{Limit: 5})
	if err == nil {
		t.Fatal("Run swallowed the aggregate error; the report stage must fail fast")
	}
}

func TestFoldLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Austin", "Austin"},
		{"Húsavík", "Husavik"},
		{"Münster", "Munster"},
		{"São Paulo", "Sao Paulo"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := foldLabel(tt.in); got != tt.want {
			t.Errorf("foldLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
