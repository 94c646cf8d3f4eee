package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"yelpetl/internal/storage"
)

func openRepo(t *testing.T) (*Repository, string) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	repo, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(closeFn)
	return repo, dsn
}

func mergedSpec(truncate bool) storage.TableSpec {
	return storage.TableSpec{
		Schema:   "wk",
		Table:    "yelp_merged",
		Columns:  []string{"business_id", "name", "city", "review_stars", "review_text"},
		Truncate: truncate,
	}
}

func countRows(t *testing.T, dsn, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func sampleRows(n int, city string, stars string) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{fmt.Sprintf("b%d", i), "Biz", city, stars, "text"}
	}
	return rows
}

func TestLoadCreatesTableAndInserts(t *testing.T) {
	repo, dsn := openRepo(t)

	inserted, err := repo.Load(context.Background(), mergedSpec(true), sampleRows(3, "Austin", "4.0"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if inserted != 3 {
		t.Errorf("inserted = %d, want 3", inserted)
	}
	// Schema is flattened into the table name.
	if n := countRows(t, dsn, "wk_yelp_merged"); n != 3 {
		t.Errorf("table rows = %d, want 3", n)
	}
}

func TestLoadTruncateIsIdempotent(t *testing.T) {
	repo, dsn := openRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.Load(ctx, mergedSpec(true), sampleRows(5, "Austin", "4.0")); err != nil {
			t.Fatalf("Load #%d: %v", i+1, err)
		}
	}
	if n := countRows(t, dsn, "wk_yelp_merged"); n != 5 {
		t.Errorf("rows after three truncate-loads = %d, want 5", n)
	}
}

func TestLoadAppendAccumulates(t *testing.T) {
	repo, dsn := openRepo(t)
	ctx := context.Background()

	if _, err := repo.Load(ctx, mergedSpec(false), sampleRows(2, "Austin", "4.0")); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	if _, err := repo.Load(ctx, mergedSpec(false), sampleRows(3, "Dallas", "3.0")); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if n := countRows(t, dsn, "wk_yelp_merged"); n != 5 {
		t.Errorf("rows after two append-loads = %d, want 5", n)
	}
}

func TestLoadRowWidthMismatchRollsBack(t *testing.T) {
	repo, dsn := openRepo(t)
	ctx := context.Background()

	if _, err := repo.Load(ctx, mergedSpec(true), sampleRows(4, "Austin", "4.0")); err != nil {
		t.Fatalf("seed Load: %v", err)
	}

	bad := sampleRows(2, "Dallas", "3.0")
	bad[1] = []any{"only", "three", "cells"}
	if _, err := repo.Load(ctx, mergedSpec(true), bad); err == nil {
		t.Fatal("Load accepted a row with the wrong width")
	}

	// The failed load ran with Truncate, but the whole transaction rolled
	// back, so the seeded rows are still visible.
	if n := countRows(t, dsn, "wk_yelp_merged"); n != 4 {
		t.Errorf("rows after failed load = %d, want the original 4", n)
	}
}

func TestLoadNilBecomesNULL(t *testing.T) {
	repo, dsn := openRepo(t)

	rows := [][]any{{"b1", "Biz", "Austin", nil, "text"}}
	if _, err := repo.Load(context.Background(), mergedSpec(true), rows); err != nil {
		t.Fatalf("Load: %v", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "wk_yelp_merged" WHERE review_stars IS NULL`).Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 1 {
		t.Errorf("NULL stars rows = %d, want 1", n)
	}
}

func TestLoadEmptyColumns(t *testing.T) {
	repo, _ := openRepo(t)
	_, err := repo.Load(context.Background(), storage.TableSpec{Table: "t"}, nil)
	if err == nil {
		t.Fatal("Load accepted a spec without columns")
	}
}

func TestTopGroupsRanking(t *testing.T) {
	repo, _ := openRepo(t)
	ctx := context.Background()

	rows := [][]any{
		{"b1", "A", "Austin", "5.0", "t"},
		{"b2", "B", "Austin", "4.0", "t"},
		{"b3", "C", "Dallas", "3.0", "t"},
		{"b4", "D", "Dallas", "2.0", "t"},
		{"b5", "E", "Houston", "3.5", "t"},
		{"b6", "F", "", "5.0", "t"},  // empty city excluded
		{"b7", "G", nil, "5.0", "t"}, // NULL city excluded
	}
	if _, err := repo.Load(ctx, mergedSpec(true), rows); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, err := repo.TopGroups(ctx, storage.AggregateSpec{
		Schema:      "wk",
		Table:       "yelp_merged",
		GroupColumn: "city",
		ValueColumn: "review_stars",
		Limit:       2,
	})
	if err != nil {
		t.Fatalf("TopGroups: %v", err)
	}

	want := []storage.AggregateRow{
		{Group: "Austin", Average: 4.5},
		{Group: "Houston", Average: 3.5},
	}
	if len(got) != len(want) {
		t.Fatalf("TopGroups returned %d rows, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTopGroupsMissingTable(t *testing.T) {
	repo, _ := openRepo(t)
	_, err := repo.TopGroups(context.Background(), storage.AggregateSpec{
		Table:       "absent",
		GroupColumn: "city",
		ValueColumn: "review_stars",
		Limit:       5,
	})
	if err == nil {
		t.Fatal("TopGroups succeeded against a missing table")
	}
}

func TestFactoryRegistration(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "factory.db")
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()

	if _, err := repo.Load(context.Background(), mergedSpec(true), sampleRows(1, "Austin", "4.0")); err != nil {
		t.Errorf("Load through factory-built repo: %v", err)
	}
}
