package storage

import (
	"context"
	"sort"
	"testing"
)

// stubRepo is a minimal Repository for factory tests.
type stubRepo struct{ kind string }

func (s *stubRepo) Load(ctx context.Context, spec TableSpec, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}

func (s *stubRepo) TopGroups(ctx context.Context, spec AggregateSpec) ([]AggregateRow, error) {
	return nil, nil
}

func (s *stubRepo) Close() {}

func TestNewDispatchesToRegisteredFactory(t *testing.T) {
	Register("stub-a", func(ctx context.Context, cfg Config) (Repository, error) {
		return &stubRepo{kind: "stub-a"}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "stub-a", DSN: "ignored"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, ok := repo.(*stubRepo)
	if !ok || got.kind != "stub-a" {
		t.Errorf("New returned %T %+v, want stubRepo stub-a", repo, repo)
	}
}

func TestNewUnsupportedKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "no-such-backend"})
	if err == nil {
		t.Fatal("New accepted an unregistered kind")
	}
	if want := "unsupported storage.kind=no-such-backend"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestRegisterReplaces(t *testing.T) {
	Register("stub-b", func(ctx context.Context, cfg Config) (Repository, error) {
		return &stubRepo{kind: "first"}, nil
	})
	Register("stub-b", func(ctx context.Context, cfg Config) (Repository, error) {
		return &stubRepo{kind: "second"}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "stub-b"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if repo.(*stubRepo).kind != "second" {
		t.Error("re-registering a kind did not replace the factory")
	}
}

func TestListKindsSorted(t *testing.T) {
	Register("stub-z", func(ctx context.Context, cfg Config) (Repository, error) {
		return &stubRepo{}, nil
	})
	Register("stub-c", func(ctx context.Context, cfg Config) (Repository, error) {
		return &stubRepo{}, nil
	})

	kinds := ListKinds()
	if !sort.StringsAreSorted(kinds) {
		t.Errorf("ListKinds not sorted: %v", kinds)
	}
	if !contains(kinds, "stub-c") || !contains(kinds, "stub-z") {
		t.Errorf("ListKinds missing registered kinds: %v", kinds)
	}
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
