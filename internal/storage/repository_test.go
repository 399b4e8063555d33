package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"spesedonut/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	names := []string{"Rent", "Groceries", "Cinema"}
	var created []core.ExpenseRecord
	for i, name := range names {
		rec, err := repo.Create(ctx, "  "+name+" ", core.Money{Cents: int64(1000 * (i + 1))})
		if err != nil {
			t.Fatalf("Create(%q) error = %v", name, err)
		}
		if rec.ID == "" {
			t.Fatalf("Create(%q) returned empty id", name)
		}
		if rec.Name != name {
			t.Errorf("Create() name = %q, want %q", rec.Name, name)
		}
		created = append(created, rec)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != len(created) {
		t.Fatalf("List() len = %d, want %d", len(list), len(created))
	}
	for i := range list {
		if list[i] != created[i] {
			t.Errorf("List()[%d] = %+v, want %+v", i, list[i], created[i])
		}
	}

	n, err := repo.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v; want 3", n, err)
	}
}

func TestSQLiteRepository_UpdateKeepsPosition(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.Create(ctx, "Alpha", core.Money{Cents: 100})
	b, _ := repo.Create(ctx, "Bravo", core.Money{Cents: 200})

	a.Name = "Alpha renamed"
	a.Cost = core.Money{Cents: 900}
	updated, err := repo.Update(ctx, a)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated != a {
		t.Errorf("Update() = %+v, want %+v", updated, a)
	}

	list, _ := repo.List(ctx)
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("order changed after update: %+v", list)
	}
	if list[0].Cost.Cents != 900 {
		t.Errorf("cost not updated: %+v", list[0])
	}
}

func TestSQLiteRepository_DeleteAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.Create(ctx, "Alpha", core.Money{Cents: 100})
	b, _ := repo.Create(ctx, "Bravo", core.Money{Cents: 200})

	removed, err := repo.Delete(ctx, a.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed != a {
		t.Errorf("Delete() = %+v, want %+v", removed, a)
	}

	if _, err := repo.Get(ctx, a.ID); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrRecordNotFound", err)
	}
	got, err := repo.Get(ctx, b.ID)
	if err != nil || got != b {
		t.Errorf("Get() = %+v, %v; want %+v", got, err, b)
	}

	c, _ := repo.Create(ctx, "Charlie", core.Money{Cents: 300})
	list, _ := repo.List(ctx)
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != c.ID {
		t.Errorf("unexpected order after delete and create: %+v", list)
	}
}

func TestSQLiteRepository_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"update", func() error {
			_, err := repo.Update(ctx, core.ExpenseRecord{ID: "missing", Name: "Name", Cost: core.Money{Cents: 100}})
			return err
		}},
		{"delete", func() error {
			_, err := repo.Delete(ctx, "missing")
			return err
		}},
		{"get", func() error {
			_, err := repo.Get(ctx, "missing")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, core.ErrRecordNotFound) {
				t.Errorf("error = %v, want ErrRecordNotFound", err)
			}
		})
	}
}

func TestSQLiteRepository_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec, _ := repo.Create(ctx, "Persisted", core.Money{Cents: 4200})
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	got, err := repo.Get(ctx, rec.ID)
	if err != nil || got != rec {
		t.Errorf("Get() after reopen = %+v, %v; want %+v", got, err, rec)
	}
}
