package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"spesedonut/internal/core"
)

func TestMemoryStoreCreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.Create(ctx, " Rent ", core.Money{Cents: 85000})
	if err != nil || a.ID == "" || a.Name != "Rent" {
		t.Fatalf("unexpected create: rec=%+v err=%v", a, err)
	}
	b, _ := s.Create(ctx, "Food", core.Money{Cents: 2000})

	if _, err := s.Create(ctx, "x", core.Money{Cents: 2000}); !errors.Is(err, core.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}

	a.Cost = core.Money{Cents: 90000}
	if _, err := s.Update(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}
	list, _ := s.List(ctx)
	if len(list) != 2 || list[0] != a || list[1] != b {
		t.Fatalf("unexpected list after update: %+v", list)
	}

	removed, err := s.Delete(ctx, a.ID)
	if err != nil || removed != a {
		t.Fatalf("unexpected delete: rec=%+v err=%v", removed, err)
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if _, err := s.Delete(ctx, a.ID); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound on second delete, got %v", err)
	}
	if _, err := s.Update(ctx, a); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound on update, got %v", err)
	}
}

func TestMemoryStoreListIsCopy(t *testing.T) {
	s := New(core.ExpenseRecord{ID: "1", Name: "Rent", Cost: core.Money{Cents: 100}})
	list, _ := s.List(context.Background())
	list[0].Name = "changed"
	got, _ := s.Get(context.Background(), "1")
	if got.Name != "Rent" {
		t.Fatalf("List leaked internal slice: %+v", got)
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	// No file -> empty store
	s := NewFromFiles(dir)
	if list, _ := s.List(context.Background()); len(list) != 0 {
		t.Fatalf("expected empty store when seed missing, got %v", list)
	}

	content := "# header\nRent;850\n\nbad line\nNo;5\nCinema;18,50\nHuge;5000\n"
	if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	s = NewFromFiles(dir)
	list, _ := s.List(context.Background())
	if len(list) != 2 {
		t.Fatalf("unexpected seed: %+v", list)
	}
	if list[0].Name != "Rent" || list[0].Cost.Cents != 85000 || list[0].ID == "" {
		t.Fatalf("unexpected first record: %+v", list[0])
	}
	if list[1].Name != "Cinema" || list[1].Cost.Cents != 1850 {
		t.Fatalf("unexpected second record: %+v", list[1])
	}
}
