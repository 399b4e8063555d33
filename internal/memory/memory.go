package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"spesedonut/internal/core"

	"github.com/google/uuid"
)

// SeedFile is read from the data directory by NewFromFiles.
const SeedFile = "seed_expenses.txt"

type Store struct {
	mu    sync.Mutex
	items []core.ExpenseRecord
	newID func() string
}

func New(seed ...core.ExpenseRecord) *Store {
	s := &Store{newID: uuid.NewString}
	for _, r := range seed {
		if r.ID == "" {
			r.ID = s.newID()
		}
		s.items = append(s.items, r)
	}
	return s
}

// NewFromFiles seeds the store from base/seed_expenses.txt, one "name;cost" per line.
// A missing file yields an empty store; malformed lines are skipped.
func NewFromFiles(base string) *Store {
	return New(readSeed(filepath.Join(base, SeedFile))...)
}

func (s *Store) Create(_ context.Context, name string, cost core.Money) (core.ExpenseRecord, error) {
	rec := core.ExpenseRecord{Name: strings.TrimSpace(name), Cost: cost}
	if err := rec.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.newID()
	s.items = append(s.items, rec)
	return rec, nil
}

func (s *Store) Update(_ context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error) {
	rec.Name = strings.TrimSpace(rec.Name)
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(rec.ID)
	if i < 0 {
		return core.ExpenseRecord{}, fmt.Errorf("update expense %s: %w", rec.ID, core.ErrRecordNotFound)
	}
	s.items[i] = rec
	return rec, nil
}

func (s *Store) Delete(_ context.Context, id string) (core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.ExpenseRecord{}, fmt.Errorf("delete expense %s: %w", id, core.ErrRecordNotFound)
	}
	rec := s.items[i]
	s.items = slices.Delete(s.items, i, i+1)
	return rec, nil
}

func (s *Store) Get(_ context.Context, id string) (core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.ExpenseRecord{}, fmt.Errorf("get expense %s: %w", id, core.ErrRecordNotFound)
	}
	return s.items[i], nil
}

// List returns a copy of the records in insertion order.
func (s *Store) List(_ context.Context) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items), nil
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(r core.ExpenseRecord) bool { return r.ID == id })
}

func readSeed(path string) []core.ExpenseRecord {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []core.ExpenseRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, rawCost, ok := strings.Cut(line, ";")
		if !ok {
			continue
		}
		cost, err := core.ParseCost(rawCost)
		if err != nil {
			continue
		}
		rec := core.ExpenseRecord{Name: strings.TrimSpace(name), Cost: cost}
		if rec.Validate() != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}
