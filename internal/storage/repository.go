package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"spesedonut/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	newID   func() string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Positions are computed inside the INSERT, so writers are serialised.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite schema ready", "db_path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		newID:   uuid.NewString,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create stores a new expense under a fresh id.
func (r *SQLiteRepository) Create(ctx context.Context, name string, cost core.Money) (core.ExpenseRecord, error) {
	row, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		ID:        r.newID(),
		Name:      strings.TrimSpace(name),
		CostCents: cost.Cents,
	})
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"expense_id", row.ID,
		"expense_name", row.Name,
		"cost_cents", row.CostCents,
		"position", row.Position)

	return toRecord(row), nil
}

// Update replaces name and cost of an existing expense.
func (r *SQLiteRepository) Update(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error) {
	row, err := r.queries.UpdateExpense(ctx, UpdateExpenseParams{
		Name:      strings.TrimSpace(rec.Name),
		CostCents: rec.Cost.Cents,
		ID:        rec.ID,
	})
	if err != nil {
		return core.ExpenseRecord{}, notFound("update expense", rec.ID, err)
	}

	slog.InfoContext(ctx, "Expense updated in SQLite",
		"expense_id", row.ID,
		"cost_cents", row.CostCents)

	return toRecord(row), nil
}

// Delete removes an expense and returns the row as it was.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) (core.ExpenseRecord, error) {
	row, err := r.queries.DeleteExpense(ctx, id)
	if err != nil {
		return core.ExpenseRecord{}, notFound("delete expense", id, err)
	}

	slog.InfoContext(ctx, "Expense deleted from SQLite", "expense_id", row.ID)
	return toRecord(row), nil
}

// Get retrieves a single expense by id
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.ExpenseRecord, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if err != nil {
		return core.ExpenseRecord{}, notFound("get expense", id, err)
	}
	return toRecord(row), nil
}

// List returns every expense in insertion order.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.ExpenseRecord, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	records := make([]core.ExpenseRecord, len(rows))
	for i, row := range rows {
		records[i] = toRecord(row)
	}
	return records, nil
}

// Count returns the number of stored expenses.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountExpenses(ctx)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func toRecord(row Expense) core.ExpenseRecord {
	return core.ExpenseRecord{
		ID:   row.ID,
		Name: row.Name,
		Cost: core.Money{Cents: row.CostCents},
	}
}

func notFound(op, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrRecordNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}
