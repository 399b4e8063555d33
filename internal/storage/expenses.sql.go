package storage

import (
	"context"
)

const createExpense = `-- name: CreateExpense :one
INSERT INTO expenses (id, name, cost_cents, position)
VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM expenses))
RETURNING id, name, cost_cents, position
`

type CreateExpenseParams struct {
	ID        string
	Name      string
	CostCents int64
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense, arg.ID, arg.Name, arg.CostCents)
	var i Expense
	err := row.Scan(&i.ID, &i.Name, &i.CostCents, &i.Position)
	return i, err
}

const updateExpense = `-- name: UpdateExpense :one
UPDATE expenses
SET name = ?, cost_cents = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING id, name, cost_cents, position
`

type UpdateExpenseParams struct {
	Name      string
	CostCents int64
	ID        string
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, updateExpense, arg.Name, arg.CostCents, arg.ID)
	var i Expense
	err := row.Scan(&i.ID, &i.Name, &i.CostCents, &i.Position)
	return i, err
}

const deleteExpense = `-- name: DeleteExpense :one
DELETE FROM expenses
WHERE id = ?
RETURNING id, name, cost_cents, position
`

func (q *Queries) DeleteExpense(ctx context.Context, id string) (Expense, error) {
	row := q.db.QueryRowContext(ctx, deleteExpense, id)
	var i Expense
	err := row.Scan(&i.ID, &i.Name, &i.CostCents, &i.Position)
	return i, err
}

const getExpense = `-- name: GetExpense :one
SELECT id, name, cost_cents, position FROM expenses
WHERE id = ?
`

func (q *Queries) GetExpense(ctx context.Context, id string) (Expense, error) {
	row := q.db.QueryRowContext(ctx, getExpense, id)
	var i Expense
	err := row.Scan(&i.ID, &i.Name, &i.CostCents, &i.Position)
	return i, err
}

const listExpenses = `-- name: ListExpenses :many
SELECT id, name, cost_cents, position FROM expenses
ORDER BY position
`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := rows.Scan(&i.ID, &i.Name, &i.CostCents, &i.Position); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countExpenses = `-- name: CountExpenses :one
SELECT COUNT(*) FROM expenses
`

func (q *Queries) CountExpenses(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countExpenses)
	var count int64
	err := row.Scan(&count)
	return count, err
}
