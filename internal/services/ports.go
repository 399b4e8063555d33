package services

import (
	"context"

	"spesedonut/internal/core"
)

// Ports for the remote expense store.
type (
	ExpenseCreator interface {
		Create(ctx context.Context, name string, cost core.Money) (core.ExpenseRecord, error)
	}

	ExpenseUpdater interface {
		Update(ctx context.Context, r core.ExpenseRecord) (core.ExpenseRecord, error)
	}

	// ExpenseDeleter removes a record and returns it as it was before removal.
	ExpenseDeleter interface {
		Delete(ctx context.Context, id string) (core.ExpenseRecord, error)
	}

	// ExpenseLister returns every record in insertion order.
	ExpenseLister interface {
		List(ctx context.Context) ([]core.ExpenseRecord, error)
	}

	ExpenseGetter interface {
		Get(ctx context.Context, id string) (core.ExpenseRecord, error)
	}

	ExpenseStore interface {
		ExpenseCreator
		ExpenseUpdater
		ExpenseDeleter
		ExpenseLister
		ExpenseGetter
	}
)
