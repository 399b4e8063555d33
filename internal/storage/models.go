package storage

type Expense struct {
	ID        string
	Name      string
	CostCents int64
	Position  int64
}
