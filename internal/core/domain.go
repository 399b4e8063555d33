package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Removed  ChangeKind = "removed"
)

// Entry bounds enforced by the command layer before a record reaches the store.
const (
	MinNameLength = 3
	MaxNameLength = 50
	MinCostCents  = 100
	MaxCostCents  = 100000
)

type (
	ChangeKind string

	Money struct {
		Cents int64
	}

	// ExpenseRecord is one name/cost entry as held by the remote store.
	ExpenseRecord struct {
		ID   string
		Name string
		Cost Money
	}

	// Delta is a single reported change to one record.
	Delta struct {
		Kind   ChangeKind
		Record ExpenseRecord
	}

	// Batch is an ordered group of deltas delivered together by the change feed.
	Batch []Delta
)

var (
	ErrInvalidName           = errors.New("invalid name")
	ErrInvalidCost           = errors.New("invalid cost")
	ErrEmptyID               = errors.New("empty record id")
	ErrRecordNotFound        = errors.New("record not found")
	ErrUnknownChangeKind     = errors.New("unknown change kind")
	ErrRemoteOperationFailed = errors.New("remote operation failed")
)

// Valid reports whether k is one of the three known change kinds.
func (k ChangeKind) Valid() bool {
	switch k {
	case Added, Modified, Removed:
		return true
	default:
		return false
	}
}

func (k ChangeKind) String() string {
	return string(k)
}

// Validate checks the entry-time constraints on name and cost.
func (r ExpenseRecord) Validate() error {
	if err := ValidateName(r.Name); err != nil {
		return err
	}
	return r.Cost.Validate()
}

// ValidateName requires a trimmed name of 3 to 50 characters.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < MinNameLength || n > MaxNameLength {
		return fmt.Errorf("%w: length must be between %d and %d characters", ErrInvalidName, MinNameLength, MaxNameLength)
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents < MinCostCents || m.Cents > MaxCostCents {
		return fmt.Errorf("%w: must be between 1 and 1000", ErrInvalidCost)
	}
	return nil
}

// NewDelta builds a delta for the given record.
func NewDelta(kind ChangeKind, r ExpenseRecord) Delta {
	return Delta{Kind: kind, Record: r}
}

// RemoteError reports a create/update/delete the remote store rejected.
type RemoteError struct {
	Op  string
	ID  string
	Err error
}

func (e *RemoteError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s expense %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s expense: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteOperationFailed
}
