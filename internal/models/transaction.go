package models

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is one completed transfer. Once appended to the log it
// is never changed or removed.
type TransactionRecord struct {
	ID             int64           // assigned by the log, strictly increasing
	FromAccount    string          // account debited
	ToAccount      string          // account credited
	Amount         decimal.Decimal // always positive
	Timestamp      time.Time       // UTC, set by the engine
	Category       Category
	Description    *string
	IsSalaryCredit bool
	RequestID      *string // caller supplied idempotency token, scoped to FromAccount
}

// Touches reports whether the record moved money in or out of accountNumber.
func (r TransactionRecord) Touches(accountNumber string) bool {
	return r.FromAccount == accountNumber || r.ToAccount == accountNumber
}

// TransactionFilter narrows a log query. Nil fields are unconstrained and
// time bounds are inclusive.
type TransactionFilter struct {
	From           *time.Time
	To             *time.Time
	Category       *Category
	IsSalaryCredit *bool
}

// Matches applies every set predicate of the filter to r.
func (f TransactionFilter) Matches(r TransactionRecord) bool {
	if f.From != nil && r.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Timestamp.After(*f.To) {
		return false
	}
	if f.Category != nil && r.Category != *f.Category {
		return false
	}
	if f.IsSalaryCredit != nil && r.IsSalaryCredit != *f.IsSalaryCredit {
		return false
	}
	return true
}

// SortNewestFirst orders records by timestamp descending, breaking ties on
// the larger id.
func SortNewestFirst(records []TransactionRecord) {
	slices.SortStableFunc(records, func(a, b TransactionRecord) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
