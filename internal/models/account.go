package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a balance-holding entity identified by its account number.
// Balance is owned by the ledger engine; everything else is profile metadata.
type Account struct {
	AccountNumber string          // immutable once assigned
	Balance       decimal.Decimal // two fractional digits, never negative
	FullName      string
	Username      string
	CNIC          string
	PhoneNumber   string
	DOB           time.Time
	PasswordHash  string
	CreatedAt     time.Time
}
