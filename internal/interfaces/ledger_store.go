package interfaces

import (
	"context"

	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// AccountStore serves account reads and profile metadata. Balances are only
// ever written through a LedgerTx.
type AccountStore interface {
	CreateAccount(ctx context.Context, account models.Account) (models.Account, error)
	GetAccount(ctx context.Context, accountNumber string) (models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (models.Account, error)
	AccountExists(ctx context.Context, accountNumber string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	CNICExists(ctx context.Context, cnic string) (bool, error)
	UpdatePasswordHash(ctx context.Context, accountNumber string, passwordHash string) error
}

// TransactionLog is the read side of the append-only transfer log.
type TransactionLog interface {
	QueryByAccount(ctx context.Context, accountNumber string, filter models.TransactionFilter) ([]models.TransactionRecord, error)
	FindByRequestID(ctx context.Context, fromAccount string, requestID string) (models.TransactionRecord, error)
}

// LedgerTx is the write handle passed to WithinTransaction. Everything done
// through it becomes visible together on commit or not at all.
type LedgerTx interface {
	CompareAndUpdateBalance(ctx context.Context, accountNumber string, expected decimal.Decimal, updated decimal.Decimal) error
	Append(ctx context.Context, record models.TransactionRecord) (int64, error)
}

type LedgerStore interface {
	AccountStore
	TransactionLog
	// WithinTransaction runs fn in one atomic unit. A non-nil error from fn
	// discards every staged change.
	WithinTransaction(ctx context.Context, fn func(tx LedgerTx) error) error
}
