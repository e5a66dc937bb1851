package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/sheikh-saqib/banking-ledger/internal/models/events"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrUnknownSender is returned when the authenticated principal does not map
// to an account. It is a fault of the caller's authentication layer, not a
// transfer outcome.
var ErrUnknownSender = errors.New("sender principal has no account")

const DefaultLockTimeout = 5 * time.Second

// Ledger owns the write path to balances and the transaction log.
type Ledger struct {
	store       interfaces.LedgerStore
	identities  interfaces.IdentityResolver
	publisher   interfaces.EventPublisher // optional
	locks       *accountLocks
	lockTimeout time.Duration
	now         func() time.Time
	log         *zap.Logger
}

type Option func(*Ledger)

// WithPublisher sends a TransactionCompleted event after every committed transfer.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithLockTimeout bounds how long Transfer waits for account locks. Zero or
// negative waits until the caller's context ends.
func WithLockTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.lockTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

func NewLedger(store interfaces.LedgerStore, identities interfaces.IdentityResolver, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		identities:  identities,
		locks:       newAccountLocks(),
		lockTimeout: DefaultLockTimeout,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Transfer moves req.Amount from the sender's account to req.ToAccount and
// appends one log record, or changes nothing. Business outcomes come back in
// TransferResult; a non-nil error means infrastructure failed.
func (l *Ledger) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	senderAccount, err := l.identities.ResolveAccountNumber(ctx, req.Sender)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return TransferResult{}, fmt.Errorf("%w: %s", ErrUnknownSender, req.Sender)
		}
		return TransferResult{}, fmt.Errorf("resolve sender: %w", err)
	}

	toAccount := strings.TrimSpace(req.ToAccount)
	exists, err := l.store.AccountExists(ctx, toAccount)
	if err != nil {
		return TransferResult{}, fmt.Errorf("look up receiver: %w", err)
	}
	if !exists {
		return l.reject(StatusReceiverNotFound, senderAccount, toAccount), nil
	}

	if !validAmount(req.Amount) {
		return l.reject(StatusInvalidAmount, senderAccount, toAccount), nil
	}
	if !req.Category.Valid() {
		return TransferResult{}, fmt.Errorf("%w: %q", models.ErrUnknownCategory, req.Category)
	}

	if req.Category == models.CategoryOther && strings.TrimSpace(req.Description) == "" {
		return l.reject(StatusDescriptionRequired, senderAccount, toAccount), nil
	}
	if senderAccount == toAccount {
		return l.reject(StatusSelfTransferNotAllowed, senderAccount, toAccount), nil
	}

	result, err := l.execute(ctx, senderAccount, toAccount, req)
	if err != nil {
		l.log.Error("transfer failed",
			zap.String("from_account", senderAccount),
			zap.String("to_account", toAccount),
			zap.String("amount", req.Amount.String()),
			zap.Error(err),
		)
		return TransferResult{}, err
	}

	if result.Status != StatusSuccess {
		return l.reject(result.Status, senderAccount, toAccount), nil
	}

	l.log.Info("transfer completed",
		zap.Int64("transaction_id", result.Record.ID),
		zap.String("from_account", senderAccount),
		zap.String("to_account", toAccount),
		zap.String("amount", result.Record.Amount.StringFixed(2)),
		zap.Bool("replayed", result.Replayed),
	)

	if !result.Replayed {
		// the transfer is committed; a departing caller must not drop its event
		l.publishCompleted(context.WithoutCancel(ctx), *result.Record)
	}
	return result, nil
}

// execute runs the locked section. Locks are released on return, before any
// event is published.
func (l *Ledger) execute(ctx context.Context, senderAccount, toAccount string, req TransferRequest) (TransferResult, error) {
	lockCtx := ctx
	if l.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, l.lockTimeout)
		defer cancel()
	}

	release, err := l.locks.acquire(lockCtx, senderAccount, toAccount)
	if err != nil {
		if ctx.Err() != nil {
			return TransferResult{}, ctx.Err()
		}
		return TransferResult{Status: StatusBusy}, nil
	}
	defer release()

	// Once both locks are held the transfer runs to completion.
	ctx = context.WithoutCancel(ctx)

	if req.RequestID != "" {
		previous, found, err := l.findReplay(ctx, senderAccount, req.RequestID)
		if err != nil {
			return TransferResult{}, err
		}
		if found {
			return TransferResult{Status: StatusSuccess, Record: &previous, Replayed: true}, nil
		}
	}

	sender, err := l.store.GetAccount(ctx, senderAccount)
	if err != nil {
		return TransferResult{}, fmt.Errorf("read sender balance: %w", err)
	}
	receiver, err := l.store.GetAccount(ctx, toAccount)
	if errors.Is(err, models.ErrAccountNotFound) {
		return TransferResult{Status: StatusReceiverNotFound}, nil
	}
	if err != nil {
		return TransferResult{}, fmt.Errorf("read receiver balance: %w", err)
	}

	if sender.Balance.LessThan(req.Amount) {
		return TransferResult{Status: StatusInsufficientFunds}, nil
	}

	record := models.TransactionRecord{
		FromAccount:    senderAccount,
		ToAccount:      toAccount,
		Amount:         req.Amount,
		Timestamp:      l.now().UTC(),
		Category:       req.Category,
		IsSalaryCredit: req.IsSalaryCredit,
	}
	// stored verbatim; only an absent description stays nil
	if req.Description != "" {
		description := req.Description
		record.Description = &description
	}
	if req.RequestID != "" {
		requestID := req.RequestID
		record.RequestID = &requestID
	}

	err = l.store.WithinTransaction(ctx, func(tx interfaces.LedgerTx) error {
		if err := tx.CompareAndUpdateBalance(ctx, sender.AccountNumber, sender.Balance, sender.Balance.Sub(req.Amount)); err != nil {
			return fmt.Errorf("debit %s: %w", sender.AccountNumber, err)
		}
		if err := tx.CompareAndUpdateBalance(ctx, receiver.AccountNumber, receiver.Balance, receiver.Balance.Add(req.Amount)); err != nil {
			return fmt.Errorf("credit %s: %w", receiver.AccountNumber, err)
		}

		id, err := tx.Append(ctx, record)
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		record.ID = id
		return nil
	})

	switch {
	case err == nil:
		return TransferResult{Status: StatusSuccess, Record: &record}, nil
	case errors.Is(err, models.ErrBalanceConflict):
		// a writer outside this process moved the balance; nothing was applied
		return TransferResult{Status: StatusBusy}, nil
	case errors.Is(err, models.ErrDuplicateRequest):
		previous, found, findErr := l.findReplay(ctx, senderAccount, req.RequestID)
		if findErr != nil {
			return TransferResult{}, findErr
		}
		if found {
			return TransferResult{Status: StatusSuccess, Record: &previous, Replayed: true}, nil
		}
		return TransferResult{}, fmt.Errorf("apply transfer: %w", err)
	default:
		return TransferResult{}, fmt.Errorf("apply transfer: %w", err)
	}
}

func (l *Ledger) findReplay(ctx context.Context, senderAccount, requestID string) (models.TransactionRecord, bool, error) {
	previous, err := l.store.FindByRequestID(ctx, senderAccount, requestID)
	if errors.Is(err, models.ErrTransactionNotFound) {
		return models.TransactionRecord{}, false, nil
	}
	if err != nil {
		return models.TransactionRecord{}, false, fmt.Errorf("look up request id: %w", err)
	}
	return previous, true, nil
}

func (l *Ledger) reject(status Status, from, to string) TransferResult {
	l.log.Info("transfer rejected",
		zap.String("status", string(status)),
		zap.String("from_account", from),
		zap.String("to_account", to),
	)
	return TransferResult{Status: status}
}

func (l *Ledger) publishCompleted(ctx context.Context, record models.TransactionRecord) {
	if l.publisher == nil {
		return
	}

	event := events.TransactionCompleted{
		EventID:        uuid.New().String(),
		TransactionID:  record.ID,
		FromAccount:    record.FromAccount,
		ToAccount:      record.ToAccount,
		Amount:         record.Amount,
		Category:       string(record.Category),
		IsSalaryCredit: record.IsSalaryCredit,
		OccurredAt:     record.Timestamp,
	}
	if err := l.publisher.Publish(ctx, events.TopicTransactionCompleted, record.FromAccount, event); err != nil {
		l.log.Warn("publish transaction completed failed",
			zap.Int64("transaction_id", record.ID),
			zap.Error(err),
		)
	}
}

// GetBalance returns the stored balance of accountNumber.
func (l *Ledger) GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	account, err := l.store.GetAccount(ctx, accountNumber)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// NetMovement replays the log for accountNumber: credits minus debits. Added
// to the opening balance it must equal the stored balance.
func (l *Ledger) NetMovement(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	records, err := l.store.QueryByAccount(ctx, accountNumber, models.TransactionFilter{})
	if err != nil {
		return decimal.Zero, err
	}

	net := decimal.Zero
	for _, r := range records {
		if r.ToAccount == accountNumber {
			net = net.Add(r.Amount)
		}
		if r.FromAccount == accountNumber {
			net = net.Sub(r.Amount)
		}
	}
	return net, nil
}

// validAmount accepts strictly positive amounts with at most two decimals.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}
