package memory

import (
	"context"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// It is safe for concurrent use; WithinTransaction holds the write lock for
// the whole unit so staged changes land together.
type MemoryLedgerStore struct {
	mu         sync.RWMutex
	accounts   map[string]models.Account
	byUsername map[string]string
	byCNIC     map[string]string
	records    []models.TransactionRecord
	byRequest  map[string]int
	nextID     int64
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts:   make(map[string]models.Account),
		byUsername: make(map[string]string),
		byCNIC:     make(map[string]string),
		records:    make([]models.TransactionRecord, 0),
		byRequest:  make(map[string]int),
	}
}

func (m *MemoryLedgerStore) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	if account.Balance.IsNegative() {
		return models.Account{}, models.ErrNegativeBalance
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[account.AccountNumber]; exists {
		return models.Account{}, models.ErrDuplicateAccount
	}
	if _, exists := m.byUsername[account.Username]; exists {
		return models.Account{}, models.ErrDuplicateUsername
	}
	if _, exists := m.byCNIC[account.CNIC]; exists {
		return models.Account{}, models.ErrDuplicateCNIC
	}

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	account.Balance = account.Balance.Round(2)

	m.accounts[account.AccountNumber] = account
	m.byUsername[account.Username] = account.AccountNumber
	m.byCNIC[account.CNIC] = account.AccountNumber
	return account, nil
}

func (m *MemoryLedgerStore) GetAccount(ctx context.Context, accountNumber string) (models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[accountNumber]
	if !ok {
		return models.Account{}, models.ErrAccountNotFound
	}
	return account, nil
}

func (m *MemoryLedgerStore) GetAccountByUsername(ctx context.Context, username string) (models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accountNumber, ok := m.byUsername[username]
	if !ok {
		return models.Account{}, models.ErrAccountNotFound
	}
	return m.accounts[accountNumber], nil
}

func (m *MemoryLedgerStore) AccountExists(ctx context.Context, accountNumber string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[accountNumber]
	return ok, nil
}

func (m *MemoryLedgerStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byUsername[username]
	return ok, nil
}

func (m *MemoryLedgerStore) CNICExists(ctx context.Context, cnic string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byCNIC[cnic]
	return ok, nil
}

func (m *MemoryLedgerStore) UpdatePasswordHash(ctx context.Context, accountNumber string, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountNumber]
	if !ok {
		return models.ErrAccountNotFound
	}
	account.PasswordHash = passwordHash
	m.accounts[accountNumber] = account
	return nil
}

// QueryByAccount returns every record touching accountNumber that passes
// filter, newest first.
func (m *MemoryLedgerStore) QueryByAccount(ctx context.Context, accountNumber string, filter models.TransactionFilter) ([]models.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.TransactionRecord
	for _, r := range m.records {
		if r.Touches(accountNumber) && filter.Matches(r) {
			result = append(result, r)
		}
	}
	models.SortNewestFirst(result)
	return result, nil
}

func (m *MemoryLedgerStore) FindByRequestID(ctx context.Context, fromAccount string, requestID string) (models.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byRequest[requestKey(fromAccount, requestID)]
	if !ok {
		return models.TransactionRecord{}, models.ErrTransactionNotFound
	}
	return m.records[idx], nil
}

func (m *MemoryLedgerStore) WithinTransaction(ctx context.Context, fn func(tx interfaces.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		store:    m,
		balances: make(map[string]decimal.Decimal),
		nextID:   m.nextID,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for accountNumber, balance := range tx.balances {
		account := m.accounts[accountNumber]
		account.Balance = balance
		m.accounts[accountNumber] = account
	}
	for _, r := range tx.appended {
		m.records = append(m.records, r)
		if r.RequestID != nil {
			m.byRequest[requestKey(r.FromAccount, *r.RequestID)] = len(m.records) - 1
		}
	}
	m.nextID = tx.nextID
	return nil
}

// memoryTx stages writes until WithinTransaction commits them. The store
// write lock is held for its whole lifetime.
type memoryTx struct {
	store    *MemoryLedgerStore
	balances map[string]decimal.Decimal
	appended []models.TransactionRecord
	nextID   int64
}

func (t *memoryTx) CompareAndUpdateBalance(ctx context.Context, accountNumber string, expected decimal.Decimal, updated decimal.Decimal) error {
	current, ok := t.balances[accountNumber]
	if !ok {
		account, exists := t.store.accounts[accountNumber]
		if !exists {
			return models.ErrAccountNotFound
		}
		current = account.Balance
	}

	if !current.Equal(expected) {
		return models.ErrBalanceConflict
	}
	if updated.IsNegative() {
		return models.ErrNegativeBalance
	}

	t.balances[accountNumber] = updated.Round(2)
	return nil
}

func (t *memoryTx) Append(ctx context.Context, record models.TransactionRecord) (int64, error) {
	if _, ok := t.store.accounts[record.FromAccount]; !ok {
		return 0, models.ErrAccountNotFound
	}
	if _, ok := t.store.accounts[record.ToAccount]; !ok {
		return 0, models.ErrAccountNotFound
	}
	if record.RequestID != nil {
		if _, dup := t.store.byRequest[requestKey(record.FromAccount, *record.RequestID)]; dup {
			return 0, models.ErrDuplicateRequest
		}
	}

	t.nextID++
	record.ID = t.nextID
	t.appended = append(t.appended, record)
	return record.ID, nil
}

func requestKey(fromAccount, requestID string) string {
	return fromAccount + "\x00" + requestID
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
