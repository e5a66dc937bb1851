package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"
)

var (
	accountsBucketName     = []byte("accounts")
	usernamesBucketName    = []byte("usernames")
	cnicsBucketName        = []byte("cnics")
	transactionsBucketName = []byte("transactions")
	byIDBucketName         = []byte("byID")
	byAccountBucketName    = []byte("byAccount")
	requestsBucketName     = []byte("requests")
)

// BoltLedgerStore keeps accounts and the transaction log in a single bbolt
// file. bbolt allows one writer at a time, so WithinTransaction maps
// directly onto db.Update.
type BoltLedgerStore struct {
	db *bolt.DB
}

// Open opens (or creates) the database file at path and prepares buckets.
func Open(path string) (*BoltLedgerStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	store, err := NewBoltLedgerStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func NewBoltLedgerStore(db *bolt.DB) (*BoltLedgerStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{accountsBucketName, usernamesBucketName, cnicsBucketName, requestsBucketName} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		tBucket, err := tx.CreateBucketIfNotExists(transactionsBucketName)
		if err != nil {
			return err
		}
		if _, err := tBucket.CreateBucketIfNotExists(byIDBucketName); err != nil {
			return err
		}
		if _, err := tBucket.CreateBucketIfNotExists(byAccountBucketName); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("prepare bolt buckets: %w", err)
	}

	return &BoltLedgerStore{db: db}, nil
}

func (s *BoltLedgerStore) Close() error {
	return s.db.Close()
}

type storedAccount struct {
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	FullName      string          `json:"full_name"`
	Username      string          `json:"username"`
	CNIC          string          `json:"cnic"`
	PhoneNumber   string          `json:"phone_number"`
	DOB           time.Time       `json:"dob"`
	PasswordHash  string          `json:"password_hash"`
	CreatedAt     time.Time       `json:"created_at"`
}

type storedRecord struct {
	ID             int64           `json:"id"`
	FromAccount    string          `json:"from_account"`
	ToAccount      string          `json:"to_account"`
	Amount         decimal.Decimal `json:"amount"`
	Timestamp      time.Time       `json:"timestamp"`
	Category       string          `json:"category"`
	Description    *string         `json:"description,omitempty"`
	IsSalaryCredit bool            `json:"is_salary_credit"`
	RequestID      *string         `json:"request_id,omitempty"`
}

func (s *BoltLedgerStore) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	if account.Balance.IsNegative() {
		return models.Account{}, models.ErrNegativeBalance
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	account.Balance = account.Balance.Round(2)

	err := s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(accountsBucketName)
		usernames := tx.Bucket(usernamesBucketName)
		cnics := tx.Bucket(cnicsBucketName)

		if accounts.Get([]byte(account.AccountNumber)) != nil {
			return models.ErrDuplicateAccount
		}
		if usernames.Get([]byte(account.Username)) != nil {
			return models.ErrDuplicateUsername
		}
		if cnics.Get([]byte(account.CNIC)) != nil {
			return models.ErrDuplicateCNIC
		}

		if err := putAccount(accounts, account); err != nil {
			return err
		}
		if err := usernames.Put([]byte(account.Username), []byte(account.AccountNumber)); err != nil {
			return err
		}
		return cnics.Put([]byte(account.CNIC), []byte(account.AccountNumber))
	})
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (s *BoltLedgerStore) GetAccount(ctx context.Context, accountNumber string) (models.Account, error) {
	var account models.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		account, err = getAccount(tx.Bucket(accountsBucketName), accountNumber)
		return err
	})
	return account, err
}

func (s *BoltLedgerStore) GetAccountByUsername(ctx context.Context, username string) (models.Account, error) {
	var account models.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		accountNumber := tx.Bucket(usernamesBucketName).Get([]byte(username))
		if accountNumber == nil {
			return models.ErrAccountNotFound
		}

		var err error
		account, err = getAccount(tx.Bucket(accountsBucketName), string(accountNumber))
		return err
	})
	return account, err
}

func (s *BoltLedgerStore) AccountExists(ctx context.Context, accountNumber string) (bool, error) {
	return s.keyExists(accountsBucketName, accountNumber)
}

func (s *BoltLedgerStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.keyExists(usernamesBucketName, username)
}

func (s *BoltLedgerStore) CNICExists(ctx context.Context, cnic string) (bool, error) {
	return s.keyExists(cnicsBucketName, cnic)
}

func (s *BoltLedgerStore) keyExists(bucket []byte, key string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(bucket).Get([]byte(key)) != nil
		return nil
	})
	return exists, err
}

func (s *BoltLedgerStore) UpdatePasswordHash(ctx context.Context, accountNumber string, passwordHash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(accountsBucketName)
		account, err := getAccount(accounts, accountNumber)
		if err != nil {
			return err
		}
		account.PasswordHash = passwordHash
		return putAccount(accounts, account)
	})
}

func (s *BoltLedgerStore) QueryByAccount(ctx context.Context, accountNumber string, filter models.TransactionFilter) ([]models.TransactionRecord, error) {
	var records []models.TransactionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		tBucket := tx.Bucket(transactionsBucketName)
		index := tBucket.Bucket(byAccountBucketName).Bucket([]byte(accountNumber))
		if index == nil {
			return nil
		}
		byID := tBucket.Bucket(byIDBucketName)

		// index keys are big-endian ids, so walking backwards yields append order reversed
		c := index.Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			raw := byID.Get(k)
			if raw == nil {
				return fmt.Errorf("transaction %d missing from log", btoi(k))
			}
			record, err := decodeRecord(raw)
			if err != nil {
				return err
			}
			if filter.Matches(record) {
				records = append(records, record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	models.SortNewestFirst(records)
	return records, nil
}

func (s *BoltLedgerStore) FindByRequestID(ctx context.Context, fromAccount string, requestID string) (models.TransactionRecord, error) {
	var record models.TransactionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(requestsBucketName).Get(requestKey(fromAccount, requestID))
		if id == nil {
			return models.ErrTransactionNotFound
		}
		raw := tx.Bucket(transactionsBucketName).Bucket(byIDBucketName).Get(id)
		if raw == nil {
			return models.ErrTransactionNotFound
		}

		var err error
		record, err = decodeRecord(raw)
		return err
	})
	return record, err
}

func (s *BoltLedgerStore) WithinTransaction(ctx context.Context, fn func(tx interfaces.LedgerTx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := fn(&boltTx{tx: tx}); err != nil {
			return err
		}
		return ctx.Err()
	})
}

type boltTx struct {
	tx *bolt.Tx
}

func (t *boltTx) CompareAndUpdateBalance(ctx context.Context, accountNumber string, expected decimal.Decimal, updated decimal.Decimal) error {
	accounts := t.tx.Bucket(accountsBucketName)
	account, err := getAccount(accounts, accountNumber)
	if err != nil {
		return err
	}

	if !account.Balance.Equal(expected) {
		return models.ErrBalanceConflict
	}
	if updated.IsNegative() {
		return models.ErrNegativeBalance
	}

	account.Balance = updated.Round(2)
	return putAccount(accounts, account)
}

func (t *boltTx) Append(ctx context.Context, record models.TransactionRecord) (int64, error) {
	accounts := t.tx.Bucket(accountsBucketName)
	if accounts.Get([]byte(record.FromAccount)) == nil || accounts.Get([]byte(record.ToAccount)) == nil {
		return 0, models.ErrAccountNotFound
	}

	requests := t.tx.Bucket(requestsBucketName)
	if record.RequestID != nil && requests.Get(requestKey(record.FromAccount, *record.RequestID)) != nil {
		return 0, models.ErrDuplicateRequest
	}

	tBucket := t.tx.Bucket(transactionsBucketName)
	byID := tBucket.Bucket(byIDBucketName)
	byAccount := tBucket.Bucket(byAccountBucketName)

	seq, err := byID.NextSequence()
	if err != nil {
		return 0, err
	}
	record.ID = int64(seq)

	raw, err := json.Marshal(encodeRecord(record))
	if err != nil {
		return 0, err
	}

	key := itob(seq)
	if err := byID.Put(key, raw); err != nil {
		return 0, err
	}

	for _, accountNumber := range []string{record.FromAccount, record.ToAccount} {
		index, err := byAccount.CreateBucketIfNotExists([]byte(accountNumber))
		if err != nil {
			return 0, err
		}
		if err := index.Put(key, []byte{}); err != nil {
			return 0, err
		}
	}

	if record.RequestID != nil {
		if err := requests.Put(requestKey(record.FromAccount, *record.RequestID), key); err != nil {
			return 0, err
		}
	}

	return record.ID, nil
}

func getAccount(bucket *bolt.Bucket, accountNumber string) (models.Account, error) {
	raw := bucket.Get([]byte(accountNumber))
	if raw == nil {
		return models.Account{}, models.ErrAccountNotFound
	}

	var stored storedAccount
	if err := json.Unmarshal(raw, &stored); err != nil {
		return models.Account{}, fmt.Errorf("decode account %s: %w", accountNumber, err)
	}

	return models.Account{
		AccountNumber: stored.AccountNumber,
		Balance:       stored.Balance,
		FullName:      stored.FullName,
		Username:      stored.Username,
		CNIC:          stored.CNIC,
		PhoneNumber:   stored.PhoneNumber,
		DOB:           stored.DOB,
		PasswordHash:  stored.PasswordHash,
		CreatedAt:     stored.CreatedAt,
	}, nil
}

func putAccount(bucket *bolt.Bucket, account models.Account) error {
	raw, err := json.Marshal(storedAccount{
		AccountNumber: account.AccountNumber,
		Balance:       account.Balance,
		FullName:      account.FullName,
		Username:      account.Username,
		CNIC:          account.CNIC,
		PhoneNumber:   account.PhoneNumber,
		DOB:           account.DOB,
		PasswordHash:  account.PasswordHash,
		CreatedAt:     account.CreatedAt,
	})
	if err != nil {
		return err
	}
	return bucket.Put([]byte(account.AccountNumber), raw)
}

func encodeRecord(r models.TransactionRecord) storedRecord {
	return storedRecord{
		ID:             r.ID,
		FromAccount:    r.FromAccount,
		ToAccount:      r.ToAccount,
		Amount:         r.Amount,
		Timestamp:      r.Timestamp.UTC(),
		Category:       string(r.Category),
		Description:    r.Description,
		IsSalaryCredit: r.IsSalaryCredit,
		RequestID:      r.RequestID,
	}
}

func decodeRecord(raw []byte) (models.TransactionRecord, error) {
	var stored storedRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return models.TransactionRecord{}, fmt.Errorf("decode transaction: %w", err)
	}

	return models.TransactionRecord{
		ID:             stored.ID,
		FromAccount:    stored.FromAccount,
		ToAccount:      stored.ToAccount,
		Amount:         stored.Amount,
		Timestamp:      stored.Timestamp,
		Category:       models.Category(stored.Category),
		Description:    stored.Description,
		IsSalaryCredit: stored.IsSalaryCredit,
		RequestID:      stored.RequestID,
	}, nil
}

func requestKey(fromAccount, requestID string) []byte {
	return []byte(fromAccount + "\x00" + requestID)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

var _ interfaces.LedgerStore = (*BoltLedgerStore)(nil)
