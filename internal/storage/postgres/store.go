package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

const (
	uniqueViolation      = "23505"
	foreignKeyViolation  = "23503"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

const accountColumns = `account_number, balance, full_name, username, cnic, phone_number, dob, password_hash, created_at`

func (p *PostgresLedgerStore) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	if account.Balance.IsNegative() {
		return models.Account{}, models.ErrNegativeBalance
	}

	const query = `INSERT INTO accounts (account_number, balance, full_name, username, cnic, phone_number, dob, password_hash)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at`

	account.Balance = account.Balance.Round(2)
	err := p.db.QueryRowContext(ctx, query,
		account.AccountNumber,
		account.Balance,
		account.FullName,
		account.Username,
		account.CNIC,
		account.PhoneNumber,
		account.DOB,
		account.PasswordHash,
	).Scan(&account.CreatedAt)
	if err != nil {
		return models.Account{}, mapCreateAccountError(err)
	}

	return account, nil
}

func (p *PostgresLedgerStore) GetAccount(ctx context.Context, accountNumber string) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return scanAccount(p.db.QueryRowContext(ctx, query, accountNumber))
}

func (p *PostgresLedgerStore) GetAccountByUsername(ctx context.Context, username string) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccount(p.db.QueryRowContext(ctx, query, username))
}

func (p *PostgresLedgerStore) AccountExists(ctx context.Context, accountNumber string) (bool, error) {
	return p.exists(ctx, `select 1 from accounts where account_number = $1 Limit 1`, accountNumber)
}

func (p *PostgresLedgerStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	return p.exists(ctx, `select 1 from accounts where username = $1 Limit 1`, username)
}

func (p *PostgresLedgerStore) CNICExists(ctx context.Context, cnic string) (bool, error) {
	return p.exists(ctx, `select 1 from accounts where cnic = $1 Limit 1`, cnic)
}

func (p *PostgresLedgerStore) exists(ctx context.Context, query string, arg string) (bool, error) {
	var exists int
	err := p.db.QueryRowContext(ctx, query, arg).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (p *PostgresLedgerStore) UpdatePasswordHash(ctx context.Context, accountNumber string, passwordHash string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE accounts SET password_hash = $2 WHERE account_number = $1`, accountNumber, passwordHash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

const recordColumns = `id, from_account, to_account, amount, created_at, category, description, is_salary_credit, request_id`

func (p *PostgresLedgerStore) QueryByAccount(ctx context.Context, accountNumber string, filter models.TransactionFilter) ([]models.TransactionRecord, error) {
	conditions := []string{"(from_account = $1 OR to_account = $1)"}
	args := []any{accountNumber}

	if filter.From != nil {
		args = append(args, filter.From.UTC())
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.IsSalaryCredit != nil {
		args = append(args, *filter.IsSalaryCredit)
		conditions = append(conditions, fmt.Sprintf("is_salary_credit = $%d", len(args)))
	}

	query := `SELECT ` + recordColumns + ` FROM transactions
	WHERE ` + strings.Join(conditions, " AND ") + `
	ORDER BY created_at DESC, id DESC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	defer rows.Close()

	var records []models.TransactionRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (p *PostgresLedgerStore) FindByRequestID(ctx context.Context, fromAccount string, requestID string) (models.TransactionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM transactions WHERE from_account = $1 AND request_id = $2`

	record, err := scanRecord(p.db.QueryRowContext(ctx, query, fromAccount, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.TransactionRecord{}, models.ErrTransactionNotFound
	}
	return record, err
}

// WithinTransaction runs fn inside a serializable database transaction and
// commits only when fn succeeds.
func (p *PostgresLedgerStore) WithinTransaction(ctx context.Context, fn func(tx interfaces.LedgerTx) error) (err error) {
	dbTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	if err = fn(&postgresTx{tx: dbTx}); err != nil {
		return mapContentionError(err)
	}

	if err = dbTx.Commit(); err != nil {
		return mapContentionError(fmt.Errorf("commit ledger transaction: %w", err))
	}
	return nil
}

// mapContentionError marks serialization failures and deadlocks as balance
// conflicts. Postgres rolled the unit back, so retrying it is safe.
func mapContentionError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case serializationFailure, deadlockDetected:
		return fmt.Errorf("%w: %w", models.ErrBalanceConflict, err)
	default:
		return err
	}
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) CompareAndUpdateBalance(ctx context.Context, accountNumber string, expected decimal.Decimal, updated decimal.Decimal) error {
	if updated.IsNegative() {
		return models.ErrNegativeBalance
	}

	const query = `UPDATE accounts SET balance = $3 WHERE account_number = $1 AND balance = $2`

	res, err := t.tx.ExecContext(ctx, query, accountNumber, expected, updated.Round(2))
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var exists int
	err = t.tx.QueryRowContext(ctx, `select 1 from accounts where account_number = $1`, accountNumber).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	return models.ErrBalanceConflict
}

func (t *postgresTx) Append(ctx context.Context, record models.TransactionRecord) (int64, error) {
	const query = `INSERT INTO transactions (from_account, to_account, amount, created_at, category, description, is_salary_credit, request_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`

	var id int64
	err := t.tx.QueryRowContext(ctx, query,
		record.FromAccount,
		record.ToAccount,
		record.Amount,
		record.Timestamp.UTC(),
		string(record.Category),
		record.Description,
		record.IsSalaryCredit,
		record.RequestID,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch string(pqErr.Code) {
			case uniqueViolation:
				return 0, models.ErrDuplicateRequest
			case foreignKeyViolation:
				return 0, models.ErrAccountNotFound
			}
		}
		return 0, fmt.Errorf("append transaction: %w", err)
	}

	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.AccountNumber,
		&account.Balance,
		&account.FullName,
		&account.Username,
		&account.CNIC,
		&account.PhoneNumber,
		&account.DOB,
		&account.PasswordHash,
		&account.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, models.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("scan account: %w", err)
	}
	return account, nil
}

func scanRecord(row rowScanner) (models.TransactionRecord, error) {
	var (
		record      models.TransactionRecord
		category    string
		description sql.NullString
		requestID   sql.NullString
	)

	err := row.Scan(
		&record.ID,
		&record.FromAccount,
		&record.ToAccount,
		&record.Amount,
		&record.Timestamp,
		&category,
		&description,
		&record.IsSalaryCredit,
		&requestID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TransactionRecord{}, err
		}
		return models.TransactionRecord{}, fmt.Errorf("scan transaction: %w", err)
	}

	record.Category = models.Category(category)
	record.Timestamp = record.Timestamp.UTC()
	if description.Valid {
		record.Description = &description.String
	}
	if requestID.Valid {
		record.RequestID = &requestID.String
	}
	return record, nil
}

func mapCreateAccountError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		switch pqErr.Constraint {
		case "accounts_username_key":
			return models.ErrDuplicateUsername
		case "accounts_cnic_key":
			return models.ErrDuplicateCNIC
		default:
			return models.ErrDuplicateAccount
		}
	}
	return fmt.Errorf("create account: %w", err)
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
