package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string) *BoltLedgerStore {
	t.Helper()
	store, err := Open(path)
	require.NoError(t, err)
	return store
}

func seedAccounts(t *testing.T, store *BoltLedgerStore) {
	t.Helper()
	ctx := context.Background()
	for i, username := range []string{"alice", "bob"} {
		_, err := store.CreateAccount(ctx, models.Account{
			AccountNumber: []string{"ACC1", "ACC2"}[i],
			Balance:       decimal.RequireFromString("500"),
			FullName:      username,
			Username:      username,
			CNIC:          []string{"1111111111111", "2222222222222"}[i],
			PhoneNumber:   "03001234567",
			PasswordHash:  "hash",
		})
		require.NoError(t, err)
	}
}

func transfer(ctx context.Context, store *BoltLedgerStore, from, to string, fromBal, toBal, amount string, ts time.Time, requestID *string) (int64, error) {
	var id int64
	err := store.WithinTransaction(ctx, func(tx interfaces.LedgerTx) error {
		a := decimal.RequireFromString(amount)
		fb := decimal.RequireFromString(fromBal)
		tb := decimal.RequireFromString(toBal)
		if err := tx.CompareAndUpdateBalance(ctx, from, fb, fb.Sub(a)); err != nil {
			return err
		}
		if err := tx.CompareAndUpdateBalance(ctx, to, tb, tb.Add(a)); err != nil {
			return err
		}
		var err error
		id, err = tx.Append(ctx, models.TransactionRecord{
			FromAccount: from,
			ToAccount:   to,
			Amount:      a,
			Timestamp:   ts,
			Category:    models.CategoryGroceries,
			RequestID:   requestID,
		})
		return err
	})
	return id, err
}

func TestBoltStore_AccountsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	store := openTestStore(t, path)
	seedAccounts(t, store)

	_, err := store.CreateAccount(ctx, models.Account{AccountNumber: "ACC3", Username: "alice", CNIC: "3333333333333"})
	assert.ErrorIs(t, err, models.ErrDuplicateUsername)
	_, err = store.CreateAccount(ctx, models.Account{AccountNumber: "ACC3", Username: "carol", CNIC: "2222222222222"})
	assert.ErrorIs(t, err, models.ErrDuplicateCNIC)
	_, err = store.CreateAccount(ctx, models.Account{AccountNumber: "ACC1", Username: "carol", CNIC: "3333333333333"})
	assert.ErrorIs(t, err, models.ErrDuplicateAccount)

	require.NoError(t, store.UpdatePasswordHash(ctx, "ACC2", "rotated"))
	require.NoError(t, store.Close())

	store = openTestStore(t, path)
	defer store.Close()

	account, err := store.GetAccountByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "ACC2", account.AccountNumber)
	assert.Equal(t, "rotated", account.PasswordHash)
	assert.True(t, decimal.RequireFromString("500").Equal(account.Balance))

	exists, err := store.CNICExists(ctx, "1111111111111")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = store.GetAccount(ctx, "ACC9")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestBoltStore_TransferCommitsAndQueries(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))
	defer store.Close()
	seedAccounts(t, store)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	requestID := "abc"

	id1, err := transfer(ctx, store, "ACC1", "ACC2", "500", "500", "100", base, &requestID)
	require.NoError(t, err)
	id2, err := transfer(ctx, store, "ACC2", "ACC1", "600", "400", "50.50", base.Add(time.Minute), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)

	alice, err := store.GetAccount(ctx, "ACC1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("450.50").Equal(alice.Balance))

	records, err := store.QueryByAccount(ctx, "ACC1", models.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, id2, records[0].ID)
	assert.Equal(t, id1, records[1].ID)
	assert.Equal(t, models.CategoryGroceries, records[1].Category)
	assert.True(t, base.Equal(records[1].Timestamp))

	from := base.Add(30 * time.Second)
	recent, err := store.QueryByAccount(ctx, "ACC1", models.TransactionFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, id2, recent[0].ID)

	found, err := store.FindByRequestID(ctx, "ACC1", requestID)
	require.NoError(t, err)
	assert.Equal(t, id1, found.ID)
	require.NotNil(t, found.RequestID)
	assert.Equal(t, requestID, *found.RequestID)

	_, err = transfer(ctx, store, "ACC1", "ACC2", "450.50", "549.50", "1", base, &requestID)
	assert.ErrorIs(t, err, models.ErrDuplicateRequest)

	none, err := store.QueryByAccount(ctx, "ACC9", models.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBoltStore_FailedUnitRollsBack(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))
	defer store.Close()
	seedAccounts(t, store)
	ctx := context.Background()

	_, err := transfer(ctx, store, "ACC1", "ACC2", "499", "500", "10", time.Now(), nil)
	assert.ErrorIs(t, err, models.ErrBalanceConflict)

	_, err = transfer(ctx, store, "ACC1", "ACC2", "500", "500", "600", time.Now(), nil)
	assert.ErrorIs(t, err, models.ErrNegativeBalance)

	boom := errors.New("boom")
	err = store.WithinTransaction(ctx, func(tx interfaces.LedgerTx) error {
		require.NoError(t, tx.CompareAndUpdateBalance(ctx, "ACC1", decimal.RequireFromString("500"), decimal.Zero))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	alice, err := store.GetAccount(ctx, "ACC1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("500").Equal(alice.Balance))

	records, err := store.QueryByAccount(ctx, "ACC1", models.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}
