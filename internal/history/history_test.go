package history

import (
	"context"
	"errors"
	"testing"
	"time"

	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/sheikh-saqib/banking-ledger/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 8, 31, 12, 0, 0, 0, time.UTC)

type directory struct {
	names map[string]string
	calls map[string]int
	err   error
}

func (d *directory) DisplayName(ctx context.Context, accountNumber string) (string, error) {
	d.calls[accountNumber]++
	if d.err != nil {
		return "", d.err
	}
	name, ok := d.names[accountNumber]
	if !ok {
		return "", models.ErrAccountNotFound
	}
	return name, nil
}

func newDirectory() *directory {
	return &directory{
		names: map[string]string{"ACC1": "Alice", "ACC2": "Bob", "ACC3": "Carol"},
		calls: map[string]int{},
	}
}

func seedLog(t *testing.T) *memory.MemoryLedgerStore {
	t.Helper()
	store := memory.NewMemoryLedgerStore()
	ctx := context.Background()
	for i, number := range []string{"ACC1", "ACC2", "ACC3"} {
		_, err := store.CreateAccount(ctx, models.Account{
			AccountNumber: number,
			Balance:       decimal.NewFromInt(1000),
			Username:      number,
			CNIC:          string(rune('a' + i)),
		})
		require.NoError(t, err)
	}

	note := "gift"
	records := []models.TransactionRecord{
		{FromAccount: "ACC1", ToAccount: "ACC2", Amount: decimal.NewFromInt(10), Timestamp: now.AddDate(0, 0, -3), Category: models.CategoryFood},
		{FromAccount: "ACC2", ToAccount: "ACC1", Amount: decimal.NewFromInt(20), Timestamp: now.AddDate(0, 0, -20), Category: models.CategoryOther, Description: &note},
		{FromAccount: "ACC3", ToAccount: "ACC1", Amount: decimal.NewFromInt(3000), Timestamp: now.AddDate(0, -3, 0), Category: models.CategoryOther, Description: &note, IsSalaryCredit: true},
		{FromAccount: "ACC1", ToAccount: "ACC3", Amount: decimal.NewFromInt(40), Timestamp: now.AddDate(0, -9, 0), Category: models.CategoryGasBill},
		{FromAccount: "ACC2", ToAccount: "ACC1", Amount: decimal.NewFromInt(50), Timestamp: now.AddDate(-2, 0, 0), Category: models.CategoryFood},
		{FromAccount: "ACC2", ToAccount: "ACC3", Amount: decimal.NewFromInt(60), Timestamp: now.AddDate(0, 0, -1), Category: models.CategoryFood},
	}
	require.NoError(t, store.WithinTransaction(ctx, func(tx interfaces.LedgerTx) error {
		for _, r := range records {
			if _, err := tx.Append(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}))
	return store
}

func newTestService(t *testing.T, dir *directory) *Service {
	t.Helper()
	return NewService(seedLog(t), dir, WithClock(func() time.Time { return now }))
}

func amounts(entries []Entry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Amount.IntPart())
	}
	return out
}

func TestParseWindow(t *testing.T) {
	assert.Equal(t, WindowLast15Days, ParseWindow("last15days"))
	assert.Equal(t, WindowLastMonth, ParseWindow(" LastMonth "))
	assert.Equal(t, WindowLast6Months, ParseWindow("last6months"))
	assert.Equal(t, WindowLastYear, ParseWindow("LASTYEAR"))
	assert.Equal(t, WindowAll, ParseWindow("all"))
	assert.Equal(t, WindowAll, ParseWindow(""))
	assert.Equal(t, WindowAll, ParseWindow("yesterday"))
}

func TestWindowStart(t *testing.T) {
	assert.Nil(t, WindowAll.Start(now))
	assert.Equal(t, time.Date(2025, 8, 16, 12, 0, 0, 0, time.UTC), *WindowLast15Days.Start(now))
	assert.Equal(t, time.Date(2025, 7, 31, 12, 0, 0, 0, time.UTC), *WindowLastMonth.Start(now))
	// Go normalizes February 31st forward
	assert.Equal(t, time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC), *WindowLast6Months.Start(now))
	assert.Equal(t, time.Date(2024, 8, 31, 12, 0, 0, 0, time.UTC), *WindowLastYear.Start(now))
}

func TestGetHistory_Windows(t *testing.T) {
	tests := []struct {
		keyword  string
		window   Window
		sent     []int64
		received []int64
	}{
		{"last15days", WindowLast15Days, []int64{10}, []int64{}},
		{"lastmonth", WindowLastMonth, []int64{10}, []int64{20}},
		{"last6months", WindowLast6Months, []int64{10}, []int64{20, 3000}},
		{"lastyear", WindowLastYear, []int64{10, 40}, []int64{20, 3000}},
		{"all", WindowAll, []int64{10, 40}, []int64{20, 3000, 50}},
		{"nonsense", WindowAll, []int64{10, 40}, []int64{20, 3000, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			svc := newTestService(t, newDirectory())

			h, err := svc.GetHistory(context.Background(), "ACC1", tt.keyword)
			require.NoError(t, err)
			assert.Equal(t, tt.window, h.Window)
			assert.Equal(t, now, h.To)
			assert.Equal(t, tt.sent, amounts(h.Sent))
			assert.Equal(t, tt.received, amounts(h.Received))
		})
	}
}

func TestGetHistory_EntriesCarryCounterparty(t *testing.T) {
	dir := newDirectory()
	svc := newTestService(t, dir)

	h, err := svc.GetHistory(context.Background(), "ACC1", "all")
	require.NoError(t, err)

	require.Len(t, h.Sent, 2)
	assert.Equal(t, "ACC2", h.Sent[0].CounterpartyAccount)
	assert.Equal(t, "Bob", h.Sent[0].CounterpartyName)
	assert.Equal(t, models.CategoryFood, h.Sent[0].Category)
	assert.Empty(t, h.Sent[0].Description)

	require.Len(t, h.Received, 3)
	salary := h.Received[1]
	assert.Equal(t, "ACC3", salary.CounterpartyAccount)
	assert.Equal(t, "Carol", salary.CounterpartyName)
	assert.Equal(t, "gift", salary.Description)
	assert.True(t, salary.IsSalaryCredit)

	// ACC2 shows up three times but is resolved once per query
	assert.Equal(t, 1, dir.calls["ACC2"])
}

func TestGetHistory_PartitionExcludesUnrelated(t *testing.T) {
	svc := newTestService(t, newDirectory())

	h, err := svc.GetHistory(context.Background(), "ACC3", "all")
	require.NoError(t, err)
	assert.Equal(t, []int64{3000}, amounts(h.Sent))
	assert.Equal(t, []int64{60, 40}, amounts(h.Received))
}

func TestGetHistory_EmptyAccount(t *testing.T) {
	svc := newTestService(t, newDirectory())

	h, err := svc.GetHistory(context.Background(), "ACC9", "all")
	require.NoError(t, err)
	assert.NotNil(t, h.Sent)
	assert.NotNil(t, h.Received)
	assert.Empty(t, h.Sent)
	assert.Empty(t, h.Received)
}

func TestGetHistory_MissingCounterpartyHasEmptyName(t *testing.T) {
	dir := newDirectory()
	delete(dir.names, "ACC3")
	svc := newTestService(t, dir)

	h, err := svc.GetHistory(context.Background(), "ACC1", "all")
	require.NoError(t, err)
	require.Len(t, h.Sent, 2)
	assert.Equal(t, "ACC3", h.Sent[1].CounterpartyAccount)
	assert.Empty(t, h.Sent[1].CounterpartyName)
}

func TestGetHistory_DirectoryFailure(t *testing.T) {
	dir := newDirectory()
	dir.err = errors.New("directory offline")
	svc := newTestService(t, dir)

	_, err := svc.GetHistory(context.Background(), "ACC1", "all")
	require.Error(t, err)
	assert.ErrorContains(t, err, "directory offline")
}

func TestGetFilteredHistory(t *testing.T) {
	svc := newTestService(t, newDirectory())
	ctx := context.Background()

	other := models.CategoryOther
	h, err := svc.GetFilteredHistory(ctx, "ACC1", "all", &other, nil)
	require.NoError(t, err)
	assert.Empty(t, h.Sent)
	assert.Equal(t, []int64{20, 3000}, amounts(h.Received))

	salary := true
	h, err = svc.GetFilteredHistory(ctx, "ACC1", "lastmonth", nil, &salary)
	require.NoError(t, err)
	assert.Empty(t, h.Received)

	h, err = svc.GetFilteredHistory(ctx, "ACC1", "last6months", &other, &salary)
	require.NoError(t, err)
	assert.Equal(t, []int64{3000}, amounts(h.Received))
}
