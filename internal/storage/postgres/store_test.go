package postgres

import (
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/lib/pq"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapCreateAccountError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"username", &pq.Error{Code: uniqueViolation, Constraint: "accounts_username_key"}, models.ErrDuplicateUsername},
		{"cnic", &pq.Error{Code: uniqueViolation, Constraint: "accounts_cnic_key"}, models.ErrDuplicateCNIC},
		{"primary key", &pq.Error{Code: uniqueViolation, Constraint: "accounts_pkey"}, models.ErrDuplicateAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapCreateAccountError(tt.err), tt.want)
		})
	}

	other := errors.New("connection reset")
	err := mapCreateAccountError(other)
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, models.ErrDuplicateAccount)
}

func TestMapContentionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"serialization failure", &pq.Error{Code: serializationFailure}, true},
		{"deadlock", &pq.Error{Code: deadlockDetected}, true},
		{"wrapped commit failure", fmt.Errorf("commit ledger transaction: %w", &pq.Error{Code: serializationFailure}), true},
		{"wrapped balance update", fmt.Errorf("debit ACC1: update balance: %w", &pq.Error{Code: deadlockDetected}), true},
		{"check violation", &pq.Error{Code: "23514"}, false},
		{"plain error", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapContentionError(tt.err)
			assert.Equal(t, tt.conflict, errors.Is(got, models.ErrBalanceConflict))
			assert.ErrorIs(t, got, tt.err)

			var pqErr *pq.Error
			if tt.conflict {
				assert.True(t, errors.As(got, &pqErr), "driver error stays inspectable")
			}
		})
	}
}

func TestMigrationFiles_SortedSQLOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_b.sql":   {Data: []byte("select 2")},
		"migrations/0001_a.sql":   {Data: []byte("select 1")},
		"migrations/README.md":    {Data: []byte("notes")},
		"migrations/nested/x.sql": {Data: []byte("select 3")},
	}

	files, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.sql", "0002_b.sql"}, files)
}

func TestLoadMigrations_Checksums(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0001_a.sql": {Data: []byte("select 1")},
		"migrations/0002_b.sql": {Data: []byte("select 1")},
		"migrations/0003_c.sql": {Data: []byte("select 3")},
	}

	migrations, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, "0001_a.sql", migrations[0].version)
	assert.Equal(t, "select 1", migrations[0].body)
	assert.Len(t, migrations[0].checksum, 64)
	assert.Equal(t, migrations[0].checksum, migrations[1].checksum, "checksum depends on the body only")
	assert.NotEqual(t, migrations[0].checksum, migrations[2].checksum)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	files, err := migrationFiles(migrationsFS)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_accounts_and_transactions.sql", "0002_transactions_append_only.sql"}, files)
}
