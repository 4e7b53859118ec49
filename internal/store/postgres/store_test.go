package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/txnimport/internal/config"
	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TEST_DATABASE_URL and migrates it. The test is
// skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	require.NoError(t, Migrate(url))

	ctx := context.Background()
	pool, err := Connect(ctx, config.DatabaseConfig{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return New(pool)
}

func TestStore_ImportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "tenant-"+uuid.NewString(), "USD")
	require.NoError(t, err)
	other, err := s.CreateTenant(ctx, "tenant-"+uuid.NewString(), "")
	require.NoError(t, err)

	_, err = s.CreateAccount(ctx, tenant.ID, "Checking")
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, tenant.ID, "Food")
	require.NoError(t, err)

	currency, ok, err := s.BaseCurrency(ctx, tenant.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "USD", currency)

	_, ok, err = s.BaseCurrency(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	svc := core.NewService(s)
	data := []byte("date,amount,description,account,category\n" +
		"2024-01-15,42.50,Coffee,Checking,Food\n" +
		"2024-01-15,42.5,Coffee,Checking,Food\n")

	report, err := svc.Import(ctx, core.ImportRequest{
		TenantID:    tenant.ID,
		FileName:    "coffee.csv",
		ContentType: core.ContentTypeCSV,
		Data:        data,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Duplicates)

	dup, err := s.FindDuplicateTransaction(ctx, tenant.ID, core.DuplicateKey{
		AccountID:   mustAccountID(t, s, tenant.ID, "Checking"),
		Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("42.500"),
		Description: "Coffee",
		Currency:    "USD",
	})
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.NotNil(t, dup.CategoryID)

	// The other tenant cannot see the account.
	acct, err := s.FindAccountByName(ctx, other.ID, "Checking")
	require.NoError(t, err)
	assert.Nil(t, acct)

	runs, err := s.ListImports(ctx, tenant.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "coffee.csv", runs[0].FileName)
	assert.Equal(t, 1, runs[0].Duplicates)
}

func mustAccountID(t *testing.T, s *Store, tenantID int64, name string) int64 {
	t.Helper()
	a, err := s.FindAccountByName(context.Background(), tenantID, name)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.ID
}
