package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStore opens and migrates a store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// seedTenant creates a tenant with one account and one category.
func seedTenant(t *testing.T, s *Store, name, currency string) *core.Tenant {
	t.Helper()
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, name, currency)
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, tenant.ID, "Checking")
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, tenant.ID, "Food")
	require.NoError(t, err)
	return tenant
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestDirectory(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	acme := seedTenant(t, store, "acme", "USD")
	globex := seedTenant(t, store, "globex", "")

	assert.Equal(t, "USD", acme.BaseCurrency)
	assert.Empty(t, globex.BaseCurrency)
	assert.False(t, acme.CreatedAt.IsZero())

	tenants, err := store.ListTenants(ctx)
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, "acme", tenants[0].Name)

	_, err = store.CreateAccount(ctx, acme.ID, "Savings")
	require.NoError(t, err)

	accounts, err := store.ListAccounts(ctx, acme.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Checking", accounts[0].Name)
	assert.Equal(t, "Savings", accounts[1].Name)

	categories, err := store.ListCategories(ctx, globex.ID)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, globex.ID, categories[0].TenantID)

	_, err = store.CreateAccount(ctx, acme.ID, "Checking")
	require.Error(t, err)
	assert.Equal(t, "DB002", core.MapError(err).Code)
}

func TestFindByName_TenantScoped(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	acme := seedTenant(t, store, "acme", "")
	globex, err := store.CreateTenant(ctx, "globex", "")
	require.NoError(t, err)

	account, err := store.FindAccountByName(ctx, acme.ID, "Checking")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, acme.ID, account.TenantID)

	account, err = store.FindAccountByName(ctx, globex.ID, "Checking")
	require.NoError(t, err)
	assert.Nil(t, account)

	account, err = store.FindAccountByName(ctx, acme.ID, "checking")
	require.NoError(t, err)
	assert.Nil(t, account, "names are case-sensitive")

	category, err := store.FindCategoryByName(ctx, globex.ID, "Food")
	require.NoError(t, err)
	assert.Nil(t, category)
}

func TestTransactions(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	tenant := seedTenant(t, store, "acme", "")
	account, err := store.FindAccountByName(ctx, tenant.ID, "Checking")
	require.NoError(t, err)
	category, err := store.FindCategoryByName(ctx, tenant.ID, "Food")
	require.NoError(t, err)

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	created, err := store.CreateTransaction(ctx, tenant.ID, core.NewTransaction{
		AccountID:   account.ID,
		CategoryID:  &category.ID,
		Date:        date,
		Amount:      decimal.RequireFromString("42.50"),
		Description: "Coffee",
		Currency:    "EUR",
		Note:        "team",
	})
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, created.TenantID)
	assert.True(t, created.Date.Equal(date))
	assert.True(t, created.Amount.Equal(decimal.RequireFromString("42.5")))
	require.NotNil(t, created.CategoryID)
	assert.Equal(t, category.ID, *created.CategoryID)
	assert.Equal(t, "team", created.Note)

	key := core.DuplicateKey{
		AccountID:   account.ID,
		Date:        date,
		Amount:      decimal.RequireFromString("42.500"),
		Description: "Coffee",
		Currency:    "EUR",
	}
	dup, err := store.FindDuplicateTransaction(ctx, tenant.ID, key)
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.Equal(t, created.ID, dup.ID)

	key.Currency = "USD"
	dup, err = store.FindDuplicateTransaction(ctx, tenant.ID, key)
	require.NoError(t, err)
	assert.Nil(t, dup)

	_, err = store.CreateTransaction(ctx, tenant.ID, core.NewTransaction{
		AccountID:   9999,
		Date:        date,
		Amount:      decimal.NewFromInt(1),
		Description: "Orphan",
		Currency:    "EUR",
	})
	require.Error(t, err)
	assert.Equal(t, "DB003", core.MapError(err).Code)
}

func TestBaseCurrency(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	acme := seedTenant(t, store, "acme", "USD")
	globex := seedTenant(t, store, "globex", "")

	currency, ok, err := store.BaseCurrency(ctx, acme.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "USD", currency)

	_, ok, err = store.BaseCurrency(ctx, globex.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.BaseCurrency(ctx, 404)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestImportHistory(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	tenant := seedTenant(t, store, "acme", "")
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordImport(ctx, core.ImportRun{
			ID:          uuid.New(),
			TenantID:    tenant.ID,
			FileName:    []string{"a.csv", "b.xlsx", "c.csv"}[i],
			ContentType: "csv",
			Imported:    i,
			DryRun:      i == 1,
			IPAddress:   "203.0.113.5",
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			Duration:    1500 * time.Millisecond,
		}))
	}

	runs, err := store.ListImports(ctx, tenant.ID, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c.csv", runs[0].FileName)
	assert.Equal(t, "b.xlsx", runs[1].FileName)
	assert.True(t, runs[1].DryRun)
	assert.Equal(t, "203.0.113.5", runs[0].IPAddress)
	assert.Empty(t, runs[0].UserAgent)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)
	assert.True(t, runs[0].StartedAt.Equal(base.Add(2*time.Minute)))

	other, err := store.CreateTenant(ctx, "globex", "")
	require.NoError(t, err)
	runs, err = store.ListImports(ctx, other.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

// TestServiceImport runs the full pipeline against SQLite, including a
// re-import of the same file.
func TestServiceImport(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	tenant := seedTenant(t, store, "acme", "USD")
	svc := core.NewService(store)

	data := []byte("date,amount,description,account,category,currency\n" +
		"2024-01-15,42.50,Coffee,Checking,Food,\n" +
		"2024-01-16,10,Book,Checking,,EUR\n" +
		"2024-01-17,5,Taxi,Cash,,\n" +
		"2024-01-15,42.5,Coffee,Checking,Food,USD\n")

	report, err := svc.Import(ctx, core.ImportRequest{
		TenantID:    tenant.ID,
		FileName:    "jan.csv",
		ContentType: core.ContentTypeCSV,
		Data:        data,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Duplicates)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, 4, report.Errors[0].Line)
	assert.Equal(t, "Unknown account: Cash", report.Errors[0].Message)
	assert.Equal(t, 5, report.Errors[1].Line)

	again, err := svc.Import(ctx, core.ImportRequest{
		TenantID:    tenant.ID,
		FileName:    "jan.csv",
		ContentType: core.ContentTypeCSV,
		Data:        data,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Imported)
	assert.Equal(t, 3, again.Duplicates)
	assert.Equal(t, 1, again.Failed)

	runs, err := svc.ListImports(ctx, tenant.ID, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
