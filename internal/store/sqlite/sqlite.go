// Package sqlite implements the import store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const dateLayout = "2006-01-02"

// Store implements the import store interfaces using SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
}

var (
	_ core.Store          = (*Store)(nil)
	_ core.TenantSettings = (*Store)(nil)
	_ core.ImportRecorder = (*Store)(nil)
	_ core.Directory      = (*Store)(nil)
)

// Open opens (creating if needed) the database at dbPath.
// Call Migrate before use.
func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("dbPath cannot be empty")
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// ----------------------------------------------------------------------------
// core.Store
// ----------------------------------------------------------------------------

// FindAccountByName returns the tenant's account with exactly this name.
func (s *Store) FindAccountByName(ctx context.Context, tenantID int64, name string) (*core.Account, error) {
	var a core.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name FROM accounts WHERE tenant_id = ? AND name = ?`,
		tenantID, name,
	).Scan(&a.ID, &a.TenantID, &a.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return &a, nil
}

// FindCategoryByName returns the tenant's category with exactly this name.
func (s *Store) FindCategoryByName(ctx context.Context, tenantID int64, name string) (*core.Category, error) {
	var c core.Category
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name FROM categories WHERE tenant_id = ? AND name = ?`,
		tenantID, name,
	).Scan(&c.ID, &c.TenantID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return &c, nil
}

const transactionColumns = `id, tenant_id, account_id, category_id, date, amount, description, currency, note, created_at`

// FindDuplicateTransaction returns a stored transaction with the same business
// identity. Amounts are stored in canonical decimal form, so text equality
// is numeric equality.
func (s *Store) FindDuplicateTransaction(ctx context.Context, tenantID int64, key core.DuplicateKey) (*core.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+`
		FROM transactions
		WHERE tenant_id = ? AND account_id = ? AND date = ?
		  AND amount = ? AND description = ? AND currency = ?
		ORDER BY id
		LIMIT 1`,
		tenantID, key.AccountID, key.Date.Format(dateLayout),
		key.Amount.String(), key.Description, key.Currency,
	)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate: %w", err)
	}
	return tx, nil
}

// CreateTransaction inserts one transaction for the tenant.
func (s *Store) CreateTransaction(ctx context.Context, tenantID int64, n core.NewTransaction) (*core.Transaction, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (tenant_id, account_id, category_id, date, amount, description, currency, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tenantID, n.AccountID, nullInt64(n.CategoryID), n.Date.Format(dateLayout),
		n.Amount.String(), n.Description, n.Currency, nullString(n.Note),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

func scanTransaction(row *sql.Row) (*core.Transaction, error) {
	var (
		tx         core.Transaction
		categoryID sql.NullInt64
		date       string
		amount     string
		note       sql.NullString
	)
	if err := row.Scan(&tx.ID, &tx.TenantID, &tx.AccountID, &categoryID, &date, &amount,
		&tx.Description, &tx.Currency, &note, &tx.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if tx.Date, err = time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("transaction %d: invalid date %q: %w", tx.ID, date, err)
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("transaction %d: invalid amount %q: %w", tx.ID, amount, err)
	}
	if categoryID.Valid {
		id := categoryID.Int64
		tx.CategoryID = &id
	}
	tx.Note = note.String
	return &tx, nil
}

// ----------------------------------------------------------------------------
// core.TenantSettings
// ----------------------------------------------------------------------------

// BaseCurrency returns the tenant's configured base currency.
func (s *Store) BaseCurrency(ctx context.Context, tenantID int64) (string, bool, error) {
	var currency sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT base_currency FROM tenants WHERE id = ?`, tenantID,
	).Scan(&currency)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query tenant: %w", err)
	}
	return currency.String, currency.Valid && currency.String != "", nil
}

// ----------------------------------------------------------------------------
// core.ImportRecorder
// ----------------------------------------------------------------------------

// RecordImport stores one import history entry.
func (s *Store) RecordImport(ctx context.Context, run core.ImportRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, tenant_id, file_name, content_type, imported, failed,
			duplicates, dry_run, ip_address, user_agent, started_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.TenantID, run.FileName, run.ContentType,
		run.Imported, run.Failed, run.Duplicates, run.DryRun,
		nullString(run.IPAddress), nullString(run.UserAgent),
		run.StartedAt.UTC(), run.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert import run: %w", err)
	}
	return nil
}

// ListImports returns the tenant's most recent runs, newest first.
func (s *Store) ListImports(ctx context.Context, tenantID int64, limit int) ([]core.ImportRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, file_name, content_type, imported, failed, duplicates,
			dry_run, ip_address, user_agent, started_at, duration_ns
		FROM import_runs
		WHERE tenant_id = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]core.ImportRun, 0)
	for rows.Next() {
		var (
			run        core.ImportRun
			id         string
			ip, agent  sql.NullString
			durationNs int64
		)
		if err := rows.Scan(&id, &run.TenantID, &run.FileName, &run.ContentType,
			&run.Imported, &run.Failed, &run.Duplicates, &run.DryRun,
			&ip, &agent, &run.StartedAt, &durationNs); err != nil {
			return nil, fmt.Errorf("failed to scan import run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("import run has invalid id %q: %w", id, err)
		}
		run.IPAddress = ip.String
		run.UserAgent = agent.String
		run.Duration = time.Duration(durationNs)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate import runs: %w", err)
	}
	return runs, nil
}

// ----------------------------------------------------------------------------
// core.Directory
// ----------------------------------------------------------------------------

// CreateTenant inserts a tenant. An empty baseCurrency stores NULL.
func (s *Store) CreateTenant(ctx context.Context, name, baseCurrency string) (*core.Tenant, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (name, base_currency) VALUES (?, ?)`,
		name, nullString(baseCurrency),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tenant: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant id: %w", err)
	}

	var (
		t        core.Tenant
		currency sql.NullString
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, base_currency, created_at FROM tenants WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &currency, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant: %w", err)
	}
	t.BaseCurrency = currency.String
	return &t, nil
}

// ListTenants returns every tenant ordered by id.
func (s *Store) ListTenants(ctx context.Context) ([]core.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, base_currency, created_at FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tenants := make([]core.Tenant, 0)
	for rows.Next() {
		var (
			t        core.Tenant
			currency sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Name, &currency, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		t.BaseCurrency = currency.String
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// CreateAccount inserts an account for the tenant.
func (s *Store) CreateAccount(ctx context.Context, tenantID int64, name string) (*core.Account, error) {
	id, err := s.insertNamed(ctx, "accounts", tenantID, name)
	if err != nil {
		return nil, err
	}
	return &core.Account{ID: id, TenantID: tenantID, Name: name}, nil
}

// ListAccounts returns the tenant's accounts ordered by name.
func (s *Store) ListAccounts(ctx context.Context, tenantID int64) ([]core.Account, error) {
	var accounts []core.Account
	err := s.listNamed(ctx, "accounts", tenantID, func(id int64, name string) {
		accounts = append(accounts, core.Account{ID: id, TenantID: tenantID, Name: name})
	})
	return accounts, err
}

// CreateCategory inserts a category for the tenant.
func (s *Store) CreateCategory(ctx context.Context, tenantID int64, name string) (*core.Category, error) {
	id, err := s.insertNamed(ctx, "categories", tenantID, name)
	if err != nil {
		return nil, err
	}
	return &core.Category{ID: id, TenantID: tenantID, Name: name}, nil
}

// ListCategories returns the tenant's categories ordered by name.
func (s *Store) ListCategories(ctx context.Context, tenantID int64) ([]core.Category, error) {
	var categories []core.Category
	err := s.listNamed(ctx, "categories", tenantID, func(id int64, name string) {
		categories = append(categories, core.Category{ID: id, TenantID: tenantID, Name: name})
	})
	return categories, err
}

// insertNamed inserts into accounts or categories. table is never user input.
func (s *Store) insertNamed(ctx context.Context, table string, tenantID int64, name string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (tenant_id, name) VALUES (?, ?)`, tenantID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return result.LastInsertId()
}

func (s *Store) listNamed(ctx context.Context, table string, tenantID int64, add func(id int64, name string)) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM `+table+` WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("failed to scan %s: %w", table, err)
		}
		add(id, name)
	}
	return rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
