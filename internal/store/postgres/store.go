// Package postgres implements the import store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/txnimport/internal/config"
	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a tenant-scoped transaction store backed by a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ core.Store          = (*Store)(nil)
	_ core.TenantSettings = (*Store)(nil)
	_ core.ImportRecorder = (*Store)(nil)
	_ core.Directory      = (*Store)(nil)
)

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens and pings a pool configured from cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	poolConfig.MinConns = int32(cfg.MinConns)
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// DatabaseName returns the database named in a connection URL, for logs.
func DatabaseName(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// Ping checks the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ----------------------------------------------------------------------------
// core.Store
// ----------------------------------------------------------------------------

// FindAccountByName returns the tenant's account with exactly this name.
func (s *Store) FindAccountByName(ctx context.Context, tenantID int64, name string) (*core.Account, error) {
	var a core.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name FROM accounts WHERE tenant_id = $1 AND name = $2`,
		tenantID, name,
	).Scan(&a.ID, &a.TenantID, &a.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindCategoryByName returns the tenant's category with exactly this name.
func (s *Store) FindCategoryByName(ctx context.Context, tenantID int64, name string) (*core.Category, error) {
	var c core.Category
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name FROM categories WHERE tenant_id = $1 AND name = $2`,
		tenantID, name,
	).Scan(&c.ID, &c.TenantID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const transactionColumns = `id, tenant_id, account_id, category_id, date, amount, description, currency, note, created_at`

// FindDuplicateTransaction returns a stored transaction with the same business identity.
func (s *Store) FindDuplicateTransaction(ctx context.Context, tenantID int64, key core.DuplicateKey) (*core.Transaction, error) {
	amount, err := toPgNumeric(key.Amount)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+`
		FROM transactions
		WHERE tenant_id = $1 AND account_id = $2 AND date = $3
		  AND amount = $4 AND description = $5 AND currency = $6
		ORDER BY id
		LIMIT 1`,
		tenantID, key.AccountID, toPgDate(key.Date), amount, key.Description, key.Currency,
	)

	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// CreateTransaction inserts one transaction for the tenant.
func (s *Store) CreateTransaction(ctx context.Context, tenantID int64, n core.NewTransaction) (*core.Transaction, error) {
	amount, err := toPgNumeric(n.Amount)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO transactions (tenant_id, account_id, category_id, date, amount, description, currency, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+transactionColumns,
		tenantID, n.AccountID, toPgInt8(n.CategoryID), toPgDate(n.Date), amount,
		n.Description, n.Currency, toPgText(n.Note),
	)
	return scanTransaction(row)
}

func scanTransaction(row pgx.Row) (*core.Transaction, error) {
	var (
		tx         core.Transaction
		categoryID pgtype.Int8
		date       pgtype.Date
		amount     pgtype.Numeric
		currency   string
		note       pgtype.Text
	)
	if err := row.Scan(&tx.ID, &tx.TenantID, &tx.AccountID, &categoryID, &date, &amount,
		&tx.Description, &currency, &note, &tx.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if tx.Date, err = fromPgDate(date); err != nil {
		return nil, fmt.Errorf("transaction %d: %w", tx.ID, err)
	}
	if tx.Amount, err = fromPgNumeric(amount); err != nil {
		return nil, fmt.Errorf("transaction %d: %w", tx.ID, err)
	}
	tx.CategoryID = fromPgInt8(categoryID)
	tx.Currency = strings.TrimSpace(currency)
	tx.Note = fromPgText(note)
	return &tx, nil
}

// ----------------------------------------------------------------------------
// core.TenantSettings
// ----------------------------------------------------------------------------

// BaseCurrency returns the tenant's configured base currency.
func (s *Store) BaseCurrency(ctx context.Context, tenantID int64) (string, bool, error) {
	var currency pgtype.Text
	err := s.pool.QueryRow(ctx,
		`SELECT base_currency FROM tenants WHERE id = $1`, tenantID,
	).Scan(&currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	code := fromPgText(currency)
	return code, code != "", nil
}

// ----------------------------------------------------------------------------
// core.ImportRecorder
// ----------------------------------------------------------------------------

// RecordImport stores one import history entry.
func (s *Store) RecordImport(ctx context.Context, run core.ImportRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, tenant_id, file_name, content_type, imported, failed,
			duplicates, dry_run, ip_address, user_agent, started_at, duration_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		toPgUUID(run.ID), run.TenantID, run.FileName, run.ContentType,
		run.Imported, run.Failed, run.Duplicates, run.DryRun,
		toPgText(run.IPAddress), toPgText(run.UserAgent),
		run.StartedAt, run.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

// ListImports returns the tenant's most recent runs, newest first.
func (s *Store) ListImports(ctx context.Context, tenantID int64, limit int) ([]core.ImportRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, file_name, content_type, imported, failed, duplicates,
			dry_run, ip_address, user_agent, started_at, duration_ns
		FROM import_runs
		WHERE tenant_id = $1
		ORDER BY started_at DESC
		LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]core.ImportRun, 0)
	for rows.Next() {
		var (
			run        core.ImportRun
			id         pgtype.UUID
			ip, agent  pgtype.Text
			durationNs int64
		)
		if err := rows.Scan(&id, &run.TenantID, &run.FileName, &run.ContentType,
			&run.Imported, &run.Failed, &run.Duplicates, &run.DryRun,
			&ip, &agent, &run.StartedAt, &durationNs); err != nil {
			return nil, err
		}
		run.ID = fromPgUUID(id)
		run.IPAddress = fromPgText(ip)
		run.UserAgent = fromPgText(agent)
		run.Duration = time.Duration(durationNs)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ----------------------------------------------------------------------------
// core.Directory
// ----------------------------------------------------------------------------

// CreateTenant inserts a tenant. An empty baseCurrency stores NULL.
func (s *Store) CreateTenant(ctx context.Context, name, baseCurrency string) (*core.Tenant, error) {
	var (
		t        core.Tenant
		currency pgtype.Text
	)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, base_currency) VALUES ($1, $2)
		RETURNING id, name, base_currency, created_at`,
		name, toPgText(baseCurrency),
	).Scan(&t.ID, &t.Name, &currency, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert tenant: %w", err)
	}
	t.BaseCurrency = fromPgText(currency)
	return &t, nil
}

// ListTenants returns every tenant ordered by id.
func (s *Store) ListTenants(ctx context.Context) ([]core.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, base_currency, created_at FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenants := make([]core.Tenant, 0)
	for rows.Next() {
		var (
			t        core.Tenant
			currency pgtype.Text
		)
		if err := rows.Scan(&t.ID, &t.Name, &currency, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.BaseCurrency = fromPgText(currency)
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// CreateAccount inserts an account for the tenant.
func (s *Store) CreateAccount(ctx context.Context, tenantID int64, name string) (*core.Account, error) {
	a := core.Account{TenantID: tenantID, Name: name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (tenant_id, name) VALUES ($1, $2) RETURNING id`,
		tenantID, name,
	).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return &a, nil
}

// ListAccounts returns the tenant's accounts ordered by name.
func (s *Store) ListAccounts(ctx context.Context, tenantID int64) ([]core.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name FROM accounts WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Account, error) {
		var a core.Account
		err := row.Scan(&a.ID, &a.TenantID, &a.Name)
		return a, err
	})
}

// CreateCategory inserts a category for the tenant.
func (s *Store) CreateCategory(ctx context.Context, tenantID int64, name string) (*core.Category, error) {
	c := core.Category{TenantID: tenantID, Name: name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO categories (tenant_id, name) VALUES ($1, $2) RETURNING id`,
		tenantID, name,
	).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return &c, nil
}

// ListCategories returns the tenant's categories ordered by name.
func (s *Store) ListCategories(ctx context.Context, tenantID int64) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name FROM categories WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Category, error) {
		var c core.Category
		err := row.Scan(&c.ID, &c.TenantID, &c.Name)
		return c, err
	})
}
