package core

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContentType identifies which decoder handles an uploaded file.
type ContentType int

const (
	ContentTypeUnknown ContentType = iota
	ContentTypeCSV                 // Comma-separated text
	ContentTypeXLSX                // Office Open XML workbook (first sheet only)
)

// String returns the short name used in logs and import history.
func (c ContentType) String() string {
	switch c {
	case ContentTypeCSV:
		return "csv"
	case ContentTypeXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// RawRow maps a lower-cased, trimmed column name to its trimmed cell value.
// Every header column is present in every row; blank cells are "".
type RawRow map[string]string

// Table is the decoded content of an uploaded file.
type Table struct {
	Columns []string // Header names in file order (lower-cased, trimmed)
	Rows    []RawRow // Data rows; Rows[i] is reported as line i+2
}

// NormalizedTransaction is a row that passed schema validation.
type NormalizedTransaction struct {
	Date         time.Time
	Amount       decimal.Decimal
	Description  string
	AccountName  string
	CategoryName string // Empty when the row names no category
	Currency     string // Empty when the row names no currency
	Note         string
}

// ResolvedTransaction is a NormalizedTransaction whose references have been
// mapped to tenant-owned ids. Currency always holds the effective currency.
type ResolvedTransaction struct {
	NormalizedTransaction
	AccountID  int64
	CategoryID *int64
}

// Key returns the business identity used for duplicate detection.
func (r ResolvedTransaction) Key() DuplicateKey {
	return DuplicateKey{
		AccountID:   r.AccountID,
		Date:        r.Date,
		Amount:      r.Amount,
		Description: r.Description,
		Currency:    r.Currency,
	}
}

// DuplicateKey identifies one economic event within a tenant. Two
// transactions with equal keys are the same event regardless of their ids.
type DuplicateKey struct {
	AccountID   int64
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Currency    string
}

// mapKey returns a comparable form of the key. decimal.Decimal is not
// comparable with ==, so the amount is rendered canonically.
func (k DuplicateKey) mapKey() string {
	return k.Date.Format(dateLayout) + "\x00" +
		k.Amount.String() + "\x00" +
		k.Description + "\x00" +
		k.Currency + "\x00" +
		strconv.FormatInt(k.AccountID, 10)
}

// Tenant owns accounts, categories and transactions. BaseCurrency is empty
// when the tenant relies on the configured default.
type Tenant struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	BaseCurrency string    `json:"baseCurrency,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Account is a tenant-owned account referenced by display name.
type Account struct {
	ID       int64
	TenantID int64
	Name     string
}

// Category is a tenant-owned category referenced by display name.
type Category struct {
	ID       int64
	TenantID int64
	Name     string
}

// Transaction is a persisted transaction.
type Transaction struct {
	ID          int64
	TenantID    int64
	AccountID   int64
	CategoryID  *int64
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Currency    string
	Note        string
	CreatedAt   time.Time
}

// NewTransaction carries the values for CreateTransaction.
type NewTransaction struct {
	AccountID   int64
	CategoryID  *int64
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Currency    string
	Note        string
}

// Store is the tenant-scoped persistence the pipeline needs.
//
// Lookups return (nil, nil) when nothing matches. Every call carries the
// tenant id explicitly; implementations must never read or write rows owned
// by another tenant.
type Store interface {
	FindAccountByName(ctx context.Context, tenantID int64, name string) (*Account, error)
	FindCategoryByName(ctx context.Context, tenantID int64, name string) (*Category, error)
	FindDuplicateTransaction(ctx context.Context, tenantID int64, key DuplicateKey) (*Transaction, error)
	CreateTransaction(ctx context.Context, tenantID int64, tx NewTransaction) (*Transaction, error)
}

// TenantSettings is implemented by stores that keep a per-tenant base
// currency. ok is false when the tenant has none configured.
type TenantSettings interface {
	BaseCurrency(ctx context.Context, tenantID int64) (currency string, ok bool, err error)
}

// ImportRecorder is implemented by stores that keep an import history.
type ImportRecorder interface {
	RecordImport(ctx context.Context, run ImportRun) error
	ListImports(ctx context.Context, tenantID int64, limit int) ([]ImportRun, error)
}

// Directory manages the tenants and the names imports resolve against.
// Both stores implement it; the CLI uses it to seed data.
type Directory interface {
	CreateTenant(ctx context.Context, name, baseCurrency string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	CreateAccount(ctx context.Context, tenantID int64, name string) (*Account, error)
	ListAccounts(ctx context.Context, tenantID int64) ([]Account, error)
	CreateCategory(ctx context.Context, tenantID int64, name string) (*Category, error)
	ListCategories(ctx context.Context, tenantID int64) ([]Category, error)
}

// RowError describes one failed or duplicate row.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
	Reason  Reason `json:"-"`
}

// ImportReport is the outcome of one import.
type ImportReport struct {
	Imported   int        `json:"imported"`
	Failed     int        `json:"failed"`
	Duplicates int        `json:"duplicates"`
	Errors     []RowError `json:"errors"`
}

// Total returns the number of data rows the report accounts for.
func (r ImportReport) Total() int {
	return r.Imported + r.Failed + r.Duplicates
}

// ImportPhase indicates the current stage of an import.
type ImportPhase string

const (
	PhaseDecoding   ImportPhase = "decoding"
	PhaseProcessing ImportPhase = "processing"
	PhaseComplete   ImportPhase = "complete"
)

// ImportProgress is reported to ImportRequest.Progress while rows are processed.
type ImportProgress struct {
	Phase      ImportPhase
	TotalRows  int
	CurrentRow int
	Imported   int
	Failed     int
	Duplicates int
}

// Percent returns the progress as a percentage (0-100).
func (p ImportProgress) Percent() int {
	if p.TotalRows > 0 {
		return (p.CurrentRow * 100) / p.TotalRows
	}
	return 0
}

// ProgressFunc receives progress updates. It is called synchronously from
// the importing goroutine and must not block.
type ProgressFunc func(ImportProgress)

// ImportRequest describes one import.
type ImportRequest struct {
	TenantID    int64
	FileName    string
	ContentType ContentType
	Data        []byte
	DryRun      bool         // Run every check but never call CreateTransaction
	Progress    ProgressFunc // Optional
}

// ImportRun is the history entry kept for each completed import.
type ImportRun struct {
	ID          uuid.UUID     `json:"id"`
	TenantID    int64         `json:"tenantId"`
	FileName    string        `json:"fileName,omitempty"`
	ContentType string        `json:"contentType"`
	Imported    int           `json:"imported"`
	Failed      int           `json:"failed"`
	Duplicates  int           `json:"duplicates"`
	DryRun      bool          `json:"dryRun"`
	IPAddress   string        `json:"ipAddress,omitempty"`
	UserAgent   string        `json:"userAgent,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"durationNs"`
}
