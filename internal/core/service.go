package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/txnimport/internal/logging"
	"github.com/google/uuid"
)

// DefaultCurrency is applied to rows without a currency when neither the
// service nor the tenant configures one.
const DefaultCurrency = "EUR"

// History listing bounds.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

var (
	// ErrInvalidTenant is returned for a non-positive tenant id.
	ErrInvalidTenant = errors.New("invalid tenant id")

	// ErrHistoryUnavailable is returned by ListImports when the store keeps no history.
	ErrHistoryUnavailable = errors.New("import history not available")
)

// Service runs transaction imports against a Store.
type Service struct {
	store           Store
	defaultCurrency string
	limiter         *ImportLimiter
	now             func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultCurrency sets the fallback currency for rows that name none.
// A tenant base currency, when the store provides one, takes precedence.
func WithDefaultCurrency(currency string) Option {
	return func(s *Service) {
		if currency != "" {
			s.defaultCurrency = currency
		}
	}
}

// WithLimiter bounds concurrent imports. Without it imports are unbounded.
func WithLimiter(l *ImportLimiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

// NewService creates a new Service instance.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:           store,
		defaultCurrency: DefaultCurrency,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limiter returns the configured limiter, or nil.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// ImportTransactions decodes data, checks its headers and imports every row
// for tenantID.
//
// A *DecodeError or *MissingHeaderError aborts the import before any row is
// processed and no report is returned. Every row-level problem is recorded
// in the report instead. A cancelled ctx aborts the import with ctx.Err().
func (s *Service) ImportTransactions(ctx context.Context, data []byte, ct ContentType, tenantID int64) (ImportReport, error) {
	return s.Import(ctx, ImportRequest{
		TenantID:    tenantID,
		ContentType: ct,
		Data:        data,
	})
}

// Import runs one import described by req. With a limiter configured the
// import holds one of its slots for its whole duration.
func (s *Service) Import(ctx context.Context, req ImportRequest) (ImportReport, error) {
	if req.TenantID <= 0 {
		return ImportReport{}, fmt.Errorf("%w: %d", ErrInvalidTenant, req.TenantID)
	}
	ctx = logging.ContextWithTenant(ctx, req.TenantID)

	if s.limiter == nil {
		return s.runImport(ctx, req)
	}

	var report ImportReport
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		report, err = s.runImport(ctx, req)
		return err
	})
	return report, err
}

func (s *Service) runImport(ctx context.Context, req ImportRequest) (ImportReport, error) {
	started := s.now()
	log := logging.WithFields(ctx,
		"content_type", req.ContentType.String(),
		"dry_run", req.DryRun,
	)
	if req.FileName != "" {
		log = log.With("file", req.FileName)
	}

	notify(req.Progress, ImportProgress{Phase: PhaseDecoding})

	table, err := Decode(req.Data, req.ContentType)
	if err != nil {
		log.WarnContext(ctx, "import rejected", "error", err)
		return ImportReport{}, err
	}
	if err := CheckHeaders(table.Rows); err != nil {
		log.WarnContext(ctx, "import rejected", "error", err)
		return ImportReport{}, err
	}

	log.InfoContext(ctx, "import started", "rows", len(table.Rows))

	run := &importRun{
		service:  s,
		req:      req,
		log:      log,
		resolver: newResolver(s.store, req.TenantID, s.currencyFor(ctx, req.TenantID)),
		dupes:    newDuplicateDetector(s.store, req.TenantID),
		report:   newReportBuilder(),
	}

	total := len(table.Rows)
	notify(req.Progress, run.report.progress(PhaseProcessing, total, 0))

	for i, row := range table.Rows {
		err := ctx.Err()
		if err == nil {
			err = run.processRow(ctx, i, row)
		}
		if err != nil {
			run.aborted(ctx, i, err)
			return ImportReport{}, err
		}
		notify(req.Progress, run.report.progress(PhaseProcessing, total, i+1))
	}

	result := run.report.build()
	notify(req.Progress, run.report.progress(PhaseComplete, total, total))

	duration := s.now().Sub(started)
	log.InfoContext(ctx, "import finished",
		"imported", result.Imported,
		"failed", result.Failed,
		"duplicates", result.Duplicates,
		"duration", duration,
	)

	s.recordRun(ctx, req, result, started, duration)

	return result, nil
}

// ListImports returns the most recent import runs for a tenant, newest first.
func (s *Service) ListImports(ctx context.Context, tenantID int64, limit int) ([]ImportRun, error) {
	if tenantID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTenant, tenantID)
	}
	recorder, ok := s.store.(ImportRecorder)
	if !ok {
		return nil, ErrHistoryUnavailable
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	runs, err := recorder.ListImports(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	if runs == nil {
		runs = []ImportRun{}
	}
	return runs, nil
}

// currencyFor returns the tenant's base currency when the store keeps one.
// A failed lookup is logged and the configured default is used instead.
func (s *Service) currencyFor(ctx context.Context, tenantID int64) string {
	settings, ok := s.store.(TenantSettings)
	if !ok {
		return s.defaultCurrency
	}

	currency, found, err := settings.BaseCurrency(ctx, tenantID)
	if err != nil {
		logging.FromContext(ctx).Warn("tenant base currency lookup failed, using default",
			"default", s.defaultCurrency,
			"error", err,
		)
		return s.defaultCurrency
	}
	if !found || currency == "" {
		return s.defaultCurrency
	}
	return currency
}

// commit persists one resolved row.
func (s *Service) commit(ctx context.Context, tenantID int64, txn ResolvedTransaction) (*Transaction, error) {
	created, err := s.store.CreateTransaction(ctx, tenantID, NewTransaction{
		AccountID:   txn.AccountID,
		CategoryID:  txn.CategoryID,
		Date:        txn.Date,
		Amount:      txn.Amount,
		Description: txn.Description,
		Currency:    txn.Currency,
		Note:        txn.Note,
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return created, nil
}

func (s *Service) recordRun(ctx context.Context, req ImportRequest, result ImportReport, started time.Time, duration time.Duration) {
	recorder, ok := s.store.(ImportRecorder)
	if !ok {
		return
	}

	run := ImportRun{
		ID:          uuid.New(),
		TenantID:    req.TenantID,
		FileName:    req.FileName,
		ContentType: req.ContentType.String(),
		Imported:    result.Imported,
		Failed:      result.Failed,
		Duplicates:  result.Duplicates,
		DryRun:      req.DryRun,
		IPAddress:   IPAddressFromContext(ctx),
		UserAgent:   UserAgentFromContext(ctx),
		StartedAt:   started,
		Duration:    duration,
	}

	// A lost history entry is logged, never returned.
	if err := recorder.RecordImport(context.WithoutCancel(ctx), run); err != nil {
		logging.FromContext(ctx).Warn("failed to record import run",
			"run_id", run.ID,
			"error", err,
		)
	}
}

// importRun holds the per-import pipeline state.
type importRun struct {
	service  *Service
	req      ImportRequest
	log      *slog.Logger
	resolver *resolver
	dupes    *duplicateDetector
	report   *reportBuilder
}

// processRow moves one row through validate, resolve, duplicate check and
// commit. Every outcome lands in the report; the only error returned is a
// context error, which aborts the import.
func (r *importRun) processRow(ctx context.Context, index int, row RawRow) error {
	txn, problems := ValidateRow(row)
	if len(problems) > 0 {
		r.fail(ctx, index, failure(ReasonInvalid, "%s", strings.Join(problems, "; ")))
		return nil
	}

	resolved, unresolved, err := r.resolver.resolve(ctx, txn)
	if err != nil {
		return r.storageFailure(ctx, index, err)
	}
	if unresolved != nil {
		r.fail(ctx, index, unresolved)
		return nil
	}

	duplicate, err := r.dupes.isDuplicate(ctx, resolved)
	if err != nil {
		return r.storageFailure(ctx, index, err)
	}
	if duplicate {
		r.log.DebugContext(ctx, "row is a duplicate", "line", lineNumber(index))
		r.report.duplicate(index)
		return nil
	}

	if !r.req.DryRun {
		if _, err := r.service.commit(ctx, r.req.TenantID, resolved); err != nil {
			return r.storageFailure(ctx, index, err)
		}
	}

	r.dupes.accept(resolved)
	r.report.imported()
	return nil
}

// aborted logs an import stopped at rowIndex. Rows committed before it stay
// stored, so their count is logged for the operator.
func (r *importRun) aborted(ctx context.Context, rowIndex int, err error) {
	committed := r.report.report.Imported
	if r.req.DryRun {
		committed = 0
	}
	r.log.WarnContext(ctx, "import cancelled",
		"line", lineNumber(rowIndex),
		"rows_processed", rowIndex,
		"committed", committed,
		"error", err,
	)
}

func (r *importRun) fail(ctx context.Context, index int, f *rowFailure) {
	r.log.DebugContext(ctx, "row failed",
		"line", lineNumber(index),
		"reason", f.reason,
		"message", f.message,
	)
	r.report.failed(index, f)
}

// storageFailure records a row that failed because the store failed. If the
// failure was caused by ctx ending, the context error is returned instead.
func (r *importRun) storageFailure(ctx context.Context, index int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	r.log.ErrorContext(ctx, "row failed on store error", "line", lineNumber(index), "error", err)
	r.report.failed(index, &rowFailure{reason: ReasonStorage, message: FormatUserError(err)})
	return nil
}

func notify(fn ProgressFunc, p ImportProgress) {
	if fn != nil {
		fn(p)
	}
}
