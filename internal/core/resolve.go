package core

import (
	"context"
	"fmt"
	"regexp"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidCurrency reports whether code is a three-letter upper-case currency code.
func ValidCurrency(code string) bool {
	return currencyPattern.MatchString(code)
}

// resolver maps the names in a NormalizedTransaction to tenant-owned ids.
//
// A resolver lives for a single import and a single tenant. Lookups are
// memoised, including misses, so a file naming the same account on every
// row costs one store call.
type resolver struct {
	store           Store
	tenantID        int64
	defaultCurrency string

	accounts   map[string]*Account
	categories map[string]*Category
}

func newResolver(store Store, tenantID int64, defaultCurrency string) *resolver {
	return &resolver{
		store:           store,
		tenantID:        tenantID,
		defaultCurrency: defaultCurrency,
		accounts:        make(map[string]*Account),
		categories:      make(map[string]*Category),
	}
}

// resolve returns a rowFailure for unresolved references and an error only
// when the store itself failed.
func (r *resolver) resolve(ctx context.Context, txn NormalizedTransaction) (ResolvedTransaction, *rowFailure, error) {
	account, err := r.account(ctx, txn.AccountName)
	if err != nil {
		return ResolvedTransaction{}, nil, fmt.Errorf("find account %q: %w", txn.AccountName, err)
	}
	if account == nil {
		return ResolvedTransaction{}, failure(ReasonUnknownAccount, "Unknown account: %s", txn.AccountName), nil
	}

	resolved := ResolvedTransaction{
		NormalizedTransaction: txn,
		AccountID:             account.ID,
	}

	if txn.CategoryName != "" {
		category, err := r.category(ctx, txn.CategoryName)
		if err != nil {
			return ResolvedTransaction{}, nil, fmt.Errorf("find category %q: %w", txn.CategoryName, err)
		}
		if category == nil {
			return ResolvedTransaction{}, failure(ReasonUnknownCategory, "Unknown category: %s", txn.CategoryName), nil
		}
		id := category.ID
		resolved.CategoryID = &id
	}

	if txn.Currency != "" {
		if !ValidCurrency(txn.Currency) {
			return ResolvedTransaction{}, failure(ReasonInvalidCurrency, "Invalid currency: %s", txn.Currency), nil
		}
	} else {
		resolved.Currency = r.defaultCurrency
	}

	return resolved, nil, nil
}

func (r *resolver) account(ctx context.Context, name string) (*Account, error) {
	if a, ok := r.accounts[name]; ok {
		return a, nil
	}
	a, err := r.store.FindAccountByName(ctx, r.tenantID, name)
	if err != nil {
		return nil, err
	}
	if a != nil && a.TenantID != 0 && a.TenantID != r.tenantID {
		// Never trust a store that leaks another tenant's account.
		a = nil
	}
	r.accounts[name] = a
	return a, nil
}

func (r *resolver) category(ctx context.Context, name string) (*Category, error) {
	if c, ok := r.categories[name]; ok {
		return c, nil
	}
	c, err := r.store.FindCategoryByName(ctx, r.tenantID, name)
	if err != nil {
		return nil, err
	}
	if c != nil && c.TenantID != 0 && c.TenantID != r.tenantID {
		c = nil
	}
	r.categories[name] = c
	return c, nil
}
