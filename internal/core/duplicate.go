package core

import (
	"context"
	"fmt"
)

// duplicateDetector decides whether a resolved row repeats an economic event
// the tenant already has. It consults the store and also remembers every key
// accepted earlier in the same import, which matters for dry runs where
// earlier rows are never written.
type duplicateDetector struct {
	store    Store
	tenantID int64
	seen     map[string]struct{}
}

func newDuplicateDetector(store Store, tenantID int64) *duplicateDetector {
	return &duplicateDetector{
		store:    store,
		tenantID: tenantID,
		seen:     make(map[string]struct{}),
	}
}

func (d *duplicateDetector) isDuplicate(ctx context.Context, txn ResolvedTransaction) (bool, error) {
	key := txn.Key()
	if _, ok := d.seen[key.mapKey()]; ok {
		return true, nil
	}

	existing, err := d.store.FindDuplicateTransaction(ctx, d.tenantID, key)
	if err != nil {
		return false, fmt.Errorf("find duplicate: %w", err)
	}
	return existing != nil, nil
}

// accept registers a key once its row has been imported.
func (d *duplicateDetector) accept(txn ResolvedTransaction) {
	d.seen[txn.Key().mapKey()] = struct{}{}
}
