package warehouse

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryWarehouse is an in-memory implementation of Warehouse.
// This is intended for testing. Production should use BigQuery.
type InMemoryWarehouse struct {
	mu   sync.Mutex
	rows map[string]int64

	// FailDeletes makes DeleteRows return an error. Tests use it to
	// exercise the executor's partial-failure policy.
	FailDeletes bool
}

// NewInMemoryWarehouse creates a new in-memory warehouse.
func NewInMemoryWarehouse() *InMemoryWarehouse {
	return &InMemoryWarehouse{rows: make(map[string]int64)}
}

// SeedRows seeds event rows for a pseudonymized id. Test helper.
func (w *InMemoryWarehouse) SeedRows(pseudonymID string, count int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows[pseudonymID] = count
}

// DeleteRows deletes the rows keyed by the pseudonymized id.
func (w *InMemoryWarehouse) DeleteRows(_ context.Context, pseudonymID string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.FailDeletes {
		return 0, fmt.Errorf("warehouse unavailable")
	}

	count := w.rows[pseudonymID]
	delete(w.rows, pseudonymID)
	return count, nil
}

// CountRows counts the rows remaining for the pseudonymized id.
func (w *InMemoryWarehouse) CountRows(_ context.Context, pseudonymID string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows[pseudonymID], nil
}

// Ensure InMemoryWarehouse implements Warehouse.
var _ Warehouse = (*InMemoryWarehouse)(nil)
