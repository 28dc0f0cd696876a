/*
bills.go - Bill record store

PURPOSE:
  Keeps the ordered history of saved bills. Newest first is the canonical
  order and survives every persistence round-trip.

OPERATIONS:
  Save:       validate, freeze total/amount due, assign id, prepend
  Delete:     remove at most one record by id (false if nothing matched)
  Search:     case-insensitive name or phone substring, order preserved
  ReplaceAll: full overwrite, used by restore only
  List/Get/Count: read access for history, detail view and header counter

IDENTIFIERS:
  Ids are millisecond timestamps for compatibility with existing history and
  backup files, but the store never hands out an id at or below the highest
  id it already holds. Two saves within the same millisecond get consecutive
  ids.

CONCURRENCY:
  Every read-modify-write runs under mu, so saves, deletes and restores from
  several goroutines cannot reorder or lose records.
*/
package billing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// BillStore is the ordered, newest-first collection of saved bills.
type BillStore struct {
	mu       sync.Mutex
	store    Store
	settings *SettingsStore
	now      func() time.Time
}

// NewBillStore creates a bill store. Totals are frozen against the rates
// returned by settings at the moment of each save.
func NewBillStore(store Store, settings *SettingsStore) *BillStore {
	return &BillStore{store: store, settings: settings, now: time.Now}
}

// Save validates in, freezes its total and amount due against the current
// settings and prepends the new record to the history.
// A rejected save returns a *ValidationError and changes nothing.
func (b *BillStore) Save(ctx context.Context, in BillInput) (BillRecord, error) {
	if strings.TrimSpace(in.CustomerName) == "" {
		return BillRecord{}, &ValidationError{Reason: ErrMissingCustomerName}
	}

	settings, err := b.settings.Get(ctx)
	if err != nil {
		return BillRecord{}, err
	}

	quote := Calculate(in, settings)
	if quote.Total == 0 {
		return BillRecord{}, &ValidationError{Reason: ErrZeroTotal}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bills, err := loadBills(ctx, b.store)
	if err != nil {
		return BillRecord{}, err
	}

	now := b.now()
	customDate := in.CustomDate
	if customDate == "" {
		customDate = now.Format(CustomDateLayout)
	}

	record := BillRecord{
		ID:           nextID(now, bills),
		CustomerName: in.CustomerName,
		PhoneNumber:  in.PhoneNumber,
		WorkType:     in.WorkType,
		Acreage:      in.Acreage,
		Hours:        in.Hours,
		AmountPaid:   in.AmountPaid,
		CustomDate:   customDate,
		Total:        quote.Total,
		AmountDue:    quote.AmountDue,
		SavedDate:    now.UTC().Format(TimestampLayout),
	}

	updated := make([]BillRecord, 0, len(bills)+1)
	updated = append(updated, record)
	updated = append(updated, bills...)
	if err := saveJSON(ctx, b.store, KeyBillHistory, updated); err != nil {
		return BillRecord{}, err
	}
	return record, nil
}

// Delete removes the record with the given id.
// It returns false, without writing anything, when no record matches.
func (b *BillStore) Delete(ctx context.Context, id int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bills, err := loadBills(ctx, b.store)
	if err != nil {
		return false, err
	}

	idx := -1
	for i, bill := range bills {
		if bill.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	updated := make([]BillRecord, 0, len(bills)-1)
	updated = append(updated, bills[:idx]...)
	updated = append(updated, bills[idx+1:]...)
	if err := saveJSON(ctx, b.store, KeyBillHistory, updated); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the whole history, newest first.
func (b *BillStore) List(ctx context.Context) ([]BillRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return loadBills(ctx, b.store)
}

// Get returns the record with the given id, or ok=false.
func (b *BillStore) Get(ctx context.Context, id int64) (BillRecord, bool, error) {
	bills, err := b.List(ctx)
	if err != nil {
		return BillRecord{}, false, err
	}
	for _, bill := range bills {
		if bill.ID == id {
			return bill, true, nil
		}
	}
	return BillRecord{}, false, nil
}

// Count returns the number of saved bills.
func (b *BillStore) Count(ctx context.Context) (int, error) {
	bills, err := b.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(bills), nil
}

// Search returns the records whose customer name contains term (ignoring
// case) or whose phone number contains term. An empty term matches all.
func (b *BillStore) Search(ctx context.Context, term string) ([]BillRecord, error) {
	bills, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterBills(bills, term), nil
}

// FilterBills applies the history search to an in-memory slice.
func FilterBills(bills []BillRecord, term string) []BillRecord {
	needle := strings.ToLower(term)
	result := make([]BillRecord, 0, len(bills))
	for _, bill := range bills {
		if strings.Contains(strings.ToLower(bill.CustomerName), needle) ||
			strings.Contains(bill.PhoneNumber, term) {
			result = append(result, bill)
		}
	}
	return result
}

// ReplaceAll overwrites the history with records, keeping their order.
func (b *BillStore) ReplaceAll(ctx context.Context, records []BillRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return replaceBills(ctx, b.store, records)
}

// =============================================================================
// HELPERS
// =============================================================================

func loadBills(ctx context.Context, store Store) ([]BillRecord, error) {
	var bills []BillRecord
	if _, err := loadJSON(ctx, store, KeyBillHistory, &bills); err != nil {
		return nil, fmt.Errorf("bill history: %w", err)
	}
	if bills == nil {
		bills = []BillRecord{}
	}
	return bills, nil
}

func replaceBills(ctx context.Context, store Store, records []BillRecord) error {
	bills := make([]BillRecord, len(records))
	copy(bills, records)
	return saveJSON(ctx, store, KeyBillHistory, bills)
}

// nextID returns the creation time in milliseconds, bumped past every
// existing id.
func nextID(now time.Time, bills []BillRecord) int64 {
	id := now.UnixMilli()
	for _, bill := range bills {
		if bill.ID >= id {
			id = bill.ID + 1
		}
	}
	return id
}
