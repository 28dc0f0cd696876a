/*
store.go - Persistence interface for the billing engine

PURPOSE:
  Defines the boundary between the engine and durable storage. The engine
  keeps whole JSON blobs under two independent keys, so the only thing a
  backend needs to provide is key/value access plus an atomic section for
  writes that touch both keys (restore and clear).

KEYS:
  tractorPosSettings   JSON-encoded Settings
  tractorBillHistory   JSON-encoded []BillRecord, newest first

IMPLEMENTATIONS:
  - billing/store/memory.go: In-memory, for tests and demos
  - store/sqlite/sqlite.go: SQLite-backed, for the server

SEE ALSO:
  - settings.go, bills.go: read and write through Store
  - backup.go: uses TxStore.WithTx for atomic restore/clear
*/
package billing

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	KeySettings    = "tractorPosSettings"
	KeyBillHistory = "tractorBillHistory"
)

// =============================================================================
// STORE - Key/value persistence of JSON blobs
// =============================================================================

// Store persists opaque values by key.
type Store interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the given Store is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// JSON HELPERS
// =============================================================================

// loadJSON decodes the value under key into v. found is false if the key is absent.
func loadJSON(ctx context.Context, s Store, key string, v any) (found bool, err error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func saveJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}
