// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/tractor-pos/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(key)
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(key, value)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Keys returns the number of stored keys.
func (m *Memory) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Values are copied in and out so callers can't alias stored bytes.
func (m *Memory) getLocked(key string) ([]byte, bool, error) {
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) putLocked(key string, value []byte) {
	m.values[key] = append([]byte(nil), value...)
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(billing.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.values = snapshot
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() map[string][]byte {
	cp := make(map[string][]byte, len(tm.values))
	for k, v := range tm.values {
		cp[k] = v
	}
	return cp
}

// txMemoryView writes straight into the parent; the parent lock is already held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Get(_ context.Context, key string) ([]byte, bool, error) {
	return tv.parent.getLocked(key)
}

func (tv *txMemoryView) Put(_ context.Context, key string, value []byte) error {
	tv.parent.putLocked(key, value)
	return nil
}

func (tv *txMemoryView) Delete(_ context.Context, key string) error {
	delete(tv.parent.values, key)
	return nil
}
