package billing

import "time"

// Engine bundles the three stores that share one persistence backend.
// It is the explicit handle passed to every caller; there is no global state.
type Engine struct {
	Settings *SettingsStore
	Bills    *BillStore
	Backup   *Backup
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now for ids, savedDate, customDate defaults and
// exportDate.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.Bills.now = now
		e.Backup.now = now
	}
}

// NewEngine wires the settings store, bill store and backup codec to store.
func NewEngine(store TxStore, opts ...Option) *Engine {
	settings := NewSettingsStore(store)
	bills := NewBillStore(store, settings)
	e := &Engine{
		Settings: settings,
		Bills:    bills,
		Backup:   NewBackup(store, bills),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
