package billing

import (
	"context"
	"fmt"
)

// SettingsStore holds the singleton Settings record.
// It never validates: zero or negative rates are stored as given.
type SettingsStore struct {
	store Store
}

func NewSettingsStore(store Store) *SettingsStore {
	return &SettingsStore{store: store}
}

// Get returns the stored settings, or the defaults when none were saved yet.
// On a decode failure the defaults are returned together with the error.
func (s *SettingsStore) Get(ctx context.Context) (Settings, error) {
	return getSettings(ctx, s.store)
}

// Update replaces the whole record. Callers merge partial edits themselves.
func (s *SettingsStore) Update(ctx context.Context, settings Settings) error {
	return saveJSON(ctx, s.store, KeySettings, settings)
}

// Reset restores the default rates.
func (s *SettingsStore) Reset(ctx context.Context) error {
	return s.Update(ctx, DefaultSettings())
}

func getSettings(ctx context.Context, store Store) (Settings, error) {
	var settings Settings
	found, err := loadJSON(ctx, store, KeySettings, &settings)
	if err != nil {
		return DefaultSettings(), fmt.Errorf("settings: %w", err)
	}
	if !found {
		return DefaultSettings(), nil
	}
	return settings, nil
}
