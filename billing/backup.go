/*
backup.go - Backup codec (export, import, restore, clear)

PURPOSE:
  Turns the whole engine state into a versioned JSON document and back.

EXPORT:
  Wraps the version tag, the current timestamp and the two inputs verbatim.
  No filtering, no transformation.

IMPORT:
  1. Not JSON at all                          -> ErrMalformedJSON
  2. version, settings or bills absent/null   -> ErrInvalidBackupFormat
  3. Otherwise settings and bills are returned exactly as found

  Only top-level presence is checked. Nested bill records are trusted;
  ImportStrict adds a field-level schema check on top.
  The version is recorded but not branched on: there is one format.

  Import never writes. Restore applies an imported pair atomically, and a
  failed import therefore leaves the stored data untouched.

CLEAR:
  Removes both stored slots. No implicit backup is taken; callers offer the
  export path first.

FILE FORMAT:
  {
    "version": "1.0.0",
    "exportDate": "2026-10-18T09:30:00.000Z",
    "settings": {"ratePerAcre": 5000, "ratePerHour": 3000},
    "bills": [ ... newest first ... ]
  }

SEE ALSO:
  - validate.go: schema check used by ImportStrict
  - store.go: TxStore used for atomic restore and clear
*/
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Backup exports and restores the state behind a settings and bill store.
type Backup struct {
	store TxStore
	bills *BillStore
	now   func() time.Time
}

// NewBackup creates a backup codec over store. bills must be the BillStore
// that writes to the same store, so restores are serialized with saves.
func NewBackup(store TxStore, bills *BillStore) *Backup {
	return &Backup{store: store, bills: bills, now: time.Now}
}

// =============================================================================
// EXPORT
// =============================================================================

// NewBackupDocument builds a backup document stamped with exportedAt.
func NewBackupDocument(settings Settings, bills []BillRecord, exportedAt time.Time) BackupDocument {
	if bills == nil {
		bills = []BillRecord{}
	}
	return BackupDocument{
		Version:    BackupVersion,
		ExportDate: exportedAt.UTC().Format(TimestampLayout),
		Settings:   settings,
		Bills:      bills,
	}
}

// Export wraps settings and bills into a document stamped with the current time.
func (bk *Backup) Export(settings Settings, bills []BillRecord) BackupDocument {
	return NewBackupDocument(settings, bills, bk.now())
}

// Snapshot exports the currently stored settings and history.
func (bk *Backup) Snapshot(ctx context.Context) (BackupDocument, error) {
	bk.bills.mu.Lock()
	defer bk.bills.mu.Unlock()

	settings, err := getSettings(ctx, bk.store)
	if err != nil {
		return BackupDocument{}, err
	}
	bills, err := loadBills(ctx, bk.store)
	if err != nil {
		return BackupDocument{}, err
	}
	return bk.Export(settings, bills), nil
}

// FileName is the download name of the document, e.g.
// tractor-pos-backup-2026-10-18.json.
func (d BackupDocument) FileName() string {
	day := time.Now().UTC().Format("2006-01-02")
	if t, err := time.Parse(time.RFC3339, d.ExportDate); err == nil {
		day = t.UTC().Format("2006-01-02")
	}
	return "tractor-pos-backup-" + day + ".json"
}

// WriteTo writes the document as two-space indented JSON.
func (d BackupDocument) WriteTo(w io.Writer) (int64, error) {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to encode backup: %w", err)
	}
	n, err := w.Write(raw)
	return int64(n), err
}

// =============================================================================
// IMPORT
// =============================================================================

var requiredBackupFields = []string{"version", "settings", "bills"}

// Import parses raw as a backup document and returns its settings and bills
// unmodified. It never touches any store.
func Import(raw []byte) (Settings, []BillRecord, error) {
	doc, err := decodeBackup(raw)
	if err != nil {
		return Settings{}, nil, err
	}
	return doc.Settings, doc.Bills, nil
}

// ImportStrict is Import plus a field-level schema check of the settings and
// every bill. Violations are reported together in ImportError.Fields.
func ImportStrict(raw []byte) (Settings, []BillRecord, error) {
	settings, bills, err := Import(raw)
	if err != nil {
		return Settings{}, nil, err
	}
	if fields := ValidateBackup(settings, bills); len(fields) > 0 {
		return Settings{}, nil, &ImportError{Cause: ErrInvalidBackupFormat, Fields: fields}
	}
	return settings, bills, nil
}

// ImportFrom reads the whole of r and imports it. The read is the only
// asynchronous step: it either yields the content or fails with
// ErrUnreadableSource (cancelling ctx counts as a read failure).
//
// If ctx is cancelled while the read is pending and r is an io.Closer, r is
// closed so the reading goroutine can return. A plain io.Reader that never
// returns keeps that goroutine alive until it does; the caller owns it.
func ImportFrom(ctx context.Context, r io.Reader, strict bool) (Settings, []BillRecord, error) {
	raw, err := readAll(ctx, r)
	if err != nil {
		return Settings{}, nil, newImportError(ErrUnreadableSource, err)
	}
	if strict {
		return ImportStrict(raw)
	}
	return Import(raw)
}

type readResult struct {
	raw []byte
	err error
}

func readAll(ctx context.Context, r io.Reader) ([]byte, error) {
	done := make(chan readResult, 1)
	go func() {
		raw, err := io.ReadAll(r)
		done <- readResult{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		if c, ok := r.(io.Closer); ok {
			c.Close()
		}
		return nil, ctx.Err()
	case res := <-done:
		return res.raw, res.err
	}
}

func decodeBackup(raw []byte) (*BackupDocument, error) {
	if !json.Valid(raw) {
		var probe any
		return nil, newImportError(ErrMalformedJSON, json.Unmarshal(raw, &probe))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, newImportError(ErrInvalidBackupFormat, err)
	}

	var missing []string
	for _, name := range requiredBackupFields {
		v, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, newImportError(ErrInvalidBackupFormat,
			fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}

	doc := &BackupDocument{}
	if err := json.Unmarshal(fields["version"], &doc.Version); err != nil {
		return nil, newImportError(ErrInvalidBackupFormat, fmt.Errorf("version: %w", err))
	}
	if doc.Version == "" {
		return nil, newImportError(ErrInvalidBackupFormat, fmt.Errorf("empty version"))
	}
	if raw, ok := fields["exportDate"]; ok {
		// exportDate is informational; a wrong type is ignored.
		_ = json.Unmarshal(raw, &doc.ExportDate)
	}
	if err := json.Unmarshal(fields["settings"], &doc.Settings); err != nil {
		return nil, newImportError(ErrInvalidBackupFormat, fmt.Errorf("settings: %w", err))
	}
	if err := json.Unmarshal(fields["bills"], &doc.Bills); err != nil {
		return nil, newImportError(ErrInvalidBackupFormat, fmt.Errorf("bills: %w", err))
	}
	return doc, nil
}

// =============================================================================
// RESTORE / CLEAR
// =============================================================================

// Restore replaces the stored settings and history with the given pair in a
// single transaction. Either both slots are written or neither is.
func (bk *Backup) Restore(ctx context.Context, settings Settings, bills []BillRecord) error {
	bk.bills.mu.Lock()
	defer bk.bills.mu.Unlock()

	return bk.store.WithTx(ctx, func(tx Store) error {
		if err := saveJSON(ctx, tx, KeySettings, settings); err != nil {
			return err
		}
		return replaceBills(ctx, tx, bills)
	})
}

// Clear erases all stored state. Settings read back as defaults and the
// history as empty afterwards. This cannot be undone.
func (bk *Backup) Clear(ctx context.Context) error {
	bk.bills.mu.Lock()
	defer bk.bills.mu.Unlock()

	return bk.store.WithTx(ctx, func(tx Store) error {
		if err := tx.Delete(ctx, KeySettings); err != nil {
			return fmt.Errorf("failed to clear settings: %w", err)
		}
		if err := tx.Delete(ctx, KeyBillHistory); err != nil {
			return fmt.Errorf("failed to clear bill history: %w", err)
		}
		return nil
	})
}
