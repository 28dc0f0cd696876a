package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tractor-pos/billing"
	"github.com/warp/tractor-pos/billing/store"
)

// =============================================================================
// EXPORT
// =============================================================================

func TestExport_WrapsInputsVerbatim(t *testing.T) {
	e, _ := newTestEngine(t)
	settings := billing.Settings{RatePerAcre: 5500, RatePerHour: 3100}
	bills := []billing.BillRecord{{ID: 2, CustomerName: "B"}, {ID: 1, CustomerName: "A"}}

	doc := e.Backup.Export(settings, bills)

	assert.Equal(t, billing.BackupVersion, doc.Version)
	assert.Equal(t, "2026-03-10T08:30:00.000Z", doc.ExportDate)
	assert.Equal(t, settings, doc.Settings)
	assert.Equal(t, bills, doc.Bills)
}

func TestExport_EmptyHistoryIsArray(t *testing.T) {
	doc := billing.NewBackupDocument(billing.DefaultSettings(), nil, saveTime)

	var buf bytes.Buffer
	_, err := doc.WriteTo(&buf)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))
	assert.JSONEq(t, `[]`, string(fields["bills"]))
	assert.JSONEq(t, `{"ratePerAcre":5000,"ratePerHour":3000}`, string(fields["settings"]))
	assert.JSONEq(t, `"1.0.0"`, string(fields["version"]))
}

func TestWriteTo_TwoSpaceIndent(t *testing.T) {
	doc := billing.NewBackupDocument(billing.DefaultSettings(), nil, saveTime)

	var buf bytes.Buffer
	n, err := doc.WriteTo(&buf)

	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Contains(t, buf.String(), "\n  \"version\": \"1.0.0\"")
}

func TestFileName(t *testing.T) {
	doc := billing.NewBackupDocument(billing.DefaultSettings(), nil, saveTime)

	assert.Equal(t, "tractor-pos-backup-2026-03-10.json", doc.FileName())
}

func TestFileName_UnparseableDateFallsBackToToday(t *testing.T) {
	doc := billing.BackupDocument{ExportDate: "yesterday"}

	want := "tractor-pos-backup-" + time.Now().UTC().Format("2006-01-02") + ".json"
	assert.Equal(t, want, doc.FileName())
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestSnapshot_RoundTrip(t *testing.T) {
	// GIVEN: custom rates and two saved bills
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Settings.Update(ctx, billing.Settings{RatePerAcre: 5200, RatePerHour: 2800}))
	mustSave(t, e, silvaInput())
	mustSave(t, e, billing.BillInput{CustomerName: "Perera", PhoneNumber: "0770000000", WorkType: billing.WorkBlade, Hours: "1.5"})

	// WHEN: exporting and importing the written document
	doc, err := e.Backup.Snapshot(ctx)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = doc.WriteTo(&buf)
	require.NoError(t, err)

	settings, bills, err := billing.Import(buf.Bytes())

	// THEN: the same settings and bills come back in the same order
	require.NoError(t, err)
	wantSettings, err := e.Settings.Get(ctx)
	require.NoError(t, err)
	wantBills, err := e.Bills.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantSettings, settings)
	assert.Equal(t, wantBills, bills)
}

func TestRestore_KeepsFrozenTotals(t *testing.T) {
	// GIVEN: a backup taken at default rates
	e, _ := newTestEngine(t)
	ctx := context.Background()
	saved := mustSave(t, e, silvaInput())
	doc, err := e.Backup.Snapshot(ctx)
	require.NoError(t, err)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	// WHEN: rates change, the data is cleared and the backup restored
	require.NoError(t, e.Settings.Update(ctx, billing.Settings{RatePerAcre: 8000, RatePerHour: 4000}))
	require.NoError(t, e.Backup.Clear(ctx))
	settings, bills, err := billing.Import(raw)
	require.NoError(t, err)
	require.NoError(t, e.Backup.Restore(ctx, settings, bills))

	// THEN: the bill keeps its original amounts and the old rates are back
	got, ok, err := e.Bills.Get(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 12500.0, got.Total)
	assert.Equal(t, 7500.0, got.AmountDue)

	current, err := e.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, billing.DefaultSettings(), current)
}

// =============================================================================
// IMPORT
// =============================================================================

func TestImport_RejectsMalformedJSON(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"version":`, "{'a':1}"} {
		_, _, err := billing.Import([]byte(raw))

		assert.ErrorIs(t, err, billing.ErrMalformedJSON, "input %q", raw)
		var ierr *billing.ImportError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, "Failed to import database. Please check the file format.", ierr.Message())
	}
}

func TestImport_RejectsInvalidFormat(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing bills", `{"version":"1.0.0","settings":{"ratePerAcre":5000,"ratePerHour":3000}}`},
		{"missing settings", `{"version":"1.0.0","bills":[]}`},
		{"missing version", `{"settings":{},"bills":[]}`},
		{"null bills", `{"version":"1.0.0","settings":{},"bills":null}`},
		{"empty version", `{"version":"","settings":{},"bills":[]}`},
		{"top-level array", `[1,2,3]`},
		{"top-level string", `"backup"`},
		{"bills not an array", `{"version":"1.0.0","settings":{},"bills":{"id":1}}`},
		{"settings not an object", `{"version":"1.0.0","settings":"cheap","bills":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := billing.Import([]byte(tt.raw))

			assert.ErrorIs(t, err, billing.ErrInvalidBackupFormat)
			assert.True(t, billing.IsImport(err))
		})
	}
}

func TestImport_MissingBills_StoreUntouched(t *testing.T) {
	// GIVEN: a store with one bill
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustSave(t, e, silvaInput())
	before, err := e.Bills.List(ctx)
	require.NoError(t, err)

	// WHEN: importing a document without bills
	_, _, err = billing.ImportFrom(ctx, bytes.NewReader([]byte(`{"version":"1.0.0","settings":{}}`)), false)

	// THEN: the import fails and nothing changed
	require.ErrorIs(t, err, billing.ErrInvalidBackupFormat)
	after, err := e.Bills.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestImport_NestedRecordsAreTrusted(t *testing.T) {
	raw := `{"version":"0.9","settings":{"ratePerAcre":1},"bills":[{"id":7,"customerName":"","total":99}]}`

	settings, bills, err := billing.Import([]byte(raw))

	require.NoError(t, err)
	assert.Equal(t, 1.0, settings.RatePerAcre)
	assert.Zero(t, settings.RatePerHour)
	require.Len(t, bills, 1)
	assert.Equal(t, int64(7), bills[0].ID)
	assert.Equal(t, 99.0, bills[0].Total)
}

func TestImport_EmptyBills(t *testing.T) {
	_, bills, err := billing.Import([]byte(`{"version":"1.0.0","settings":{},"bills":[]}`))

	require.NoError(t, err)
	assert.NotNil(t, bills)
	assert.Empty(t, bills)
}

func TestImport_IgnoresBadExportDate(t *testing.T) {
	raw := `{"version":"1.0.0","exportDate":12,"settings":{},"bills":[]}`

	_, _, err := billing.Import([]byte(raw))

	assert.NoError(t, err)
}

// =============================================================================
// STRICT IMPORT
// =============================================================================

func TestImportStrict_AcceptsExport(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustSave(t, e, silvaInput())
	mustSave(t, e, billing.BillInput{CustomerName: "Perera", WorkType: billing.WorkBlade, Hours: "2"})
	doc, err := e.Backup.Snapshot(ctx)
	require.NoError(t, err)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	_, bills, err := billing.ImportStrict(raw)

	require.NoError(t, err)
	assert.Len(t, bills, 2)
}

func TestImportStrict_ReportsFieldErrors(t *testing.T) {
	raw := `{
		"version": "1.0.0",
		"settings": {"ratePerAcre": -1, "ratePerHour": 3000},
		"bills": [
			{"id": 1, "customerName": "Ok", "workType": "tractor", "acreage": "2", "customDate": "2026-03-01T10:00", "savedDate": "2026-03-01T10:00:00.000Z"},
			{"id": 0, "customerName": "", "workType": "plough", "customDate": "2026-03-01T10:00", "savedDate": "2026-03-01T10:00:00.000Z"},
			{"id": 3, "customerName": "Blade", "workType": "blade", "hours": "0", "amountPaid": "lots", "customDate": "x", "savedDate": "y"}
		]
	}`

	_, _, err := billing.ImportStrict([]byte(raw))

	require.ErrorIs(t, err, billing.ErrInvalidBackupFormat)
	var ierr *billing.ImportError
	require.ErrorAs(t, err, &ierr)

	rules := make(map[string]string)
	for _, f := range ierr.Fields {
		rules[f.Field] = f.Rule
		assert.NotEmpty(t, f.Message)
	}
	assert.Equal(t, "gte", rules["settings.ratePerAcre"])
	assert.Equal(t, "gt", rules["bills[1].id"])
	assert.Equal(t, "required", rules["bills[1].customerName"])
	assert.Equal(t, "oneof", rules["bills[1].workType"])
	assert.Equal(t, "positive_quantity", rules["bills[2].hours"])
	assert.Equal(t, "decimal", rules["bills[2].amountPaid"])
	assert.NotContains(t, rules, "bills[0].acreage")
	assert.Len(t, ierr.Fields, 6)
}

func TestImportStrict_StillRejectsMissingSections(t *testing.T) {
	_, _, err := billing.ImportStrict([]byte(`{"version":"1.0.0","bills":[]}`))

	var ierr *billing.ImportError
	require.ErrorAs(t, err, &ierr)
	assert.ErrorIs(t, err, billing.ErrInvalidBackupFormat)
	assert.Empty(t, ierr.Fields)
}

// =============================================================================
// IMPORT FROM READER
// =============================================================================

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestImportFrom_UnreadableSource(t *testing.T) {
	_, _, err := billing.ImportFrom(context.Background(), brokenReader{}, false)

	require.ErrorIs(t, err, billing.ErrUnreadableSource)
	var ierr *billing.ImportError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "Failed to read the file.", ierr.Message())
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestImportFrom_CancelledRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := billing.ImportFrom(ctx, pr, false)

	assert.ErrorIs(t, err, billing.ErrUnreadableSource)
	assert.ErrorIs(t, err, context.Canceled)

	// the pending read is released by closing the source
	_, err = pw.Write([]byte("{}"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestImportFrom_Strict(t *testing.T) {
	raw := `{"version":"1.0.0","settings":{"ratePerAcre":5000,"ratePerHour":3000},"bills":[{"id":5}]}`

	_, bills, err := billing.ImportFrom(context.Background(), bytes.NewBufferString(raw), false)
	require.NoError(t, err)
	assert.Len(t, bills, 1)

	_, _, err = billing.ImportFrom(context.Background(), bytes.NewBufferString(raw), true)
	assert.ErrorIs(t, err, billing.ErrInvalidBackupFormat)
}

// =============================================================================
// RESTORE / CLEAR
// =============================================================================

// failingBillsTx fails any write of the bill history inside a transaction.
type failingBillsTx struct {
	*store.TxMemory
}

func (f failingBillsTx) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	return f.TxMemory.WithTx(ctx, func(tx billing.Store) error {
		return fn(failingBillsStore{Store: tx})
	})
}

type failingBillsStore struct {
	billing.Store
}

func (f failingBillsStore) Put(ctx context.Context, key string, value []byte) error {
	if key == billing.KeyBillHistory {
		return errors.New("write failed")
	}
	return f.Store.Put(ctx, key, value)
}

func TestRestore_RollsBackOnFailure(t *testing.T) {
	// GIVEN: stored settings and one bill behind a store that fails history writes in a tx
	kv := store.NewTxMemory()
	e := billing.NewEngine(failingBillsTx{TxMemory: kv}, billing.WithClock(fixedClock(saveTime)))
	ctx := context.Background()
	mustSave(t, e, silvaInput())

	// WHEN: restoring a different pair
	err := e.Backup.Restore(ctx, billing.Settings{RatePerAcre: 1, RatePerHour: 1}, []billing.BillRecord{{ID: 9}})

	// THEN: neither slot changed
	require.Error(t, err)
	settings, err := e.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, billing.DefaultSettings(), settings)
	count, err := e.Bills.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClear(t *testing.T) {
	e, kv := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Settings.Update(ctx, billing.Settings{RatePerAcre: 7000, RatePerHour: 100}))
	mustSave(t, e, silvaInput())

	require.NoError(t, e.Backup.Clear(ctx))

	assert.Zero(t, kv.Keys())
	settings, err := e.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, billing.DefaultSettings(), settings)
	bills, err := e.Bills.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestClear_EmptyStore(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.NoError(t, e.Backup.Clear(context.Background()))
}
