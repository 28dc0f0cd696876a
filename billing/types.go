/*
Package billing provides the core billing and backup engine of the tractor POS.

PURPOSE:
  Everything that carries a decision lives here: computing a bill total from
  a rate and a quantity, keeping the newest-first bill history, holding the
  two tunable rates and turning the whole state into a versioned backup
  document (and back).

KEY CONCEPTS IN THIS FILE (types.go):
  - Settings: the two rates (per acre for tractor work, per hour for blade work)
  - BillInput: what the operator types into the form
  - BillRecord: a saved bill, with total and amount due frozen at save time
  - BackupDocument: the export/import container

DESIGN PRINCIPLES:
  1. Snapshots: a saved bill never changes when the rates change later
  2. Wire compatibility: JSON field names match the stored blobs and backup files
  3. Explicit handles: stores are passed in, never reached through globals

USAGE:
  engine := billing.NewEngine(store.NewTxMemory())
  bill, err := engine.Bills.Save(ctx, billing.BillInput{
      CustomerName: "Silva",
      WorkType:     billing.WorkTractor,
      Acreage:      "2.5",
  })

SEE ALSO:
  - calculator.go: total and amount due
  - bills.go: bill history
  - settings.go: rate settings
  - backup.go: export, import, restore, clear
*/
package billing

// =============================================================================
// WORK TYPE
// =============================================================================

// WorkType identifies how a job is charged.
type WorkType string

const (
	WorkTractor WorkType = "tractor" // charged per acre
	WorkBlade   WorkType = "blade"   // charged per hour
)

// Valid reports whether w is one of the known work types.
func (w WorkType) Valid() bool {
	return w == WorkTractor || w == WorkBlade
}

// Label is the human readable name used on receipts and lists.
func (w WorkType) Label() string {
	switch w {
	case WorkTractor:
		return "Tractor (4WD)"
	case WorkBlade:
		return "Blade"
	default:
		return string(w)
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

const (
	DefaultRatePerAcre = 5000
	DefaultRatePerHour = 3000
)

// Settings holds the rates applied to new bills.
type Settings struct {
	RatePerAcre float64 `json:"ratePerAcre" validate:"gte=0"`
	RatePerHour float64 `json:"ratePerHour" validate:"gte=0"`
}

// DefaultSettings returns the rates used before the operator changes anything.
func DefaultSettings() Settings {
	return Settings{RatePerAcre: DefaultRatePerAcre, RatePerHour: DefaultRatePerHour}
}

// RateFor returns the rate that applies to the given work type (0 if unknown).
func (s Settings) RateFor(w WorkType) float64 {
	switch w {
	case WorkTractor:
		return s.RatePerAcre
	case WorkBlade:
		return s.RatePerHour
	default:
		return 0
	}
}

// =============================================================================
// BILLS
// =============================================================================

// BillInput is the unsaved form data for one job.
// Quantities and payments are kept as the strings the operator typed.
type BillInput struct {
	CustomerName string   `json:"customerName"`
	PhoneNumber  string   `json:"phoneNumber"`
	WorkType     WorkType `json:"workType"`
	Acreage      string   `json:"acreage"`
	Hours        string   `json:"hours"`
	AmountPaid   string   `json:"amountPaid"`
	CustomDate   string   `json:"customDate"`
}

// Quantity returns the quantity string relevant to the work type.
func (in BillInput) Quantity() string {
	switch in.WorkType {
	case WorkTractor:
		return in.Acreage
	case WorkBlade:
		return in.Hours
	default:
		return ""
	}
}

// BillRecord is a saved bill. It is immutable once saved; the only change
// ever applied to it is deletion.
type BillRecord struct {
	ID           int64    `json:"id" validate:"gt=0"`
	CustomerName string   `json:"customerName" validate:"required"`
	PhoneNumber  string   `json:"phoneNumber"`
	WorkType     WorkType `json:"workType" validate:"oneof=tractor blade"`
	Acreage      string   `json:"acreage" validate:"omitempty,decimal"`
	Hours        string   `json:"hours" validate:"omitempty,decimal"`
	AmountPaid   string   `json:"amountPaid" validate:"omitempty,decimal"`
	CustomDate   string   `json:"customDate" validate:"required"`

	// Total and AmountDue are computed once in Save and never recomputed.
	Total     float64 `json:"total"`
	AmountDue float64 `json:"amountDue"`

	SavedDate string `json:"savedDate" validate:"required"`
}

// Input returns the form fields of the record.
func (b BillRecord) Input() BillInput {
	return BillInput{
		CustomerName: b.CustomerName,
		PhoneNumber:  b.PhoneNumber,
		WorkType:     b.WorkType,
		Acreage:      b.Acreage,
		Hours:        b.Hours,
		AmountPaid:   b.AmountPaid,
		CustomDate:   b.CustomDate,
	}
}

// Paid returns the parsed amount paid, 0 when blank or unparseable.
func (b BillRecord) Paid() float64 {
	d, ok := ParseDecimal(b.AmountPaid)
	if !ok {
		return 0
	}
	return d.InexactFloat64()
}

// =============================================================================
// BACKUP
// =============================================================================

// BackupVersion is the only backup format this engine writes.
const BackupVersion = "1.0.0"

// BackupDocument is the versioned container used for export and import.
type BackupDocument struct {
	Version    string       `json:"version"`
	ExportDate string       `json:"exportDate"`
	Settings   Settings     `json:"settings"`
	Bills      []BillRecord `json:"bills"`
}

// =============================================================================
// TIME FORMATS
// =============================================================================

const (
	// TimestampLayout is used for savedDate and exportDate (UTC, milliseconds).
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

	// CustomDateLayout is the default shape of a user-picked date and time.
	CustomDateLayout = "2006-01-02T15:04"
)
