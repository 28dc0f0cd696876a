/*
errors.go - Error types for the billing engine

PURPOSE:
  All failures are reported to the caller as values. Nothing in this package
  mutates state on a failed operation.

ERROR CATEGORIES:
  1. Validation errors - a bill cannot be saved (missing name, zero total)
  2. Import errors - a backup cannot be read or understood

USAGE:
  _, err := engine.Bills.Save(ctx, input)
  if errors.Is(err, billing.ErrZeroTotal) {
      // ask for a quantity
  }

SEE ALSO:
  - bills.go: returns ValidationError
  - backup.go: returns ImportError
*/
package billing

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingCustomerName is returned when a bill is saved without a name.
	ErrMissingCustomerName = errors.New("missing customer name")

	// ErrZeroTotal is returned when no valid quantity was supplied for the
	// chosen work type, so the computed total is 0.
	ErrZeroTotal = errors.New("zero total")

	// ErrMalformedJSON is returned when backup content is not JSON at all.
	ErrMalformedJSON = errors.New("malformed json")

	// ErrInvalidBackupFormat is returned when version, settings or bills is
	// missing from an otherwise valid JSON document.
	ErrInvalidBackupFormat = errors.New("invalid backup file format")

	// ErrUnreadableSource is returned when the backup content cannot be read.
	ErrUnreadableSource = errors.New("unreadable backup source")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError is a rejected save.
type ValidationError struct {
	Reason error // ErrMissingCustomerName or ErrZeroTotal
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bill rejected: %v", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// Code is a stable machine readable identifier for the rejection.
func (e *ValidationError) Code() string {
	switch {
	case errors.Is(e.Reason, ErrMissingCustomerName):
		return "missing_customer_name"
	case errors.Is(e.Reason, ErrZeroTotal):
		return "zero_total"
	default:
		return "invalid_bill"
	}
}

// FieldError is a single schema violation found by ImportStrict.
type FieldError struct {
	Field   string `json:"field"`   // e.g. "bills[2].workType"
	Rule    string `json:"rule"`    // validator tag that failed
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Message
}

// ImportError is a rejected import. The store is untouched when one is returned.
type ImportError struct {
	Cause  error // ErrMalformedJSON, ErrInvalidBackupFormat or ErrUnreadableSource
	Err    error // underlying decoder/reader error, may be nil
	Fields []FieldError
}

func (e *ImportError) Error() string {
	var b strings.Builder
	b.WriteString("import failed: ")
	b.WriteString(e.Cause.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.String()
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *ImportError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Cause}
	}
	return []error{e.Cause, e.Err}
}

// Message is the text shown to the operator.
func (e *ImportError) Message() string {
	if errors.Is(e.Cause, ErrUnreadableSource) {
		return "Failed to read the file."
	}
	return "Failed to import database. Please check the file format."
}

func newImportError(cause, err error) *ImportError {
	return &ImportError{Cause: cause, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if err is a rejected save.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsImport returns true if err is a rejected import.
func IsImport(err error) bool {
	var ie *ImportError
	return errors.As(err, &ie)
}
