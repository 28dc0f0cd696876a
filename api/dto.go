/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Bills and settings are
  sent in their stored shape (camelCase, the same shape as a backup file) so
  the front end can hand a bill straight to the print view. Response types
  add preformatted amounts for display.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Small response wrappers

VALIDATION:
  Validation is done by the billing engine, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/types.go: Stored shapes
*/
package api

import (
	"github.com/warp/tractor-pos/billing"
)

// =============================================================================
// SETTINGS
// =============================================================================

// UpdateSettingsRequest updates one or both rates. Omitted rates keep their
// current value.
type UpdateSettingsRequest struct {
	RatePerAcre *float64 `json:"ratePerAcre"`
	RatePerHour *float64 `json:"ratePerHour"`
}

// merge applies the request on top of current.
func (r UpdateSettingsRequest) merge(current billing.Settings) billing.Settings {
	if r.RatePerAcre != nil {
		current.RatePerAcre = *r.RatePerAcre
	}
	if r.RatePerHour != nil {
		current.RatePerHour = *r.RatePerHour
	}
	return current
}

// =============================================================================
// BILLS
// =============================================================================

// BillDTO is a saved bill plus display strings.
type BillDTO struct {
	billing.BillRecord
	WorkLabel     string `json:"workLabel"`
	TotalText     string `json:"totalText"`
	PaidText      string `json:"paidText"`
	AmountDueText string `json:"amountDueText"`
}

func toBillDTO(b billing.BillRecord) BillDTO {
	return BillDTO{
		BillRecord:    b,
		WorkLabel:     b.WorkType.Label(),
		TotalText:     billing.FormatAmount(b.Total),
		PaidText:      billing.FormatAmount(b.Paid()),
		AmountDueText: billing.FormatAmount(b.AmountDue),
	}
}

func toBillDTOs(bills []billing.BillRecord) []BillDTO {
	dtos := make([]BillDTO, len(bills))
	for i, b := range bills {
		dtos[i] = toBillDTO(b)
	}
	return dtos
}

// CreateBillRequest is the form data of a new bill.
type CreateBillRequest = billing.BillInput

// PreviewResponse is the live total shown while the form is being filled in.
type PreviewResponse struct {
	Total         float64 `json:"total"`
	AmountDue     float64 `json:"amountDue"`
	TotalText     string  `json:"totalText"`
	AmountDueText string  `json:"amountDueText"`
	CanSave       bool    `json:"canSave"`
}

// DeleteResponse reports whether a bill was removed.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// =============================================================================
// BACKUP / SUMMARY
// =============================================================================

// ImportResponse reports a successful restore.
type ImportResponse struct {
	Imported int              `json:"imported"`
	Settings billing.Settings `json:"settings"`
}

// SummaryDTO backs the header counter and the backup panel.
type SummaryDTO struct {
	BillCount     int     `json:"billCount"`
	RatePerAcre   float64 `json:"ratePerAcre"`
	RatePerHour   float64 `json:"ratePerHour"`
	BackupVersion string  `json:"backupVersion"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string               `json:"error"`
	Code    string               `json:"code,omitempty"`
	Details string               `json:"details,omitempty"`
	Fields  []billing.FieldError `json:"fields,omitempty"`
}
