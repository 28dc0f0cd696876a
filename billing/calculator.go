/*
calculator.go - Rate calculator

PURPOSE:
  Maps a work record to a monetary total and an outstanding amount due.

RULES:
  tractor: total = acreage × ratePerAcre
  blade:   total = hours × ratePerHour
  due:     total − amountPaid

  A blank or unparseable quantity gives a total of 0, and a blank or
  unparseable payment counts as 0. The form still renders a preview with an
  implicit zero instead of failing. Negative quantities are not rejected here.

  A quantity or payment whose value does not fit in a float64 (for example
  "1e400") is treated the same way as an unparseable one.

PRECISION:
  Arithmetic runs on decimal.Decimal and is converted to float64 only when
  the result leaves the calculator. Rounding to two places happens at
  presentation time (FormatAmount).
*/
package billing

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal parses a decimal string in standard notation.
// Empty strings and strings with leading or trailing whitespace are rejected.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	if s == "" || strings.TrimSpace(s) != s {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseOrZero implements the "blank/unparseable → 0" policy.
func parseOrZero(s string) decimal.Decimal {
	d, ok := ParseDecimal(s)
	if !ok {
		return decimal.Zero
	}
	if f, ok := toFloat(d); !ok || f == 0 {
		return decimal.Zero
	}
	return d
}

// toFloat converts d to float64 and reports whether the result is finite.
// A non-finite result comes back as 0. Magnitudes far outside the float64
// range are decided from the digit count without rendering d.
func toFloat(d decimal.Decimal) (float64, bool) {
	magnitude := d.NumDigits() + int(d.Exponent())
	switch {
	case magnitude > 310:
		return 0, false
	case magnitude < -330:
		return 0, true
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func finiteOrZero(f float64) float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

// totalDecimal is the exact total before conversion to float64.
func totalDecimal(in BillInput, settings Settings) decimal.Decimal {
	if !in.WorkType.Valid() {
		return decimal.Zero
	}
	qty, ok := ParseDecimal(in.Quantity())
	if !ok {
		return decimal.Zero
	}
	total := qty.Mul(decimal.NewFromFloat(finiteOrZero(settings.RateFor(in.WorkType))))
	if f, ok := toFloat(total); !ok || f == 0 {
		return decimal.Zero
	}
	return total
}

// CalculateTotal returns the charge for in at the given rates.
func CalculateTotal(in BillInput, settings Settings) float64 {
	total, _ := toFloat(totalDecimal(in, settings))
	return total
}

// CalculateDue returns total minus the parsed amount paid.
// A non-finite total counts as 0.
func CalculateDue(total float64, amountPaid string) float64 {
	return amountDue(decimal.NewFromFloat(finiteOrZero(total)), amountPaid)
}

// amountDue subtracts the payment from total. If the difference overflows
// float64 the payment is dropped and the total alone is due.
func amountDue(total decimal.Decimal, amountPaid string) float64 {
	if due, ok := toFloat(total.Sub(parseOrZero(amountPaid))); ok {
		return due
	}
	f, _ := toFloat(total)
	return f
}

// Quote is a computed total and amount due for an unsaved bill.
type Quote struct {
	Total     float64 `json:"total"`
	AmountDue float64 `json:"amountDue"`
}

// Calculate computes the quote for in at the given rates.
func Calculate(in BillInput, settings Settings) Quote {
	total := totalDecimal(in, settings)
	f, _ := toFloat(total)
	return Quote{
		Total:     f,
		AmountDue: amountDue(total, in.AmountPaid),
	}
}

// FormatAmount renders v with exactly two decimal places.
//
// Rounding is half away from zero on the shortest decimal form of v, so
// 1.005 renders as "1.01" even though the nearest float64 lies just below
// it. NaN and ±Inf render as "0.00".
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(finiteOrZero(v)).StringFixed(2)
}
