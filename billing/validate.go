package billing

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	schemaOnce sync.Once
	schema     *validator.Validate
)

// schemaValidator returns the validator used by ImportStrict. Field names in
// its errors are the JSON names, so they match what is in the backup file.
func schemaValidator() *validator.Validate {
	schemaOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// Registration only fails on an empty tag or nil func.
		_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
			_, ok := ParseDecimal(fl.Field().String())
			return ok
		})
		v.RegisterStructValidation(validateBillQuantity, BillRecord{})
		schema = v
	})
	return schema
}

// validateBillQuantity requires the quantity of the record's own work type
// to be a positive decimal. The other quantity field is left alone.
func validateBillQuantity(sl validator.StructLevel) {
	bill := sl.Current().Interface().(BillRecord)

	var qty, name, structName string
	switch bill.WorkType {
	case WorkTractor:
		qty, name, structName = bill.Acreage, "acreage", "Acreage"
	case WorkBlade:
		qty, name, structName = bill.Hours, "hours", "Hours"
	default:
		return // reported by oneof
	}

	if d, ok := ParseDecimal(qty); !ok || !d.IsPositive() {
		sl.ReportError(qty, name, structName, "positive_quantity", "")
	}
}

// ValidateBackup checks settings and bills against the backup schema and
// returns every violation found. An empty result means the data is valid.
func ValidateBackup(settings Settings, bills []BillRecord) []FieldError {
	v := schemaValidator()

	var out []FieldError
	if err := v.Struct(settings); err != nil {
		out = append(out, toFieldErrors("settings", err)...)
	}
	for i, bill := range bills {
		if err := v.Struct(bill); err != nil {
			out = append(out, toFieldErrors(fmt.Sprintf("bills[%d]", i), err)...)
		}
	}
	return out
}

func toFieldErrors(prefix string, err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: prefix, Rule: "invalid", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   prefix + "." + fe.Field(),
			Rule:    fe.Tag(),
			Message: ruleMessage(fe),
		})
	}
	return out
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "decimal":
		return "must be a decimal number"
	case "positive_quantity":
		return "must be a positive number for this work type"
	default:
		return "failed rule " + fe.Tag()
	}
}
