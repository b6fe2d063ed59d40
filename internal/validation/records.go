package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

// RecordValidator checks ledger records and approval documents against
// their struct tags. The entity tag is bound to the configured allow-list.
type RecordValidator struct {
	validate *validator.Validate
	entities map[string]struct{}
}

// FieldError is one failed field of a validated value.
type FieldError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewRecordValidator creates a validator accepting the given entities.
func NewRecordValidator(entities []string) *RecordValidator {
	v := &RecordValidator{
		validate: validator.New(),
		entities: make(map[string]struct{}, len(entities)),
	}
	for _, e := range entities {
		v.entities[e] = struct{}{}
	}

	v.validate.RegisterValidation("entity", v.isEntity)
	v.validate.RegisterValidation("period_year", isPeriodYear)
	v.validate.RegisterValidation("period_month", isPeriodMonth)
	return v
}

// Record validates a single record.
func (v *RecordValidator) Record(r domain.Record) error {
	return v.check(-1, r)
}

// Records validates every record and reports all failing fields at once.
func (v *RecordValidator) Records(records []domain.Record) error {
	var failures []FieldError
	for i, r := range records {
		failures = append(failures, v.fieldErrors(i, r)...)
	}
	return v.toError(failures, len(records))
}

// Approval validates an approval document.
func (v *RecordValidator) Approval(a domain.Approval) error {
	return v.check(-1, a)
}

func (v *RecordValidator) check(index int, value interface{}) error {
	return v.toError(v.fieldErrors(index, value), 1)
}

func (v *RecordValidator) fieldErrors(index int, value interface{}) []FieldError {
	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Index: index, Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Index: index, Field: fe.Field(), Message: formatFieldError(fe)})
	}
	return out
}

func (v *RecordValidator) toError(failures []FieldError, checked int) error {
	if len(failures) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(failures))
	for i, f := range failures {
		if i == 5 {
			msgs = append(msgs, fmt.Sprintf("and %d more", len(failures)-i))
			break
		}
		if f.Index >= 0 {
			msgs = append(msgs, fmt.Sprintf("record %d: %s", f.Index, f.Message))
		} else {
			msgs = append(msgs, f.Message)
		}
	}
	return apperrors.NewAppValidationError(strings.Join(msgs, "; "), nil).
		WithContext("failures", len(failures)).
		WithContext("checked", checked).
		WithContext("fields", failures)
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "entity":
		return fmt.Sprintf("%s %q is not an allow-listed entity", field, fe.Value())
	case "period_year":
		return fmt.Sprintf("%s %q must be a four digit year", field, fe.Value())
	case "period_month":
		return fmt.Sprintf("%s %q must be a zero-padded month", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func (v *RecordValidator) isEntity(fl validator.FieldLevel) bool {
	if len(v.entities) == 0 {
		return true
	}
	_, ok := v.entities[fl.Field().String()]
	return ok
}

func isPeriodYear(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 4 {
		return false
	}
	y, err := strconv.Atoi(s)
	return err == nil && y >= 1990 && y <= 2999
}

func isPeriodMonth(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 2 {
		return false
	}
	m, err := strconv.Atoi(s)
	return err == nil && m >= 1 && m <= 12
}
