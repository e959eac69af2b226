package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMissingField is returned when a required request field is absent.
var ErrMissingField = errors.New("missing required field")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError reports the request fields that failed validation, by JSON name.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, strings.Join(e.Fields, ", "))
}

func (e *FieldError) Unwrap() error {
	return ErrMissingField
}

// CreateRecordRequest is the body of POST /weather. Pointers distinguish an
// absent field from an empty string: presence is required, content is not checked.
type CreateRecordRequest struct {
	Date     *string `json:"date" validate:"required"`
	Location *string `json:"location" validate:"required"`
	Notes    *string `json:"notes"`
}

// NotesOrEmpty returns the notes value, defaulting to "" when absent or null.
func (r CreateRecordRequest) NotesOrEmpty() string {
	if r.Notes == nil {
		return ""
	}
	return *r.Notes
}

// ValidateCreateRecord checks that date and location are present. Values are
// not inspected: any string, including "", is accepted.
func ValidateCreateRecord(req CreateRecordRequest) error {
	return Struct(req)
}

// Struct runs tag validation on v and converts failures into *FieldError.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &FieldError{Fields: fields}
}
