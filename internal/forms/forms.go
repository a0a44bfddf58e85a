// Package forms validates user input before it is sent anywhere. Failures are
// field-level and never reach the session manager.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is a failed rule on one input field
type FieldError struct {
	Field   string
	Message string
}

// Errors is the ordered list of field failures of one form
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

// Map groups messages by field name
func (e Errors) Map() map[string][]string {
	out := make(map[string][]string, len(e))
	for _, fe := range e {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// Field returns the first message for field, "" when it passed
func (e Errors) Field(name string) string {
	for _, fe := range e {
		if fe.Field == name {
			return fe.Message
		}
	}
	return ""
}

// Validator checks structs tagged with `validate` rules. Field names are taken
// from the json tag so they match the names the API uses.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Engine exposes the underlying validator, e.g. for gin binding
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

// Struct validates s. It returns Errors for rule failures and a plain error
// when s cannot be validated at all.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	return Translate(err)
}

// Translate turns validator errors into Errors; other errors are returned as is
func Translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "eqfield":
		return "Passwords do not match."
	default:
		return fmt.Sprintf("Failed the %q rule.", fe.Tag())
	}
}
