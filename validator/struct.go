package validator

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// messages maps validation tags to friendly error messages.
var messages = map[string]string{
	"required": "The field '%s' is required.",
	"min":      "The field '%s' must be at least %s characters long.",
	"max":      "The field '%s' must be no longer than %s characters.",
	"oneof":    "The field '%s' must be one of: %s.",
}

// Errors maps JSON field names to friendly messages.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, e[f])
	}
	return strings.Join(parts, " ")
}

// parseMessage constructs a friendly error message based on the validation tag.
func parseMessage(field string, e validator.FieldError) string {
	msg, ok := messages[e.Tag()]
	if !ok {
		return fmt.Sprintf("Field '%s' is invalid: %s", field, e.Tag())
	}
	switch strings.Count(msg, "%s") {
	case 1:
		return fmt.Sprintf(msg, field)
	case 2:
		param := e.Param()
		if e.Tag() == "oneof" {
			param = strings.ReplaceAll(param, " ", ", ")
		}
		return fmt.Sprintf(msg, field, param)
	}
	return msg
}

// ValidateStruct validates s and returns its field errors, or nil when s is valid.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(Errors, len(fieldErrs))
	for _, e := range fieldErrs {
		out[e.Field()] = parseMessage(e.Field(), e)
	}
	return out
}
