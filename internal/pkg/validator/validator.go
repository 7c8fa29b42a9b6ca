package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Host ids double as rate-limit keys and log fields, so they stay short and printable.
var hostIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,127}$`)

// Fields whose rejected value must never be echoed back.
var sensitiveFields = []string{"secret", "password", "token"}

// Validator wraps go-playground validator
type Validator struct {
	validate *validator.Validate
}

// ValidationError is one rejected field, as returned in error details.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// New creates a validator that reports json field names and knows the hostid tag.
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("hostid", func(fl validator.FieldLevel) bool {
		return hostIDPattern.MatchString(fl.Field().String())
	})

	return &Validator{validate: v}
}

// Validate checks a struct and returns one entry per failing field, or nil.
func (v *Validator) Validate(i interface{}) []ValidationError {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Tag: "invalid", Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   echoValue(fe),
			Message: msgForTag(fe),
		})
	}
	return out
}

// echoValue renders scalar values that are safe to return to the caller.
func echoValue(fe validator.FieldError) string {
	name := strings.ToLower(fe.Field())
	for _, s := range sensitiveFields {
		if strings.Contains(name, s) {
			return ""
		}
	}
	switch fe.Kind() {
	case reflect.Slice, reflect.Map, reflect.Struct, reflect.Array, reflect.Interface, reflect.Ptr:
		return ""
	}
	return fmt.Sprintf("%v", fe.Value())
}

// sizeUnit names what min/max count for the field's kind.
func sizeUnit(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return " characters long"
	case reflect.Slice, reflect.Array, reflect.Map:
		return " items"
	default:
		return ""
	}
}

func msgForTag(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, fe.Param(), sizeUnit(fe.Kind()))
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, fe.Param(), sizeUnit(fe.Kind()))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "hostid":
		return fmt.Sprintf("%s must be a valid host identifier", field)
	default:
		return fmt.Sprintf("%s failed validation for tag: %s", field, fe.Tag())
	}
}
