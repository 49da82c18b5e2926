package inventory

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"ralph-api/internal/store"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// GetValidator returns the shared validator, reporting fields by their JSON name
func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// FormatValidationError converts validator errors into field messages
func FormatValidationError(err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &store.ValidationError{}
	for _, e := range verrs {
		out.Add(e.Field(), tagMessage(e.Tag(), e.Param()))
	}
	return out
}

// validateVar checks one attribute value against a validator tag
func validateVar(field string, value any, tag string, out *store.ValidationError) {
	if tag == "" {
		return
	}
	err := GetValidator().Var(value, tag)
	if err == nil {
		return
	}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range verrs {
			out.Add(field, tagMessage(e.Tag(), e.Param()))
		}
		return
	}
	out.Add(field, err.Error())
}

func tagMessage(tag, param string) string {
	switch tag {
	case "required":
		return msgRequired
	case "max":
		return fmt.Sprintf("Ensure this value has no more than %s characters or is at most %s.", param, param)
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters or is at least %s.", param, param)
	case "len":
		return fmt.Sprintf("Ensure this value has exactly %s characters.", param)
	case "gt":
		return fmt.Sprintf("Ensure this value is greater than %s.", param)
	case "email":
		return "Enter a valid email address."
	case "ip":
		return "Enter a valid IPv4 or IPv6 address."
	case "mac":
		return "Enter a valid MAC address."
	case "numeric":
		return "Enter a number."
	}
	return fmt.Sprintf("Invalid value (%s).", tag)
}

const (
	msgRequired      = "This field is required."
	msgInvalidName   = "Only letters, digits, underscores and hyphens are allowed."
	msgInvalidMAC    = "Enter a valid MAC address."
	msgInvalidIP     = "Enter a valid IPv4 or IPv6 address."
	msgInvalidChoice = "Not a valid choice."
)

// checkStruct runs the struct validator and merges its messages into out
func checkStruct(v any, out *store.ValidationError) {
	err := GetValidator().Struct(v)
	if err == nil {
		return
	}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range verrs {
			out.Add(e.Field(), tagMessage(e.Tag(), e.Param()))
		}
		return
	}
	out.Add("non_field_errors", err.Error())
}

// requireString records a required message when s is missing or blank
func requireString(field string, s *string, out *store.ValidationError) {
	if s == nil || strings.TrimSpace(*s) == "" {
		out.Add(field, msgRequired)
	}
}
