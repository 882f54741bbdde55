package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate     = newValidator()
	indexPattern = regexp.MustCompile(`\[(\d+)\]`)
)

func newValidator() *validator.Validate {
	v := validator.New()
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
	return v
}

// ValidateStruct runs the validate tags of s and returns every violation,
// keyed by json field path (items.0.product_id).
func ValidateStruct(s interface{}) map[string][]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return map[string][]string{"_": {err.Error()}}
	}

	out := make(map[string][]string, len(vErrs))
	for _, vErr := range vErrs {
		field := fieldPath(vErr.Namespace())
		out[field] = append(out[field], message(vErr))
	}
	return out
}

func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		namespace = namespace[idx+1:]
	}
	return indexPattern.ReplaceAllString(namespace, ".$1")
}

func message(vErr validator.FieldError) string {
	field := strings.ReplaceAll(vErr.Field(), "_", " ")
	switch vErr.Tag() {
	case "required":
		return fmt.Sprintf("the %s field is required", field)
	case "email":
		return fmt.Sprintf("the %s must be a valid email address", field)
	case "max":
		return fmt.Sprintf("the %s may not be greater than %s characters", field, vErr.Param())
	case "min":
		return fmt.Sprintf("the %s must be at least %s characters", field, vErr.Param())
	case "oneof":
		return fmt.Sprintf("the selected %s is invalid; allowed: %s", field, strings.ReplaceAll(vErr.Param(), " ", ", "))
	case "eqfield":
		return fmt.Sprintf("the %s does not match", field)
	case "numeric":
		return fmt.Sprintf("the %s must be a number", field)
	default:
		return fmt.Sprintf("the %s is invalid", field)
	}
}
