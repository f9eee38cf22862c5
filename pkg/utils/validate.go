package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FormatValidationError turns validator errors into a field -> message map.
// Errors of any other type are reported under the "body" key.
func FormatValidationError(err error) map[string]string {
	result := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		result["body"] = err.Error()
		return result
	}

	for _, fieldErr := range validationErrors {
		field := strings.ToLower(fieldErr.Field())

		switch fieldErr.Tag() {
		case "required":
			result[field] = fmt.Sprintf("%s is required", field)
		case "min":
			result[field] = fmt.Sprintf("%s must be at least %s", field, fieldErr.Param())
		case "max":
			result[field] = fmt.Sprintf("%s must be at most %s", field, fieldErr.Param())
		case "gt":
			result[field] = fmt.Sprintf("%s must be greater than %s", field, fieldErr.Param())
		case "gte":
			result[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, fieldErr.Param())
		case "uuid", "uuid4":
			result[field] = fmt.Sprintf("%s must be a valid UUID", field)
		case "email":
			result[field] = fmt.Sprintf("%s must be a valid email", field)
		case "oneof":
			result[field] = fmt.Sprintf("%s must be one of [%s]", field, fieldErr.Param())
		default:
			result[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return result
}
