package telegram

import (
	"errors"
	"fmt"
)

// APIError is a Bot API response with ok=false. Callers can use errors.As:
//
//	var apiErr *APIError
//	if errors.As(err, &apiErr) && apiErr.Code == 403 { ... }
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s (%d): %s", e.Method, e.Code, e.Description)
}

// IsAPIError reports whether err is an *APIError with the given code.
func IsAPIError(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
