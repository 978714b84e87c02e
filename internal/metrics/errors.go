package metrics

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for metric operations.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("document not found")
)

// ValidatePeriod checks year and month bounds before any write.
func ValidatePeriod(year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month must be between 1 and 12", ErrValidation)
	}
	if year < 1900 || year > 2100 {
		return fmt.Errorf("%w: year must be between 1900 and 2100", ErrValidation)
	}
	return nil
}

// MapHTTPStatus maps metric domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
