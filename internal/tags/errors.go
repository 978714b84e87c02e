package tags

import (
	"errors"
	"net/http"
)

// Domain errors for tag operations.
var (
	ErrValidation    = errors.New("invalid tag data")
	ErrNotFound      = errors.New("document not found")
	ErrInvalidStatus = errors.New("document is not in a taggable status")
)

// MapHTTPStatus maps tag domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidStatus) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
