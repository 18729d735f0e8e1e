package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound marks lookups that miss or are not owned by the caller.
	// Ownership failures deliberately share this marker so responses never
	// reveal whether a session exists for another user.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed or unsupported client input.
	ErrValidation = errors.New("validation error")
	// ErrStorage marks database or filesystem persistence failures.
	ErrStorage = errors.New("storage error")
	// ErrUpstream marks failures in best-effort external collaborators
	// such as the mail relay. Callers log these and move on.
	ErrUpstream = errors.New("upstream error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later status classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStorage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a tagged error to the response code the API layer writes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
