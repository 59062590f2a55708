// Package errors renders RFC 7807 problem details for the HTTP API.
package errors

import (
	"fmt"
	"net/http"
)

// ProblemDetail is an RFC 7807 problem. It doubles as an error so handlers can
// return it through the same path as domain errors.
type ProblemDetail struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

// WithDetail returns a copy with the given detail message.
func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

// WithExtension returns a copy with one more extension member. The receiver's map
// is never mutated, so package-level templates stay clean.
func (p ProblemDetail) WithExtension(key string, value any) ProblemDetail {
	ext := make(map[string]any, len(p.Extensions)+1)
	for k, v := range p.Extensions {
		ext[k] = v
	}
	ext[key] = value
	p.Extensions = ext
	return p
}

const (
	TypeValidation        = "/problems/validation-error"
	TypeBadRequest        = "/problems/bad-request"
	TypeNotFound          = "/problems/not-found"
	TypeInvalidTransition = "/problems/invalid-state-transition"
	TypeDuplicatePayment  = "/problems/duplicate-payment"
	TypeIdempotency       = "/problems/idempotency-conflict"
	TypeUnauthorized      = "/problems/unauthorized"
	TypeForbidden         = "/problems/forbidden"
	TypeInternal          = "/problems/internal-error"
)

var (
	ErrValidation = ProblemDetail{Type: TypeValidation, Title: "Validation Error", Status: http.StatusBadRequest}
	ErrBadRequest = ProblemDetail{Type: TypeBadRequest, Title: "Bad Request", Status: http.StatusBadRequest}
	ErrNotFound   = ProblemDetail{Type: TypeNotFound, Title: "Resource Not Found", Status: http.StatusNotFound}

	// ErrInvalidTransition is returned when a lifecycle guard rejects an action.
	ErrInvalidTransition = ProblemDetail{Type: TypeInvalidTransition, Title: "Invalid State Transition", Status: http.StatusBadRequest}
	ErrDuplicatePayment  = ProblemDetail{Type: TypeDuplicatePayment, Title: "Duplicate Payment", Status: http.StatusBadRequest}

	// ErrIdempotencyConflict means the Idempotency-Key was reused with another payload.
	ErrIdempotencyConflict = ProblemDetail{Type: TypeIdempotency, Title: "Idempotency Key Reused", Status: http.StatusConflict}

	ErrUnauthorized = ProblemDetail{Type: TypeUnauthorized, Title: "Unauthorized", Status: http.StatusUnauthorized}
	ErrForbidden    = ProblemDetail{Type: TypeForbidden, Title: "Forbidden", Status: http.StatusForbidden}
	ErrInternal     = ProblemDetail{Type: TypeInternal, Title: "Internal Server Error", Status: http.StatusInternalServerError}
)

// NewNotFoundProblem names the missing resource.
func NewNotFoundProblem(resourceType string, identifier any) ProblemDetail {
	return ErrNotFound.
		WithDetail(fmt.Sprintf("%s '%v' not found", resourceType, identifier)).
		WithExtension("resourceType", resourceType)
}
