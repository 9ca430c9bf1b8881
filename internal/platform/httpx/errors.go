package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/crediventas/crediventas/internal/shared"
)

// fielder is implemented by errors carrying extra problem members.
type fielder interface {
	ProblemFields() map[string]any
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	WriteProblem(w, ProblemFor(err))
}

// ProblemFor builds the problem document describing err.
func ProblemFor(err error) ProblemDetail {
	p := ProblemDetail{Detail: err.Error()}
	switch {
	case errors.Is(err, shared.ErrValidation):
		p.Status, p.Title = http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, shared.ErrNotFound):
		p.Status, p.Title = http.StatusNotFound, "Not Found"
	case errors.Is(err, shared.ErrRejected):
		p.Status, p.Title = http.StatusUnprocessableEntity, "Rejected"
	case errors.Is(err, shared.ErrDuplicate):
		p.Status, p.Title = http.StatusConflict, "Duplicate"
	case errors.Is(err, shared.ErrConflict):
		p.Status, p.Title = http.StatusConflict, "Conflict"
	case errors.Is(err, context.DeadlineExceeded):
		p.Status, p.Title, p.Detail = http.StatusGatewayTimeout, "Timeout", "request timed out"
	default:
		p.Status, p.Title, p.Detail = http.StatusInternalServerError, "Internal Error", ""
	}
	if p.Status < http.StatusInternalServerError {
		var f fielder
		if errors.As(err, &f) {
			p.Extensions = f.ProblemFields()
		}
	}
	return p
}
