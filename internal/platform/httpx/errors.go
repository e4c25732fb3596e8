// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Sentinel errors for domain layers without richer error types.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Handlers map their own typed errors first and fall through to this.
func RespondError(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &fieldErrs):
		RespondFieldErrors(w, fieldErrs)
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// FieldError carries field-level validation detail.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type fieldProblem struct {
	ProblemDetail
	Fields []FieldError `json:"fields"`
}

// RespondFieldErrors renders validator failures with per-field detail.
func RespondFieldErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	fields := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, FieldError{Field: fe.Field(), Reason: fe.Tag()})
	}
	JSON(w, http.StatusBadRequest, fieldProblem{
		ProblemDetail: ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
		},
		Fields: fields,
	})
}
