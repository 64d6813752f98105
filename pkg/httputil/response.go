package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/logger"
	"github.com/bookineo/bookineo/pkg/validator"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// Response is the JSON envelope every API endpoint returns.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error branch of Response.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encoding failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the standard envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteError writes the envelope for err. AppErrors keep their code and
// message; bare sentinels are mapped; anything else is a logged 500.
// The request-scoped logger is preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = fromSentinel(err)
	}

	if appErr.Status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, appErr.Status, Response{
		Error: &ErrorResponse{
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}

func fromSentinel(err error) *apperrors.AppError {
	mapped := func(code, message string) *apperrors.AppError {
		return &apperrors.AppError{Code: code, Message: message, Status: apperrors.HTTPStatus(err), Err: err}
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return mapped("NOT_FOUND", "resource not found")
	case errors.Is(err, apperrors.ErrAlreadyExists):
		return mapped("ALREADY_EXISTS", "resource already exists")
	case errors.Is(err, apperrors.ErrConflict):
		return mapped("CONFLICT", "conflict")
	case errors.Is(err, apperrors.ErrInvalidInput):
		return mapped("INVALID_INPUT", err.Error())
	case errors.Is(err, apperrors.ErrUnauthorized):
		return mapped("UNAUTHORIZED", "unauthorized")
	case errors.Is(err, apperrors.ErrForbidden):
		return mapped("FORBIDDEN", "forbidden")
	case errors.Is(err, apperrors.ErrGone):
		return mapped("GONE", "resource gone")
	case errors.Is(err, apperrors.ErrServiceUnavail):
		return mapped("SERVICE_UNAVAILABLE", "service unavailable")
	default:
		return apperrors.Internal(err)
	}
}

// WriteValidationError writes a 400 with per-field messages when err is a
// validator.ValidationError.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}

// DecodeJSON limits, decodes and validates the request body into dst. On
// failure it has already written the 400 and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		WriteValidationError(w, err)
		return false
	}
	return true
}

// ParseUUID validates param as a UUID. On failure it writes a 400 with code
// INVALID_PARAMETER and returns false.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "INVALID_PARAMETER",
				Message: "invalid UUID: " + param,
			},
		})
		return uuid.Nil, false
	}
	return id, true
}
