package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
)

// ErrorEnvelope mirrors httputil.Response's error branch as returned by the
// Bookineo API.
type ErrorEnvelope struct {
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

// ParseResponseError reads a non-2xx response and translates it into an
// AppError. Structured envelopes keep their code and message; anything else
// becomes a generic error carrying the status and raw body. The body is
// consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var envelope ErrorEnvelope
	if json.Unmarshal(bodyBytes, &envelope) == nil && envelope.Error != nil {
		return mapEnvelope(resp.StatusCode, envelope.Error.Code, envelope.Error.Message)
	}

	return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(bodyBytes))
}

// mapEnvelope rebuilds the AppError the server produced so callers can use
// errors.Is against the shared sentinels.
func mapEnvelope(status int, code, message string) error {
	appErr := &apperrors.AppError{Code: code, Message: message, Status: status}

	switch {
	case status == http.StatusNotFound:
		appErr.Err = apperrors.ErrNotFound
	case status == http.StatusBadRequest:
		appErr.Err = apperrors.ErrInvalidInput
	case status == http.StatusConflict && code == "ALREADY_EXISTS":
		appErr.Err = apperrors.ErrAlreadyExists
	case status == http.StatusConflict:
		appErr.Err = apperrors.ErrConflict
	case status == http.StatusUnauthorized:
		appErr.Err = apperrors.ErrUnauthorized
	case status == http.StatusForbidden:
		appErr.Err = apperrors.ErrForbidden
	case status == http.StatusGone:
		appErr.Err = apperrors.ErrGone
	case status == http.StatusServiceUnavailable:
		appErr.Err = apperrors.ErrServiceUnavail
	case status >= 500:
		appErr.Err = apperrors.ErrInternal
	}

	return appErr
}

// IsClientError reports whether status is a 4xx.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
