package http

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/bookineo/bookineo/pkg/httputil"
)

const uploadField = "file"

// multipartFile reads the "file" part of a multipart request capped at
// maxBytes. On failure it writes the 400/413 and returns ok=false.
func multipartFile(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<16))
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:    "PAYLOAD_TOO_LARGE",
					Message: fmt.Sprintf("file exceeds %d bytes", maxBytes),
				},
			})
			return nil, nil, false
		}
		httputil.WriteValidationError(w, fmt.Errorf("invalid multipart body: %w", err))
		return nil, nil, false
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		httputil.WriteValidationError(w, fmt.Errorf("missing %q part", uploadField))
		return nil, nil, false
	}
	if header.Size > maxBytes {
		file.Close()
		httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    "PAYLOAD_TOO_LARGE",
				Message: fmt.Sprintf("file exceeds %d bytes", maxBytes),
			},
		})
		return nil, nil, false
	}
	return file, header, true
}
