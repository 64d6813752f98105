package http

import (
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// BlobOpener reads stored objects by key.
type BlobOpener interface {
	Open(key string) (io.ReadSeeker, string, bool)
}

// MediaHandler serves objects from an in-process store at /media/{key}.
func MediaHandler(blobs BlobOpener) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(path.Clean("/"+chi.URLParam(r, "*")), "/")
		if key == "" {
			http.NotFound(w, r)
			return
		}

		body, contentType, ok := blobs.Open(key)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		http.ServeContent(w, r, path.Base(key), time.Time{}, body)
	})
}
