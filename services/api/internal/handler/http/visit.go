package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookineo/bookineo/pkg/httputil"
	"github.com/bookineo/bookineo/pkg/middleware"
	"github.com/bookineo/bookineo/pkg/pagination"
	"github.com/bookineo/bookineo/services/api/internal/service"
)

// VisitHandler serves /api/v1/boxes/{id}/visits.
type VisitHandler struct {
	service *service.VisitService
	logger  *slog.Logger
}

func NewVisitHandler(svc *service.VisitService, logger *slog.Logger) *VisitHandler {
	return &VisitHandler{service: svc, logger: logger}
}

// RecordVisitRequest is the body of POST /boxes/{id}/visits. A missing
// rating means the default.
type RecordVisitRequest struct {
	Rating  int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// List handles GET /api/v1/boxes/{id}/visits?page=&per_page=.
func (h *VisitHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	page, err := h.service.List(r.Context(), id.String(), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, page)
}

// Record handles POST /api/v1/boxes/{id}/visits.
func (h *VisitHandler) Record(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req RecordVisitRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	visit, err := h.service.Record(r.Context(), middleware.UserIDFromContext(r.Context()), id.String(), service.RecordVisitInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, visit)
}

// Mine handles GET /api/v1/boxes/{id}/visits/me and returns the caller's
// most recent visit.
func (h *VisitHandler) Mine(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	visit, err := h.service.Latest(r.Context(), middleware.UserIDFromContext(r.Context()), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, visit)
}
