package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookineo/bookineo/pkg/httputil"
	"github.com/bookineo/bookineo/pkg/middleware"
	"github.com/bookineo/bookineo/services/api/internal/service"
)

// BoxHandler serves /api/v1/boxes.
type BoxHandler struct {
	service        *service.BoxService
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewBoxHandler(svc *service.BoxService, maxUploadBytes int64, logger *slog.Logger) *BoxHandler {
	return &BoxHandler{service: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// CreateBoxRequest is the body of POST /boxes.
type CreateBoxRequest struct {
	Name        string   `json:"name" validate:"required,max=120"`
	Description string   `json:"description" validate:"max=2000"`
	Latitude    *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	ImageKey    string   `json:"image_key"`
}

// UpdateBoxRequest is the body of PATCH /boxes/{id}.
type UpdateBoxRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	ImageKey    *string  `json:"image_key"`
}

// CountResponse is the body of GET /boxes/count.
type CountResponse struct {
	OwnerID string `json:"owner_id"`
	Count   int    `json:"count"`
}

// List handles GET /api/v1/boxes.
func (h *BoxHandler) List(w http.ResponseWriter, r *http.Request) {
	boxes, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, boxes)
}

// ListByUser handles GET /api/v1/users/{id}/boxes.
func (h *BoxHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	boxes, err := h.service.ListByCreator(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, boxes)
}

// Count handles GET /api/v1/boxes/count?owner_id=.
func (h *BoxHandler) Count(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")

	n, err := h.service.CountByOwner(r.Context(), ownerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, CountResponse{OwnerID: ownerID, Count: n})
}

// Get handles GET /api/v1/boxes/{id}.
func (h *BoxHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	box, err := h.service.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, box)
}

// Create handles POST /api/v1/boxes.
func (h *BoxHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBoxRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	box, err := h.service.Create(r.Context(), middleware.UserIDFromContext(r.Context()), service.CreateBoxInput{
		Name:        req.Name,
		Description: req.Description,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		ImageKey:    req.ImageKey,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, box)
}

// Update handles PATCH /api/v1/boxes/{id}.
func (h *BoxHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateBoxRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	box, err := h.service.Update(r.Context(), middleware.UserIDFromContext(r.Context()), id.String(), service.UpdateBoxInput{
		Name:        req.Name,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		ImageKey:    req.ImageKey,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, box)
}

// Delete handles DELETE /api/v1/boxes/{id}.
func (h *BoxHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles POST /api/v1/boxes/images. The multipart form carries
// the image in "file" and the box name, used for the object key, in "name".
func (h *BoxHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	file, header, ok := multipartFile(w, r, h.maxUploadBytes)
	if !ok {
		return
	}
	defer file.Close()

	res, err := h.service.UploadImage(r.Context(), r.FormValue("name"), file, header.Size)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, res)
}
