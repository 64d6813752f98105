package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookineo/bookineo/pkg/httputil"
	"github.com/bookineo/bookineo/pkg/middleware"
	"github.com/bookineo/bookineo/services/api/internal/service"
)

// FavoriteHandler serves favorite routes under /boxes/{id} and /users/me.
type FavoriteHandler struct {
	service *service.FavoriteService
	logger  *slog.Logger
}

func NewFavoriteHandler(svc *service.FavoriteService, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{service: svc, logger: logger}
}

// FavoriteStatus is the body of GET /boxes/{id}/favorite.
type FavoriteStatus struct {
	BoxID    string `json:"box_id"`
	Favorite bool   `json:"favorite"`
}

// List handles GET /api/v1/users/me/favorites.
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.service.List(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, favorites)
}

// Status handles GET /api/v1/boxes/{id}/favorite.
func (h *FavoriteHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	fav, err := h.service.IsFavorite(r.Context(), middleware.UserIDFromContext(r.Context()), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, FavoriteStatus{BoxID: id.String(), Favorite: fav})
}

// Add handles PUT /api/v1/boxes/{id}/favorite.
func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Add(r.Context(), middleware.UserIDFromContext(r.Context()), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, FavoriteStatus{BoxID: id.String(), Favorite: true})
}

// Remove handles DELETE /api/v1/boxes/{id}/favorite.
func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), middleware.UserIDFromContext(r.Context()), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
