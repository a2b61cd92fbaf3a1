package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/middleware"
)

// LibraryHandler serves a customer's favorites and recently viewed products.
type LibraryHandler struct {
	Svc core.LibraryService
	Log *slog.Logger
}

func NewLibraryHandler(svc core.LibraryService, log *slog.Logger) *LibraryHandler {
	return &LibraryHandler{Svc: svc, Log: log}
}

func (h *LibraryHandler) Mount(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/favorites", h.Favorites)
		r.Get("/favorites/{product_id}", h.IsFavorite)
		r.Post("/favorites/{product_id}", h.AddFavorite)
		r.Delete("/favorites/{product_id}", h.RemoveFavorite)

		r.Get("/viewed", h.Viewed)
		r.Delete("/viewed", h.ClearViewed)
		r.Delete("/viewed/{product_id}", h.RemoveViewed)
	})
}

func (h *LibraryHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.Favorites(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, items)
}

func (h *LibraryHandler) IsFavorite(w http.ResponseWriter, r *http.Request) {
	ok, err := h.Svc.IsFavorite(r.Context(), userID(r), chi.URLParam(r, "product_id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, map[string]bool{"is_favorite": ok})
}

// AddFavorite is idempotent. 404 for unknown products.
func (h *LibraryHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.AddFavorite(r.Context(), userID(r), chi.URLParam(r, "product_id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LibraryHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.RemoveFavorite(r.Context(), userID(r), chi.URLParam(r, "product_id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LibraryHandler) Viewed(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.Viewed(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, items)
}

func (h *LibraryHandler) RemoveViewed(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.RemoveViewed(r.Context(), userID(r), chi.URLParam(r, "product_id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LibraryHandler) ClearViewed(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.ClearViewed(r.Context(), userID(r)); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
