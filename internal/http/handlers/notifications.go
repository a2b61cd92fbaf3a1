package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/middleware"
)

// NotificationHandler serves a user's inbox under /api and the shared
// admin feed under /api/admin. The websocket feed is mounted by the router.
type NotificationHandler struct {
	Svc core.NotificationService
	Log *slog.Logger
}

func NewNotificationHandler(svc core.NotificationService, log *slog.Logger) *NotificationHandler {
	return &NotificationHandler{Svc: svc, Log: log}
}

func (h *NotificationHandler) Mount(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		h.inbox(r, userID)
	})
}

func (h *NotificationHandler) MountAdmin(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		h.inbox(r, func(*http.Request) string { return core.AdminRecipient })
	})
}

func (h *NotificationHandler) MountInternal(r chi.Router) {
	r.Post("/notifications", h.Send)
}

// inbox registers the same routes for any recipient resolver.
func (h *NotificationHandler) inbox(r chi.Router, recipient func(*http.Request) string) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		res, err := h.Svc.List(r.Context(), recipient(r), queryBool(r, "unread"), pageOf(r))
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeJSON(w, h.Log, http.StatusOK, res)
	})
	r.Get("/unread-count", func(w http.ResponseWriter, r *http.Request) {
		n, err := h.Svc.UnreadCount(r.Context(), recipient(r))
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeJSON(w, h.Log, http.StatusOK, countBody{n})
	})
	r.Patch("/read-all", func(w http.ResponseWriter, r *http.Request) {
		n, err := h.Svc.MarkAllRead(r.Context(), recipient(r))
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeJSON(w, h.Log, http.StatusOK, countBody{n})
	})
	r.Delete("/read", func(w http.ResponseWriter, r *http.Request) {
		n, err := h.Svc.DeleteRead(r.Context(), recipient(r))
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeJSON(w, h.Log, http.StatusOK, countBody{n})
	})
	r.Patch("/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		if err := h.Svc.MarkRead(r.Context(), recipient(r), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// Send delivers a notification on behalf of another service.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var in core.NotificationInput
	if !decode(w, r, &in) {
		return
	}
	n, err := h.Svc.Notify(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, n)
}
