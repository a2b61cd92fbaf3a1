package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/middleware"
)

type ReturnHandler struct {
	Svc core.ReturnService
	Log *slog.Logger
}

func NewReturnHandler(svc core.ReturnService, log *slog.Logger) *ReturnHandler {
	return &ReturnHandler{Svc: svc, Log: log}
}

func (h *ReturnHandler) Mount(r chi.Router) {
	r.Route("/returns", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/", h.Create)
		r.Get("/mine", h.Mine)
		r.Get("/eligibility/{order_id}", h.Eligibility)
	})
}

func (h *ReturnHandler) MountAdmin(r chi.Router) {
	r.Route("/returns", func(r chi.Router) {
		r.Get("/", h.AdminList)
		r.Get("/stats", h.Stats)
		r.Get("/{id}", h.AdminGet)
		r.Post("/{id}/approve", h.Approve)
		r.Post("/{id}/reject", h.Reject)
	})
}

// Create requests a refund within 24h of delivery.
// 201; 400 reason or window; 409 an open request already exists.
func (h *ReturnHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in core.ReturnInput
	if !decode(w, r, &in) {
		return
	}
	rr, err := h.Svc.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, rr)
}

func (h *ReturnHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	e, err := h.Svc.Eligibility(r.Context(), userID(r), chi.URLParam(r, "order_id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, e)
}

func (h *ReturnHandler) Mine(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.Mine(r.Context(), userID(r), pageOf(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *ReturnHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.AdminList(r.Context(), core.ReturnFilter{
		Status: core.ReturnStatus(r.URL.Query().Get("status")),
		Page:   pageOf(r),
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *ReturnHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	rr, err := h.Svc.AdminGet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, rr)
}

type noteBody struct {
	Note string `json:"note"`
}

// Approve refunds the order as points. 409 unless pending.
func (h *ReturnHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var in noteBody
	if r.ContentLength != 0 && !decode(w, r, &in) {
		return
	}
	rr, err := h.Svc.Approve(r.Context(), userID(r), chi.URLParam(r, "id"), in.Note)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, rr)
}

// Reject requires a note. 409 unless pending.
func (h *ReturnHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var in noteBody
	if !decode(w, r, &in) {
		return
	}
	rr, err := h.Svc.Reject(r.Context(), userID(r), chi.URLParam(r, "id"), in.Note)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, rr)
}

func (h *ReturnHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, s)
}
