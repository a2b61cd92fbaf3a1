package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/middleware"
)

type PointsHandler struct {
	Svc core.PointsService
	Log *slog.Logger
}

func NewPointsHandler(svc core.PointsService, log *slog.Logger) *PointsHandler {
	return &PointsHandler{Svc: svc, Log: log}
}

func (h *PointsHandler) Mount(r chi.Router) {
	r.Route("/points", func(r chi.Router) {
		r.Get("/config", h.Config)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", h.Summary)
			r.Get("/history", h.History)
		})
	})
}

func (h *PointsHandler) MountAdmin(r chi.Router) {
	r.Route("/points", func(r chi.Router) {
		r.Get("/customers", h.Customers)
		r.Get("/transactions", h.Transactions)
		r.Post("/transactions", h.CreateTransaction)
		r.Get("/stats", h.Stats)
		r.Get("/config", h.Config)
		r.Put("/config", h.UpdateConfig)
		r.Post("/recalculate-tiers", h.RecalculateTiers)
	})
}

func (h *PointsHandler) MountInternal(r chi.Router) {
	r.Post("/points", h.Credit)
}

// Summary: balance, tier and distance to the next tier.
func (h *PointsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Svc.Summary(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, s)
}

func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.History(r.Context(), userID(r), pageOf(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *PointsHandler) Config(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Config(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, c)
}

func (h *PointsHandler) Customers(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.Customers(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")), pageOf(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *PointsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.Svc.Transactions(r.Context(), core.PointTxFilter{
		UserID: q.Get("user_id"),
		Type:   core.PointTxType(strings.ToUpper(q.Get("type"))),
		Page:   pageOf(r),
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

// CreateTransaction applies a manual adjustment. 409 when a REDEEMED
// transaction exceeds the balance.
func (h *PointsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.PointTxInput
	if !decode(w, r, &in) {
		return
	}
	tx, err := h.Svc.CreateTransaction(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, tx)
}

func (h *PointsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, s)
}

// UpdateConfig recomputes every customer's tier against the new thresholds.
func (h *PointsHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var in core.PointsConfig
	if !decode(w, r, &in) {
		return
	}
	c, err := h.Svc.UpdateConfig(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, c)
}

func (h *PointsHandler) RecalculateTiers(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.RecalculateTiers(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, map[string]int64{"updated": n})
}

// Credit lets trusted services award points.
func (h *PointsHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID      string `json:"user_id"`
		Points      int64  `json:"points"`
		Description string `json:"description"`
	}
	if !decode(w, r, &in) {
		return
	}
	tx, err := h.Svc.Credit(r.Context(), in.UserID, in.Points, in.Description)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, tx)
}
