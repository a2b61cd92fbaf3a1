package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
)

const defaultTopProducts = 10

type AnalyticsHandler struct {
	Svc core.AnalyticsService
	Log *slog.Logger
}

func NewAnalyticsHandler(svc core.AnalyticsService, log *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{Svc: svc, Log: log}
}

func (h *AnalyticsHandler) MountAdmin(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/general", h.General)
		r.Get("/revenue", h.Revenue)
		r.Get("/new-customers", h.NewCustomers)
		r.Get("/completed-orders", h.CompletedOrders)
		r.Get("/top-products", h.TopProducts)
	})
}

// General compares the year's revenue, orders, customers and products
// with the year before.
func (h *AnalyticsHandler) General(w http.ResponseWriter, r *http.Request) {
	s, err := h.Svc.General(r.Context(), year(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, s)
}

// Revenue: ?type=monthly (T1..T12) or yearly (five years ending at ?year).
func (h *AnalyticsHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	g, err := core.ParseGranularity(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	pts, err := h.Svc.Revenue(r.Context(), year(r), g)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, pts)
}

func (h *AnalyticsHandler) NewCustomers(w http.ResponseWriter, r *http.Request) {
	g, err := core.ParseGranularity(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	pts, err := h.Svc.NewCustomers(r.Context(), year(r), g)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, pts)
}

func (h *AnalyticsHandler) CompletedOrders(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.CompletedOrders(r.Context(), pageOf(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *AnalyticsHandler) TopProducts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	if limit <= 0 || limit > 50 {
		limit = defaultTopProducts
	}
	items, err := h.Svc.TopProducts(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, items)
}
