package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/pkg/problem"
)

type CustomerHandler struct {
	Svc core.CustomerService
	Log *slog.Logger
}

func NewCustomerHandler(svc core.CustomerService, log *slog.Logger) *CustomerHandler {
	return &CustomerHandler{Svc: svc, Log: log}
}

func (h *CustomerHandler) MountAdmin(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/stats", h.Stats)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}/status", h.SetActive)
		r.Get("/{id}/orders", h.Orders)
	})
}

// List includes each customer's order count and total spent.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")), pageOf(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, c)
}

func (h *CustomerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, s)
}

// SetActive enables or disables an account. Disabled accounts cannot log in.
func (h *CustomerHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IsActive *bool `json:"is_active"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.IsActive == nil {
		problem.WriteFor(w, r, http.StatusBadRequest, "Validation Error", "is_active is required")
		return
	}
	u, err := h.Svc.SetActive(r.Context(), chi.URLParam(r, "id"), *in.IsActive)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, u)
}

func (h *CustomerHandler) Orders(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.Orders(r.Context(), chi.URLParam(r, "id"), pageOf(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}
