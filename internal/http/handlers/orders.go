package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/middleware"
	"github.com/uteshop/uteshop-api/pkg/problem"
)

type OrderHandler struct {
	Svc core.OrderService
	Log *slog.Logger
}

func NewOrderHandler(svc core.OrderService, log *slog.Logger) *OrderHandler {
	return &OrderHandler{Svc: svc, Log: log}
}

func (h *OrderHandler) Mount(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/", h.Create)
		r.Get("/", h.ListMine)
		r.Get("/{id}", h.GetMine)
		r.Post("/{id}/cancel", h.Cancel)
		r.Post("/{id}/confirm-received", h.ConfirmReceived)
	})
}

func (h *OrderHandler) MountAdmin(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.AdminList)
		r.Get("/stats", h.Stats)
		r.Get("/{id}", h.AdminGet)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Patch("/{id}/payment-status", h.UpdatePaymentStatus)
	})
}

func orderFilter(r *http.Request) (core.OrderFilter, error) {
	q := r.URL.Query()
	from, err := queryDate(r, "from", false)
	if err != nil {
		return core.OrderFilter{}, err
	}
	to, err := queryDate(r, "to", true)
	if err != nil {
		return core.OrderFilter{}, err
	}
	return core.OrderFilter{
		Status:        core.OrderStatus(q.Get("status")),
		PaymentStatus: core.PaymentStatus(q.Get("payment_status")),
		PaymentMethod: core.PaymentMethod(strings.ToUpper(q.Get("payment_method"))),
		Search:        strings.TrimSpace(q.Get("search")),
		CreatedGTE:    from,
		CreatedLT:     to,
		Sort:          core.OrderSort(q.Get("sort")),
		Page:          pageOf(r),
	}, nil
}

// Create places an order from explicit items, reserving stock.
// 201; 400 validation or bad voucher/points; 409 insufficient stock.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in core.CreateOrderInput
	if !decode(w, r, &in) {
		return
	}
	o, err := h.Svc.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, o)
}

func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.ListMine(r.Context(), userID(r), core.OrderFilter{
		Status: core.OrderStatus(r.URL.Query().Get("status")),
		Page:   pageOf(r),
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

// GetMine is 404 for orders that belong to someone else.
func (h *OrderHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.GetMine(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, o)
}

// Cancel: 409 once the order has left pending.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decode(w, r, &in) {
		return
	}
	o, err := h.Svc.CancelMine(r.Context(), userID(r), chi.URLParam(r, "id"), in.Reason)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, o)
}

// ConfirmReceived moves a shipped order to delivered.
func (h *OrderHandler) ConfirmReceived(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.ConfirmReceived(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, o)
}

func (h *OrderHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	f, err := orderFilter(r)
	if err != nil {
		problem.WriteFor(w, r, http.StatusBadRequest, "Validation Error", err.Error())
		return
	}
	res, err := h.Svc.AdminList(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *OrderHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.AdminGet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, o)
}

func (h *OrderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, s)
}

// UpdateStatus: 400 unknown status; 409 transition not allowed.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status core.OrderStatus `json:"status"`
		Note   string           `json:"note"`
	}
	if !decode(w, r, &in) {
		return
	}
	o, err := h.Svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), in.Status, in.Note)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, o)
}

func (h *OrderHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PaymentStatus core.PaymentStatus `json:"payment_status"`
	}
	if !decode(w, r, &in) {
		return
	}
	o, err := h.Svc.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "id"), in.PaymentStatus)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, o)
}
