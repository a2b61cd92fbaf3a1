package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/middleware"
)

type VoucherHandler struct {
	Svc core.VoucherService
	Log *slog.Logger
}

func NewVoucherHandler(svc core.VoucherService, log *slog.Logger) *VoucherHandler {
	return &VoucherHandler{Svc: svc, Log: log}
}

func (h *VoucherHandler) Mount(r chi.Router) {
	r.Route("/vouchers", func(r chi.Router) {
		r.Get("/available", h.Available)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/mine", h.Mine)
			r.Post("/validate", h.Validate)
			r.Post("/claim", h.Claim)
		})
	})
}

func (h *VoucherHandler) MountAdmin(r chi.Router) {
	r.Route("/vouchers", func(r chi.Router) {
		r.Get("/", h.AdminList)
		r.Post("/", h.Create)
		r.Get("/stats", h.Stats)
		r.Get("/{id}", h.AdminGet)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *VoucherHandler) Available(w http.ResponseWriter, r *http.Request) {
	vs, err := h.Svc.Available(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, vs)
}

func (h *VoucherHandler) Mine(w http.ResponseWriter, r *http.Request) {
	vs, err := h.Svc.Mine(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, vs)
}

// Validate prices a voucher against an order amount without using it.
func (h *VoucherHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code   string `json:"code"`
		Amount int64  `json:"amount"`
	}
	if !decode(w, r, &in) {
		return
	}
	q, err := h.Svc.Validate(r.Context(), userID(r), in.Code, in.Amount)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, q)
}

// Claim: GENERAL vouchers only. 409 when none are left or the user hit
// their limit.
func (h *VoucherHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &in) {
		return
	}
	uv, err := h.Svc.Claim(r.Context(), userID(r), in.Code)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, uv)
}

func (h *VoucherHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.Svc.AdminList(r.Context(), core.VoucherFilter{
		Search:     strings.TrimSpace(q.Get("search")),
		Status:     core.VoucherStatus(q.Get("status")),
		RewardType: core.RewardType(strings.ToUpper(q.Get("reward_type"))),
		Page:       pageOf(r),
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *VoucherHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.Svc.AdminGet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, v)
}

func (h *VoucherHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in core.VoucherInput
	if !decode(w, r, &in) {
		return
	}
	v, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, v)
}

func (h *VoucherHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in core.VoucherInput
	if !decode(w, r, &in) {
		return
	}
	v, err := h.Svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, v)
}

// Delete: 409 once the voucher has been used.
func (h *VoucherHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *VoucherHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, s)
}
