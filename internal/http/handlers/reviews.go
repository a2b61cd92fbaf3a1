package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/middleware"
)

type ReviewHandler struct {
	Svc core.ReviewService
	Log *slog.Logger
}

func NewReviewHandler(svc core.ReviewService, log *slog.Logger) *ReviewHandler {
	return &ReviewHandler{Svc: svc, Log: log}
}

func (h *ReviewHandler) Mount(r chi.Router) {
	r.Route("/reviews", func(r chi.Router) {
		r.Get("/product/{product_id}", h.ForProduct)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/", h.Create)
			r.Get("/mine", h.Mine)
			r.Post("/{id}/reward", h.ClaimReward)
		})
	})
}

func (h *ReviewHandler) MountAdmin(r chi.Router) {
	r.Route("/reviews", func(r chi.Router) {
		r.Get("/", h.AdminList)
		r.Post("/{id}/reply", h.Reply)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/restore", h.Restore)
	})
}

// ForProduct lists visible reviews with the rating summary.
func (h *ReviewHandler) ForProduct(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.ForProduct(r.Context(), chi.URLParam(r, "product_id"), pageOf(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

// Create reviews a product from one of the caller's delivered orders and
// returns the rewards on offer.
// 201; 400 validation or order not delivered; 404 order/product; 409 duplicate.
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in core.ReviewInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.Svc.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, res)
}

func (h *ReviewHandler) Mine(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.Mine(r.Context(), userID(r), pageOf(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

// ClaimReward: once per review. 409 when already claimed.
func (h *ReviewHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	var in core.RewardChoice
	if !decode(w, r, &in) {
		return
	}
	res, err := h.Svc.ClaimReward(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *ReviewHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.Svc.AdminList(r.Context(), core.ReviewFilter{
		ProductID:      q.Get("product_id"),
		UserID:         q.Get("user_id"),
		Rating:         queryInt(r, "rating"),
		IncludeDeleted: queryBool(r, "include_deleted"),
		Page:           pageOf(r),
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *ReviewHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Comment string `json:"comment"`
	}
	if !decode(w, r, &in) {
		return
	}
	rv, err := h.Svc.Reply(r.Context(), userID(r), chi.URLParam(r, "id"), in.Comment)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, rv)
}

// Delete hides a review; Restore brings it back.
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReviewHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Restore(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
