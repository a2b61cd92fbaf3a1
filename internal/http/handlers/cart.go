package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/middleware"
)

type CartHandler struct {
	Svc core.CartService
	Log *slog.Logger
}

func NewCartHandler(svc core.CartService, log *slog.Logger) *CartHandler {
	return &CartHandler{Svc: svc, Log: log}
}

func (h *CartHandler) Mount(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Post("/items", h.Add)
		r.Patch("/items", h.Update)
		r.Delete("/items", h.Remove)
	})
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.Svc.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, v)
}

// Add merges into an existing line for the same product and size.
// 400 bad quantity or size; 404 unknown product; 409 not enough stock.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var in core.AddCartItemInput
	if !decode(w, r, &in) {
		return
	}
	v, err := h.Svc.AddItem(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, v)
}

// Update sets a line's quantity; zero removes it.
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in struct {
		core.CartKey
		Quantity int `json:"quantity"`
	}
	if !decode(w, r, &in) {
		return
	}
	v, err := h.Svc.UpdateItem(r.Context(), userID(r), in.CartKey, in.Quantity)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, v)
}

// Remove takes the line key from the query: ?product_id=&size=.
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	key := core.CartKey{ProductID: r.URL.Query().Get("product_id"), Size: r.URL.Query().Get("size")}
	v, err := h.Svc.RemoveItem(r.Context(), userID(r), key)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, v)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Clear(r.Context(), userID(r)); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
