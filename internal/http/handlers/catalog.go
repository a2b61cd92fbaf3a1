package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
)

type CatalogHandler struct {
	Svc core.CatalogService
	Log *slog.Logger
}

func NewCatalogHandler(svc core.CatalogService, log *slog.Logger) *CatalogHandler {
	return &CatalogHandler{Svc: svc, Log: log}
}

func (h *CatalogHandler) Mount(r chi.Router) {
	r.Get("/brands", h.ListBrands)
	r.Get("/brands/{id}", h.GetBrand)
	r.Get("/categories", h.ListCategories)
	r.Get("/categories/{id}", h.GetCategory)
}

func (h *CatalogHandler) MountAdmin(r chi.Router) {
	r.Route("/brands", func(r chi.Router) {
		r.Get("/", h.ListBrands)
		r.Post("/", h.CreateBrand)
		r.Post("/bulk-delete", h.DeleteBrands)
		r.Get("/{id}", h.GetBrand)
		r.Put("/{id}", h.UpdateBrand)
		r.Delete("/{id}", h.DeleteBrand)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Post("/", h.CreateCategory)
		r.Post("/bulk-delete", h.DeleteCategories)
		r.Get("/{id}", h.GetCategory)
		r.Put("/{id}", h.UpdateCategory)
		r.Delete("/{id}", h.DeleteCategory)
	})
}

func (h *CatalogHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.ListBrands(r.Context(), r.URL.Query().Get("search"), pageOf(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *CatalogHandler) GetBrand(w http.ResponseWriter, r *http.Request) {
	b, err := h.Svc.GetBrand(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, b)
}

// CreateBrand: 201; 400 validation; 409 duplicate name.
func (h *CatalogHandler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var in core.BrandInput
	if !decode(w, r, &in) {
		return
	}
	b, err := h.Svc.CreateBrand(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, b)
}

func (h *CatalogHandler) UpdateBrand(w http.ResponseWriter, r *http.Request) {
	var in core.BrandInput
	if !decode(w, r, &in) {
		return
	}
	b, err := h.Svc.UpdateBrand(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, b)
}

// DeleteBrand: 409 while products still reference the brand.
func (h *CatalogHandler) DeleteBrand(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DeleteBrand(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) DeleteBrands(w http.ResponseWriter, r *http.Request) {
	var in idsBody
	if !decode(w, r, &in) {
		return
	}
	n, err := h.Svc.DeleteBrands(r.Context(), in.IDs)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, countBody{n})
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.ListCategories(r.Context(), r.URL.Query().Get("search"), pageOf(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, c)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in core.CategoryInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.Svc.CreateCategory(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, c)
}

func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in core.CategoryInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.Svc.UpdateCategory(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, c)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) DeleteCategories(w http.ResponseWriter, r *http.Request) {
	var in idsBody
	if !decode(w, r, &in) {
		return
	}
	n, err := h.Svc.DeleteCategories(r.Context(), in.IDs)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, countBody{n})
}
