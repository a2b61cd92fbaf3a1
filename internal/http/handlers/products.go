package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/pkg/problem"
)

const similarLimit = 8

type ProductHandler struct {
	Svc   core.ProductService
	Media core.MediaStore
	Log   *slog.Logger
}

func NewProductHandler(svc core.ProductService, media core.MediaStore, log *slog.Logger) *ProductHandler {
	return &ProductHandler{Svc: svc, Media: media, Log: log}
}

func (h *ProductHandler) Mount(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/home", h.Home)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/similar", h.Similar)
		r.Get("/{id}/stats", h.Stats)
	})
}

func (h *ProductHandler) MountAdmin(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.AdminList)
		r.Post("/", h.Create)
		r.Post("/bulk-delete", h.DeleteMany)
		r.Get("/{id}", h.AdminGet)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Patch("/{id}/discount", h.SetDiscount)
		r.Patch("/{id}/visibility", h.SetVisibility)
		r.Post("/{id}/images", h.UploadImage)
	})
}

func productFilter(r *http.Request) (core.ProductFilter, error) {
	q := r.URL.Query()
	sort, err := core.ParseProductSort(q.Get("sort"))
	if err != nil {
		return core.ProductFilter{}, err
	}
	return core.ProductFilter{
		Search:     strings.TrimSpace(q.Get("search")),
		CategoryID: q.Get("category"),
		BrandID:    q.Get("brand"),
		MinPrice:   queryInt64(r, "min_price"),
		MaxPrice:   queryInt64(r, "max_price"),
		Sort:       sort,
		Page:       pageOf(r),
	}, nil
}

func (h *ProductHandler) Home(w http.ResponseWriter, r *http.Request) {
	home, err := h.Svc.Home(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, home)
}

// List serves the storefront catalogue: active, visible products only.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := productFilter(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	res, err := h.Svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

// Get counts a view and, for signed-in callers, records it in their history.
// 404 for hidden or inactive products.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, p)
}

func (h *ProductHandler) Similar(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.Similar(r.Context(), chi.URLParam(r, "id"), similarLimit)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, items)
}

func (h *ProductHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Svc.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, s)
}

func (h *ProductHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	f, err := productFilter(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	res, err := h.Svc.AdminList(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *ProductHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.Svc.AdminGet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, p)
}

// Create: 201; 400 validation or unknown brand/category.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in core.ProductInput
	if !decode(w, r, &in) {
		return
	}
	p, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in core.ProductInput
	if !decode(w, r, &in) {
		return
	}
	p, err := h.Svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	var in idsBody
	if !decode(w, r, &in) {
		return
	}
	n, err := h.Svc.DeleteMany(r.Context(), in.IDs)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, countBody{n})
}

func (h *ProductHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DiscountPercentage int `json:"discount_percentage"`
	}
	if !decode(w, r, &in) {
		return
	}
	p, err := h.Svc.SetDiscount(r.Context(), chi.URLParam(r, "id"), in.DiscountPercentage)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, p)
}

func (h *ProductHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IsVisible *bool `json:"is_visible"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.IsVisible == nil {
		problem.WriteFor(w, r, http.StatusBadRequest, "Validation Error", "is_visible is required")
		return
	}
	p, err := h.Svc.SetVisibility(r.Context(), chi.URLParam(r, "id"), *in.IsVisible)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, p)
}

// UploadImage takes a multipart "image" field, stores it and appends its URL.
// 400 not an image or over 5MB; 404 unknown product; 503 no media store.
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Svc.AdminGet(r.Context(), id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	file, hdr, err := r.FormFile("image")
	if err != nil {
		problem.WriteFor(w, r, http.StatusBadRequest, "Invalid Upload", "Multipart field image is required.")
		return
	}
	defer file.Close()

	url, err := core.UploadImage(r.Context(), h.Media, "products/"+id, core.ImageUpload{
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Size:        hdr.Size,
		Body:        file,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Svc.AddImage(r.Context(), id, url)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, p)
}
