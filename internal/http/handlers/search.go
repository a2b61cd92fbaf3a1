package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
)

const defaultSuggestions = 8

type SearchHandler struct {
	Svc core.SearchService
	Log *slog.Logger
}

func NewSearchHandler(svc core.SearchService, log *slog.Logger) *SearchHandler {
	return &SearchHandler{Svc: svc, Log: log}
}

func (h *SearchHandler) Mount(r chi.Router) {
	r.Route("/search", func(r chi.Router) {
		r.Get("/", h.Search)
		r.Get("/suggest", h.Suggest)
		r.Get("/facets", h.Facets)
	})
}

func (h *SearchHandler) MountAdmin(r chi.Router) {
	r.Post("/search/reindex", h.Reindex)
}

func searchQuery(r *http.Request) (core.SearchQuery, error) {
	q := r.URL.Query()
	var sort core.ProductSort
	if s := q.Get("sort"); s != "" {
		var err error
		if sort, err = core.ParseProductSort(s); err != nil {
			return core.SearchQuery{}, err
		}
	}
	return core.SearchQuery{
		Text:       q.Get("q"),
		CategoryID: q.Get("category"),
		BrandID:    q.Get("brand"),
		MinPrice:   queryInt64(r, "min_price"),
		MaxPrice:   queryInt64(r, "max_price"),
		Sort:       sort,
		Page:       pageOf(r),
	}, nil
}

// Search reports in "source" whether the index or the database answered.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q, err := searchQuery(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	res, err := h.Svc.Search(r.Context(), q)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	if limit <= 0 || limit > 20 {
		limit = defaultSuggestions
	}
	out, err := h.Svc.Suggest(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, map[string][]string{"suggestions": out})
}

func (h *SearchHandler) Facets(w http.ResponseWriter, r *http.Request) {
	q, err := searchQuery(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	f, err := h.Svc.Facets(r.Context(), q)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, f)
}

func (h *SearchHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.Reindex(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Log.InfoContext(r.Context(), "search index rebuilt", "documents", n)
	writeJSON(w, h.Log, http.StatusOK, map[string]int{"indexed": n})
}
