package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/middleware"
	"github.com/uteshop/uteshop-api/pkg/problem"
)

// Mountable adds public and signed-in routes under /api.
type Mountable interface {
	Mount(r chi.Router)
}

// AdminMountable adds routes under /api/admin.
type AdminMountable interface {
	MountAdmin(r chi.Router)
}

// InternalMountable adds service-to-service routes under /internal.
type InternalMountable interface {
	MountInternal(r chi.Router)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "err", err)
	}
}

// decode reads a JSON body into v, writing a 400 when it cannot.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			problem.WriteFor(w, r, http.StatusRequestEntityTooLarge, "Request Too Large", "Request body exceeds maximum allowed size")
			return false
		}
		problem.WriteFor(w, r, http.StatusBadRequest, "Invalid JSON", "Body could not be decoded.")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func queryInt64(r *http.Request, key string) int64 {
	n, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return n
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

// pageOf reads page and limit; services clamp them.
func pageOf(r *http.Request) core.Page {
	return core.Page{Page: queryInt(r, "page"), Limit: queryInt(r, "limit")}
}

// queryDate accepts YYYY-MM-DD or RFC 3339. endOfDay moves a bare date to
// the start of the following day, for use as an exclusive bound.
func queryDate(r *http.Request, key string, endOfDay bool) (*time.Time, error) {
	s := strings.TrimSpace(r.URL.Query().Get(key))
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, errors.New(key + " must be a date (YYYY-MM-DD)")
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

// year defaults to the current year.
func year(r *http.Request) int {
	if y := queryInt(r, "year"); y > 0 {
		return y
	}
	return time.Now().Year()
}

func userID(r *http.Request) string {
	return middleware.UserID(r.Context())
}

type idsBody struct {
	IDs []string `json:"ids"`
}

type countBody struct {
	Count int64 `json:"count"`
}
