// Package problem writes RFC 7807 error bodies.
package problem

import (
	"encoding/json"
	"net/http"
	"strings"
)

const typeBase = "https://uteshop.vn/problems/"

type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// New builds a problem whose type URI is derived from the title.
func New(status int, title, detail string) Problem {
	return Problem{
		Type:   typeBase + slug(title),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

func slug(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), " ", "-")
}

// Render writes p with its status code.
func (p Problem) Render(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func Write(w http.ResponseWriter, status int, title, detail string) {
	New(status, title, detail).Render(w)
}

// WriteFor is Write with the request path as instance.
func WriteFor(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	p := New(status, title, detail)
	p.Instance = r.URL.Path
	p.Render(w)
}
