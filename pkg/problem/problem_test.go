package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFor(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/o1", nil)

	WriteFor(rec, req, http.StatusNotFound, "Not Found", "order not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var p Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, Problem{
		Type:     "https://uteshop.vn/problems/not-found",
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   "order not found",
		Instance: "/api/orders/o1",
	}, p)
}
