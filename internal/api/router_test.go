package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterAuthGate(t *testing.T) {
	r := NewRouter(RouterConfig{
		APIKeyHeader:   "X-API-Key",
		APIKeys:        []string{"secret"},
		MaxUploadBytes: 1 << 20,
	})

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		code   int
	}{
		{"healthz is public", http.MethodGet, "/healthz", "", http.StatusOK},
		{"readyz is public", http.MethodGet, "/readyz", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"v1 requires key", http.MethodGet, "/v1/search/text?q=nam", "", http.StatusUnauthorized},
		{"wrong key", http.MethodDelete, "/v1/faces/u1", "nope", http.StatusForbidden},
		{"valid key reaches handler", http.MethodGet, "/v1/search/text", "secret", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/v1/nothing", "secret", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}
