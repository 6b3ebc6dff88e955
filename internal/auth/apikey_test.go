package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(header string, keys []string) *gin.Engine {
	r := gin.New()
	r.Use(APIKeyMiddleware(header, keys))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keys   []string
		send   map[string]string
		status int
	}{
		{name: "disabled", status: http.StatusOK},
		{name: "blank keys disable", keys: []string{""}, status: http.StatusOK},
		{name: "missing key", keys: []string{"a"}, status: http.StatusUnauthorized},
		{name: "wrong key", keys: []string{"a"}, send: map[string]string{"X-API-Key": "b"}, status: http.StatusForbidden},
		{name: "first key", keys: []string{"a", "b"}, send: map[string]string{"X-API-Key": "a"}, status: http.StatusOK},
		{name: "second key", keys: []string{"a", "b"}, send: map[string]string{"X-API-Key": "b"}, status: http.StatusOK},
		{name: "custom header", header: "Authorization-Key", keys: []string{"a"}, send: map[string]string{"Authorization-Key": "a"}, status: http.StatusOK},
		{name: "custom header ignores default", header: "Authorization-Key", keys: []string{"a"}, send: map[string]string{"X-API-Key": "a"}, status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			for k, v := range tt.send {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			newTestRouter(tt.header, tt.keys).ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
