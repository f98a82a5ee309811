package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(cm *CompressionMiddleware, body string, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(cm.Handler())
	r.GET("/queue", func(c *gin.Context) {
		c.JSON(status, gin.H{"payload": body})
	})
	r.DELETE("/queue", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestCompressesLargeJSON(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	payload := strings.Repeat("lead-", 1000)
	r := newRouter(cm, payload, http.StatusOK)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), payload)

	stats := cm.GetStats()
	assert.Equal(t, int64(1), stats["compressed_requests"])
	assert.Less(t, stats["compression_ratio"].(float64), 0.5)
}

func TestSkipsCompression(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		body     string
		status   int
		encoding string
		wantCode int
	}{
		{"client without gzip", http.MethodGet, strings.Repeat("x", 4096), http.StatusOK, "", http.StatusOK},
		{"small body", http.MethodGet, "tiny", http.StatusOK, "gzip", http.StatusOK},
		{"no content", http.MethodDelete, "", http.StatusNoContent, "gzip", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(NewCompressionMiddleware(DefaultCompressionConfig()), tt.body, tt.status)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/queue", nil)
			if tt.encoding != "" {
				req.Header.Set("Accept-Encoding", tt.encoding)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Empty(t, w.Header().Get("Content-Encoding"))
			if tt.body != "" {
				assert.Contains(t, w.Body.String(), tt.body)
			}
		})
	}
}

func TestInvalidLevelFallsBack(t *testing.T) {
	cm := NewCompressionMiddleware(CompressionConfig{CompressionLevel: 42, MinSize: 1, ContentTypes: []string{"application/json"}})
	assert.Equal(t, gzip.DefaultCompression, cm.config.CompressionLevel)
}
