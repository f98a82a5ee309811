package security

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityConfig(t *testing.T) {
	config := DefaultSecurityConfig()

	assert.Equal(t, 128, config.MaxIDLength)
	assert.Equal(t, int64(4<<20), config.MaxBodyBytes)
	assert.False(t, config.AllowAllOrigins)
	assert.Contains(t, config.AllowedOrigins, "http://localhost:5173")
	assert.Equal(t, 30*time.Second, config.RequestTimeout)

	sm := NewSecurityMiddleware(SecurityConfig{})
	assert.Equal(t, config.MaxIDLength, sm.config.MaxIDLength)
	assert.Equal(t, config.RequestTimeout, sm.config.RequestTimeout)
}

func TestValidateRecordID(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	tests := []struct {
		name        string
		id          string
		expectError bool
		errorMsg    string
	}{
		{name: "numeric", id: "42"},
		{name: "ulid", id: "01HZX3K9Q4V7N2B8C5D6E7F8G9"},
		{name: "email-like", id: "jane.doe@example.com"},
		{name: "namespaced", id: "crm:lead-17"},
		{name: "blank", id: "  ", expectError: true, errorMsg: "required"},
		{name: "too long", id: strings.Repeat("a", 129), expectError: true, errorMsg: "maximum length"},
		{name: "null byte", id: "lead\x00", expectError: true, errorMsg: "invalid characters"},
		{name: "invalid utf-8", id: "lead\xff", expectError: true, errorMsg: "UTF-8"},
		{name: "path traversal", id: "../etc", expectError: true, errorMsg: "may only contain"},
		{name: "markup", id: "<script>", expectError: true, errorMsg: "may only contain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sm.ValidateRecordID(tt.id)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  I want a refund  ", "I want a refund"},
		{"<b>cancel</b> my plan", "cancel my plan"},
		{"hi<script>alert('x')</script> there", "hi there"},
		{"line one\n\n\tline two", "line one line two"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeText(tt.input))
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	r := gin.New()
	r.Use(sm.SecurityHeaders)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	headers := w.Header()
	assert.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", headers.Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", headers.Get("Referrer-Policy"))
	assert.Empty(t, headers.Get("Strict-Transport-Security"))
}

func TestValidateContentType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	r := gin.New()
	r.Use(sm.ValidateContentType)
	r.POST("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	tests := []struct {
		name           string
		method         string
		contentType    string
		body           string
		expectedStatus int
	}{
		{"valid JSON", http.MethodPost, "application/json", "{}", http.StatusOK},
		{"JSON with charset", http.MethodPost, "application/json; charset=utf-8", "{}", http.StatusOK},
		{"plain text", http.MethodPost, "text/plain", "{}", http.StatusUnsupportedMediaType},
		{"form body", http.MethodPost, "application/x-www-form-urlencoded", "a=b", http.StatusUnsupportedMediaType},
		{"empty body", http.MethodPost, "", "", http.StatusOK},
		{"GET ignores content type", http.MethodGet, "text/plain", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/test", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestLimitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config := DefaultSecurityConfig()
	config.MaxBodyBytes = 16
	sm := NewSecurityMiddleware(config)

	r := gin.New()
	r.Use(sm.LimitBody)
	r.POST("/test", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	small := httptest.NewRecorder()
	r.ServeHTTP(small, httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"a":1}`)))
	assert.Equal(t, http.StatusNoContent, small.Code)

	large := httptest.NewRecorder()
	r.ServeHTTP(large, httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(strings.Repeat("x", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, large.Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	r := gin.New()
	r.Use(sm.CORS())
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	tests := []struct {
		name           string
		origin         string
		method         string
		expectedStatus int
		checkCORS      bool
	}{
		{"allowed origin", "http://localhost:5173", http.MethodGet, http.StatusOK, true},
		{"disallowed origin", "http://evil.com", http.MethodGet, http.StatusForbidden, false},
		{"preflight", "http://localhost:5173", http.MethodOptions, http.StatusNoContent, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.checkCORS {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestCORSAllowAll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm := NewSecurityMiddleware(SecurityConfig{AllowAllOrigins: true})

	r := gin.New()
	r.Use(sm.CORS())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAllowedOriginsDropsSchemelessEntries(t *testing.T) {
	assert.Equal(t, []string{"https://app.example"}, allowedOrigins([]string{"app.other", "https://app.example/"}))
	assert.Equal(t, DefaultSecurityConfig().AllowedOrigins, allowedOrigins([]string{"nope"}))
}

func TestRequestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config := DefaultSecurityConfig()
	config.RequestTimeout = 5 * time.Millisecond
	sm := NewSecurityMiddleware(config)

	r := gin.New()
	r.Use(sm.RequestTimeout)
	r.GET("/test", func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
			assert.ErrorIs(t, c.Request.Context().Err(), context.DeadlineExceeded)
			c.Status(http.StatusGatewayTimeout)
		case <-time.After(time.Second):
			c.Status(http.StatusOK)
		}
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-Timeout"))
}
