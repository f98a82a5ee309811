package security

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/ZanzyTHEbar/leadpulse/internal/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxIDLength     int           `json:"max_id_length"`
	MaxBodyBytes    int64         `json:"max_body_bytes"`
	AllowAllOrigins bool          `json:"allow_all_origins"`
	AllowedOrigins  []string      `json:"allowed_origins"`
	RequestTimeout  time.Duration `json:"request_timeout"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxIDLength:    128,
		MaxBodyBytes:   4 << 20,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		RequestTimeout: 30 * time.Second,
	}
}

// SecurityMiddleware provides request hardening for the API
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	defaults := DefaultSecurityConfig()
	if config.MaxIDLength <= 0 {
		config.MaxIDLength = defaults.MaxIDLength
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	return &SecurityMiddleware{config: config}
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:@-]*$`)

// ValidateRecordID checks an identifier taken from a URL or request body
func (sm *SecurityMiddleware) ValidateRecordID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("record id is required")
	}
	if len(id) > sm.config.MaxIDLength {
		return fmt.Errorf("record id exceeds maximum length of %d characters", sm.config.MaxIDLength)
	}
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("record id contains invalid characters")
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("record id contains invalid UTF-8 encoding")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("record id may only contain letters, digits and . _ : @ -")
	}
	return nil
}

// SanitizeText strips markup and collapses whitespace in free text such as
// conversation messages
func SanitizeText(input string) string {
	input = strings.TrimSpace(input)
	input = scriptPattern.ReplaceAllString(input, "")
	input = htmlTagPattern.ReplaceAllString(input, "")
	return whitespacePattern.ReplaceAllString(input, " ")
}

var (
	scriptPattern     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// SecurityHeaders adds security headers to responses
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

	if c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	c.Next()
}

// ValidateContentType requires a JSON body on requests that carry one
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		c.Next()
		return
	}

	contentType := strings.ToLower(c.GetHeader("Content-Type"))
	if c.Request.ContentLength != 0 && !strings.Contains(contentType, "application/json") {
		appErr := apperrors.NewValidationError("unsupported content type", contentType)
		apperrors.LogError(c, appErr)
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, appErr)
		return
	}

	c.Next()
}

// LimitBody caps request body size
func (sm *SecurityMiddleware) LimitBody(c *gin.Context) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxBodyBytes)
	}
	c.Next()
}

// RequestTimeout enforces request timeout
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// CORS returns the cross-origin policy for dashboard clients
func (sm *SecurityMiddleware) CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Cache", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: !sm.config.AllowAllOrigins,
	}
	if sm.config.AllowAllOrigins {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins(sm.config.AllowedOrigins)
	}
	return cors.New(cfg)
}

// allowedOrigins keeps absolute http(s) origins; cors.New panics on anything else
func allowedOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if strings.HasPrefix(o, "http://") || strings.HasPrefix(o, "https://") {
			out = append(out, strings.TrimSuffix(o, "/"))
		}
	}
	if len(out) == 0 {
		return DefaultSecurityConfig().AllowedOrigins
	}
	return out
}
