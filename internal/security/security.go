package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
)

const (
	// RoleAdmin is the claim value required on trigger routes
	RoleAdmin = "admin"

	subjectKey = "admin_subject"
	issuer     = "fairplate-analytics"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	JWTSecret      string
	AllowedOrigins []string
	RequestTimeout time.Duration
	EnableHSTS     bool
}

// DefaultSecurityConfig returns default security configuration
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		RequestTimeout: 30 * time.Second,
	}
}

// AdminClaims are the claims carried by an admin token
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SecurityMiddleware provides security middleware for the API
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultSecurityConfig().RequestTimeout
	}
	return &SecurityMiddleware{config: config}
}

// AuthEnabled reports whether trigger routes require a token
func (sm *SecurityMiddleware) AuthEnabled() bool {
	return sm.config.JWTSecret != ""
}

// SecurityHeaders adds security headers to all responses
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

	// the swagger UI serves its own scripts and styles
	if !strings.HasPrefix(c.Request.URL.Path, "/swagger/") {
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	}

	if sm.config.EnableHSTS || c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	c.Next()
}

// RequestTimeout bounds the request context
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// ValidateContentType rejects bodies that are not JSON
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	contentType := c.GetHeader("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "application/json") {
		appErr := apperrors.NewValidationError("unsupported content type", "Content-Type")
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, appErr)
		return
	}
	c.Next()
}

// CORSConfig provides CORS handling for the configured origins
func (sm *SecurityMiddleware) CORSConfig() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(sm.config.AllowedOrigins) == 0 || slices.Contains(sm.config.AllowedOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = sm.config.AllowedOrigins
		cfg.AllowCredentials = true
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	cfg.ExposeHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", "X-Cache"}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}

// RequireAdmin accepts requests carrying an HS256 bearer token with role=admin.
// It is a no-op when no secret is configured.
func (sm *SecurityMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sm.AuthEnabled() {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			sm.reject(c, "missing bearer token", nil)
			return
		}

		claims, err := sm.ParseAdminToken(raw)
		if err != nil {
			sm.reject(c, "invalid admin token", err)
			return
		}

		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

func (sm *SecurityMiddleware) reject(c *gin.Context, msg string, cause error) {
	slog.Warn("Admin authentication failed", "ip", c.ClientIP(), "path", c.Request.URL.Path, "reason", msg)
	appErr := apperrors.NewUnauthorizedError(msg, cause)
	appErr.RequestID = c.GetHeader("X-Request-ID")
	c.Header("WWW-Authenticate", `Bearer realm="fairplate"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, appErr)
}

// ParseAdminToken validates a token and its admin role
func (sm *SecurityMiddleware) ParseAdminToken(raw string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(sm.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return nil, errors.New("token does not carry the admin role")
	}
	return claims, nil
}

// IssueAdminToken signs an admin token for subject valid for ttl
func (sm *SecurityMiddleware) IssueAdminToken(subject string, ttl time.Duration) (string, error) {
	if !sm.AuthEnabled() {
		return "", apperrors.NewConfigurationError("jwt_secret is not set", nil)
	}
	now := time.Now()
	claims := AdminClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(sm.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign admin token: %w", err)
	}
	return signed, nil
}

// AdminSubject returns the authenticated admin, or "anonymous" when auth is off
func AdminSubject(c *gin.Context) string {
	if v, ok := c.Get(subjectKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anonymous"
}
