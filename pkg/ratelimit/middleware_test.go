package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/tradedesk/pkg/auth"
	"github.com/quantdesk/tradedesk/pkg/config"
)

func newTestRouter(limiter *Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(limiter))
	r.GET("/api/v1/market/quote/:ticker", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	r.POST("/api/v1/auth/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

func TestMiddlewarePassesThroughUnderLimit(t *testing.T) {
	limiter := New(config.RateLimitConfig{
		Global:    config.EndpointLimit{MaxRequests: 2, Window: time.Minute},
		SkipPaths: []string{"/health"},
	})
	r := newTestRouter(limiter)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/market/quote/AAPL", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareRejectsWithRetryAfterWhenOverLimit(t *testing.T) {
	limiter := New(config.RateLimitConfig{
		Global:    config.EndpointLimit{MaxRequests: 1, Window: time.Minute},
		SkipPaths: []string{"/health"},
	})
	r := newTestRouter(limiter)

	req1 := httptest.NewRequest(http.MethodGet, "/api/v1/market/quote/AAPL", nil)
	req1.RemoteAddr = "203.0.113.5:1234"
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, req1)
	require.Equal(t, http.StatusOK, w1.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/market/quote/AAPL", nil)
	req2.RemoteAddr = "203.0.113.5:1234"
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.NotEmpty(t, w2.Header().Get("Retry-After"))
}

func TestMiddlewareEnforcesStricterPerEndpointLimitOnLogin(t *testing.T) {
	limiter := New(config.RateLimitConfig{
		Global: config.EndpointLimit{MaxRequests: 100, Window: time.Minute},
		PerEndpoint: map[string]config.EndpointLimit{
			"/api/v1/auth/login": {MaxRequests: 1, Window: time.Minute},
		},
	})
	r := newTestRouter(limiter)

	req1 := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req1.RemoteAddr = "198.51.100.9:1234"
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, req1)
	require.Equal(t, http.StatusOK, w1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req2.RemoteAddr = "198.51.100.9:1234"
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}

func TestMiddlewareSkipsConfiguredPaths(t *testing.T) {
	limiter := New(config.RateLimitConfig{
		Global:    config.EndpointLimit{MaxRequests: 1, Window: time.Minute},
		SkipPaths: []string{"/health"},
	})
	r := newTestRouter(limiter)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestIdentifierPrefersAuthenticatedUsername(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(auth.ContextUsernameKey, "alice")

	assert.Equal(t, "user:alice", Identifier(c))
}

func TestIdentifierFallsBackToIPAndUserAgentHash(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "203.0.113.9:4567"
	c.Request.Header.Set("User-Agent", "test-agent/1.0")

	id := Identifier(c)
	assert.Contains(t, id, "ip:")
	assert.NotContains(t, id, "user:")
}
