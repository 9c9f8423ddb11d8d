package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/tradedesk/pkg/models"
)

func newAuthRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/v1/auth/me", RequireAuth(svc), func(c *gin.Context) {
		username, _ := c.Get(ContextUsernameKey)
		c.JSON(http.StatusOK, gin.H{"success": true, "username": username})
	})
	return r
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	svc := testService(t, newFakeUserStore())
	r := newAuthRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthAcceptsValidBearerToken(t *testing.T) {
	svc := testService(t, newFakeUserStore())
	access, _, err := svc.issueTokens(&models.User{ID: "u-1", Username: "trader1"})
	require.NoError(t, err)

	r := newAuthRouter(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trader1")
}

func TestRequireAuthAcceptsCookieFallback(t *testing.T) {
	svc := testService(t, newFakeUserStore())
	access, _, err := svc.issueTokens(&models.User{ID: "u-1", Username: "trader1"})
	require.NoError(t, err)

	r := newAuthRouter(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: access})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuthRejectsGarbageToken(t *testing.T) {
	svc := testService(t, newFakeUserStore())
	r := newAuthRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
