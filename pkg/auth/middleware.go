package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ContextUsernameKey is the gin context key RequireAuth sets once a
// request is authenticated. pkg/ratelimit reads this same key to
// resolve the rate-limit identifier for authenticated callers.
const ContextUsernameKey = "username"

// ContextUserIDKey is the gin context key RequireAuth stores the
// authenticated user's id under, read by pkg/api handlers that need to
// stamp ownership (e.g. CreateSession).
const ContextUserIDKey = "user_id"

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
	contextClaimsKey  = "auth_claims"
)

// RequireAuth validates the bearer token (Authorization header, falling
// back to the access_token cookie the login endpoint sets) and aborts
// with 401 if missing or invalid. On success it stores the username,
// user id, and full claims in the gin context for downstream handlers.
func RequireAuth(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abortUnauthenticated(c)
			return
		}

		claims, err := svc.ParseAccessToken(raw)
		if err != nil {
			abortUnauthenticated(c)
			return
		}

		c.Set(ContextUsernameKey, claims.Username)
		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(contextClaimsKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
			return rest
		}
	}
	if cookie, err := c.Cookie(accessCookieName); err == nil {
		return cookie
	}
	return ""
}

func abortUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"kind": "unauthenticated", "message": "missing or invalid token"},
	})
}

// ClaimsFromContext returns the authenticated claims stashed by
// RequireAuth, if any.
func ClaimsFromContext(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(contextClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// SetAuthCookies sets the HTTP-only access/refresh cookies the way the
// original login endpoint does (be/src/api/auth.py) — secure=false is
// deliberately left to the caller via the secure parameter so
// production deployments behind TLS can flip it on.
func SetAuthCookies(c *gin.Context, pair *TokenPair, refreshTTL time.Duration, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookieName, pair.AccessToken, pair.ExpiresIn, "/", "", secure, true)
	c.SetCookie(refreshCookieName, pair.RefreshToken, int(refreshTTL.Seconds()), "/", "", secure, true)
}

// ClearAuthCookies deletes both auth cookies (logout, §6).
func ClearAuthCookies(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookieName, "", -1, "/", "", secure, true)
	c.SetCookie(refreshCookieName, "", -1, "/", "", secure, true)
}
