package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/auth"
)

// handleLogin handles POST /api/v1/auth/login. Grounded on
// be/src/api/auth.py's login endpoint: form-encoded credentials in,
// token pair out, cookies set as a side effect for browser clients.
func (s *Server) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		respondError(c, apperrors.New(apperrors.KindInvalidArgument, "username and password are required"))
		return
	}

	pair, err := s.authSvc.Login(c.Request.Context(), username, password)
	if err != nil {
		respondError(c, err)
		return
	}

	auth.SetAuthCookies(c, pair, s.cfg.Auth.RefreshTokenTTL, s.cfg.Server.GinMode == gin.ReleaseMode)
	respondOK(c, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "bearer",
		"expires_in":    pair.ExpiresIn,
	})
}

// handleLogout handles POST /api/v1/auth/logout: clear cookies, no
// server-side session to invalidate since tokens are self-contained.
func (s *Server) handleLogout(c *gin.Context) {
	auth.ClearAuthCookies(c, s.cfg.Server.GinMode == gin.ReleaseMode)
	respondMessage(c, http.StatusOK, "logged out")
}

// handleMe handles GET /api/v1/auth/me: the profile is derived from the
// validated token's claims, never a DB re-fetch (§6, SUPPLEMENTED FEATURES).
func (s *Server) handleMe(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		respondError(c, apperrors.New(apperrors.KindUnauthenticated, "missing auth context"))
		return
	}
	respondOK(c, s.authSvc.CurrentUser(claims))
}
