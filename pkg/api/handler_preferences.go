package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/auth"
)

// handleGetPreferences handles GET /api/v1/preferences, exposing the
// Session Store's preference rows for the authenticated user.
func (s *Server) handleGetPreferences(c *gin.Context) {
	userID, _ := c.Get(auth.ContextUserIDKey)
	prefs, err := s.store.GetPreferences(c.Request.Context(), asString(userID))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, prefs)
}

type setPreferenceRequest struct {
	Value    string  `json:"value" binding:"required"`
	Category *string `json:"category"`
}

// handleSetPreference handles PUT /api/v1/preferences/:key.
func (s *Server) handleSetPreference(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		respondError(c, apperrors.New(apperrors.KindInvalidArgument, "preference key is required"))
		return
	}

	var req setPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Newf(apperrors.KindInvalidArgument, "invalid request body: %v", err))
		return
	}

	userID, _ := c.Get(auth.ContextUserIDKey)
	if err := s.store.SetPreference(c.Request.Context(), asString(userID), key, req.Value, req.Category); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "preference saved")
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
