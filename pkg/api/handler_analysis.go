package api

import (
	"context"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/auth"
	"github.com/quantdesk/tradedesk/pkg/models"
)

type startAnalysisRequest struct {
	Ticker       string          `json:"ticker" binding:"required"`
	AnalysisDate string          `json:"analysis_date" binding:"required"`
	Config       json.RawMessage `json:"config"`
}

// handleStartAnalysis handles POST /api/v1/analysis/start. It creates
// the session row synchronously (so the client gets a session_id right
// away) and launches the orchestrator run in the background, mirroring
// the teacher's CreateAlert/processSession split (pkg/api/handlers.go).
func (s *Server) handleStartAnalysis(c *gin.Context) {
	var req startAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Newf(apperrors.KindInvalidArgument, "invalid request body: %v", err))
		return
	}

	ticker, err := validateTicker(req.Ticker)
	if err != nil {
		respondError(c, err)
		return
	}
	analysisDate, err := parseAnalysisDate(req.AnalysisDate)
	if err != nil {
		respondError(c, err)
		return
	}

	userID, _ := c.Get(auth.ContextUserIDKey)
	username, _ := c.Get(auth.ContextUsernameKey)

	configBytes := []byte(req.Config)
	if len(configBytes) == 0 {
		configBytes = []byte("{}")
	}

	sessionID, err := s.store.CreateSession(c.Request.Context(), asString(userID), asString(username), ticker, analysisDate, configBytes)
	if err != nil {
		respondError(c, err)
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.registerCancel(sessionID, cancel)

	go func() {
		defer func() {
			s.cancelMu.Lock()
			delete(s.cancels, sessionID)
			s.cancelMu.Unlock()
		}()
		s.orch.Run(runCtx, sessionID, ticker, req.AnalysisDate)
	}()

	respondCreated(c, gin.H{"session_id": sessionID})
}

// handleListAnalysis handles GET /api/v1/analysis, scoped to the caller's
// own sessions (§6, §7's "list/get endpoints never expose other users' data").
func (s *Server) handleListAnalysis(c *gin.Context) {
	username, _ := c.Get(auth.ContextUsernameKey)

	filter := models.SessionFilter{
		Owner:  asString(username),
		Ticker: c.Query("ticker"),
		Limit:  clampLimit(atoiOr(c.Query("limit"), 0)),
	}
	if raw := c.Query("start_date"); raw != "" {
		if d, err := parseAnalysisDate(raw); err == nil {
			filter.FromDate = &d
		} else {
			respondError(c, err)
			return
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		if d, err := parseAnalysisDate(raw); err == nil {
			filter.ToDate = &d
		} else {
			respondError(c, err)
			return
		}
	}

	summaries, err := s.store.ListSessions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, summaries)
}

// handleGetAnalysis handles GET /api/v1/analysis/:session_id.
func (s *Server) handleGetAnalysis(c *gin.Context) {
	sessionID := c.Param("session_id")
	report, err := s.store.GetFullReport(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := requireOwner(c, report.Session.OwnerUsername); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"session":    report.Session,
		"sections":   report.Sections,
		"executions": report.Executions,
	})
}

// handleAnalysisEvents handles GET /api/v1/analysis/:session_id/events,
// translating the Progress Bus's Subscription into an SSE stream (§4.6).
func (s *Server) handleAnalysisEvents(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, err := s.store.GetFullReport(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}
	if s.bus == nil {
		respondError(c, apperrors.New(apperrors.KindUnavailable, "progress bus not configured"))
		return
	}

	sub := s.bus.Subscribe(sessionID)
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				return false
			}
			payload, err := json.Marshal(event)
			if err != nil {
				return true
			}
			c.SSEvent("message", string(payload))
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// handleCancelAnalysis handles POST /api/v1/analysis/:session_id/cancel.
func (s *Server) handleCancelAnalysis(c *gin.Context) {
	sessionID := c.Param("session_id")
	report, err := s.store.GetFullReport(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := requireOwner(c, report.Session.OwnerUsername); err != nil {
		respondError(c, err)
		return
	}
	if report.Session.Status.Terminal() {
		respondError(c, apperrors.Newf(apperrors.KindInvalidTransition, "session %s is already %s", sessionID, report.Session.Status))
		return
	}

	cancel, ok := s.popCancel(sessionID)
	if !ok {
		respondError(c, apperrors.Newf(apperrors.KindInvalidTransition, "session %s has no active run to cancel", sessionID))
		return
	}
	cancel()
	respondOK(c, gin.H{"status": "canceling"})
}

// handleDeleteAnalysis handles DELETE /api/v1/analysis/:session_id.
func (s *Server) handleDeleteAnalysis(c *gin.Context) {
	sessionID := c.Param("session_id")
	username, _ := c.Get(auth.ContextUsernameKey)

	if err := s.store.DeleteSession(c.Request.Context(), sessionID, asString(username)); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": true})
}

// requireOwner enforces that the caller's username matches owner,
// returning a Forbidden error otherwise (§7).
func requireOwner(c *gin.Context, owner string) error {
	username, _ := c.Get(auth.ContextUsernameKey)
	if asString(username) != owner {
		return apperrors.New(apperrors.KindForbidden, "not the owner of this session")
	}
	return nil
}
