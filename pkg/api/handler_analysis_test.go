package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/tradedesk/pkg/models"
)

func TestStartAnalysisCreatesSessionAndLaunchesRun(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")

	body := `{"ticker":"aapl","analysis_date":"2026-07-01"}`
	req := h.authedRequest(t, http.MethodPost, "/api/v1/analysis/start", strings.NewReader(body), "trader")
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "session_id")

	select {
	case <-h.runner.ran:
	case <-time.After(time.Second):
		t.Fatal("expected orchestrator Run to be invoked")
	}
}

func TestStartAnalysisRejectsInvalidTicker(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")

	body := `{"ticker":"not valid!","analysis_date":"2026-07-01"}`
	req := h.authedRequest(t, http.MethodPost, "/api/v1/analysis/start", strings.NewReader(body), "trader")
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartAnalysisRejectsMalformedDate(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")

	body := `{"ticker":"AAPL","analysis_date":"07/01/2026"}`
	req := h.authedRequest(t, http.MethodPost, "/api/v1/analysis/start", strings.NewReader(body), "trader")
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAnalysisScopesToCallersOwnSessions(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")
	h.seedUser("other")

	h.store.sessions["sess-trader"] = &models.FullReport{Session: models.Session{
		ID: "sess-trader", OwnerUsername: "trader", Ticker: "AAPL", Status: models.SessionRunning,
	}}
	h.store.sessions["sess-other"] = &models.FullReport{Session: models.Session{
		ID: "sess-other", OwnerUsername: "other", Ticker: "MSFT", Status: models.SessionRunning,
	}}

	req := h.authedRequest(t, http.MethodGet, "/api/v1/analysis", nil, "trader")
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "AAPL")
	assert.NotContains(t, w.Body.String(), "MSFT")
}

func TestGetAnalysisReturnsReportForOwner(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")
	h.store.sessions["sess-1"] = &models.FullReport{Session: models.Session{
		ID: "sess-1", OwnerUsername: "trader", Ticker: "AAPL", Status: models.SessionRunning,
	}}

	req := h.authedRequest(t, http.MethodGet, "/api/v1/analysis/sess-1", nil, "trader")
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetAnalysisRejectsNonOwner(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")
	h.seedUser("intruder")
	h.store.sessions["sess-1"] = &models.FullReport{Session: models.Session{
		ID: "sess-1", OwnerUsername: "trader", Ticker: "AAPL", Status: models.SessionRunning,
	}}

	req := h.authedRequest(t, http.MethodGet, "/api/v1/analysis/sess-1", nil, "intruder")
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetAnalysisReturns404ForUnknownSession(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")

	req := h.authedRequest(t, http.MethodGet, "/api/v1/analysis/does-not-exist", nil, "trader")
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelAnalysisRejectsAlreadyTerminalSession(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")
	h.store.sessions["sess-1"] = &models.FullReport{Session: models.Session{
		ID: "sess-1", OwnerUsername: "trader", Ticker: "AAPL", Status: models.SessionCompleted,
	}}

	req := h.authedRequest(t, http.MethodPost, "/api/v1/analysis/sess-1/cancel", nil, "trader")
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelAnalysisCancelsActiveRun(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")
	h.store.sessions["sess-1"] = &models.FullReport{Session: models.Session{
		ID: "sess-1", OwnerUsername: "trader", Ticker: "AAPL", Status: models.SessionRunning,
	}}

	canceled := make(chan struct{})
	h.server.registerCancel("sess-1", func() { close(canceled) })

	req := h.authedRequest(t, http.MethodPost, "/api/v1/analysis/sess-1/cancel", nil, "trader")
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("expected the registered cancel func to be invoked")
	}
}

func TestCancelAnalysisWithNoActiveRunReturnsConflict(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")
	h.store.sessions["sess-1"] = &models.FullReport{Session: models.Session{
		ID: "sess-1", OwnerUsername: "trader", Ticker: "AAPL", Status: models.SessionRunning,
	}}

	req := h.authedRequest(t, http.MethodPost, "/api/v1/analysis/sess-1/cancel", nil, "trader")
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteAnalysisEnforcesOwnership(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")
	h.seedUser("intruder")
	h.store.sessions["sess-1"] = &models.FullReport{Session: models.Session{
		ID: "sess-1", OwnerUsername: "trader", Ticker: "AAPL", Status: models.SessionCompleted,
	}}

	req := h.authedRequest(t, http.MethodDelete, "/api/v1/analysis/sess-1", nil, "intruder")
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	_, stillExists := h.store.sessions["sess-1"]
	assert.True(t, stillExists)
}

func TestDeleteAnalysisRemovesOwnedSession(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")
	h.store.sessions["sess-1"] = &models.FullReport{Session: models.Session{
		ID: "sess-1", OwnerUsername: "trader", Ticker: "AAPL", Status: models.SessionCompleted,
	}}

	req := h.authedRequest(t, http.MethodDelete, "/api/v1/analysis/sess-1", nil, "trader")
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	_, stillExists := h.store.sessions["sess-1"]
	assert.False(t, stillExists)
}

func TestAnalysisEventsReturnsUnavailableWithoutBus(t *testing.T) {
	h := newTestHarness(t)
	h.seedUser("trader")
	h.store.sessions["sess-1"] = &models.FullReport{Session: models.Session{
		ID: "sess-1", OwnerUsername: "trader", Ticker: "AAPL", Status: models.SessionRunning,
	}}

	req := h.authedRequest(t, http.MethodGet, "/api/v1/analysis/sess-1/events", nil, "trader")
	w := httptest.NewRecorder()
	h.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
