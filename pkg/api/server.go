package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/quantdesk/tradedesk/pkg/auth"
	"github.com/quantdesk/tradedesk/pkg/config"
	"github.com/quantdesk/tradedesk/pkg/database"
	"github.com/quantdesk/tradedesk/pkg/events"
	"github.com/quantdesk/tradedesk/pkg/gateway"
	"github.com/quantdesk/tradedesk/pkg/models"
	"github.com/quantdesk/tradedesk/pkg/ratelimit"
)

// runner is the narrow slice of *orchestrator.Orchestrator the HTTP
// surface needs: start one run in the background.
type runner interface {
	Run(ctx context.Context, sessionID, ticker, analysisDate string)
}

// sessionStore is the narrow slice of *store.Store the HTTP surface
// needs. Declared here (rather than depended on concretely) so handler
// tests can supply a fake, the same pattern as the orchestrator's
// sessionStore/recallStore interfaces.
type sessionStore interface {
	CreateSession(ctx context.Context, ownerID, ownerUsername, ticker string, analysisDate time.Time, config []byte) (string, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.SessionSummary, error)
	GetFullReport(ctx context.Context, sessionID string) (*models.FullReport, error)
	DeleteSession(ctx context.Context, sessionID, requestingOwner string) error
	GetPreferences(ctx context.Context, userID string) ([]models.UserPreference, error)
	SetPreference(ctx context.Context, userID, key, value string, category *string) error
}

// marketGateway is the narrow slice of *gateway.Gateway the HTTP
// surface needs for the /market endpoints.
type marketGateway interface {
	Quote(ctx context.Context, ticker string) (gateway.Quote, error)
	Quotes(ctx context.Context, tickers []string) ([]gateway.Quote, error)
	FearGreedHistory(ctx context.Context, days int, aggregation gateway.Aggregation) ([]gateway.FearGreedPoint, error)
	Sentiment(ctx context.Context, ticker string) (gateway.SentimentSnapshot, error)
}

// dbHealther is the narrow slice of *database.Client the health
// endpoint needs.
type dbHealther interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP Surface (C8). Its fields mirror the teacher's
// Server struct (pkg/api/server.go): one dependency per service the
// handlers call into, wired once at construction.
type Server struct {
	router   *gin.Engine
	httpSrv  *http.Server
	cfg      *config.Config
	store    sessionStore
	authSvc  *auth.Service
	gw       marketGateway
	orch     runner
	bus      *events.Bus
	limiter  *ratelimit.Limiter
	dbClient dbHealther

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc
}

// NewServer wires a Server and registers every route. bus and limiter
// may be nil: with a nil bus the progress-stream route returns 503, and
// a nil limiter leaves the rate-limit middleware out. The market
// handlers call gw without checking it for nil.
func NewServer(cfg *config.Config, dbClient dbHealther, st sessionStore, authSvc *auth.Service, gw marketGateway, orch runner, bus *events.Bus, limiter *ratelimit.Limiter) *Server {
	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		router:   r,
		cfg:      cfg,
		store:    st,
		authSvc:  authSvc,
		gw:       gw,
		orch:     orch,
		bus:      bus,
		limiter:  limiter,
		dbClient: dbClient,
		cancels:  make(map[string]context.CancelFunc),
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if limiter != nil {
		r.Use(ratelimit.Middleware(limiter))
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers every endpoint from §6. Static paths
// (/analysis/active-style literals, if any were ever added) would need
// to precede :session_id params; the current set has no such overlap,
// but the group-then-static-then-param ordering follows the teacher's
// pkg/api/server.go convention regardless.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")

	v1.POST("/auth/login", s.handleLogin)
	v1.POST("/auth/logout", s.handleLogout)
	v1.GET("/auth/me", auth.RequireAuth(s.authSvc), s.handleMe)

	v1.POST("/analysis/start", auth.RequireAuth(s.authSvc), s.handleStartAnalysis)
	v1.GET("/analysis", auth.RequireAuth(s.authSvc), s.handleListAnalysis)
	v1.GET("/analysis/:session_id", auth.RequireAuth(s.authSvc), s.handleGetAnalysis)
	v1.GET("/analysis/:session_id/events", auth.RequireAuth(s.authSvc), s.handleAnalysisEvents)
	v1.POST("/analysis/:session_id/cancel", auth.RequireAuth(s.authSvc), s.handleCancelAnalysis)
	v1.DELETE("/analysis/:session_id", auth.RequireAuth(s.authSvc), s.handleDeleteAnalysis)

	v1.GET("/market/quote/:ticker", auth.RequireAuth(s.authSvc), s.handleQuote)
	v1.GET("/market/quotes", auth.RequireAuth(s.authSvc), s.handleQuotes)
	v1.GET("/market/fear-greed/history", auth.RequireAuth(s.authSvc), s.handleFearGreedHistory)
	v1.GET("/market/sentiment", auth.RequireAuth(s.authSvc), s.handleSentiment)

	v1.GET("/preferences", auth.RequireAuth(s.authSvc), s.handleGetPreferences)
	v1.PUT("/preferences/:key", auth.RequireAuth(s.authSvc), s.handleSetPreference)
}

// registerCancel remembers cancelID's cancel func so a later
// /analysis/{id}/cancel request can find it. Grounded on the teacher's
// sess.SetCancelFunc(cancel) / sessionMgr.Cancel(id) pattern
// (pkg/api/handlers.go), adapted to a plain map since the Orchestrator
// itself (unlike the teacher's session.Manager) keeps no such registry.
func (s *Server) registerCancel(sessionID string, cancel context.CancelFunc) {
	s.cancelMu.Lock()
	s.cancels[sessionID] = cancel
	s.cancelMu.Unlock()
}

func (s *Server) popCancel(sessionID string) (context.CancelFunc, bool) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	cancel, ok := s.cancels[sessionID]
	delete(s.cancels, sessionID)
	return cancel, ok
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{Addr: addr, Handler: s.router}
	return s.httpSrv.ListenAndServe()
}

// StartWithListener runs the HTTP server on an already-bound listener,
// used by tests that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpSrv = &http.Server{Handler: s.router}
	return s.httpSrv.Serve(ln)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the gin engine directly, for tests that want to call
// ServeHTTP without binding a real socket.
func (s *Server) Router() http.Handler { return s.router }
