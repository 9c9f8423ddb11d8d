package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const tradedeskVersion = "0.1.0"

// handleHealth handles GET /health. Grounded on the teacher's
// healthHandler (pkg/api/server.go): ping the database, fold in
// config.Stats(), return 503 when the ping fails (§6).
func (s *Server) handleHealth(c *gin.Context) {
	dbStatus := s.dbClient.Health(c.Request.Context())

	status := "ok"
	httpStatus := http.StatusOK
	if !dbStatus.Healthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":  status,
		"db":      dbStatus,
		"version": tradedeskVersion,
		"stats":   s.cfg.Stats(),
	})
}
