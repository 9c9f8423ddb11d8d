// Package api is the HTTP Surface (C8): a thin gin layer that validates
// input, invokes exactly one orchestrator or store operation per
// endpoint, and renders the uniform envelope from §4.8.
//
// Grounded on the teacher's pkg/api/handlers.go for handler shape
// (gin.Context, gin.H responses, background goroutines for long-running
// work) and pkg/api/server.go for the ambient Server/setupRoutes/
// lifecycle conventions — adapted from echo to gin because TradeDesk's
// go.mod already carries gin rather than labstack/echo; see DESIGN.md.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
)

// envelope is the `{success, message?, data?, error?}` shape every
// response uses (§4.8).
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

// respondOK renders a 200 success envelope carrying data.
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

// respondMessage renders a success envelope with only a message, no data.
func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: true, Message: message})
}

// respondCreated renders a 200 envelope with data, used for endpoints
// that start background work (§6's POST /analysis/start returns a
// session_id synchronously even though the run itself continues async).
func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

// respondError maps err's apperrors.Kind to a status code and renders
// the error envelope. In production gin mode, an internal-kind error's
// message is replaced with a generic one so no internal detail leaks;
// debug mode keeps the underlying message (§7).
func respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)

	message := err.Error()
	if kind == apperrors.KindInternal && gin.Mode() == gin.ReleaseMode {
		message = "internal error"
	}

	c.JSON(status, envelope{
		Success: false,
		Error:   &errorBody{Kind: kind, Message: message},
	})
}
