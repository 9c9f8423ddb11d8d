package ratelimit

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantdesk/tradedesk/pkg/auth"
)

// Identifier resolves the rate-limit identifier for a request: the
// authenticated username when present, else the client IP plus a short
// hash of the User-Agent header (§4.7) — grounded on
// rate_limit.py's _get_default_identifier.
func Identifier(c *gin.Context) string {
	if v, ok := c.Get(auth.ContextUsernameKey); ok {
		if username, ok := v.(string); ok && username != "" {
			return "user:" + username
		}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(c.GetHeader("User-Agent")))
	return fmt.Sprintf("ip:%s:%x", c.ClientIP(), h.Sum32())
}

// Middleware enforces the global and per-endpoint sliding-window
// limits, responding 429 with a Retry-After header on violation
// (§4.7, §6's error taxonomy).
func Middleware(limiter *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		allowed, retryAfter := limiter.Allow(Identifier(c), path, time.Now())
		if !allowed {
			secs := int(retryAfter.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   gin.H{"kind": "rate_limited", "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}
