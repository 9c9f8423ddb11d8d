package api

import (
	"github.com/gin-gonic/gin"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/gateway"
)

// handleQuote handles GET /api/v1/market/quote/:ticker.
func (s *Server) handleQuote(c *gin.Context) {
	ticker, err := validateTicker(c.Param("ticker"))
	if err != nil {
		respondError(c, err)
		return
	}
	quote, err := s.gw.Quote(c.Request.Context(), ticker)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, quote)
}

// handleQuotes handles GET /api/v1/market/quotes.
func (s *Server) handleQuotes(c *gin.Context) {
	tickers, err := splitTickers(c.Query("tickers"))
	if err != nil {
		respondError(c, err)
		return
	}
	quotes, err := s.gw.Quotes(c.Request.Context(), tickers)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, quotes)
}

// handleFearGreedHistory handles GET /api/v1/market/fear-greed/history.
func (s *Server) handleFearGreedHistory(c *gin.Context) {
	days := atoiOr(c.Query("days"), 30)
	if days < 1 || days > 2000 {
		respondError(c, apperrors.Newf(apperrors.KindInvalidArgument, "days must be in [1,2000], got %d", days))
		return
	}

	agg := gateway.Aggregation(c.DefaultQuery("aggregation", string(gateway.AggregationDaily)))
	if agg != gateway.AggregationDaily && agg != gateway.AggregationMonthly {
		respondError(c, apperrors.Newf(apperrors.KindInvalidArgument, "aggregation must be daily or monthly, got %q", agg))
		return
	}

	points, err := s.gw.FearGreedHistory(c.Request.Context(), days, agg)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, points)
}

// handleSentiment handles GET /api/v1/market/sentiment. The spec lists
// no ticker parameter for this endpoint — it is a composite snapshot —
// so a ticker query param is accepted for the underlying per-ticker
// Gateway call, defaulting to the market-wide "MARKET" pseudo-ticker.
func (s *Server) handleSentiment(c *gin.Context) {
	ticker := c.DefaultQuery("ticker", "MARKET")
	snapshot, err := s.gw.Sentiment(c.Request.Context(), ticker)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, snapshot)
}
