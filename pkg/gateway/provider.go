package gateway

import (
	"context"
	"time"
)

// LLMProvider is the narrow interface a concrete LLM backend must
// satisfy (pkg/gateway/llm). Chat is never retried or cached (§4.1).
type LLMProvider interface {
	Chat(ctx context.Context, model string, messages []Message, tools []ToolSpec) (ChatResult, error)
}

// MarketProvider supplies real-time quotes.
type MarketProvider interface {
	Quote(ctx context.Context, ticker string) (Quote, error)
}

// NewsProvider supplies news articles.
type NewsProvider interface {
	News(ctx context.Context, categoryOrTicker string, from, to time.Time, limit int) ([]Article, error)
}

// SeriesProvider supplies economic time series (e.g. FRED).
type SeriesProvider interface {
	Series(ctx context.Context, seriesID string, from, to time.Time) ([]Observation, error)
}

// SentimentProvider supplies composite sentiment and Fear & Greed data.
type SentimentProvider interface {
	Sentiment(ctx context.Context, ticker string) (SentimentSnapshot, error)
	FearGreedCurrent(ctx context.Context) (FearGreedPoint, error)
	FearGreedHistory(ctx context.Context, days int) ([]FearGreedPoint, error)
}
