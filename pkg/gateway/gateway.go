package gateway

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/config"
)

// quoteFanoutCap bounds concurrent upstream calls in Quotes (§4.1:
// "per-call concurrency cap of 8").
const quoteFanoutCap = 8

// Gateway is the External-Service Gateway (C1). Each provider is
// optional; a nil provider makes its operations return Unavailable
// instead of panicking, matching §6's "missing credentials ⇒ provider
// disabled" rule.
type Gateway struct {
	llm       LLMProvider
	market    MarketProvider
	news      NewsProvider
	series    SeriesProvider
	sentiment SentimentProvider

	cache    *coalesced
	limiters *limiters
	retry    config.RetryConfig
	ttls     config.CacheTTLs
	fanout   int
}

// Providers bundles the optional concrete backends. A nil field means
// "credential not configured" per the bootstrapper's env-var table.
type Providers struct {
	LLM       LLMProvider
	Market    MarketProvider
	News      NewsProvider
	Series    SeriesProvider
	Sentiment SentimentProvider
}

// New builds a Gateway from configured providers and cache/limit/retry
// settings (§4.1).
func New(providers Providers, cfg config.GatewayConfig) *Gateway {
	fanout := cfg.QuoteFanoutConcurrency
	if fanout <= 0 || fanout > quoteFanoutCap {
		fanout = quoteFanoutCap
	}
	return &Gateway{
		llm:       providers.LLM,
		market:    providers.Market,
		news:      providers.News,
		series:    providers.Series,
		sentiment: providers.Sentiment,
		cache:     newCoalesced(cfg.Cache.MaxItems),
		limiters:  newLimiters(cfg.RateLimits),
		retry:     cfg.Retry,
		ttls:      cfg.Cache.TTLs,
		fanout:    fanout,
	}
}

// Chat proxies to the LLM provider. Never cached, never retried (§4.1):
// a Chat call is not idempotent from the model's perspective.
func (g *Gateway) Chat(ctx context.Context, model string, messages []Message, tools []ToolSpec) (ChatResult, error) {
	if g.llm == nil {
		return ChatResult{}, apperrors.New(apperrors.KindUnavailable, "LLM provider not configured")
	}
	if err := g.limiters.wait(ctx, "llm"); err != nil {
		return ChatResult{}, err
	}
	return g.llm.Chat(ctx, model, messages, tools)
}

// Quote fetches a single real-time quote, cached and retried.
func (g *Gateway) Quote(ctx context.Context, ticker string) (Quote, error) {
	if g.market == nil {
		return Quote{}, apperrors.New(apperrors.KindUnavailable, "market quote provider not configured")
	}
	key := cacheKey("quote", map[string]string{"ticker": ticker})
	v, err := g.cache.fetch(ctx, key, g.ttls.Quote, func() (any, error) {
		if err := g.limiters.wait(ctx, "market"); err != nil {
			return nil, err
		}
		return withRetry(ctx, g.retry, func() (any, error) {
			return g.market.Quote(ctx, ticker)
		})
	})
	if err != nil {
		return Quote{}, err
	}
	return v.(Quote), nil
}

// Quotes fans out Quote calls with a bounded concurrency cap, returning
// quotes in the same order as the input tickers. A single ticker's
// failure does not fail the batch — spec leaves partial-failure
// behavior to the caller, so the zero-value Quote is returned for it.
func (g *Gateway) Quotes(ctx context.Context, tickers []string) ([]Quote, error) {
	out := make([]Quote, len(tickers))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.fanout)

	for i, ticker := range tickers {
		i, ticker := i, ticker
		grp.Go(func() error {
			q, err := g.Quote(gctx, ticker)
			if err != nil {
				return nil // skip; caller sees a zero-value Quote for this index
			}
			out[i] = q
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// News fetches articles for a category or ticker, cached and retried.
func (g *Gateway) News(ctx context.Context, categoryOrTicker string, from, to time.Time, limit int) ([]Article, error) {
	if g.news == nil {
		return nil, apperrors.New(apperrors.KindUnavailable, "news provider not configured")
	}
	key := cacheKey("news", map[string]string{
		"q": categoryOrTicker, "from": from.Format(time.RFC3339), "to": to.Format(time.RFC3339),
		"limit": fmt.Sprint(limit),
	})
	v, err := g.cache.fetch(ctx, key, g.ttls.News, func() (any, error) {
		if err := g.limiters.wait(ctx, "news"); err != nil {
			return nil, err
		}
		return withRetry(ctx, g.retry, func() (any, error) {
			return g.news.News(ctx, categoryOrTicker, from, to, limit)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.([]Article), nil
}

// Series fetches an economic time series (e.g. FRED), cached and retried.
func (g *Gateway) Series(ctx context.Context, seriesID string, from, to time.Time) ([]Observation, error) {
	if g.series == nil {
		return nil, apperrors.New(apperrors.KindUnavailable, "economic series provider not configured")
	}
	key := cacheKey("series", map[string]string{
		"id": seriesID, "from": from.Format(time.RFC3339), "to": to.Format(time.RFC3339),
	})
	v, err := g.cache.fetch(ctx, key, g.ttls.Series, func() (any, error) {
		if err := g.limiters.wait(ctx, "fred"); err != nil {
			return nil, err
		}
		return withRetry(ctx, g.retry, func() (any, error) {
			return g.series.Series(ctx, seriesID, from, to)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.([]Observation), nil
}

// Sentiment fetches a composite sentiment snapshot for a ticker.
func (g *Gateway) Sentiment(ctx context.Context, ticker string) (SentimentSnapshot, error) {
	if g.sentiment == nil {
		return SentimentSnapshot{}, apperrors.New(apperrors.KindUnavailable, "sentiment provider not configured")
	}
	key := cacheKey("sentiment", map[string]string{"ticker": ticker})
	v, err := g.cache.fetch(ctx, key, g.ttls.FearGreed, func() (any, error) {
		if err := g.limiters.wait(ctx, "sentiment"); err != nil {
			return nil, err
		}
		return withRetry(ctx, g.retry, func() (any, error) {
			return g.sentiment.Sentiment(ctx, ticker)
		})
	})
	if err != nil {
		return SentimentSnapshot{}, err
	}
	return v.(SentimentSnapshot), nil
}

// FearGreedCurrent returns today's fear/greed reading.
func (g *Gateway) FearGreedCurrent(ctx context.Context) (FearGreedPoint, error) {
	if g.sentiment == nil {
		return FearGreedPoint{}, apperrors.New(apperrors.KindUnavailable, "sentiment provider not configured")
	}
	key := cacheKey("feargreed.current", nil)
	v, err := g.cache.fetch(ctx, key, g.ttls.FearGreed, func() (any, error) {
		if err := g.limiters.wait(ctx, "sentiment"); err != nil {
			return nil, err
		}
		return withRetry(ctx, g.retry, func() (any, error) {
			return g.sentiment.FearGreedCurrent(ctx)
		})
	})
	if err != nil {
		return FearGreedPoint{}, err
	}
	return v.(FearGreedPoint), nil
}

// FearGreedHistory returns `days` of history, optionally aggregated to
// monthly buckets per §4.1's exact aggregation rule.
func (g *Gateway) FearGreedHistory(ctx context.Context, days int, aggregation Aggregation) ([]FearGreedPoint, error) {
	if g.sentiment == nil {
		return nil, apperrors.New(apperrors.KindUnavailable, "sentiment provider not configured")
	}
	key := cacheKey("feargreed.history", map[string]string{"days": fmt.Sprint(days), "agg": string(aggregation)})
	v, err := g.cache.fetch(ctx, key, g.ttls.FearGreed, func() (any, error) {
		if err := g.limiters.wait(ctx, "sentiment"); err != nil {
			return nil, err
		}
		daily, err := withRetry(ctx, g.retry, func() (any, error) {
			return g.sentiment.FearGreedHistory(ctx, days)
		})
		if err != nil {
			return nil, err
		}
		points := daily.([]FearGreedPoint)
		if aggregation == AggregationMonthly {
			return AggregateMonthly(points), nil
		}
		return points, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]FearGreedPoint), nil
}

// AggregateMonthly groups points by (year, month), averages the daily
// values, rounds to the nearest integer, and reclassifies from the
// aggregated value — §4.1's exact monthly aggregation semantics.
func AggregateMonthly(points []FearGreedPoint) []FearGreedPoint {
	type bucket struct {
		year, month int
		sum         float64
		count       int
		repDate     time.Time
	}
	buckets := make(map[string]*bucket)
	var order []string

	for _, p := range points {
		y, m, _ := p.Date.Date()
		key := fmt.Sprintf("%04d-%02d", y, int(m))
		b, ok := buckets[key]
		if !ok {
			b = &bucket{year: y, month: int(m), repDate: time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)}
			buckets[key] = b
			order = append(order, key)
		}
		b.sum += p.Value
		b.count++
	}

	sort.Strings(order)
	out := make([]FearGreedPoint, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		mean := b.sum / float64(b.count)
		rounded := roundHalfUp(mean)
		out = append(out, FearGreedPoint{
			Date:  b.repDate,
			Value: rounded,
			Class: ClassifyFearGreed(rounded),
		})
	}
	return out
}

func roundHalfUp(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
