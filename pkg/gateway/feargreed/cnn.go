// Package feargreed implements gateway.SentimentProvider over CNN's
// public Fear & Greed Index feed. There is no Go SDK for it in the
// retrieval pack; this is a hand-written net/http client grounded on
// the original implementation's fear_greed_service.py, which parses
// the same production.dataviz.cnn.io graphdata endpoint (see DESIGN.md).
package feargreed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/gateway"
)

const cnnGraphDataURL = "https://production.dataviz.cnn.io/index/fearandgreed/graphdata"

// Provider calls CNN's fear-and-greed graphdata feed.
type Provider struct {
	httpClient *http.Client
	baseURL    string
}

// New builds a Provider. CNN's feed requires no API key, only a
// browser-like User-Agent (the original implementation sets one to
// avoid being blocked as a bot).
func New() *Provider {
	return &Provider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cnnGraphDataURL,
	}
}

type cnnGraphDataResponse struct {
	FearAndGreed struct {
		Score float64 `json:"score"`
	} `json:"fear_and_greed"`
	FearAndGreedHistorical struct {
		Data []cnnHistoricalPoint `json:"data"`
	} `json:"fear_and_greed_historical"`
}

type cnnHistoricalPoint struct {
	X float64 `json:"x"` // unix millis
	Y float64 `json:"y"`
}

func (p *Provider) fetch(ctx context.Context) (cnnGraphDataResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return cnnGraphDataResponse{}, fmt.Errorf("building cnn request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; tradedesk/1.0)")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return cnnGraphDataResponse{}, apperrors.Wrap(apperrors.KindUpstream, "cnn fear & greed request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return cnnGraphDataResponse{}, apperrors.New(apperrors.KindRateLimited, "cnn fear & greed rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return cnnGraphDataResponse{}, apperrors.Newf(apperrors.KindUpstream, "cnn fear & greed returned %d: %s", resp.StatusCode, string(body))
	}

	var payload cnnGraphDataResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return cnnGraphDataResponse{}, apperrors.Wrap(apperrors.KindUpstream, "decoding cnn fear & greed response", err)
	}
	return payload, nil
}

// FearGreedCurrent implements gateway.SentimentProvider.
func (p *Provider) FearGreedCurrent(ctx context.Context) (gateway.FearGreedPoint, error) {
	payload, err := p.fetch(ctx)
	if err != nil {
		return gateway.FearGreedPoint{}, err
	}
	value := payload.FearAndGreed.Score
	return gateway.FearGreedPoint{
		Date:  time.Now().UTC(),
		Value: value,
		Class: gateway.ClassifyFearGreed(value),
	}, nil
}

// FearGreedHistory implements gateway.SentimentProvider, returning up to
// `days` most recent daily readings in ascending date order.
func (p *Provider) FearGreedHistory(ctx context.Context, days int) ([]gateway.FearGreedPoint, error) {
	payload, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}

	points := make([]gateway.FearGreedPoint, 0, len(payload.FearAndGreedHistorical.Data))
	for _, raw := range payload.FearAndGreedHistorical.Data {
		date := time.UnixMilli(int64(raw.X)).UTC()
		points = append(points, gateway.FearGreedPoint{
			Date:  date,
			Value: raw.Y,
			Class: gateway.ClassifyFearGreed(raw.Y),
		})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	if days > 0 && len(points) > days {
		points = points[len(points)-days:]
	}
	return points, nil
}

// Sentiment implements gateway.SentimentProvider. CNN's index is
// market-wide rather than per-ticker, so every ticker shares the same
// current reading rescaled to a -1..1 score; ArticleCount is always 0
// since this feed carries no article data.
func (p *Provider) Sentiment(ctx context.Context, ticker string) (gateway.SentimentSnapshot, error) {
	current, err := p.FearGreedCurrent(ctx)
	if err != nil {
		return gateway.SentimentSnapshot{}, err
	}
	return gateway.SentimentSnapshot{
		Ticker:       ticker,
		Score:        (current.Value - 50) / 50,
		ArticleCount: 0,
		AsOf:         current.Date,
	}, nil
}
