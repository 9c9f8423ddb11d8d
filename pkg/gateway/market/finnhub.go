// Package market implements gateway.MarketProvider over the Finnhub
// quote endpoint. Finnhub has no published Go SDK in the retrieval
// pack, so this is a small hand-written net/http client in the style
// of the teacher's single-purpose provider files (see DESIGN.md).
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/gateway"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// Provider calls the Finnhub /quote endpoint.
type Provider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// New builds a Provider bound to an API key.
func New(apiKey string) *Provider {
	return &Provider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    finnhubBaseURL,
	}
}

type finnhubQuoteResponse struct {
	C  float64 `json:"c"`  // current price
	D  float64 `json:"d"`  // change
	DP float64 `json:"dp"` // percent change
	V  int64   `json:"v"`  // volume, not present on free tier but kept for completeness
	T  int64   `json:"t"`  // unix timestamp
}

// Quote implements gateway.MarketProvider.
func (p *Provider) Quote(ctx context.Context, ticker string) (gateway.Quote, error) {
	reqURL := fmt.Sprintf("%s/quote?symbol=%s&token=%s", p.baseURL, url.QueryEscape(ticker), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return gateway.Quote{}, fmt.Errorf("building finnhub request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return gateway.Quote{}, apperrors.Wrap(apperrors.KindUpstream, "finnhub request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return gateway.Quote{}, apperrors.New(apperrors.KindRateLimited, "finnhub rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return gateway.Quote{}, apperrors.Newf(apperrors.KindUpstream, "finnhub returned %d: %s", resp.StatusCode, string(body))
	}

	var payload finnhubQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return gateway.Quote{}, apperrors.Wrap(apperrors.KindUpstream, "decoding finnhub response", err)
	}
	if payload.C == 0 && payload.T == 0 {
		return gateway.Quote{}, apperrors.Newf(apperrors.KindNotFound, "no quote data for %s", ticker)
	}

	return gateway.Quote{
		Ticker:        ticker,
		Price:         payload.C,
		Change:        payload.D,
		ChangePercent: payload.DP,
		Volume:        payload.V,
		AsOf:          time.Unix(payload.T, 0).UTC(),
	}, nil
}
