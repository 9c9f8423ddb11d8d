// Package fred implements gateway.SeriesProvider over the St. Louis
// Fed's FRED API. FRED has no Go SDK in the retrieval pack, so this is
// a hand-written net/http client in the same style as pkg/gateway/market
// and pkg/gateway/news (see DESIGN.md).
package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/gateway"
)

const fredBaseURL = "https://api.stlouisfed.org/fred"

// Provider calls the FRED /series/observations endpoint.
type Provider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// New builds a Provider bound to an API key.
func New(apiKey string) *Provider {
	return &Provider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    fredBaseURL,
	}
}

type fredObservationsResponse struct {
	Observations []fredObservation `json:"observations"`
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// Series implements gateway.SeriesProvider. FRED represents missing
// readings with the literal string "." — those observations are
// dropped rather than surfaced as zero values.
func (p *Provider) Series(ctx context.Context, seriesID string, from, to time.Time) ([]gateway.Observation, error) {
	reqURL := fmt.Sprintf("%s/series/observations?series_id=%s&api_key=%s&file_type=json&observation_start=%s&observation_end=%s",
		p.baseURL,
		url.QueryEscape(seriesID),
		url.QueryEscape(p.apiKey),
		from.Format("2006-01-02"),
		to.Format("2006-01-02"),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building fred request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, "fred request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.New(apperrors.KindRateLimited, "fred rate limit exceeded")
	}
	if resp.StatusCode == http.StatusBadRequest {
		return nil, apperrors.Newf(apperrors.KindNotFound, "unknown fred series %s", seriesID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.Newf(apperrors.KindUpstream, "fred returned %d: %s", resp.StatusCode, string(body))
	}

	var payload fredObservationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, "decoding fred response", err)
	}

	observations := make([]gateway.Observation, 0, len(payload.Observations))
	for _, o := range payload.Observations {
		if o.Value == "." {
			continue
		}
		date, err := time.Parse("2006-01-02", o.Date)
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(o.Value, 64)
		if err != nil {
			continue
		}
		observations = append(observations, gateway.Observation{Date: date, Value: value})
	}

	return observations, nil
}
