package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
)

func TestQuoteParsesSuccessResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"c":150.25,"d":1.5,"dp":1.01,"v":0,"t":1700000000}`))
	}))
	defer server.Close()

	p := New("test-key")
	p.baseURL = server.URL

	quote, err := p.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Ticker)
	assert.Equal(t, 150.25, quote.Price)
}

func TestQuoteMapsRateLimitStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := New("test-key")
	p.baseURL = server.URL

	_, err := p.Quote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindRateLimited, apperrors.KindOf(err))
}

func TestQuoteMapsEmptyPayloadToNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"c":0,"d":0,"dp":0,"v":0,"t":0}`))
	}))
	defer server.Close()

	p := New("test-key")
	p.baseURL = server.URL

	_, err := p.Quote(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
