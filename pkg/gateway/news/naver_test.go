package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
)

func TestNewsParsesAndCleansItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"total": 1,
			"start": 1,
			"display": 1,
			"items": [{
				"title": "<b>Samsung</b> shares rise",
				"originallink": "https://www.hankyung.com/article/123",
				"link": "https://news.naver.com/article/123",
				"description": "Shares of &quot;Samsung&quot; rose 3 percent today.",
				"pubDate": "Mon, 26 Sep 2016 07:50:00 +0900"
			}]
		}`))
	}))
	defer server.Close()

	p := New("id", "secret")
	p.baseURL = server.URL

	from := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	articles, err := p.News(context.Background(), "Samsung", from, to, 10)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Samsung shares rise", articles[0].Title)
	assert.Equal(t, "Korea Economic Daily", articles[0].Source)
	assert.Equal(t, "https://www.hankyung.com/article/123", articles[0].URL)
	assert.Equal(t, `Shares of "Samsung" rose 3 percent today.`, articles[0].Summary)
}

func TestNewsFiltersOutsideDateWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"total": 1,
			"items": [{
				"title": "old news",
				"link": "https://example.com/a",
				"pubDate": "Mon, 26 Sep 2016 07:50:00 +0900"
			}]
		}`))
	}))
	defer server.Close()

	p := New("id", "secret")
	p.baseURL = server.URL

	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)

	articles, err := p.News(context.Background(), "anything", from, to, 10)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestNewsMapsRateLimitStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := New("id", "secret")
	p.baseURL = server.URL

	_, err := p.News(context.Background(), "q", time.Now().Add(-time.Hour), time.Now(), 10)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindRateLimited, apperrors.KindOf(err))
}

func TestCleanHTMLStripsTagsAndEntities(t *testing.T) {
	assert.Equal(t, `Samsung "shares" rise`, cleanHTML(`<b>Samsung</b> &quot;shares&quot; rise`))
	assert.Equal(t, "", cleanHTML(""))
}

func TestSourceFromURLMatchesKnownDomainsAndFallsBack(t *testing.T) {
	assert.Equal(t, "Yonhap News", sourceFromURL("https://www.yonhapnews.co.kr/article/1"))
	assert.Equal(t, "example", sourceFromURL("https://www.example.com/article/1"))
}
