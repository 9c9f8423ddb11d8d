// Package news implements gateway.NewsProvider over the Naver Search
// (news) API. Naver has no Go SDK anywhere in the retrieval pack, and
// the integration itself traces back to the original implementation's
// naver_news_utils.py rather than to any teacher repo (see DESIGN.md),
// so this follows the same hand-written net/http shape established by
// pkg/gateway/market for Finnhub.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/gateway"
)

const naverBaseURL = "https://openapi.naver.com/v1/search"

// Provider calls the Naver /search/news.json endpoint.
type Provider struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
	baseURL      string
}

// New builds a Provider bound to a Naver client ID/secret pair.
func New(clientID, clientSecret string) *Provider {
	return &Provider{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      naverBaseURL,
	}
}

type naverNewsResponse struct {
	Total   int             `json:"total"`
	Start   int             `json:"start"`
	Display int             `json:"display"`
	Items   []naverNewsItem `json:"items"`
}

type naverNewsItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

// News implements gateway.NewsProvider. categoryOrTicker is used as the
// free-text search query; from/to bound which articles are kept, and
// limit is capped at Naver's own per-call maximum of 100.
func (p *Provider) News(ctx context.Context, categoryOrTicker string, from, to time.Time, limit int) ([]gateway.Article, error) {
	display := limit
	if display <= 0 || display > 100 {
		display = 100
	}

	reqURL := fmt.Sprintf("%s/news.json?query=%s&display=%d&start=1&sort=date",
		p.baseURL, url.QueryEscape(categoryOrTicker), display)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building naver request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", p.clientID)
	req.Header.Set("X-Naver-Client-Secret", p.clientSecret)
	req.Header.Set("User-Agent", "tradedesk/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, "naver request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.New(apperrors.KindRateLimited, "naver rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.Newf(apperrors.KindUpstream, "naver returned %d: %s", resp.StatusCode, string(body))
	}

	var payload naverNewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, "decoding naver response", err)
	}

	articles := make([]gateway.Article, 0, len(payload.Items))
	for _, item := range payload.Items {
		publishedAt, ok := parsePubDate(item.PubDate)
		if ok && (publishedAt.Before(from) || publishedAt.After(to)) {
			continue
		}
		if !ok {
			publishedAt = time.Now().UTC()
		}

		link := item.OriginalLink
		if link == "" {
			link = item.Link
		}

		articles = append(articles, gateway.Article{
			Title:       cleanHTML(item.Title),
			Source:      sourceFromURL(link),
			URL:         link,
			Summary:     cleanHTML(item.Description),
			Ticker:      categoryOrTicker,
			PublishedAt: publishedAt,
		})
	}

	return articles, nil
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

var htmlEntities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", `"`,
	"&#39;", "'",
)

// cleanHTML strips the <b> highlight tags and decodes the handful of
// entities Naver's API embeds in titles and descriptions.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	s = htmlTagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(htmlEntities.Replace(s))
}

// pubDateLayout matches Naver's RFC822-with-numeric-zone pubDate, e.g.
// "Mon, 26 Sep 2016 07:50:00 +0900".
const pubDateLayout = "Mon, 02 Jan 2006 15:04:05 -0700"

func parsePubDate(s string) (time.Time, bool) {
	t, err := time.Parse(pubDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// sourceDomains maps the handful of outlet domains the original
// integration special-cased to a display name; everything else falls
// back to the bare domain.
var sourceDomains = map[string]string{
	"yonhapnews": "Yonhap News",
	"chosun":     "Chosun Ilbo",
	"joongang":   "JoongAng Ilbo",
	"donga":      "Dong-A Ilbo",
	"hani":       "Hankyoreh",
	"khan":       "Kyunghyang Shinmun",
	"segye":      "Segye Ilbo",
	"munhwa":     "Munhwa Ilbo",
	"seoul":      "Seoul Shinmun",
	"kookje":     "Kookje Shinmun",
	"busan":      "Busan Ilbo",
	"etnews":     "Electronic Times",
	"mk":         "Maeil Business",
	"hankyung":   "Korea Economic Daily",
	"fnnews":     "Financial News",
	"newsis":     "Newsis",
	"news1":      "News1",
	"yna":        "Yonhap News",
	"naver":      "Naver News",
}

func sourceFromURL(raw string) string {
	lower := strings.ToLower(raw)
	for domain, name := range sourceDomains {
		if strings.Contains(lower, domain) {
			return name
		}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	host := strings.TrimPrefix(u.Host, "www.")
	host = strings.TrimSuffix(host, ".co.kr")
	host = strings.TrimSuffix(host, ".com")
	return host
}
