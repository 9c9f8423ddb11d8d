package api

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
)

// tickerPattern is §6's ticker grammar: uppercase alphanumeric, 1-9
// characters, with an optional single `.`-separated 1-3 character
// suffix (class share tickers like BRK.B), after uppercasing (S6).
var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,9}(\.[A-Z0-9]{1,3})?$`)

// validateTicker uppercases and validates a ticker symbol, returning
// apperrors.KindInvalidArgument on a shape violation.
func validateTicker(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if !tickerPattern.MatchString(t) {
		return "", apperrors.Newf(apperrors.KindInvalidArgument, "invalid ticker %q", raw)
	}
	return t, nil
}

// parseAnalysisDate parses the ISO-8601 date the spec requires for
// /analysis/start, truncated to midnight UTC (§3's Session.AnalysisDate).
func parseAnalysisDate(raw string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperrors.Newf(apperrors.KindInvalidArgument, "invalid analysis_date %q, want YYYY-MM-DD", raw)
	}
	return d, nil
}

// atoiOr parses raw as an int, falling back to def on any parse error
// or an empty string — used for optional numeric query parameters.
func atoiOr(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// clampLimit enforces the list endpoint's documented ceiling (§6: ≤100).
func clampLimit(n int) int {
	if n <= 0 {
		return 20
	}
	if n > 100 {
		return 100
	}
	return n
}

// splitTickers parses the comma-separated `tickers` query param for the
// batch quote endpoint, validating each and enforcing the ≤50 cap (§6).
func splitTickers(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	if len(parts) > 50 {
		return nil, apperrors.Newf(apperrors.KindInvalidArgument, "at most 50 tickers per request, got %d", len(parts))
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		t, err := validateTicker(p)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "tickers query parameter is required")
	}
	return out, nil
}
