package gateway

import (
	"fmt"
	"sort"
	"strings"
)

// cacheKey builds a stable, order-independent key from named request
// fields, excluding credentials by construction (callers never pass
// API keys into this function) — §4.1's "canonicalized request" rule.
func cacheKey(op string, fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(op)
	for _, k := range names {
		fmt.Fprintf(&b, "|%s=%s", k, fields[k])
	}
	return b.String()
}
