package orchestrator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/quantdesk/tradedesk/pkg/models"
)

// finalProposalPattern matches "final ... proposal ... BUY/HOLD/SELL"
// with a short, case-insensitive gap on either side of "proposal",
// per §4.5's final-decision extraction rule.
var finalProposalPattern = regexp.MustCompile(`(?i)final[^.\n]{0,40}proposal[^A-Za-z]{0,10}(BUY|HOLD|SELL)`)

// confidencePattern matches a 0-100 percentage token on a line that
// mentions confidence.
var confidencePattern = regexp.MustCompile(`(?i)confidence[^0-9%\n]{0,20}([0-9]{1,3})\s*%`)

// extractDecision parses the risk manager's final_trade_decision
// content for the last "final ... proposal" occurrence and an
// accompanying confidence percentage. Either or both may be nil when
// the content doesn't match — the session still completes (§4.5).
func extractDecision(content string) (*models.Decision, *float64) {
	var decision *models.Decision
	if matches := finalProposalPattern.FindAllStringSubmatch(content, -1); len(matches) > 0 {
		last := matches[len(matches)-1]
		d := models.Decision(strings.ToUpper(last[1]))
		decision = &d
	}

	var confidence *float64
	if matches := confidencePattern.FindAllStringSubmatch(content, -1); len(matches) > 0 {
		last := matches[len(matches)-1]
		if pct, err := strconv.ParseFloat(last[1], 64); err == nil && pct >= 0 && pct <= 100 {
			c := pct / 100
			confidence = &c
		}
	}

	return decision, confidence
}
