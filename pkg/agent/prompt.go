package agent

import (
	"fmt"
	"strings"

	"github.com/quantdesk/tradedesk/pkg/gateway"
	"github.com/quantdesk/tradedesk/pkg/models"
)

// roleDescriptions gives each role its system-prompt persona. Debate
// roles are instructed to prefix their argument with the role tag the
// orchestrator's state machine expects (§4.5).
var roleDescriptions = map[Role]string{
	RoleMarket:          "You are a market analyst. Summarize price action, volume, and technical posture for the ticker.",
	RoleSocial:          "You are a social-sentiment analyst. Summarize retail and social-media sentiment for the ticker.",
	RoleNews:            "You are a news analyst. Summarize recent news coverage relevant to the ticker.",
	RoleFundamentals:    "You are a fundamentals analyst. Summarize the company's financial fundamentals.",
	RoleBenGraham:       "You are Benjamin Graham. Evaluate the ticker through a value-investing, margin-of-safety lens.",
	RoleWarrenBuffett:   "You are Warren Buffett. Evaluate the ticker through a quality-moat, long-horizon lens.",
	RoleBull:            "You are the Bull researcher in an investment debate. Argue for taking a position, countering the Bear's prior points. Prefix your argument with \"Bull:\".",
	RoleBear:            "You are the Bear researcher in an investment debate. Argue against taking a position, countering the Bull's prior points. Prefix your argument with \"Bear:\".",
	RoleResearchManager: "You are the research manager. Weigh the investment debate and produce a concrete investment plan.",
	RoleTrader:          "You are the trader. Turn the investment plan into a concrete trade recommendation.",
	RoleRisky:           "You are the Risky risk analyst. Argue for the more aggressive position. Prefix your argument with \"Risky:\".",
	RoleSafe:            "You are the Safe risk analyst. Argue for the more conservative position. Prefix your argument with \"Safe:\".",
	RoleNeutral:         "You are the Neutral risk analyst. Weigh both sides evenhandedly. Prefix your argument with \"Neutral:\".",
	RoleRiskManager:     "You are the risk manager. Weigh the risk debate and produce the final trade decision. State the decision as \"final trade proposal: BUY\" (or HOLD/SELL), and report confidence as a percentage on its own line.",
}

// BuildMessages assembles the conversation the LLM sees for one step.
// It is the Go-native equivalent of the teacher's PromptBuilder
// interface, collapsed into a single function since TradeDesk has no
// ReAct/native-thinking strategy split to serve.
func BuildMessages(role Role, input StepInput) []gateway.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticker: %s\nAnalysis date: %s\n", input.Ticker, input.AnalysisDate)

	if len(input.ExistingSections) > 0 {
		sb.WriteString("\nExisting report sections:\n")
		for _, st := range orderedSectionTypes(input.ExistingSections) {
			fmt.Fprintf(&sb, "### %s\n%s\n\n", st, input.ExistingSections[st])
		}
	}

	if input.DebateTranscript != "" {
		fmt.Fprintf(&sb, "\nDebate so far:\n%s\n", input.DebateTranscript)
	}

	if len(input.RecalledMemories) > 0 {
		sb.WriteString("\nRelevant past situations:\n")
		for _, m := range input.RecalledMemories {
			fmt.Fprintf(&sb, "- %s\n", m)
		}
	}

	for _, k := range orderedKeys(input.Extra) {
		fmt.Fprintf(&sb, "\n%s:\n%s\n", k, input.Extra[k])
	}

	return []gateway.Message{
		{Role: "system", Content: roleDescriptions[role]},
		{Role: "user", Content: sb.String()},
	}
}

func orderedSectionTypes(m map[models.SectionType]string) []models.SectionType {
	keys := make([]models.SectionType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Stable, deterministic prompt ordering by the enum's string form.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func orderedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
