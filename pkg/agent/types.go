// Package agent implements the Agent Runtime (C4): a single bounded
// tool-call loop over the Gateway, producing report-section content for
// one pipeline role. Grounded on the teacher's pkg/agent package — the
// role/controller split and conversation-message shape carry over, but
// the teacher's gRPC-streaming LLMClient is replaced by a direct
// request/response call through pkg/gateway (see DESIGN.md).
package agent

import (
	"github.com/quantdesk/tradedesk/pkg/gateway"
	"github.com/quantdesk/tradedesk/pkg/models"
)

// Role identifies one of the fixed pipeline roles (§4.5's phase table).
type Role string

const (
	RoleMarket          Role = "market"
	RoleSocial          Role = "social"
	RoleNews            Role = "news"
	RoleFundamentals    Role = "fundamentals"
	RoleBenGraham       Role = "ben_graham"
	RoleWarrenBuffett   Role = "warren_buffett"
	RoleBull            Role = "bull"
	RoleBear            Role = "bear"
	RoleResearchManager Role = "research_manager"
	RoleTrader          Role = "trader"
	RoleRisky           Role = "risky"
	RoleSafe            Role = "safe"
	RoleNeutral         Role = "neutral"
	RoleRiskManager     Role = "risk_manager"
)

// sectionFor maps the roles that produce a persisted report section to
// their section type. Debate roles (bull/bear/risky/safe/neutral) don't
// appear here — their output is appended to in-memory debate state by
// the orchestrator, not written as a standalone section (§4.5).
var sectionFor = map[Role]models.SectionType{
	RoleMarket:          models.SectionMarketReport,
	RoleSocial:          models.SectionSentimentReport,
	RoleNews:            models.SectionNewsReport,
	RoleFundamentals:    models.SectionFundamentalsReport,
	RoleBenGraham:       models.SectionBenGrahamReport,
	RoleWarrenBuffett:   models.SectionWarrenBuffettReport,
	RoleResearchManager: models.SectionInvestmentPlan,
	RoleTrader:          models.SectionTraderPlan,
	RoleRiskManager:     models.SectionFinalTradeDecision,
}

// SectionFor reports the section type a role's output is persisted
// under, and whether the role produces a standalone section at all.
func SectionFor(role Role) (models.SectionType, bool) {
	s, ok := sectionFor[role]
	return s, ok
}

// StepInput is the immutable session-state view handed to a single
// agent step (§4.4's Contract).
type StepInput struct {
	Ticker       string
	AnalysisDate string // ISO-8601

	// Existing report sections the role's prompt may reference, keyed
	// by section type (e.g. the debate roles read all analyst reports).
	ExistingSections map[models.SectionType]string

	// RecalledMemories are prior situation→recommendation pairs pulled
	// from the Memory Store (§4.3), already formatted for prompt
	// inclusion.
	RecalledMemories []string

	// DebateTranscript is the running history text for debate roles
	// (bull/bear/risky/safe/neutral); empty for non-debate roles.
	DebateTranscript string

	// Extra carries free-form context a specific role needs (e.g. the
	// trader's investment plan, the risk manager's full risk history)
	// without growing this struct per role.
	Extra map[string]string
}

// StepOutput is what a step returns to the orchestrator (§4.4's
// Contract). The orchestrator persists Content as the step's section,
// if any; it does not read UpdatedFields.
type StepOutput struct {
	Role          Role
	Content       string
	UpdatedFields map[string]string
	ToolRounds    int
}

// Capability is the set of tool operation names an agent step may
// invoke (quote, news, series and sentiment name Gateway methods;
// fear_greed maps to FearGreedCurrent and recall_memory to the Memory
// Store), resolved at construction per the "online_tools" config flag (§9 Design Notes:
// "Dynamic tool binding").
type Capability string

const (
	ToolQuote     Capability = "quote"
	ToolNews      Capability = "news"
	ToolSeries    Capability = "series"
	ToolSentiment Capability = "sentiment"
	ToolFearGreed Capability = "fear_greed"
	ToolRecall    Capability = "recall_memory"
)

// OnlineTools is the capability set used when config.PipelineConfig.
// OnlineTools is true: every live data-fetch op plus memory recall.
var OnlineTools = []Capability{ToolQuote, ToolNews, ToolSeries, ToolSentiment, ToolFearGreed, ToolRecall}

// OfflineTools is the capability set used when online data fetches are
// disabled: only the Memory Store, which is local and has no upstream
// dependency.
var OfflineTools = []Capability{ToolRecall}

// ToolSpecs returns the gateway.ToolSpec declarations for a capability
// set, to pass to gateway.Chat.
func ToolSpecs(caps []Capability) []gateway.ToolSpec {
	specs := make([]gateway.ToolSpec, 0, len(caps))
	for _, c := range caps {
		if spec, ok := toolCatalog[c]; ok {
			specs = append(specs, spec)
		}
	}
	return specs
}

var toolCatalog = map[Capability]gateway.ToolSpec{
	ToolQuote: {
		Name:        "quote",
		Description: "Fetch the current real-time quote for a ticker.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"ticker": map[string]any{"description": "stock ticker symbol"}},
			"required":   []any{"ticker"},
		},
	},
	ToolNews: {
		Name:        "news",
		Description: "Fetch recent news articles for a ticker or category.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"description": "ticker or search category"},
				"days":  map[string]any{"description": "how many days back to search"},
			},
			"required": []any{"query"},
		},
	},
	ToolSeries: {
		Name:        "series",
		Description: "Fetch an economic time series (FRED series id) over a date range.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"series_id": map[string]any{"description": "FRED series identifier, e.g. DFF"},
				"days":      map[string]any{"description": "how many days of history"},
			},
			"required": []any{"series_id"},
		},
	},
	ToolSentiment: {
		Name:        "sentiment",
		Description: "Fetch a composite sentiment snapshot for a ticker.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"ticker": map[string]any{"description": "stock ticker symbol"}},
			"required":   []any{"ticker"},
		},
	},
	ToolFearGreed: {
		Name:        "fear_greed",
		Description: "Fetch the current market-wide Fear & Greed Index reading.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	},
	ToolRecall: {
		Name:        "recall_memory",
		Description: "Recall prior situations and recommendations similar to a given situation.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"situation": map[string]any{"description": "the current situation to match against"},
				"n":         map[string]any{"description": "how many prior memories to recall"},
			},
			"required": []any{"situation"},
		},
	},
}
