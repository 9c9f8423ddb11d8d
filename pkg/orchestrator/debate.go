package orchestrator

import (
	"context"

	"github.com/quantdesk/tradedesk/pkg/agent"
)

// runInvestmentDebate alternates the Bull and Bear researchers until
// count reaches 2×MaxDebateRounds turns (§4.5), then returns the final
// state for the research manager to weigh. Debate roles use
// OfflineTools — they argue from the existing report sections and
// prior debate turns, not live market calls.
func (o *Orchestrator) runInvestmentDebate(ctx context.Context, sessionID, ticker, analysisDate string, sections *sectionsView) (investmentDebateState, error) {
	state := investmentDebateState{}
	maxTurns := 2 * o.cfg.MaxDebateRounds
	if maxTurns <= 0 {
		maxTurns = 4
	}

	for state.Count < maxTurns {
		role := agent.RoleBull
		if state.Count%2 != 0 {
			role = agent.RoleBear
		}

		out, err := o.runSingleAgent(ctx, sessionID, role, agent.StepInput{
			Ticker: ticker, AnalysisDate: analysisDate,
			ExistingSections: sections.snapshot(),
			DebateTranscript: state.History,
		}, agent.OfflineTools)
		if err != nil {
			return state, err
		}

		state.History = appendTranscript(state.History, out.Content)
		state.CurrentResponse = out.Content
		if role == agent.RoleBull {
			state.BullHistory = appendTranscript(state.BullHistory, out.Content)
		} else {
			state.BearHistory = appendTranscript(state.BearHistory, out.Content)
		}
		state.Count++
	}

	return state, nil
}

// riskDebateOrder is the fixed Risky → Safe → Neutral rotation (§4.5).
var riskDebateOrder = []agent.Role{agent.RoleRisky, agent.RoleSafe, agent.RoleNeutral}

// runRiskDebate rotates the three risk analysts until count reaches
// 3×MaxRiskRounds turns, then returns the final state for the risk
// manager. The trader's plan is carried in Extra so every risk
// analyst argues against the same concrete recommendation.
func (o *Orchestrator) runRiskDebate(ctx context.Context, sessionID, ticker, analysisDate string, sections *sectionsView, traderPlan string) (riskDebateState, error) {
	state := riskDebateState{}
	maxTurns := 3 * o.cfg.MaxRiskRounds
	if maxTurns <= 0 {
		maxTurns = 3
	}

	for state.Count < maxTurns {
		role := riskDebateOrder[state.Count%len(riskDebateOrder)]

		out, err := o.runSingleAgent(ctx, sessionID, role, agent.StepInput{
			Ticker: ticker, AnalysisDate: analysisDate,
			ExistingSections: sections.snapshot(),
			DebateTranscript: state.History,
			Extra:            map[string]string{"trader_plan": traderPlan},
		}, agent.OfflineTools)
		if err != nil {
			return state, err
		}

		state.History = appendTranscript(state.History, out.Content)
		state.LatestSpeaker = string(role)
		switch role {
		case agent.RoleRisky:
			state.RiskyHistory = appendTranscript(state.RiskyHistory, out.Content)
			state.CurrentRiskyResponse = out.Content
		case agent.RoleSafe:
			state.SafeHistory = appendTranscript(state.SafeHistory, out.Content)
			state.CurrentSafeResponse = out.Content
		case agent.RoleNeutral:
			state.NeutralHistory = appendTranscript(state.NeutralHistory, out.Content)
			state.CurrentNeutralResponse = out.Content
		}
		state.Count++
	}

	return state, nil
}
