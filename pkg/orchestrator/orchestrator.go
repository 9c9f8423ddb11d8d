package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantdesk/tradedesk/pkg/agent"
	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/config"
	"github.com/quantdesk/tradedesk/pkg/memory"
	"github.com/quantdesk/tradedesk/pkg/models"
	"github.com/quantdesk/tradedesk/pkg/store"
)

// sessionStore is the narrow slice of *store.Store the orchestrator
// needs. Declared here rather than depended on concretely so tests can
// supply a fake instead of a real database.
type sessionStore interface {
	UpsertAgentStatus(ctx context.Context, sessionID, agentName string, status models.ExecutionStatus, startedAt, completedAt *time.Time, errMsg *string) error
	AppendSection(ctx context.Context, sessionID string, sectionType models.SectionType, agentName, content string) error
	FinalizeSession(ctx context.Context, sessionID string, status models.SessionStatus, decision *models.Decision, confidence, executionSeconds *float64) error
}

// recallStore is the narrow slice of *memory.Store the orchestrator
// needs for the trader's recall and the post-decision record.
type recallStore interface {
	Recall(ctx context.Context, situation string, n int) ([]memory.Recalled, error)
	Record(ctx context.Context, situation, recommendation string) error
}

// stepper is the narrow slice of *agent.Runtime the orchestrator needs.
type stepper interface {
	Step(ctx context.Context, role agent.Role, input agent.StepInput, caps []agent.Capability) (agent.StepOutput, error)
}

// Orchestrator is the Pipeline Orchestrator (C5): it drives the analyst
// phase, investment debate, research manager, trader, risk debate, and
// risk manager for one session, persisting through Store and notifying
// through Publisher as it goes.
type Orchestrator struct {
	store     sessionStore
	memory    recallStore // nil disables recall/record, per §4.3
	runtime   stepper
	publisher Publisher // nil disables progress events
	cfg       config.PipelineConfig
}

// New wires an Orchestrator. mem and publisher may be nil.
func New(st *store.Store, mem *memory.Store, runtime *agent.Runtime, publisher Publisher, cfg config.PipelineConfig) *Orchestrator {
	o := &Orchestrator{store: st, runtime: runtime, publisher: publisher, cfg: cfg}
	if mem != nil {
		o.memory = mem
	}
	return o
}

// Run executes one full pipeline for sessionID, finalizing it to
// completed/failed/canceled before returning. It never returns an
// error directly — all failures are recorded on the session itself,
// mirroring the teacher's "the session record is the result" pattern
// in pkg/queue/executor.go.
func (o *Orchestrator) Run(ctx context.Context, sessionID, ticker, analysisDate string) {
	started := time.Now().UTC()

	deadline := o.cfg.SessionDeadline
	if deadline <= 0 {
		deadline = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	caps := agent.OfflineTools
	if o.cfg.OnlineTools {
		caps = agent.OnlineTools
	}

	sections := newSectionsView()

	o.changePhase(sessionID, "analysts")
	analystRoles := []agent.Role{
		agent.RoleMarket, agent.RoleSocial, agent.RoleNews, agent.RoleFundamentals,
	}
	analystOutputs, err := o.runPhase(ctx, sessionID, analystRoles, func(agent.Role) agent.StepInput {
		return agent.StepInput{Ticker: ticker, AnalysisDate: analysisDate, ExistingSections: sections.snapshot()}
	}, caps)
	if err != nil {
		o.finalizeFailed(ctx, sessionID, started, err)
		return
	}
	for i, role := range analystRoles {
		if st, ok := agent.SectionFor(role); ok {
			sections.set(st, analystOutputs[i].Content)
		}
	}

	// Phase B (the value-investor roles) only launches once Phase A has
	// fully completed and persisted — §8 Testable Property 10 requires
	// every phase-B section's created_at to be no earlier than every
	// phase-A section's, which a single merged fan-out cannot guarantee
	// since goroutine completion order is nondeterministic.
	investorRoles := []agent.Role{agent.RoleBenGraham, agent.RoleWarrenBuffett}
	investorOutputs, err := o.runPhase(ctx, sessionID, investorRoles, func(agent.Role) agent.StepInput {
		return agent.StepInput{Ticker: ticker, AnalysisDate: analysisDate, ExistingSections: sections.snapshot()}
	}, caps)
	if err != nil {
		o.finalizeFailed(ctx, sessionID, started, err)
		return
	}
	for i, role := range investorRoles {
		if st, ok := agent.SectionFor(role); ok {
			sections.set(st, investorOutputs[i].Content)
		}
	}

	o.changePhase(sessionID, "investment_debate")
	debate, err := o.runInvestmentDebate(ctx, sessionID, ticker, analysisDate, sections)
	if err != nil {
		o.finalizeFailed(ctx, sessionID, started, err)
		return
	}

	o.changePhase(sessionID, "research_manager")
	rmOut, err := o.runSingleAgent(ctx, sessionID, agent.RoleResearchManager, agent.StepInput{
		Ticker: ticker, AnalysisDate: analysisDate,
		ExistingSections: sections.snapshot(), DebateTranscript: debate.History,
	}, agent.OfflineTools)
	if err != nil {
		o.finalizeFailed(ctx, sessionID, started, err)
		return
	}
	sections.set(models.SectionInvestmentPlan, rmOut.Content)

	o.changePhase(sessionID, "trader")
	traderInput := agent.StepInput{Ticker: ticker, AnalysisDate: analysisDate, ExistingSections: sections.snapshot()}
	if o.memory != nil {
		if recalls, rerr := o.memory.Recall(ctx, situationSummary(ticker, sections), 3); rerr == nil {
			traderInput.RecalledMemories = recalledStrings(recalls)
		}
	}
	traderOut, err := o.runSingleAgent(ctx, sessionID, agent.RoleTrader, traderInput, caps)
	if err != nil {
		o.finalizeFailed(ctx, sessionID, started, err)
		return
	}
	sections.set(models.SectionTraderPlan, traderOut.Content)

	o.changePhase(sessionID, "risk_debate")
	riskState, err := o.runRiskDebate(ctx, sessionID, ticker, analysisDate, sections, traderOut.Content)
	if err != nil {
		o.finalizeFailed(ctx, sessionID, started, err)
		return
	}

	o.changePhase(sessionID, "risk_manager")
	finalOut, err := o.runSingleAgent(ctx, sessionID, agent.RoleRiskManager, agent.StepInput{
		Ticker: ticker, AnalysisDate: analysisDate,
		ExistingSections: sections.snapshot(), DebateTranscript: riskState.History,
	}, agent.OfflineTools)
	if err != nil {
		o.finalizeFailed(ctx, sessionID, started, err)
		return
	}
	sections.set(models.SectionFinalTradeDecision, finalOut.Content)

	decision, confidence := extractDecision(finalOut.Content)
	execSeconds := time.Since(started).Seconds()

	if err := o.store.FinalizeSession(context.Background(), sessionID, models.SessionCompleted, decision, confidence, &execSeconds); err != nil {
		o.publish(sessionID, EventTerminal, map[string]string{"status": "failed", "error": err.Error()})
		return
	}

	if o.memory != nil && decision != nil {
		_ = o.memory.Record(context.Background(), situationSummary(ticker, sections), string(*decision))
	}

	o.publish(sessionID, EventTerminal, map[string]string{"status": "completed"})
}

// finalizeFailed transitions the session to failed or canceled
// depending on whether the context was canceled or timed out, then
// publishes a Terminal event. It always runs against a background
// context since ctx itself may already be done.
func (o *Orchestrator) finalizeFailed(ctx context.Context, sessionID string, started time.Time, cause error) {
	status := models.SessionFailed
	if apperrors.KindOf(cause) == apperrors.KindCanceled || ctx.Err() == context.Canceled {
		status = models.SessionCanceled
	}
	execSeconds := time.Since(started).Seconds()
	_ = o.store.FinalizeSession(context.Background(), sessionID, status, nil, nil, &execSeconds)
	o.publish(sessionID, EventTerminal, map[string]string{"status": string(status), "error": cause.Error()})
}

func (o *Orchestrator) changePhase(sessionID, phase string) {
	o.publish(sessionID, EventPhaseChanged, map[string]string{"phase": phase})
}

func (o *Orchestrator) publish(sessionID string, kind EventKind, payload map[string]string) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(Event{SessionID: sessionID, Timestamp: time.Now().UTC(), Kind: kind, Payload: payload})
}

// phaseResult carries one fan-out agent's outcome back with its
// original launch index, since channel delivery order is
// nondeterministic (grounded on the teacher's collectAndSort in
// pkg/queue/executor.go).
type phaseResult struct {
	idx    int
	output agent.StepOutput
	err    error
}

// runPhase launches one goroutine per role, waits for all of them, and
// returns outputs in the same order as roles. Any single agent's
// failure fails the whole phase (§4.5: any agent failure is fatal, no
// orchestrator-level retry) — but every goroutine is allowed to run to
// completion first, exactly as the teacher's executeStage does.
func (o *Orchestrator) runPhase(ctx context.Context, sessionID string, roles []agent.Role, buildInput func(agent.Role) agent.StepInput, caps []agent.Capability) ([]agent.StepOutput, error) {
	results := make(chan phaseResult, len(roles))
	var wg sync.WaitGroup
	for i, role := range roles {
		wg.Add(1)
		go func(idx int, role agent.Role) {
			defer wg.Done()
			out, err := o.runSingleAgent(ctx, sessionID, role, buildInput(role), caps)
			results <- phaseResult{idx: idx, output: out, err: err}
		}(i, role)
	}
	wg.Wait()
	close(results)

	collected := make([]phaseResult, len(roles))
	for r := range results {
		collected[r.idx] = r
	}

	outputs := make([]agent.StepOutput, len(roles))
	for i, r := range collected {
		if r.err != nil {
			return nil, r.err
		}
		outputs[i] = r.output
	}
	return outputs, nil
}

// runSingleAgent runs one bounded agent step, recording its status
// transition and, when the role maps to a standalone section,
// persisting it. It is the unit both runPhase and the debate loops
// build on.
func (o *Orchestrator) runSingleAgent(ctx context.Context, sessionID string, role agent.Role, input agent.StepInput, caps []agent.Capability) (agent.StepOutput, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return agent.StepOutput{}, apperrors.Wrap(apperrors.KindCanceled, fmt.Sprintf("agent %s not started", role), ctxErr)
	}
	start := time.Now().UTC()
	o.publish(sessionID, EventAgentStarted, map[string]string{"agent": string(role)})
	_ = o.store.UpsertAgentStatus(ctx, sessionID, string(role), models.ExecutionRunning, &start, nil, nil)

	out, err := o.runtime.Step(ctx, role, input, caps)
	completed := time.Now().UTC()
	if err != nil {
		msg := err.Error()
		_ = o.store.UpsertAgentStatus(context.Background(), sessionID, string(role), models.ExecutionFailed, &start, &completed, &msg)
		o.publish(sessionID, EventAgentFinished, map[string]string{"agent": string(role), "status": "failed"})
		return agent.StepOutput{}, apperrors.Wrap(apperrors.KindOf(err), fmt.Sprintf("agent %s failed", role), err)
	}

	if err := o.store.UpsertAgentStatus(ctx, sessionID, string(role), models.ExecutionCompleted, &start, &completed, nil); err != nil {
		return agent.StepOutput{}, fmt.Errorf("recording completion for %s: %w", role, err)
	}

	if st, ok := agent.SectionFor(role); ok {
		if err := o.store.AppendSection(ctx, sessionID, st, string(role), out.Content); err != nil {
			return agent.StepOutput{}, fmt.Errorf("persisting section %s: %w", st, err)
		}
		o.publish(sessionID, EventSectionAppended, map[string]string{"agent": string(role), "section": string(st)})
	}

	o.publish(sessionID, EventAgentFinished, map[string]string{"agent": string(role), "status": "completed"})
	return out, nil
}

func situationSummary(ticker string, sections *sectionsView) string {
	snap := sections.snapshot()
	return fmt.Sprintf("%s | market: %s | sentiment: %s | news: %s",
		ticker, snap[models.SectionMarketReport], snap[models.SectionSentimentReport], snap[models.SectionNewsReport])
}

func recalledStrings(recalls []memory.Recalled) []string {
	out := make([]string, len(recalls))
	for i, r := range recalls {
		out[i] = r.Recommendation
	}
	return out
}
