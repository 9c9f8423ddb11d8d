package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/tradedesk/pkg/agent"
	"github.com/quantdesk/tradedesk/pkg/config"
	"github.com/quantdesk/tradedesk/pkg/memory"
	"github.com/quantdesk/tradedesk/pkg/models"
)

// fakeStore is an in-memory sessionStore for exercising Orchestrator
// logic without a database.
type fakeStore struct {
	mu         sync.Mutex
	statuses   map[string]models.ExecutionStatus
	sections   map[models.SectionType]string
	finalized   bool
	finalState  models.SessionStatus
	decision    *models.Decision
	confidence  *float64
	appendOrder []models.SectionType
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		statuses: make(map[string]models.ExecutionStatus),
		sections: make(map[models.SectionType]string),
	}
}

func (f *fakeStore) UpsertAgentStatus(ctx context.Context, sessionID, agentName string, status models.ExecutionStatus, startedAt, completedAt *time.Time, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[agentName] = status
	return nil
}

func (f *fakeStore) AppendSection(ctx context.Context, sessionID string, sectionType models.SectionType, agentName, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sections[sectionType] = content
	f.appendOrder = append(f.appendOrder, sectionType)
	return nil
}

func (f *fakeStore) FinalizeSession(ctx context.Context, sessionID string, status models.SessionStatus, decision *models.Decision, confidence, executionSeconds *float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = true
	f.finalState = status
	f.decision = decision
	f.confidence = confidence
	return nil
}

// scriptedRuntime returns a fixed response for each role, regardless
// of call count, so debate loops terminate deterministically in tests.
type scriptedRuntime struct {
	byRole map[agent.Role]string
}

func (r *scriptedRuntime) Step(ctx context.Context, role agent.Role, input agent.StepInput, caps []agent.Capability) (agent.StepOutput, error) {
	content, ok := r.byRole[role]
	if !ok {
		content = "no comment"
	}
	return agent.StepOutput{Role: role, Content: content, ToolRounds: 1}, nil
}

func happyPathRuntime() *scriptedRuntime {
	return &scriptedRuntime{byRole: map[agent.Role]string{
		agent.RoleMarket:          "market steady",
		agent.RoleSocial:          "sentiment positive",
		agent.RoleNews:            "no major news",
		agent.RoleFundamentals:    "fundamentals solid",
		agent.RoleBenGraham:       "margin of safety present",
		agent.RoleWarrenBuffett:   "durable moat",
		agent.RoleBull:            "Bull: strong upside",
		agent.RoleBear:            "Bear: valuation stretched",
		agent.RoleResearchManager: "balanced plan: accumulate gradually",
		agent.RoleTrader:          "trader plan: buy in tranches",
		agent.RoleRisky:           "Risky: go all in",
		agent.RoleSafe:            "Safe: hedge the position",
		agent.RoleNeutral:         "Neutral: moderate size",
		agent.RoleRiskManager:     "final trade proposal: BUY\nconfidence: 72%",
	}}
}

func testCfg() config.PipelineConfig {
	return config.PipelineConfig{MaxDebateRounds: 1, MaxRiskRounds: 1, MaxToolRounds: 8}
}

func TestRunCompletesHappyPathAndFinalizes(t *testing.T) {
	fs := newFakeStore()
	o := &Orchestrator{store: fs, runtime: happyPathRuntime(), cfg: testCfg()}

	o.Run(context.Background(), "sess-1", "AAPL", "2025-01-20")

	require.True(t, fs.finalized)
	assert.Equal(t, models.SessionCompleted, fs.finalState)
	require.NotNil(t, fs.decision)
	assert.Equal(t, models.DecisionBuy, *fs.decision)
	require.NotNil(t, fs.confidence)
	assert.InDelta(t, 0.72, *fs.confidence, 0.001)

	assert.Equal(t, "market steady", fs.sections[models.SectionMarketReport])
	assert.Equal(t, "trader plan: buy in tranches", fs.sections[models.SectionTraderPlan])
	assert.Contains(t, fs.sections[models.SectionFinalTradeDecision], "BUY")
}

// slowNewsRuntime delays RoleNews (a Phase A analyst) past every Phase
// B investor role, so a test can prove Phase B still does not persist
// before Phase A finishes even when a Phase A role is the slowest.
type slowNewsRuntime struct {
	inner *scriptedRuntime
}

func (r *slowNewsRuntime) Step(ctx context.Context, role agent.Role, input agent.StepInput, caps []agent.Capability) (agent.StepOutput, error) {
	if role == agent.RoleNews {
		time.Sleep(30 * time.Millisecond)
	}
	return r.inner.Step(ctx, role, input, caps)
}

// TestRunPersistsPhaseBOnlyAfterPhaseACompletes guards §8 Testable
// Property 10: every phase-B section must be appended no earlier than
// every phase-A section, even when a phase-A role (here, news) is
// slower than every phase-B role.
func TestRunPersistsPhaseBOnlyAfterPhaseACompletes(t *testing.T) {
	fs := newFakeStore()
	rt := &slowNewsRuntime{inner: happyPathRuntime()}
	o := &Orchestrator{store: fs, runtime: rt, cfg: testCfg()}

	o.Run(context.Background(), "sess-order", "AAPL", "2025-01-20")

	phaseA := map[models.SectionType]bool{
		models.SectionMarketReport:       true,
		models.SectionSentimentReport:    true,
		models.SectionNewsReport:         true,
		models.SectionFundamentalsReport: true,
	}
	phaseB := map[models.SectionType]bool{
		models.SectionBenGrahamReport:     true,
		models.SectionWarrenBuffettReport: true,
	}

	lastPhaseAIdx, firstPhaseBIdx := -1, -1
	for i, st := range fs.appendOrder {
		if phaseA[st] {
			lastPhaseAIdx = i
		}
		if phaseB[st] && firstPhaseBIdx == -1 {
			firstPhaseBIdx = i
		}
	}

	require.NotEqual(t, -1, lastPhaseAIdx, "expected phase-A sections to be recorded")
	require.NotEqual(t, -1, firstPhaseBIdx, "expected phase-B sections to be recorded")
	assert.Less(t, lastPhaseAIdx, firstPhaseBIdx, "every phase-A section must be appended before any phase-B section")
}

// failingRuntime fails one specific role and succeeds on everything else.
type failingRuntime struct {
	failRole agent.Role
	inner    *scriptedRuntime
}

func (r *failingRuntime) Step(ctx context.Context, role agent.Role, input agent.StepInput, caps []agent.Capability) (agent.StepOutput, error) {
	if role == r.failRole {
		return agent.StepOutput{}, assert.AnError
	}
	return r.inner.Step(ctx, role, input, caps)
}

func TestRunFailsSessionWhenAnAnalystFails(t *testing.T) {
	fs := newFakeStore()
	rt := &failingRuntime{failRole: agent.RoleNews, inner: happyPathRuntime()}
	o := &Orchestrator{store: fs, runtime: rt, cfg: testCfg()}

	o.Run(context.Background(), "sess-2", "AAPL", "2025-01-20")

	require.True(t, fs.finalized)
	assert.Equal(t, models.SessionFailed, fs.finalState)
	assert.Nil(t, fs.decision)
}

func TestRunMarksCanceledOnContextCancellation(t *testing.T) {
	fs := newFakeStore()
	o := &Orchestrator{store: fs, runtime: happyPathRuntime(), cfg: testCfg()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o.Run(ctx, "sess-3", "AAPL", "2025-01-20")

	require.True(t, fs.finalized)
	assert.Equal(t, models.SessionCanceled, fs.finalState)
}

func TestInvestmentDebateAlternatesBullAndBearUntilBound(t *testing.T) {
	o := &Orchestrator{store: newFakeStore(), runtime: happyPathRuntime(), cfg: config.PipelineConfig{MaxDebateRounds: 2}}
	sections := newSectionsView()

	state, err := o.runInvestmentDebate(context.Background(), "sess-4", "AAPL", "2025-01-20", sections)
	require.NoError(t, err)
	assert.Equal(t, 4, state.Count)
	assert.Contains(t, state.BullHistory, "Bull:")
	assert.Contains(t, state.BearHistory, "Bear:")
	assert.Contains(t, state.History, "Bull:")
	assert.Contains(t, state.History, "Bear:")
}

func TestRiskDebateRotatesThroughThreeVoicesUntilBound(t *testing.T) {
	o := &Orchestrator{store: newFakeStore(), runtime: happyPathRuntime(), cfg: config.PipelineConfig{MaxRiskRounds: 1}}
	sections := newSectionsView()

	state, err := o.runRiskDebate(context.Background(), "sess-5", "AAPL", "2025-01-20", sections, "buy in tranches")
	require.NoError(t, err)
	assert.Equal(t, 3, state.Count)
	assert.Equal(t, string(agent.RoleNeutral), state.LatestSpeaker)
	assert.NotEmpty(t, state.RiskyHistory)
	assert.NotEmpty(t, state.SafeHistory)
	assert.NotEmpty(t, state.NeutralHistory)
}

func TestNewTreatsNilMemoryAsDisabled(t *testing.T) {
	o := New(nil, (*memory.Store)(nil), nil, nil, testCfg())
	assert.Nil(t, o.memory)
}
