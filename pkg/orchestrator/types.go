// Package orchestrator drives one pipeline run end to end: the analyst
// phase, the investment debate, the research manager, the trader, the
// risk debate, and the risk manager (§4.5). It is the Go-native
// replacement for the teacher's pkg/queue.RealSessionExecutor, adapted
// from a chain-of-DB-defined-stages to TradeDesk's fixed phase graph —
// see DESIGN.md.
package orchestrator

import (
	"sync"
	"time"

	"github.com/quantdesk/tradedesk/pkg/models"
)

// EventKind enumerates the Progress Bus's event shapes (§4.6).
type EventKind string

const (
	EventAgentStarted    EventKind = "AgentStarted"
	EventAgentFinished   EventKind = "AgentFinished"
	EventSectionAppended EventKind = "SectionAppended"
	EventPhaseChanged    EventKind = "PhaseChanged"
	EventTerminal        EventKind = "Terminal"
)

// Event is one progress notification for a session.
type Event struct {
	SessionID string
	Timestamp time.Time
	Kind      EventKind
	Payload   map[string]string
}

// Publisher is the narrow interface the orchestrator needs from the
// Progress Bus (C6). A nil Publisher is valid: every call site routes
// through the nil-safe publish helper, mirroring the teacher's
// best-effort, nil-checked event publishing in pkg/queue/executor.go.
type Publisher interface {
	Publish(event Event)
}

// investmentDebateState is the bull/bear debate state machine (§4.5).
// Field names mirror the spec's state shape directly.
type investmentDebateState struct {
	Count           int
	History         string
	BullHistory     string
	BearHistory     string
	CurrentResponse string
}

// riskDebateState is the risky/safe/neutral debate state machine (§4.5).
type riskDebateState struct {
	Count                  int
	History                string
	RiskyHistory           string
	SafeHistory            string
	NeutralHistory         string
	LatestSpeaker          string
	CurrentRiskyResponse   string
	CurrentSafeResponse    string
	CurrentNeutralResponse string
}

// appendTranscript joins a new line onto an existing transcript,
// avoiding a leading blank line on the first entry.
func appendTranscript(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

// sectionsView is a concurrency-safe snapshot of the sections produced
// so far in a run, used to build each agent's ExistingSections view
// without re-reading the store mid-pipeline.
type sectionsView struct {
	mu sync.Mutex
	m  map[models.SectionType]string
}

func newSectionsView() *sectionsView {
	return &sectionsView{m: make(map[models.SectionType]string)}
}

func (v *sectionsView) set(st models.SectionType, content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.m[st] = content
}

func (v *sectionsView) snapshot() map[models.SectionType]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[models.SectionType]string, len(v.m))
	for k, val := range v.m {
		out[k] = val
	}
	return out
}
