// Package models holds the plain data types shared across the store,
// orchestrator, gateway, and API layers. Nothing here touches SQL or
// JSON wire concerns directly — those live in pkg/store and pkg/api.
package models

import "time"

// SessionStatus is the lifecycle state of an AnalysisSession (§3).
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCanceled  SessionStatus = "canceled"
)

// Terminal reports whether the status is absorbing.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionCanceled
}

// Decision is the final recommendation extracted from the risk manager's
// report, or empty when extraction failed.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionHold Decision = "HOLD"
	DecisionSell Decision = "SELL"
)

// SectionType enumerates the fixed report sections a pipeline run produces.
type SectionType string

const (
	SectionMarketReport       SectionType = "market_report"
	SectionSentimentReport    SectionType = "sentiment_report"
	SectionNewsReport         SectionType = "news_report"
	SectionFundamentalsReport SectionType = "fundamentals_report"
	SectionBenGrahamReport    SectionType = "ben_graham_report"
	SectionWarrenBuffettReport SectionType = "warren_buffett_report"
	SectionInvestmentPlan     SectionType = "investment_plan"
	SectionTraderPlan         SectionType = "trader_investment_plan"
	SectionFinalTradeDecision SectionType = "final_trade_decision"
)

// ExecutionStatus is the lifecycle of a single AgentExecution row.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// User is an account that can own sessions.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	IsActive     bool
	IsAdmin      bool
	CreatedAt    time.Time
}

// Session is one end-to-end pipeline run for a (user, ticker, analysis_date) triple.
type Session struct {
	ID              string
	UserID          string
	OwnerUsername   string
	Ticker          string
	AnalysisDate    time.Time // wall date, truncated to midnight UTC
	Status          SessionStatus
	CreatedAt       time.Time
	CompletedAt     *time.Time
	FinalDecision   *Decision
	Confidence      *float64
	ExecutionSeconds *float64
	ConfigSnapshot  []byte // opaque JSON, persisted verbatim
}

// ReportSection is one (session, section_type) row.
type ReportSection struct {
	ID          int64
	SessionID   string
	SectionType SectionType
	AgentName   string
	Content     string
	CreatedAt   time.Time
}

// AgentExecution tracks one agent's timing/status within a session.
type AgentExecution struct {
	ID               int64
	SessionID        string
	AgentName        string
	Status           ExecutionStatus
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ExecutionSeconds *float64
	ErrorMessage     *string
}

// UserPreference is a last-write-wins (user_id, key) setting.
type UserPreference struct {
	UserID    string
	Key       string
	Value     string
	Category  *string
	UpdatedAt time.Time
}

// MemoryEntry is an immutable situation→recommendation pair used for recall (§4.3).
type MemoryEntry struct {
	ID             int64
	Situation      string
	Recommendation string
	Embedding      []float32
	CreatedAt      time.Time
}

// SessionSummary is the shape returned by the list endpoint (§6).
type SessionSummary struct {
	SessionID     string     `json:"session_id"`
	Ticker        string     `json:"ticker"`
	AnalysisDate  string     `json:"analysis_date"`
	Status        SessionStatus `json:"status"`
	FinalDecision *Decision  `json:"final_decision"`
	Confidence    *float64   `json:"confidence"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// FullReport is the shape returned by GetFullReport (§4.2).
type FullReport struct {
	Session    Session
	Sections   []ReportSection
	Executions []AgentExecution
}

// SessionFilter parameterizes ListSessions (§4.2).
type SessionFilter struct {
	Owner     string
	Ticker    string
	FromDate  *time.Time
	ToDate    *time.Time
	Limit     int
}
