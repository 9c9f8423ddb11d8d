// Package store is the durable write-through for sessions, report
// sections, agent execution records, and user preferences (§4.2 of the
// session/orchestration design). It talks to PostgreSQL directly over
// database/sql rather than through a generated ORM client — see
// DESIGN.md for why.
//
// Grounded on the teacher's pkg/services/session_service.go: one
// transaction per mutating operation, conditional updates instead of
// read-then-write races, sentinel errors mapped at the boundary.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/models"
)

// Store is the Session Store (C2).
type Store struct {
	db *sql.DB
}

// New wraps an already-migrated connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateSession atomically inserts a new running session.
func (s *Store) CreateSession(ctx context.Context, ownerID, ownerUsername, ticker string, analysisDate time.Time, config []byte) (string, error) {
	if config == nil {
		config = []byte("{}")
	}
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_sessions (id, user_id, owner_username, ticker, analysis_date, status, config_snapshot)
		VALUES ($1, $2, $3, $4, $5, 'running', $6)`,
		id, ownerID, ownerUsername, ticker, analysisDate, config,
	)
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}
	return id, nil
}

// AppendSection upserts a report section by (session_id, section_type);
// the later write wins, preserving the original created_at.
func (s *Store) AppendSection(ctx context.Context, sessionID string, sectionType models.SectionType, agentName, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_sections (session_id, section_type, agent_name, content)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, section_type)
		DO UPDATE SET content = EXCLUDED.content, agent_name = EXCLUDED.agent_name, updated_at = now()`,
		sessionID, string(sectionType), agentName, content,
	)
	if err != nil {
		return fmt.Errorf("appending section %s for session %s: %w", sectionType, sessionID, err)
	}
	return nil
}

// UpsertAgentStatus records a single row per (session_id, agent_name),
// recomputing execution_seconds whenever both timestamps are present.
func (s *Store) UpsertAgentStatus(ctx context.Context, sessionID, agentName string, status models.ExecutionStatus, startedAt, completedAt *time.Time, errMsg *string) error {
	var execSeconds *float64
	if startedAt != nil && completedAt != nil {
		secs := completedAt.Sub(*startedAt).Seconds()
		execSeconds = &secs
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_executions (session_id, agent_name, status, started_at, completed_at, execution_seconds, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, agent_name)
		DO UPDATE SET
			status = EXCLUDED.status,
			started_at = COALESCE(agent_executions.started_at, EXCLUDED.started_at),
			completed_at = EXCLUDED.completed_at,
			execution_seconds = EXCLUDED.execution_seconds,
			error_message = EXCLUDED.error_message`,
		sessionID, agentName, string(status), startedAt, completedAt, execSeconds, errMsg,
	)
	if err != nil {
		return fmt.Errorf("upserting agent status %s/%s: %w", sessionID, agentName, err)
	}
	return nil
}

// FinalizeSession transitions a running session to a terminal state.
// Rejects with apperrors.KindInvalidTransition if the session is not
// currently running (terminal states are absorbing, §3).
func (s *Store) FinalizeSession(ctx context.Context, sessionID string, status models.SessionStatus, decision *models.Decision, confidence, executionSeconds *float64) error {
	if !status.Terminal() {
		return apperrors.Newf(apperrors.KindInvalidArgument, "FinalizeSession requires a terminal status, got %s", status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning finalize transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE analysis_sessions
		SET status = $1, final_decision = $2, confidence = $3, execution_seconds = $4, completed_at = now()
		WHERE id = $5 AND status = 'running'`,
		string(status), decision, confidence, executionSeconds, sessionID,
	)
	if err != nil {
		return fmt.Errorf("finalizing session %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking finalize result: %w", err)
	}
	if n == 0 {
		var exists bool
		if qerr := tx.QueryRowContext(ctx, `SELECT true FROM analysis_sessions WHERE id = $1`, sessionID).Scan(&exists); qerr != nil {
			if errors.Is(qerr, sql.ErrNoRows) {
				return apperrors.Newf(apperrors.KindNotFound, "session %s not found", sessionID)
			}
			return fmt.Errorf("checking session existence: %w", qerr)
		}
		return apperrors.Newf(apperrors.KindInvalidTransition, "session %s is not running", sessionID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing finalize: %w", err)
	}
	return nil
}

// ListSessions returns session summaries ordered by analysis_date desc,
// created_at desc (§4.2), scoped by an optional owner/ticker/date filter.
func (s *Store) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.SessionSummary, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := `
		SELECT id, ticker, analysis_date, status, final_decision, confidence, completed_at
		FROM analysis_sessions
		WHERE ($1 = '' OR owner_username = $1)
		  AND ($2 = '' OR ticker = $2)
		  AND ($3::timestamptz IS NULL OR analysis_date >= $3)
		  AND ($4::timestamptz IS NULL OR analysis_date <= $4)
		ORDER BY analysis_date DESC, created_at DESC
		LIMIT $5`

	rows, err := s.db.QueryContext(ctx, query, filter.Owner, filter.Ticker, filter.FromDate, filter.ToDate, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SessionSummary
	for rows.Next() {
		var (
			summary      models.SessionSummary
			analysisDate time.Time
			decision     sql.NullString
			confidence   sql.NullFloat64
			completedAt  sql.NullTime
		)
		if err := rows.Scan(&summary.SessionID, &summary.Ticker, &analysisDate, &summary.Status, &decision, &confidence, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning session summary: %w", err)
		}
		summary.AnalysisDate = analysisDate.Format("2006-01-02")
		if decision.Valid {
			d := models.Decision(decision.String)
			summary.FinalDecision = &d
		}
		if confidence.Valid {
			summary.Confidence = &confidence.Float64
		}
		if completedAt.Valid {
			summary.CompletedAt = &completedAt.Time
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// GetFullReport loads a session with all of its sections (ordered
// created_at asc) and agent executions.
func (s *Store) GetFullReport(ctx context.Context, sessionID string) (*models.FullReport, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sections, err := s.listSections(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	executions, err := s.listExecutions(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &models.FullReport{Session: *session, Sections: sections, Executions: executions}, nil
}

func (s *Store) getSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var (
		sess             models.Session
		analysisDate     time.Time
		decision         sql.NullString
		confidence       sql.NullFloat64
		executionSeconds sql.NullFloat64
		completedAt      sql.NullTime
		configSnapshot   []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, owner_username, ticker, analysis_date, status, final_decision,
		       confidence, execution_seconds, config_snapshot, created_at, completed_at
		FROM analysis_sessions WHERE id = $1`, sessionID,
	).Scan(&sess.ID, &sess.UserID, &sess.OwnerUsername, &sess.Ticker, &analysisDate, &sess.Status,
		&decision, &confidence, &executionSeconds, &configSnapshot, &sess.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "session %s not found", sessionID)
		}
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	sess.AnalysisDate = analysisDate
	sess.ConfigSnapshot = configSnapshot
	if decision.Valid {
		d := models.Decision(decision.String)
		sess.FinalDecision = &d
	}
	if confidence.Valid {
		sess.Confidence = &confidence.Float64
	}
	if executionSeconds.Valid {
		sess.ExecutionSeconds = &executionSeconds.Float64
	}
	if completedAt.Valid {
		sess.CompletedAt = &completedAt.Time
	}
	return &sess, nil
}

func (s *Store) listSections(ctx context.Context, sessionID string) ([]models.ReportSection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, section_type, agent_name, content, created_at
		FROM report_sections WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing sections for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []models.ReportSection
	for rows.Next() {
		var sec models.ReportSection
		var sectionType string
		if err := rows.Scan(&sec.ID, &sec.SessionID, &sectionType, &sec.AgentName, &sec.Content, &sec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		sec.SectionType = models.SectionType(sectionType)
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (s *Store) listExecutions(ctx context.Context, sessionID string) ([]models.AgentExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, agent_name, status, started_at, completed_at, execution_seconds, error_message
		FROM agent_executions WHERE session_id = $1 ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing executions for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []models.AgentExecution
	for rows.Next() {
		var (
			exec             models.AgentExecution
			status           string
			startedAt        sql.NullTime
			completedAt      sql.NullTime
			executionSeconds sql.NullFloat64
			errMsg           sql.NullString
		)
		if err := rows.Scan(&exec.ID, &exec.SessionID, &exec.AgentName, &status, &startedAt, &completedAt, &executionSeconds, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}
		exec.Status = models.ExecutionStatus(status)
		if startedAt.Valid {
			exec.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			exec.CompletedAt = &completedAt.Time
		}
		if executionSeconds.Valid {
			exec.ExecutionSeconds = &executionSeconds.Float64
		}
		if errMsg.Valid {
			exec.ErrorMessage = &errMsg.String
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and cascades to its sections and
// executions, but only when requestingOwner matches owner_username (§4.2).
func (s *Store) DeleteSession(ctx context.Context, sessionID, requestingOwner string) error {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner_username FROM analysis_sessions WHERE id = $1`, sessionID).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Newf(apperrors.KindNotFound, "session %s not found", sessionID)
		}
		return fmt.Errorf("looking up session owner: %w", err)
	}
	if owner != requestingOwner {
		return apperrors.Newf(apperrors.KindForbidden, "user %s does not own session %s", requestingOwner, sessionID)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM analysis_sessions WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// GetUserByUsername loads a user by its unique, lowercase username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_active, is_admin, created_at
		FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsActive, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "user %s not found", username)
		}
		return nil, fmt.Errorf("loading user %s: %w", username, err)
	}
	return &u, nil
}

// GetUserByID loads a user by its immutable id.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_active, is_admin, created_at
		FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsActive, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "user %s not found", id)
		}
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}
	return &u, nil
}

// CreateUser inserts a new account; the caller (bootstrapper or admin
// flow) is responsible for normalizing the username and hashing the
// password beforehand.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, is_active, is_admin)
		VALUES ($1, $2, $3, true, $4)
		ON CONFLICT (username) DO NOTHING`,
		id, username, passwordHash, isAdmin,
	)
	if err != nil {
		return "", fmt.Errorf("creating user %s: %w", username, err)
	}
	return id, nil
}

// GetPreferences returns all preference rows for a user.
func (s *Store) GetPreferences(ctx context.Context, userID string) ([]models.UserPreference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, key, value, category, updated_at FROM user_preferences WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing preferences for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []models.UserPreference
	for rows.Next() {
		var p models.UserPreference
		var category sql.NullString
		if err := rows.Scan(&p.UserID, &p.Key, &p.Value, &category, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning preference: %w", err)
		}
		if category.Valid {
			p.Category = &category.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetPreference is last-write-wins per (user_id, key) (§3).
func (s *Store) SetPreference(ctx context.Context, userID, key, value string, category *string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, key, value, category, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, key)
		DO UPDATE SET value = EXCLUDED.value, category = EXCLUDED.category, updated_at = now()`,
		userID, key, value, category,
	)
	if err != nil {
		return fmt.Errorf("setting preference %s/%s: %w", userID, key, err)
	}
	return nil
}

// UpsertFixture idempotently stores one static seed row (portfolio
// position, economic event, ...) for the Startup Bootstrapper's fixture
// loader (§6). payload is opaque JSON, persisted verbatim — its content
// is out of scope, same treatment as Session.ConfigSnapshot.
func (s *Store) UpsertFixture(ctx context.Context, kind, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fixtures (kind, key, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (kind, key)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		kind, key, payload,
	)
	if err != nil {
		return fmt.Errorf("upserting fixture %s/%s: %w", kind, key, err)
	}
	return nil
}
