package api

import (
	"context"
	"strconv"
	"time"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/database"
	"github.com/quantdesk/tradedesk/pkg/gateway"
	"github.com/quantdesk/tradedesk/pkg/models"
)

// fakeStore is an in-memory sessionStore used across handler tests.
type fakeStore struct {
	sessions    map[string]*models.FullReport
	preferences map[string][]models.UserPreference
	nextID      int
	createErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:    make(map[string]*models.FullReport),
		preferences: make(map[string][]models.UserPreference),
	}
}

func (f *fakeStore) CreateSession(_ context.Context, ownerID, ownerUsername, ticker string, analysisDate time.Time, _ []byte) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := "sess-" + strconv.Itoa(f.nextID)
	f.sessions[id] = &models.FullReport{
		Session: models.Session{
			ID:            id,
			UserID:        ownerID,
			OwnerUsername: ownerUsername,
			Ticker:        ticker,
			AnalysisDate:  analysisDate,
			Status:        models.SessionRunning,
		},
	}
	return id, nil
}

func (f *fakeStore) ListSessions(_ context.Context, filter models.SessionFilter) ([]models.SessionSummary, error) {
	var out []models.SessionSummary
	for _, r := range f.sessions {
		if filter.Owner != "" && r.Session.OwnerUsername != filter.Owner {
			continue
		}
		out = append(out, models.SessionSummary{
			SessionID:    r.Session.ID,
			Ticker:       r.Session.Ticker,
			AnalysisDate: r.Session.AnalysisDate.Format("2006-01-02"),
			Status:       r.Session.Status,
		})
	}
	return out, nil
}

func (f *fakeStore) GetFullReport(_ context.Context, sessionID string) (*models.FullReport, error) {
	r, ok := f.sessions[sessionID]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "session %s not found", sessionID)
	}
	return r, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, sessionID, requestingOwner string) error {
	r, ok := f.sessions[sessionID]
	if !ok {
		return apperrors.Newf(apperrors.KindNotFound, "session %s not found", sessionID)
	}
	if r.Session.OwnerUsername != requestingOwner {
		return apperrors.New(apperrors.KindForbidden, "not the owner")
	}
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeStore) GetPreferences(_ context.Context, userID string) ([]models.UserPreference, error) {
	return f.preferences[userID], nil
}

func (f *fakeStore) SetPreference(_ context.Context, userID, key, value string, category *string) error {
	f.preferences[userID] = append(f.preferences[userID], models.UserPreference{UserID: userID, Key: key, Value: value, Category: category})
	return nil
}

// fakeGateway is an in-memory marketGateway.
type fakeGateway struct {
	quote    gateway.Quote
	quoteErr error
	points   []gateway.FearGreedPoint
}

func (f *fakeGateway) Quote(_ context.Context, ticker string) (gateway.Quote, error) {
	if f.quoteErr != nil {
		return gateway.Quote{}, f.quoteErr
	}
	q := f.quote
	q.Ticker = ticker
	return q, nil
}

func (f *fakeGateway) Quotes(_ context.Context, tickers []string) ([]gateway.Quote, error) {
	out := make([]gateway.Quote, len(tickers))
	for i, t := range tickers {
		out[i] = gateway.Quote{Ticker: t}
	}
	return out, nil
}

func (f *fakeGateway) FearGreedHistory(_ context.Context, _ int, _ gateway.Aggregation) ([]gateway.FearGreedPoint, error) {
	return f.points, nil
}

func (f *fakeGateway) Sentiment(_ context.Context, ticker string) (gateway.SentimentSnapshot, error) {
	return gateway.SentimentSnapshot{Ticker: ticker}, nil
}

// fakeRunner is a no-op runner that records whether Run was invoked.
type fakeRunner struct {
	ran chan struct{}
}

func newFakeRunner() *fakeRunner { return &fakeRunner{ran: make(chan struct{}, 1)} }

func (f *fakeRunner) Run(_ context.Context, _, _, _ string) {
	f.ran <- struct{}{}
}

// fakeHealther is a dbHealther stub.
type fakeHealther struct {
	status database.HealthStatus
}

func (f *fakeHealther) Health(_ context.Context) database.HealthStatus { return f.status }

// fakeUserStore is an in-memory auth.Service backing store, local to
// this package since auth's own test double (auth_test.go) is scoped
// to package auth and unreachable from here.
type fakeUserStore struct {
	byUsername map[string]*models.User
	byID       map[string]*models.User
	nextID     int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byUsername: make(map[string]*models.User),
		byID:       make(map[string]*models.User),
	}
}

func (f *fakeUserStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	u, ok := f.byUsername[username]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "user %s not found", username)
	}
	return u, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "user %s not found", id)
	}
	return u, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, username, passwordHash string, isAdmin bool) (string, error) {
	f.nextID++
	id := "user-" + strconv.Itoa(f.nextID)
	u := &models.User{ID: id, Username: username, PasswordHash: passwordHash, IsAdmin: isAdmin, IsActive: true}
	f.byUsername[username] = u
	f.byID[id] = u
	return id, nil
}
