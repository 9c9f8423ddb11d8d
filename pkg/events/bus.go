// Package events implements the Progress Bus (C6): an in-process
// publish/subscribe hub that lets the HTTP surface stream a session's
// progress over SSE while the Orchestrator runs (§4.6).
//
// Grounded on the teacher's pkg/events package (ConnectionManager's
// per-channel subscriber set in manager.go, EventPublisher's typed
// publish methods in publisher.go), adapted from cross-process
// WebSocket delivery backed by PostgreSQL LISTEN/NOTIFY to a single
// in-process fan-out — TradeDesk runs as one instance per the
// bootstrapper's design, so there is no second process that would
// ever need NOTIFY to reach; see DESIGN.md.
package events

import (
	"sync"
	"time"

	"github.com/quantdesk/tradedesk/pkg/orchestrator"
)

const (
	defaultBufferSize = 64
	defaultLinger     = 30 * time.Second
)

// subscriber is one live listener on a session's topic.
type subscriber struct {
	ch     chan orchestrator.Event
	lagged bool
}

// topic holds one session's replay buffer and live subscribers.
type topic struct {
	mu          sync.Mutex
	replay      []orchestrator.Event
	subs        map[int]*subscriber
	nextSubID   int
	terminal    bool
	lingerTimer *time.Timer
}

// Bus is the Progress Bus (C6): a Publisher implementation (see
// pkg/orchestrator) that also serves SSE subscribers.
type Bus struct {
	mu      sync.Mutex
	topics  map[string]*topic
	bufSize int
	linger  time.Duration
}

// New builds a Bus. bufSize and linger fall back to the §4.6 defaults
// (64, 30s) when zero.
func New(bufSize int, linger time.Duration) *Bus {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	if linger <= 0 {
		linger = defaultLinger
	}
	return &Bus{topics: make(map[string]*topic), bufSize: bufSize, linger: linger}
}

// Publish implements orchestrator.Publisher. It appends the event to
// the session's replay buffer (capped to bufSize) and fans it out to
// every live subscriber without blocking: a subscriber whose channel
// is full is marked lagged and skips this event rather than stalling
// the Orchestrator, mirroring the teacher's write-timeout-bounded
// sendRaw but for a bounded, buffered in-process channel instead of a
// network write.
func (b *Bus) Publish(event orchestrator.Event) {
	t := b.topicFor(event.SessionID)

	t.mu.Lock()
	t.replay = append(t.replay, event)
	if len(t.replay) > b.bufSize {
		t.replay = t.replay[len(t.replay)-b.bufSize:]
	}
	for _, s := range t.subs {
		select {
		case s.ch <- event:
		default:
			s.lagged = true
		}
	}
	if event.Kind == orchestrator.EventTerminal {
		t.terminal = true
		b.scheduleCleanup(event.SessionID, t)
	}
	t.mu.Unlock()
}

// Subscription is a live handle on one session's event stream.
type Subscription struct {
	Events <-chan orchestrator.Event
	t      *topic
	sub    *subscriber
	id     int
}

// Lagged reports whether this subscriber missed at least one event
// because its buffer was full.
func (s *Subscription) Lagged() bool {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.sub.lagged
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.t.mu.Lock()
	delete(s.t.subs, s.id)
	s.t.mu.Unlock()
}

// Subscribe registers a new listener on sessionID's topic, replaying
// whatever is already buffered before returning — a late subscriber to
// a session that finished within the linger window still sees its full
// history followed by the live tail (§4.6's "replay-then-live").
func (b *Bus) Subscribe(sessionID string) *Subscription {
	t := b.topicFor(sessionID)

	t.mu.Lock()
	ch := make(chan orchestrator.Event, b.bufSize)
	for _, e := range t.replay {
		ch <- e // replay is capped to bufSize so this never blocks
	}
	sub := &subscriber{ch: ch}
	id := t.nextSubID
	t.nextSubID++
	t.subs[id] = sub
	t.mu.Unlock()

	return &Subscription{Events: ch, t: t, sub: sub, id: id}
}

func (b *Bus) topicFor(sessionID string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[sessionID]
	if !ok {
		t = &topic{subs: make(map[int]*subscriber)}
		b.topics[sessionID] = t
	}
	return t
}

// scheduleCleanup drops the topic linger seconds after its terminal
// event, closing every live subscriber channel so SSE handlers observe
// a closed channel and end the stream. Must be called with t.mu held;
// it only schedules the cleanup, never runs it inline.
func (b *Bus) scheduleCleanup(sessionID string, t *topic) {
	if t.lingerTimer != nil {
		t.lingerTimer.Stop()
	}
	t.lingerTimer = time.AfterFunc(b.linger, func() {
		b.mu.Lock()
		delete(b.topics, sessionID)
		b.mu.Unlock()

		t.mu.Lock()
		for _, s := range t.subs {
			close(s.ch)
		}
		t.subs = make(map[int]*subscriber)
		t.mu.Unlock()
	})
}
