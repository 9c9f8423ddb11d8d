package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/tradedesk/pkg/orchestrator"
)

func TestSubscribeReceivesLivePublishedEvents(t *testing.T) {
	b := New(8, 50*time.Millisecond)
	sub := b.Subscribe("sess-1")
	defer sub.Close()

	b.Publish(orchestrator.Event{SessionID: "sess-1", Kind: orchestrator.EventAgentStarted, Payload: map[string]string{"agent": "market"}})

	select {
	case e := <-sub.Events:
		assert.Equal(t, orchestrator.EventAgentStarted, e.Kind)
		assert.Equal(t, "market", e.Payload["agent"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeReplaysBufferedEventsBeforeLive(t *testing.T) {
	b := New(8, 50*time.Millisecond)
	b.Publish(orchestrator.Event{SessionID: "sess-2", Kind: orchestrator.EventPhaseChanged, Payload: map[string]string{"phase": "analysts"}})
	b.Publish(orchestrator.Event{SessionID: "sess-2", Kind: orchestrator.EventAgentStarted, Payload: map[string]string{"agent": "market"}})

	sub := b.Subscribe("sess-2")
	defer sub.Close()

	first := <-sub.Events
	second := <-sub.Events
	assert.Equal(t, orchestrator.EventPhaseChanged, first.Kind)
	assert.Equal(t, orchestrator.EventAgentStarted, second.Kind)
}

func TestPublishMarksSlowSubscriberLaggedInsteadOfBlocking(t *testing.T) {
	b := New(1, 50*time.Millisecond)
	sub := b.Subscribe("sess-3")
	defer sub.Close()

	b.Publish(orchestrator.Event{SessionID: "sess-3", Kind: orchestrator.EventAgentStarted})
	b.Publish(orchestrator.Event{SessionID: "sess-3", Kind: orchestrator.EventAgentFinished})

	assert.True(t, sub.Lagged())
}

func TestTopicClosesSubscribersAfterLingerPostTerminal(t *testing.T) {
	b := New(8, 20*time.Millisecond)
	sub := b.Subscribe("sess-4")
	defer sub.Close()

	b.Publish(orchestrator.Event{SessionID: "sess-4", Kind: orchestrator.EventTerminal, Payload: map[string]string{"status": "completed"}})

	require.Eventually(t, func() bool {
		select {
		case _, open := <-sub.Events:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "expected subscriber channel to close after linger")
}

func TestLateSubscriberWithinLingerStillSeesReplay(t *testing.T) {
	b := New(8, 200*time.Millisecond)
	b.Publish(orchestrator.Event{SessionID: "sess-5", Kind: orchestrator.EventTerminal, Payload: map[string]string{"status": "completed"}})

	sub := b.Subscribe("sess-5")
	defer sub.Close()

	e := <-sub.Events
	assert.Equal(t, orchestrator.EventTerminal, e.Kind)
}
