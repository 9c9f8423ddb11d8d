package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/config"
	"github.com/quantdesk/tradedesk/pkg/gateway"
)

// scriptedLLM returns one ChatResult per call, in order.
type scriptedLLM struct {
	results []gateway.ChatResult
	calls   int
}

func (s *scriptedLLM) Chat(ctx context.Context, model string, messages []gateway.Message, tools []gateway.ToolSpec) (gateway.ChatResult, error) {
	r := s.results[s.calls]
	s.calls++
	return r, nil
}

type fakeDispatcher struct {
	response string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, call gateway.ToolCall) (string, error) {
	return f.response, nil
}

func newTestRuntime(t *testing.T, llm gateway.LLMProvider, dispatcher Dispatcher, maxRounds int) *Runtime {
	gw := gateway.New(gateway.Providers{LLM: llm}, config.GatewayConfig{
		Cache: config.CacheConfig{MaxItems: 10},
	})
	return New(gw, dispatcher, "test-model", config.PipelineConfig{MaxToolRounds: maxRounds})
}

func TestStepReturnsContentWhenNoToolCalls(t *testing.T) {
	llm := &scriptedLLM{results: []gateway.ChatResult{{Content: "final analysis"}}}
	rt := newTestRuntime(t, llm, &fakeDispatcher{}, 8)

	out, err := rt.Step(context.Background(), RoleMarket, StepInput{Ticker: "AAPL"}, OnlineTools)
	require.NoError(t, err)
	assert.Equal(t, "final analysis", out.Content)
	assert.Equal(t, 1, out.ToolRounds)
}

func TestStepResolvesToolCallsBeforeFinalAnswer(t *testing.T) {
	llm := &scriptedLLM{results: []gateway.ChatResult{
		{Content: "checking quote", ToolCalls: []gateway.ToolCall{{ID: "1", Name: "quote", Arguments: `{"ticker":"AAPL"}`}}},
		{Content: "final analysis based on quote"},
	}}
	rt := newTestRuntime(t, llm, &fakeDispatcher{response: `{"price":150}`}, 8)

	out, err := rt.Step(context.Background(), RoleMarket, StepInput{Ticker: "AAPL"}, OnlineTools)
	require.NoError(t, err)
	assert.Equal(t, "final analysis based on quote", out.Content)
	assert.Equal(t, 2, out.ToolRounds)
}

func TestStepFailsAfterExceedingToolRoundBound(t *testing.T) {
	results := make([]gateway.ChatResult, 3)
	for i := range results {
		results[i] = gateway.ChatResult{
			Content:   "still looking",
			ToolCalls: []gateway.ToolCall{{ID: "1", Name: "quote", Arguments: `{"ticker":"AAPL"}`}},
		}
	}
	llm := &scriptedLLM{results: results}
	rt := newTestRuntime(t, llm, &fakeDispatcher{response: "{}"}, 2)

	_, err := rt.Step(context.Background(), RoleMarket, StepInput{Ticker: "AAPL"}, OnlineTools)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}
