package agent

import (
	"context"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/config"
	"github.com/quantdesk/tradedesk/pkg/gateway"
)

// Runtime drives a single agent step: build the prompt, call the LLM,
// resolve any tool calls through a Dispatcher, and feed results back
// until the model returns final text or the tool-round bound is
// exceeded (§4.4). It is the generalization of the teacher's
// BaseAgent+Controller pair, collapsed to one type since TradeDesk has
// a single iteration strategy rather than a pluggable ReAct/native-
// thinking choice.
type Runtime struct {
	gw         *gateway.Gateway
	dispatcher Dispatcher
	model      string
	maxRounds  int
}

// New builds a Runtime. maxRounds defaults to 8 when cfg.MaxToolRounds
// is unset, per §4.4.
func New(gw *gateway.Gateway, dispatcher Dispatcher, model string, cfg config.PipelineConfig) *Runtime {
	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 8
	}
	return &Runtime{gw: gw, dispatcher: dispatcher, model: model, maxRounds: maxRounds}
}

// Step executes one bounded agent step for role, using the given
// capability set to decide which tools the model may call.
func (r *Runtime) Step(ctx context.Context, role Role, input StepInput, caps []Capability) (StepOutput, error) {
	messages := BuildMessages(role, input)
	tools := ToolSpecs(caps)

	for round := 0; round < r.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return StepOutput{}, classifyContextErr(err)
		}

		result, err := r.gw.Chat(ctx, r.model, messages, tools)
		if err != nil {
			return StepOutput{}, apperrors.Wrap(apperrors.KindOf(err), "agent step "+string(role)+" failed", err)
		}

		if len(result.ToolCalls) == 0 {
			return StepOutput{Role: role, Content: result.Content, ToolRounds: round + 1}, nil
		}

		messages = append(messages, gateway.Message{Role: "assistant", Content: result.Content})
		for _, call := range result.ToolCalls {
			toolResult, dispatchErr := r.dispatcher.Dispatch(ctx, call)
			if dispatchErr != nil {
				// Tool failures are fed back to the model as a tool
				// message rather than aborting the step outright; the
				// model may recover by trying a different tool or
				// concluding with what it already has.
				toolResult = "error: " + dispatchErr.Error()
			}
			messages = append(messages, gateway.Message{
				Role:     "tool",
				Content:  toolResult,
				ToolName: call.Name,
			})
		}
	}

	return StepOutput{}, apperrors.Newf(apperrors.KindInternal, "agent %s exceeded tool-round bound of %d", role, r.maxRounds)
}

func classifyContextErr(err error) error {
	if err == context.Canceled {
		return apperrors.Wrap(apperrors.KindCanceled, "agent step canceled", err)
	}
	return apperrors.Wrap(apperrors.KindTimeout, "agent step deadline exceeded", err)
}
