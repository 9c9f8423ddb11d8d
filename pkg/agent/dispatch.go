package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/gateway"
	"github.com/quantdesk/tradedesk/pkg/memory"
)

// Dispatcher resolves a single gateway.ToolCall into its text result.
// The Agent Runtime reaches the Gateway's data reads and the Memory
// Store only through a Dispatcher; its one direct Gateway call is Chat.
type Dispatcher interface {
	Dispatch(ctx context.Context, call gateway.ToolCall) (string, error)
}

// GatewayDispatcher resolves tool calls against the Gateway and an
// optional Memory Store. A nil memory store makes recall_memory calls
// fail with Unavailable rather than panicking.
type GatewayDispatcher struct {
	gw     *gateway.Gateway
	memory *memory.Store
}

// NewGatewayDispatcher builds a Dispatcher bound to a Gateway and
// Memory Store.
func NewGatewayDispatcher(gw *gateway.Gateway, mem *memory.Store) *GatewayDispatcher {
	return &GatewayDispatcher{gw: gw, memory: mem}
}

type quoteArgs struct {
	Ticker string `json:"ticker"`
}

type newsArgs struct {
	Query string `json:"query"`
	Days  int    `json:"days"`
}

type seriesArgs struct {
	SeriesID string `json:"series_id"`
	Days     int    `json:"days"`
}

type sentimentArgs struct {
	Ticker string `json:"ticker"`
}

type recallArgs struct {
	Situation string `json:"situation"`
	N         int    `json:"n"`
}

// Dispatch implements Dispatcher.
func (d *GatewayDispatcher) Dispatch(ctx context.Context, call gateway.ToolCall) (string, error) {
	switch call.Name {
	case string(ToolQuote):
		var args quoteArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", apperrors.Wrap(apperrors.KindInvalidArgument, "invalid quote tool arguments", err)
		}
		quote, err := d.gw.Quote(ctx, args.Ticker)
		if err != nil {
			return "", err
		}
		return toJSON(quote), nil

	case string(ToolNews):
		var args newsArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", apperrors.Wrap(apperrors.KindInvalidArgument, "invalid news tool arguments", err)
		}
		days := args.Days
		if days <= 0 {
			days = 7
		}
		to := time.Now().UTC()
		from := to.AddDate(0, 0, -days)
		articles, err := d.gw.News(ctx, args.Query, from, to, 10)
		if err != nil {
			return "", err
		}
		return toJSON(articles), nil

	case string(ToolSeries):
		var args seriesArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", apperrors.Wrap(apperrors.KindInvalidArgument, "invalid series tool arguments", err)
		}
		days := args.Days
		if days <= 0 {
			days = 90
		}
		to := time.Now().UTC()
		from := to.AddDate(0, 0, -days)
		observations, err := d.gw.Series(ctx, args.SeriesID, from, to)
		if err != nil {
			return "", err
		}
		return toJSON(observations), nil

	case string(ToolSentiment):
		var args sentimentArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", apperrors.Wrap(apperrors.KindInvalidArgument, "invalid sentiment tool arguments", err)
		}
		snapshot, err := d.gw.Sentiment(ctx, args.Ticker)
		if err != nil {
			return "", err
		}
		return toJSON(snapshot), nil

	case string(ToolFearGreed):
		point, err := d.gw.FearGreedCurrent(ctx)
		if err != nil {
			return "", err
		}
		return toJSON(point), nil

	case string(ToolRecall):
		if d.memory == nil {
			return "", apperrors.New(apperrors.KindUnavailable, "memory store not configured")
		}
		var args recallArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", apperrors.Wrap(apperrors.KindInvalidArgument, "invalid recall tool arguments", err)
		}
		n := args.N
		if n <= 0 {
			n = 3
		}
		recalled, err := d.memory.Recall(ctx, args.Situation, n)
		if err != nil {
			return "", err
		}
		return toJSON(recalled), nil

	default:
		return "", apperrors.Newf(apperrors.KindInvalidArgument, "unknown tool %q", call.Name)
	}
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("{\"error\":%q}", err.Error())
	}
	return string(b)
}
