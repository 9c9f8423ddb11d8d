package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/gateway"
)

func TestToGenaiContentsSplitsSystemAndToolMessages(t *testing.T) {
	messages := []gateway.Message{
		{Role: "system", Content: "you are a market analyst"},
		{Role: "user", Content: "analyze AAPL"},
		{Role: "assistant", Content: "let me check the quote"},
		{Role: "tool", ToolName: "get_quote", Content: `{"price":150}`},
	}

	contents, system := toGenaiContents(messages)
	assert.Equal(t, "you are a market analyst", system)
	assert.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "function", contents[2].Role)
	assert.Equal(t, "get_quote", contents[2].Parts[0].FunctionResponse.Name)
}

func TestSchemaFromJSONSchemaHandlesNil(t *testing.T) {
	schema := schemaFromJSONSchema(nil)
	assert.Equal(t, genai.TypeObject, schema.Type)
}

func TestSchemaFromJSONSchemaBuildsProperties(t *testing.T) {
	schema := schemaFromJSONSchema(map[string]any{
		"properties": map[string]any{
			"ticker": map[string]any{"description": "the stock ticker"},
		},
	})
	assert.Contains(t, schema.Properties, "ticker")
	assert.Equal(t, "the stock ticker", schema.Properties["ticker"].Description)
}

func TestClassifyGenerateErrorMapsKinds(t *testing.T) {
	assert.Equal(t, apperrors.KindTimeout, apperrors.KindOf(classifyGenerateError(context.DeadlineExceeded)))
	assert.Equal(t, apperrors.KindCanceled, apperrors.KindOf(classifyGenerateError(context.Canceled)))
	assert.Equal(t, apperrors.KindRateLimited, apperrors.KindOf(classifyGenerateError(errors.New("429 rate limit exceeded"))))
	assert.Equal(t, apperrors.KindUpstream, apperrors.KindOf(classifyGenerateError(errors.New("internal server error"))))
}
