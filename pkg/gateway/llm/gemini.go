// Package llm implements gateway.LLMProvider over the Gemini API via
// the official google.golang.org/genai SDK (see DESIGN.md for why this
// replaces the teacher's generated-gRPC-stub client).
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/gateway"
)

// Provider drives chat completion (with optional tool-calling) through
// a single shared genai.Client.
type Provider struct {
	client       *genai.Client
	defaultModel string
}

// New builds a Provider. apiKey empty is rejected by the bootstrapper
// before this constructor is ever called (missing credential ⇒ the
// Gateway is built with a nil LLMProvider instead, per §6).
func New(ctx context.Context, apiKey, defaultModel string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	return &Provider{client: client, defaultModel: defaultModel}, nil
}

// embeddingModel is the text-embedding model used by Embed, distinct
// from the chat model since Gemini serves embeddings off a dedicated
// endpoint.
const embeddingModel = "text-embedding-004"

// Embed implements memory.Embedder over the same genai.Client used for
// Chat, so the Memory Store's recall (pkg/memory) shares one credential
// and one upstream dependency with the rest of the Gateway rather than
// pulling in a second embedding-only SDK.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	content := &genai.Content{Parts: []*genai.Part{{Text: text}}}
	result, err := p.client.Models.EmbedContent(ctx, embeddingModel, []*genai.Content{content}, nil)
	if err != nil {
		return nil, classifyGenerateError(err)
	}
	if len(result.Embeddings) == 0 {
		return nil, apperrors.New(apperrors.KindUpstream, "gemini returned no embedding")
	}
	return result.Embeddings[0].Values, nil
}

// Chat implements gateway.LLMProvider.
func (p *Provider) Chat(ctx context.Context, model string, messages []gateway.Message, tools []gateway.ToolSpec) (gateway.ChatResult, error) {
	if model == "" {
		model = p.defaultModel
	}

	contents, systemInstruction := toGenaiContents(messages)
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.2)),
	}
	if systemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	}
	if len(tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toGenaiFunctionDeclarations(tools)}}
	}

	result, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return gateway.ChatResult{}, classifyGenerateError(err)
	}

	return toChatResult(result), nil
}

// toGenaiContents splits the conversation into the system instruction
// (genai models take it out-of-band) and the remaining turns.
func toGenaiContents(messages []gateway.Message) ([]*genai.Content, string) {
	var system string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "tool":
			contents = append(contents, &genai.Content{
				Role: "function",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     m.ToolName,
						Response: map[string]any{"result": m.Content},
					},
				}},
			})
		case "assistant":
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return contents, system
}

func toGenaiFunctionDeclarations(tools []gateway.ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schemaFromJSONSchema(t.Parameters),
		})
	}
	return decls
}

// schemaFromJSONSchema does a shallow conversion of a plain
// map[string]any JSON Schema object into genai's typed Schema, enough
// for the object/property shapes the Agent Runtime's tool specs use.
func schemaFromJSONSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	schema := &genai.Schema{Type: genai.TypeObject}
	if props, ok := m["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			propMap, _ := raw.(map[string]any)
			schema.Properties[name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: fmt.Sprint(propMap["description"]),
			}
		}
	}
	if required, ok := m["required"].([]any); ok {
		for _, r := range required {
			schema.Required = append(schema.Required, fmt.Sprint(r))
		}
	}
	return schema
}

func toChatResult(result *genai.GenerateContentResponse) gateway.ChatResult {
	chat := gateway.ChatResult{Content: result.Text()}
	if len(result.Candidates) == 0 {
		return chat
	}
	for _, part := range result.Candidates[0].Content.Parts {
		if part.FunctionCall == nil {
			continue
		}
		args, _ := json.Marshal(part.FunctionCall.Args)
		chat.ToolCalls = append(chat.ToolCalls, gateway.ToolCall{
			ID:        part.FunctionCall.Name,
			Name:      part.FunctionCall.Name,
			Arguments: string(args),
		})
	}
	return chat
}

// classifyGenerateError maps the SDK's error into the Chat contract's
// failure kinds (§4.1: RateLimited, Upstream, Timeout, InvalidArgument).
// The SDK surfaces HTTP status text rather than a typed status code in
// this version, so classification is done the same way the teacher's
// pkg/mcp/recovery.go classifies transport errors: by sentinel/context
// checks first, string matching as a fallback.
func classifyGenerateError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindTimeout, "gemini generate content timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.KindCanceled, "gemini generate content canceled", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "rate limit"):
		return apperrors.Wrap(apperrors.KindRateLimited, "gemini rate limit exceeded", err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid_argument"):
		return apperrors.Wrap(apperrors.KindInvalidArgument, "gemini rejected the request", err)
	default:
		return apperrors.Wrap(apperrors.KindUpstream, "gemini generate content failed", err)
	}
}
