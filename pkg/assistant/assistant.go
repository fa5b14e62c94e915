// Package assistant answers financial questions with an OpenAI chat model that
// can call the registry's tools. A request runs at most one round of tool
// calls: the model's first reply may request tools, their results are fed
// back, and the second reply is final.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/germanamz/finassist/pkg/tools/toolbox"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// ToolName is the registry name of the chat tool.
const ToolName = "ask_openai"

const systemPrompt = `You are a helpful financial assistant with access to real-time financial data.
You can retrieve stock quotes, company overviews, historical data, intraday data, technical indicators, FX rates, commodities and economic indicators.
Always use the available functions to get current, accurate financial information.
Provide clear, helpful responses with the latest data.`

// ErrChatService is matched by every error coming from the chat service.
var ErrChatService = errors.New("chat service")

// ServiceError wraps a chat-service failure.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("assistant: chat service: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool { return target == ErrChatService }

// Upstream marks the error as coming from a remote service.
func (e *ServiceError) Upstream() bool { return true }

// Completer is the part of the OpenAI client the assistant needs.
// *openai.Client satisfies it.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds the chat model settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	// Temperature 0 is sent as the smallest positive float32: go-openai omits
	// a zero temperature and the service would apply its default of 1.
	Temperature float32
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithCompleter replaces the OpenAI client.
func WithCompleter(c Completer) Option {
	return func(a *Assistant) { a.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

// Assistant runs chat requests against the model with the registry's tools
// attached.
type Assistant struct {
	client Completer
	cfg    Config
	tools  *toolbox.ToolBox
	logger *zap.Logger
	usage  UsageTracker
}

// New creates an Assistant backed by tools. The registry is read on every
// request, so tools registered after New are offered too.
func New(cfg Config, tools *toolbox.ToolBox, opts ...Option) *Assistant {
	a := &Assistant{
		cfg:    cfg,
		tools:  tools,
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.client == nil {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		oc.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
		a.client = openai.NewClientWithConfig(oc)
	}

	return a
}

// Usage returns the tokens consumed by every completion so far.
func (a *Assistant) Usage() TokenCount {
	return a.usage.Total()
}

// Ask answers question, prefixing it with background context when one is given.
func (a *Assistant) Ask(ctx context.Context, question, background string) (string, error) {
	content := question
	if background != "" {
		content = fmt.Sprintf("Financial context:\n%s\n\nQuestion: %s", background, question)
	}

	history, err := a.Complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: content},
	})
	if err != nil {
		return "", err
	}

	return history[len(history)-1].Content, nil
}

// Complete runs one chat request over msgs. It returns msgs extended with the
// model's tool-call exchange, if any, and the final reply as the last message.
func (a *Assistant) Complete(ctx context.Context, msgs []openai.ChatCompletionMessage) ([]openai.ChatCompletionMessage, error) {
	first, err := a.complete(ctx, msgs, a.toolDefinitions())
	if err != nil {
		return nil, err
	}

	// Full slice expression: never write into the caller's backing array.
	msgs = append(msgs[:len(msgs):len(msgs)], first)
	if len(first.ToolCalls) == 0 {
		return msgs, nil
	}

	for _, call := range first.ToolCalls {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    a.runTool(ctx, call.Function),
			ToolCallID: call.ID,
		})
	}

	final, err := a.complete(ctx, msgs, nil)
	if err != nil {
		return nil, err
	}

	return append(msgs, final), nil
}

func (a *Assistant) complete(ctx context.Context, msgs []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Messages:    msgs,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	}
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionMessage{}, &ServiceError{Err: err}
	}

	a.usage.Add(TokenCount{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	})
	a.logger.Debug("chat completion",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("tools_offered", len(tools)),
	)

	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, &ServiceError{Err: errors.New("empty response")}
	}

	// Only the fields the next request needs are carried forward.
	reply := resp.Choices[0].Message
	out := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply.Content,
	}
	for _, tc := range reply.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:       tc.ID,
			Type:     openai.ToolTypeFunction,
			Function: tc.Function,
		})
	}

	return out, nil
}

// runTool executes one model-requested call and renders the outcome as the
// tool message content. Failures are reported to the model as text.
func (a *Assistant) runTool(ctx context.Context, call openai.FunctionCall) string {
	if call.Name == ToolName {
		return "Error: Unknown tool: " + call.Name
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: invalid arguments for %s: %v", call.Name, err)
		}
	}

	res := a.tools.Call(ctx, call.Name, args)
	if !res.Success {
		a.logger.Warn("tool call failed",
			zap.String("tool", call.Name),
			zap.String("error", res.Error),
		)

		return "Error: " + res.Error
	}

	data, err := json.Marshal(res.Data)
	if err != nil {
		return fmt.Sprintf("Error: encode %s result: %v", call.Name, err)
	}

	return string(data)
}

// toolDefinitions lists every registry tool except the chat tool itself.
func (a *Assistant) toolDefinitions() []openai.Tool {
	tools := a.tools.Tools()

	defs := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		if t.Name == ToolName {
			continue
		}

		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	return defs
}

// Tool returns the ask_openai registry entry.
func (a *Assistant) Tool() toolbox.Tool {
	return toolbox.Tool{
		Name:        ToolName,
		Description: "Ask OpenAI a financial question",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"question": {"type": "string", "description": "The financial question to answer"},
				"context": {"type": "string", "description": "Optional background for the question"}
			},
			"required": ["question"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			question, _ := args["question"].(string)
			background, _ := args["context"].(string)

			return a.Ask(ctx, question, background)
		},
	}
}
