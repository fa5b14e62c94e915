package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/germanamz/finassist/pkg/tools/toolbox"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCompleter struct {
	replies  []openai.ChatCompletionMessage
	err      error
	requests []openai.ChatCompletionRequest
}

func (s *scriptedCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	if len(s.replies) == 0 {
		return openai.ChatCompletionResponse{}, nil
	}

	reply := s.replies[0]
	s.replies = s.replies[1:]

	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: reply}},
		Usage:   openai.Usage{PromptTokens: 40, CompletionTokens: 8, TotalTokens: 48},
	}, nil
}

func toolCallReply(calls ...openai.ToolCall) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, ToolCalls: calls}
}

func textReply(text string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text}
}

func quoteCall(id, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:       id,
		Type:     openai.ToolTypeFunction,
		Function: openai.FunctionCall{Name: "get_stock_quote", Arguments: args},
	}
}

func newRegistry(t *testing.T, handler toolbox.Handler) *toolbox.ToolBox {
	t.Helper()

	tb := toolbox.New()
	require.NoError(t, tb.Register(toolbox.Tool{
		Name:        "get_stock_quote",
		Description: "Get current stock quote for a given symbol",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"symbol":{"type":"string"}},"required":["symbol"]}`),
		Handler:     handler,
	}))

	return tb
}

func testConfig() Config {
	return Config{Model: "gpt-3.5-turbo", MaxTokens: 1000, Temperature: 0.7}
}

func TestAskWithoutToolCalls(t *testing.T) {
	c := &scriptedCompleter{replies: []openai.ChatCompletionMessage{textReply("Markets are closed.")}}
	tb := newRegistry(t, func(context.Context, map[string]any) (any, error) {
		t.Fatal("tool must not be called")
		return nil, nil
	})
	a := New(testConfig(), tb, WithCompleter(c))

	answer, err := a.Ask(context.Background(), "Are markets open?", "")
	require.NoError(t, err)
	assert.Equal(t, "Markets are closed.", answer)

	require.Len(t, c.requests, 1)
	req := c.requests[0]
	assert.Equal(t, "gpt-3.5-turbo", req.Model)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 1e-6)
	assert.Equal(t, "auto", req.ToolChoice)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "Are markets open?", req.Messages[1].Content)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "get_stock_quote", req.Tools[0].Function.Name)
}

func TestAskWithContext(t *testing.T) {
	c := &scriptedCompleter{replies: []openai.ChatCompletionMessage{textReply("ok")}}
	a := New(testConfig(), toolbox.New(), WithCompleter(c))

	_, err := a.Ask(context.Background(), "Buy or hold?", "I own 10 IBM shares")
	require.NoError(t, err)

	assert.Equal(t, "Financial context:\nI own 10 IBM shares\n\nQuestion: Buy or hold?", c.requests[0].Messages[1].Content)
	assert.Empty(t, c.requests[0].Tools)
	assert.Nil(t, c.requests[0].ToolChoice)
}

func TestAskRunsOneToolRound(t *testing.T) {
	c := &scriptedCompleter{replies: []openai.ChatCompletionMessage{
		toolCallReply(quoteCall("call-1", `{"symbol":"AAPL"}`)),
		textReply("AAPL trades at 187.44."),
	}}

	var gotSymbol string
	tb := newRegistry(t, func(_ context.Context, args map[string]any) (any, error) {
		gotSymbol, _ = args["symbol"].(string)
		return map[string]any{"05. price": "187.44"}, nil
	})
	a := New(testConfig(), tb, WithCompleter(c))

	answer, err := a.Ask(context.Background(), "What's the price of AAPL?", "")
	require.NoError(t, err)
	assert.Equal(t, "AAPL trades at 187.44.", answer)
	assert.Equal(t, "AAPL", gotSymbol)

	require.Len(t, c.requests, 2)
	second := c.requests[1]
	assert.Empty(t, second.Tools)

	require.Len(t, second.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleAssistant, second.Messages[2].Role)
	require.Len(t, second.Messages[2].ToolCalls, 1)
	assert.Equal(t, "call-1", second.Messages[2].ToolCalls[0].ID)

	toolMsg := second.Messages[3]
	assert.Equal(t, openai.ChatMessageRoleTool, toolMsg.Role)
	assert.Equal(t, "call-1", toolMsg.ToolCallID)
	assert.JSONEq(t, `{"05. price":"187.44"}`, toolMsg.Content)
}

func TestAskToolFailureIsFedBack(t *testing.T) {
	c := &scriptedCompleter{replies: []openai.ChatCompletionMessage{
		toolCallReply(
			quoteCall("call-1", `{"symbol":"AAPL"}`),
			openai.ToolCall{ID: "call-2", Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: "get_weather", Arguments: `{}`}},
			quoteCall("call-3", `{not json`),
		),
		textReply("I could not fetch the quote right now."),
	}}

	tb := newRegistry(t, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("Alpha Vantage API error: 403")
	})
	a := New(testConfig(), tb, WithCompleter(c))

	answer, err := a.Ask(context.Background(), "Price of AAPL?", "")
	require.NoError(t, err)
	assert.Equal(t, "I could not fetch the quote right now.", answer)

	msgs := c.requests[1].Messages
	require.Len(t, msgs, 6)
	assert.Equal(t, "Error: get_stock_quote: Alpha Vantage API error: 403", msgs[3].Content)
	assert.Equal(t, "Error: Unknown tool: get_weather", msgs[4].Content)
	assert.True(t, strings.HasPrefix(msgs[5].Content, "Error: invalid arguments for get_stock_quote"))
}

func TestAskChatServiceFailure(t *testing.T) {
	c := &scriptedCompleter{err: errors.New("connection refused")}
	a := New(testConfig(), toolbox.New(), WithCompleter(c))

	_, err := a.Ask(context.Background(), "hi", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChatService)
	assert.Contains(t, err.Error(), "connection refused")

	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Upstream())
}

func TestAskEmptyChoices(t *testing.T) {
	a := New(testConfig(), toolbox.New(), WithCompleter(&scriptedCompleter{}))

	_, err := a.Ask(context.Background(), "hi", "")
	assert.ErrorIs(t, err, ErrChatService)
}

func TestCompleteAppendsExchange(t *testing.T) {
	c := &scriptedCompleter{replies: []openai.ChatCompletionMessage{
		toolCallReply(quoteCall("call-1", `{"symbol":"IBM"}`)),
		textReply("done"),
	}}
	tb := newRegistry(t, func(context.Context, map[string]any) (any, error) {
		return "170.10", nil
	})
	a := New(testConfig(), tb, WithCompleter(c))

	conv := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "IBM?"}}
	history, err := a.Complete(context.Background(), conv)
	require.NoError(t, err)

	require.Len(t, history, 4)
	assert.Len(t, conv, 1)
	assert.Equal(t, openai.ChatMessageRoleAssistant, history[1].Role)
	assert.Equal(t, "call-1", history[1].ToolCalls[0].ID)
	assert.Equal(t, openai.ChatMessageRoleTool, history[2].Role)
	assert.Equal(t, "call-1", history[2].ToolCallID)
	assert.Equal(t, `"170.10"`, history[2].Content)
	assert.Equal(t, "done", history[3].Content)
}

func TestCompleteWithoutToolCalls(t *testing.T) {
	c := &scriptedCompleter{replies: []openai.ChatCompletionMessage{textReply("hello")}}
	a := New(testConfig(), toolbox.New(), WithCompleter(c))

	history, err := a.Complete(context.Background(), []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hi"}})
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[1].Content)
	assert.Len(t, c.requests, 1)
}

func TestZeroTemperatureIsSent(t *testing.T) {
	c := &scriptedCompleter{replies: []openai.ChatCompletionMessage{textReply("ok")}}
	cfg := testConfig()
	cfg.Temperature = 0
	a := New(cfg, toolbox.New(), WithCompleter(c))

	_, err := a.Ask(context.Background(), "q", "")
	require.NoError(t, err)

	temp := c.requests[0].Temperature
	assert.Positive(t, temp)
	assert.InDelta(t, 0, temp, 1e-30)

	body, err := json.Marshal(c.requests[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), `"temperature"`)
}

func TestChatToolIsNotOfferedToModel(t *testing.T) {
	c := &scriptedCompleter{replies: []openai.ChatCompletionMessage{
		toolCallReply(openai.ToolCall{ID: "c", Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: ToolName, Arguments: `{"question":"loop"}`}}),
		textReply("fine"),
	}}
	tb := newRegistry(t, func(context.Context, map[string]any) (any, error) { return nil, nil })
	a := New(testConfig(), tb, WithCompleter(c))
	require.NoError(t, tb.Register(a.Tool()))

	_, err := a.Ask(context.Background(), "q", "")
	require.NoError(t, err)

	for _, tool := range c.requests[0].Tools {
		assert.NotEqual(t, ToolName, tool.Function.Name)
	}
	assert.Equal(t, "Error: Unknown tool: "+ToolName, c.requests[1].Messages[3].Content)
	assert.Len(t, c.requests, 2)
}

func TestToolThroughRegistry(t *testing.T) {
	c := &scriptedCompleter{replies: []openai.ChatCompletionMessage{textReply("Diversify.")}}
	tb := toolbox.New()
	a := New(testConfig(), tb, WithCompleter(c))
	require.NoError(t, tb.Register(a.Tool()))

	res := tb.Call(context.Background(), ToolName, map[string]any{"question": "Advice?"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Diversify.", res.Data)

	res = tb.Call(context.Background(), ToolName, map[string]any{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "question")
}

func TestToolThroughRegistryChatFailure(t *testing.T) {
	tb := toolbox.New()
	a := New(testConfig(), tb, WithCompleter(&scriptedCompleter{err: errors.New("timeout")}))
	require.NoError(t, tb.Register(a.Tool()))

	res := tb.Call(context.Background(), ToolName, map[string]any{"question": "Advice?"})
	assert.False(t, res.Success)
	assert.Equal(t, toolbox.KindUpstream, res.ErrorKind)
}

func TestOpenAIClientOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: textReply("pong")}},
		})
	}))
	defer srv.Close()

	a := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini", MaxTokens: 50}, toolbox.New())

	answer, err := a.Ask(context.Background(), "ping", "")
	require.NoError(t, err)
	assert.Equal(t, "pong", answer)
}

func TestUsageAccumulatesAcrossRound(t *testing.T) {
	c := &scriptedCompleter{replies: []openai.ChatCompletionMessage{
		toolCallReply(quoteCall("call_1", `{"symbol":"AAPL"}`)),
		textReply("AAPL is at 189.84."),
	}}
	tb := newRegistry(t, func(context.Context, map[string]any) (any, error) {
		return map[string]any{"price": "189.84"}, nil
	})
	a := New(testConfig(), tb, WithCompleter(c))

	_, err := a.Ask(context.Background(), "AAPL?", "")
	require.NoError(t, err)

	assert.Equal(t, TokenCount{PromptTokens: 80, CompletionTokens: 16}, a.Usage())
	assert.Equal(t, 96, a.Usage().Total())
}

func TestUsageTrackerConcurrent(t *testing.T) {
	var tr UsageTracker
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Add(TokenCount{PromptTokens: 2, CompletionTokens: 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, TokenCount{PromptTokens: 100, CompletionTokens: 50}, tr.Total())
}
