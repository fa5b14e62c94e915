package assistant

import "sync"

// TokenCount holds the prompt and completion tokens of one or more chat
// completions.
type TokenCount struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns the sum of prompt and completion tokens.
func (tc TokenCount) Total() int {
	return tc.PromptTokens + tc.CompletionTokens
}

// UsageTracker accumulates token usage across completions. It is safe for
// concurrent use; the zero value is ready to use.
type UsageTracker struct {
	mu    sync.Mutex
	total TokenCount
}

// Add records one completion.
func (t *UsageTracker) Add(tc TokenCount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total.PromptTokens += tc.PromptTokens
	t.total.CompletionTokens += tc.CompletionTokens
}

// Total returns the aggregate token count.
func (t *UsageTracker) Total() TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.total
}
