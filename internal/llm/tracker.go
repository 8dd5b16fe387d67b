package llm

import "sync"

// TokenTracker tracks token usage across completion calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
	failures  int

	// USD per million tokens.
	inputRate  float64
	outputRate float64
}

// NewTokenTracker creates a tracker priced at the given USD rates per
// million input and output tokens.
func NewTokenTracker(inputRate, outputRate float64) *TokenTracker {
	return &TokenTracker{inputRate: inputRate, outputRate: outputRate}
}

// Add records token usage from a successful call.
func (t *TokenTracker) Add(input, output int64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Fail records a failed call.
func (t *TokenTracker) Fail() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures++
}

// Usage is a point-in-time copy of the tracked totals.
type Usage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Calls        int     `json:"calls"`
	Failures     int     `json:"failures"`
	CostUSD      float64 `json:"cost_usd"`
}

// Snapshot returns the current totals.
func (t *TokenTracker) Snapshot() Usage {
	if t == nil {
		return Usage{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return Usage{
		InputTokens:  t.inputTok,
		OutputTokens: t.outputTok,
		Calls:        t.calls,
		Failures:     t.failures,
		CostUSD:      float64(t.inputTok)/1_000_000*t.inputRate + float64(t.outputTok)/1_000_000*t.outputRate,
	}
}

// Reset clears all tracked usage.
func (t *TokenTracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok = 0
	t.outputTok = 0
	t.calls = 0
	t.failures = 0
}

// Tracked is implemented by completers that record token usage.
type Tracked interface {
	Tracker() *TokenTracker
}
