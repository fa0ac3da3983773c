package agent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// UsageSource tells whether a token count came from the API or an estimate.
type UsageSource string

const (
	// UsageSourceAPI marks hard counts reported by the API.
	UsageSourceAPI UsageSource = "api"
	// UsageSourceEstimate marks soft counts estimated from content length.
	UsageSourceEstimate UsageSource = "estimate"
)

// TokenUsage is the token accounting for one request.
type TokenUsage struct {
	// InputTokens is the prompt-side token count.
	InputTokens int64
	// OutputTokens is the completion-side token count.
	OutputTokens int64
	// TotalTokens is InputTokens + OutputTokens.
	TotalTokens int64
	// Source is "api" for hard counts, "estimate" for soft counts.
	Source UsageSource
}

// TokenTracker accumulates two-tier token usage: hard counts reported by the
// API and soft counts estimated locally. Confidence degrades as the soft
// share grows.
type TokenTracker struct {
	mu   sync.Mutex
	hard int64
	soft int64
}

// Add records the usage of one request under the appropriate tier.
func (t *TokenTracker) Add(usage TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if usage.Source == UsageSourceEstimate {
		t.soft += usage.TotalTokens
	} else {
		t.hard += usage.TotalTokens
	}
}

// Total returns the combined hard + soft token count.
func (t *TokenTracker) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hard + t.soft
}

// Confidence returns the hard share of the total count (1.0 = all hard).
// An empty tracker reports full confidence.
func (t *TokenTracker) Confidence() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := t.hard + t.soft
	if total == 0 {
		return 1.0
	}
	return float64(t.hard) / float64(total)
}

// estimatorEncoding is the tiktoken encoding used for soft estimates.
// Claude tokenizers are not public; cl100k_base is close enough for
// budget accounting.
const estimatorEncoding = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// EstimateTokens estimates the token count of text. It lazily initializes a
// tiktoken encoding (may download data on first use); if that fails it falls
// back to the four-characters-per-token heuristic.
func EstimateTokens(text string) int64 {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(estimatorEncoding)
	})
	if encErr != nil || enc == nil {
		return int64(len(text) / 4)
	}
	return int64(len(enc.Encode(text, nil, nil)))
}
