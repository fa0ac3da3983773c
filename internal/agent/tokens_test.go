package agent

import "testing"

func TestTokenTrackerTiers(t *testing.T) {
	var tr TokenTracker
	if got := tr.Confidence(); got != 1.0 {
		t.Errorf("empty tracker confidence = %v, want 1.0", got)
	}

	tr.Add(TokenUsage{TotalTokens: 75, Source: UsageSourceAPI})
	tr.Add(TokenUsage{TotalTokens: 25, Source: UsageSourceEstimate})

	if got := tr.Total(); got != 100 {
		t.Errorf("Total = %d, want 100", got)
	}
	if got := tr.Confidence(); got != 0.75 {
		t.Errorf("Confidence = %v, want 0.75", got)
	}
}

func TestTokenTrackerDefaultsToHard(t *testing.T) {
	var tr TokenTracker
	// Unset source counts as hard so API responses without the marker do
	// not degrade confidence.
	tr.Add(TokenUsage{TotalTokens: 10})
	if got := tr.Confidence(); got != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty text should estimate 0, got %d", got)
	}
	got := EstimateTokens("The quick brown fox jumps over the lazy dog.")
	if got <= 0 {
		t.Errorf("expected a positive estimate, got %d", got)
	}
	// Either tokenizer path yields far fewer tokens than characters.
	if got > 44 {
		t.Errorf("estimate %d exceeds character count", got)
	}
}
