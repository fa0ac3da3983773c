package budget

import "testing"

func TestUnlimitedMode(t *testing.T) {
	for _, b := range []*SharedTokenBudget{
		New(0, 1000, nil),
		New(1000, 0, nil),
	} {
		b.RegisterAgent("a1", "coder")
		b.Consume(1_000_000, "a1")

		if b.IsExhausted() {
			t.Error("unlimited budget must never be exhausted")
		}
		if b.IsAgentExhausted("a1") {
			t.Error("unlimited budget must never exhaust an agent")
		}
		if got := b.CheckWarnings("a1", []int{50}); got != nil {
			t.Errorf("unlimited budget must not warn, got %d", *got)
		}
	}
}

func TestGlobalExhaustion(t *testing.T) {
	b := New(100, 100, nil)
	b.Consume(99, "")
	if b.IsExhausted() {
		t.Error("not yet exhausted at 99/100")
	}
	b.Consume(1, "")
	if !b.IsExhausted() {
		t.Error("exhausted at 100/100")
	}
	if got := b.Remaining(); got != 0 {
		t.Errorf("expected remaining 0, got %d", got)
	}
	// Global exhaustion also stops every agent.
	b.RegisterAgent("a1", "coder")
	if !b.IsAgentExhausted("a1") {
		t.Error("global exhaustion must stop agents")
	}
}

func TestRegisterAgentAppliesMultiplier(t *testing.T) {
	b := New(10_000, 1000, map[string]float64{"researcher": 1.5})

	if got := b.RegisterAgent("r1", "researcher"); got != 1500 {
		t.Errorf("expected limit 1500, got %d", got)
	}
	if got := b.RegisterAgent("c1", "coder"); got != 1000 {
		t.Errorf("expected default multiplier limit 1000, got %d", got)
	}
}

func TestAgentExhaustion(t *testing.T) {
	b := New(10_000, 100, nil)
	b.RegisterAgent("a1", "coder")
	b.RegisterAgent("a2", "coder")

	b.Consume(100, "a1")
	if !b.IsAgentExhausted("a1") {
		t.Error("a1 should be exhausted at its limit")
	}
	if b.IsAgentExhausted("a2") {
		t.Error("a2 has its own allowance")
	}
	// Unregistered agents are bounded only by the global ceiling.
	if b.IsAgentExhausted("unknown") {
		t.Error("unknown agent should not be exhausted")
	}
}

func TestCheckWarningsFireOnce(t *testing.T) {
	b := New(10_000, 100, nil)
	b.RegisterAgent("a1", "coder")
	thresholds := []int{50, 80, 95}

	if got := b.CheckWarnings("a1", thresholds); got != nil {
		t.Errorf("no usage, no warning, got %d", *got)
	}

	b.Consume(50, "a1")
	got := b.CheckWarnings("a1", thresholds)
	if got == nil || *got != 50 {
		t.Fatalf("expected 50%% warning, got %v", got)
	}
	if again := b.CheckWarnings("a1", thresholds); again != nil {
		t.Errorf("50%% already fired, got %d", *again)
	}

	b.Consume(46, "a1")
	got = b.CheckWarnings("a1", thresholds)
	if got == nil || *got != 80 {
		t.Fatalf("expected 80%% warning, got %v", got)
	}
	// 95 crossed on the next check, one threshold per call.
	got = b.CheckWarnings("a1", thresholds)
	if got == nil || *got != 95 {
		t.Fatalf("expected 95%% warning, got %v", got)
	}
	if again := b.CheckWarnings("a1", thresholds); again != nil {
		t.Errorf("all thresholds fired, got %d", *again)
	}
}

func TestCheckWarningsPerAgent(t *testing.T) {
	b := New(10_000, 100, nil)
	b.RegisterAgent("a1", "coder")
	b.RegisterAgent("a2", "coder")
	b.Consume(60, "a1")
	b.Consume(60, "a2")

	if got := b.CheckWarnings("a1", []int{50}); got == nil {
		t.Error("a1 should warn")
	}
	if got := b.CheckWarnings("a2", []int{50}); got == nil {
		t.Error("a2 warnings are independent of a1")
	}
}

func TestReallocateFromOneShot(t *testing.T) {
	b := New(1000, 100, nil)
	b.RegisterAgent("a1", "coder")
	b.Consume(30, "a1")

	if got := b.ReallocateFrom("a1"); got != 70 {
		t.Fatalf("expected to reclaim 70, got %d", got)
	}
	if got := b.MaxTokens(); got != 1070 {
		t.Errorf("expected global ceiling 1070, got %d", got)
	}
	if got := b.AgentLimit("a1"); got != 30 {
		t.Errorf("expected limit clamped to usage 30, got %d", got)
	}
	if got := b.ReallocateFrom("a1"); got != 0 {
		t.Errorf("second reclaim must be zero, got %d", got)
	}
	if got := b.ReallocateFrom("unknown"); got != 0 {
		t.Errorf("unknown agent reclaims zero, got %d", got)
	}
}

func TestReallocateFromUnlimitedBudget(t *testing.T) {
	// maxTokens=0 with a nonzero per-agent limit is unlimited mode;
	// reclamation must not grow the zero ceiling into a finite one.
	b := New(0, 100, nil)
	b.RegisterAgent("a1", "coder")
	b.Consume(95, "a1")

	if got := b.ReallocateFrom("a1"); got != 0 {
		t.Fatalf("unlimited budget must reclaim nothing, got %d", got)
	}
	if got := b.MaxTokens(); got != 0 {
		t.Errorf("global ceiling must stay 0, got %d", got)
	}
	if b.IsExhausted() {
		t.Error("unlimited budget must never be exhausted after reclamation")
	}
}

func TestConsumeGlobalOnly(t *testing.T) {
	b := New(1000, 100, nil)
	b.Consume(42, "")
	if got := b.Used(); got != 42 {
		t.Errorf("expected 42 used, got %d", got)
	}
	if got := b.AgentUsed(""); got != 0 {
		t.Errorf("empty agent ID must not accrue usage, got %d", got)
	}
}
