// Package budget implements the shared token-spend accounting for a crew:
// one global ceiling plus independent per-agent ceilings with role-weighted
// allocation, threshold warnings, and reclamation.
package budget

import (
	"sync"
)

// SharedTokenBudget tracks token consumption across all crew agents.
//
// When either the global ceiling or the per-agent base limit is zero the
// budget operates in unlimited mode: exhaustion checks always report false
// and warnings never fire, regardless of consumption.
type SharedTokenBudget struct {
	// maxTokens is the global ceiling. Zero means unlimited.
	maxTokens int64
	// perAgentLimit is the base per-agent ceiling before role multipliers.
	// Zero means unlimited.
	perAgentLimit int64
	// multipliers maps role name to its budget multiplier (default 1.0).
	multipliers map[string]float64
	// used is the global consumption counter.
	used int64
	// agentLimits maps agent ID to its computed ceiling, set on registration.
	agentLimits map[string]int64
	// agentUsage maps agent ID to its consumption counter.
	agentUsage map[string]int64
	// warned tracks which percentage thresholds already fired per agent.
	warned map[string]map[int]bool
	// mu protects all mutable state.
	mu sync.Mutex
}

// New creates a SharedTokenBudget with the given global and per-agent
// ceilings. Role multipliers may be nil.
func New(maxTokens, perAgentLimit int64, multipliers map[string]float64) *SharedTokenBudget {
	return &SharedTokenBudget{
		maxTokens:     maxTokens,
		perAgentLimit: perAgentLimit,
		multipliers:   multipliers,
		agentLimits:   make(map[string]int64),
		agentUsage:    make(map[string]int64),
		warned:        make(map[string]map[int]bool),
	}
}

// RegisterAgent computes and stores the agent's ceiling as
// perAgentLimit × multiplier(role), defaulting the multiplier to 1.0, and
// returns the computed limit. Registration is once per agent ID;
// re-registering recomputes the limit but keeps usage.
func (b *SharedTokenBudget) RegisterAgent(agentID, role string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	mult := 1.0
	if m, ok := b.multipliers[role]; ok && m > 0 {
		mult = m
	}
	limit := int64(float64(b.perAgentLimit) * mult)
	b.agentLimits[agentID] = limit
	if b.warned[agentID] == nil {
		b.warned[agentID] = make(map[int]bool)
	}
	return limit
}

// Consume atomically adds tokens to the global counter and, when agentID is
// non-empty, to that agent's counter.
func (b *SharedTokenBudget) Consume(tokens int64, agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.used += tokens
	if agentID != "" {
		b.agentUsage[agentID] += tokens
	}
}

// Used returns the global consumption so far.
func (b *SharedTokenBudget) Used() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// MaxTokens returns the global ceiling (zero means unlimited).
func (b *SharedTokenBudget) MaxTokens() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxTokens
}

// Remaining returns the unconsumed portion of the global ceiling, floored at
// zero. In unlimited mode it returns zero.
func (b *SharedTokenBudget) Remaining() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.maxTokens - b.used
	if r < 0 {
		r = 0
	}
	return r
}

// AgentUsed returns the tokens consumed by one agent.
func (b *SharedTokenBudget) AgentUsed(agentID string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.agentUsage[agentID]
}

// AgentLimit returns the registered ceiling for one agent.
func (b *SharedTokenBudget) AgentLimit(agentID string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.agentLimits[agentID]
}

// IsExhausted reports whether global consumption has reached the global
// ceiling. Always false in unlimited mode.
func (b *SharedTokenBudget) IsExhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exhaustedLocked()
}

func (b *SharedTokenBudget) unlimitedLocked() bool {
	return b.maxTokens == 0 || b.perAgentLimit == 0
}

func (b *SharedTokenBudget) exhaustedLocked() bool {
	if b.unlimitedLocked() {
		return false
	}
	return b.used >= b.maxTokens
}

// IsAgentExhausted reports whether the agent has reached its own ceiling or
// the global ceiling has been reached. Always false in unlimited mode.
func (b *SharedTokenBudget) IsAgentExhausted(agentID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unlimitedLocked() {
		return false
	}
	if b.used >= b.maxTokens {
		return true
	}
	limit, ok := b.agentLimits[agentID]
	if !ok {
		return false
	}
	return b.agentUsage[agentID] >= limit
}

// CheckWarnings returns the smallest threshold (in ascending percentage
// thresholds) that the agent's usage percentage has crossed and that has not
// fired yet, recording it as fired. Each threshold fires at most once per
// agent. Returns nil in unlimited mode, for an empty threshold list, or when
// nothing new has been crossed.
func (b *SharedTokenBudget) CheckWarnings(agentID string, thresholds []int) *int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unlimitedLocked() || len(thresholds) == 0 {
		return nil
	}
	limit, ok := b.agentLimits[agentID]
	if !ok || limit <= 0 {
		return nil
	}
	pct := int(b.agentUsage[agentID] * 100 / limit)

	fired := b.warned[agentID]
	if fired == nil {
		fired = make(map[int]bool)
		b.warned[agentID] = fired
	}
	for _, th := range thresholds {
		if fired[th] {
			continue
		}
		if pct >= th {
			fired[th] = true
			t := th
			return &t
		}
		// Thresholds are ascending: nothing further is crossed either.
		return nil
	}
	return nil
}

// ReallocateFrom reclaims a finished agent's unused allowance, adds it to the
// global ceiling, and returns the reclaimed amount. Reclamation is one-shot:
// the agent's limit is clamped down to its usage, so a second call without
// new consumption reclaims zero.
func (b *SharedTokenBudget) ReallocateFrom(agentID string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	// An unlimited budget has no ceiling to grow; reclaiming into it would
	// turn maxTokens=0 into a small finite ceiling.
	if b.unlimitedLocked() {
		return 0
	}
	limit, ok := b.agentLimits[agentID]
	if !ok {
		return 0
	}
	unused := limit - b.agentUsage[agentID]
	if unused <= 0 {
		return 0
	}
	b.agentLimits[agentID] = b.agentUsage[agentID]
	b.maxTokens += unused
	return unused
}
