// Package agent provides the crew's execution backend: the Agent abstraction
// workers run tasks through, the role-scoped factory that builds fresh agent
// instances, and the Anthropic-backed implementation.
package agent

import (
	"context"

	"github.com/isrc101/crew/pkg/models"
)

// Agent is a single crew member's conversational execution unit. Chat is a
// blocking, potentially long call; implementations consult the shared budget
// between internal steps and stop early when their allowance is spent.
type Agent interface {
	// Chat sends the instruction and returns the agent's final text output.
	Chat(ctx context.Context, input string) (string, error)
	// TotalTokens returns the tokens consumed by this agent so far.
	TotalTokens() int64
}

// Factory builds a fresh Agent instance scoped to one role. Workers call it
// once per task or review so concurrent executions share no mutable state.
type Factory interface {
	NewAgent(role models.RoleSpec) (Agent, error)
}

// Completer is a plain text-in/text-out language-model call, used for the
// coordinator's planner and synthesizer steps.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, TokenUsage, error)
}

// Compile-time interface checks.
var (
	_ Agent     = (*ChatAgent)(nil)
	_ Factory   = (*RoleFactory)(nil)
	_ Completer = (*Client)(nil)
)
