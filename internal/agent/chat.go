package agent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/isrc101/crew/internal/budget"
	"github.com/isrc101/crew/pkg/models"
)

// ChatAgent is the Anthropic-backed Agent implementation. Each instance is
// scoped to one role and one task execution; concurrent instances share only
// the client and the budget.
type ChatAgent struct {
	client  *Client
	agentID string
	role    models.RoleSpec
	system  string
	model   anthropic.Model
	temp    *float64
	budget  *budget.SharedTokenBudget
	tracker TokenTracker
}

// Chat sends the instruction and returns the final text output. The shared
// budget is consulted before the request, so an exhausted allowance stops the
// agent between steps instead of mid-request.
func (a *ChatAgent) Chat(ctx context.Context, input string) (string, error) {
	if a.budget != nil && a.budget.IsAgentExhausted(a.agentID) {
		return "", fmt.Errorf("agent %s: token budget exhausted", a.agentID)
	}

	output, usage, err := a.client.complete(ctx, a.model, a.temp, a.system, input)
	a.tracker.Add(usage)
	if a.budget != nil {
		a.budget.Consume(usage.TotalTokens, a.agentID)
	}
	if err != nil {
		return "", err
	}
	return output, nil
}

// TotalTokens returns the tokens consumed by this agent so far.
func (a *ChatAgent) TotalTokens() int64 {
	return a.tracker.Total()
}

// AgentID returns the budget-tracking identifier for this agent.
func (a *ChatAgent) AgentID() string {
	return a.agentID
}

// RoleFactory builds ChatAgents bound to a shared client, project root, and
// budget. Every NewAgent call registers a fresh agent ID with the budget so
// per-agent ceilings and reclamation work per execution.
type RoleFactory struct {
	// Client is the shared Anthropic client. Required.
	Client *Client
	// ProjectRoot is the working directory agents operate in.
	ProjectRoot string
	// Budget is the shared token budget. May be nil (unlimited).
	Budget *budget.SharedTokenBudget
}

// NewAgent creates an independent agent instance configured for a role.
func (f *RoleFactory) NewAgent(role models.RoleSpec) (Agent, error) {
	if f.Client == nil {
		return nil, fmt.Errorf("role %s: no client configured", role.Name)
	}

	model := f.Client.Model()
	if role.ModelOverride != "" {
		model = anthropic.Model(role.ModelOverride)
	}

	agentID := fmt.Sprintf("%s-%s", role.Name, uuid.New().String()[:8])
	if f.Budget != nil {
		f.Budget.RegisterAgent(agentID, role.Name)
	}

	return &ChatAgent{
		client:  f.Client,
		agentID: agentID,
		role:    role,
		system:  buildSystemPrompt(role, f.ProjectRoot),
		model:   model,
		temp:    role.TemperatureOverride,
		budget:  f.Budget,
	}, nil
}

// buildSystemPrompt composes the role header, the role's instructions, and
// the execution-mode note into the agent's system prompt.
func buildSystemPrompt(role models.RoleSpec, projectRoot string) string {
	prompt := fmt.Sprintf("## Crew Role: %s\nDescription: %s\n\n%s",
		role.Name, role.Description, role.Instructions)
	if role.Mode == "ask" {
		prompt += "\n\nAnswer from knowledge and provided context. Do not attempt to modify files."
	}
	if projectRoot != "" {
		prompt += fmt.Sprintf("\n\nProject root: %s", projectRoot)
	}
	return prompt
}
