package models

// RoleSpec describes a crew role: a named worker specialization with its own
// prompt and tooling policy. The zero value is not usable; roles come from
// the built-in catalog or the role registry file.
type RoleSpec struct {
	// Name is the role identifier (e.g. "coder", "reviewer").
	Name string `yaml:"name" json:"name"`
	// Description is a one-line summary shown to the planner.
	Description string `yaml:"description" json:"description"`
	// Instructions is free-text appended to the agent's system prompt.
	Instructions string `yaml:"instructions" json:"instructions"`
	// Mode selects the agent execution mode: "agent" (tools enabled) or
	// "ask" (read/answer only).
	Mode string `yaml:"mode" json:"mode"`
	// AllowedTools restricts the agent to these tool names when non-nil.
	AllowedTools []string `yaml:"allowed-tools" json:"allowed_tools,omitempty"`
	// BlockedTools removes these tool names when non-nil.
	BlockedTools []string `yaml:"blocked-tools" json:"blocked_tools,omitempty"`
	// ModelOverride selects a non-default model for this role.
	ModelOverride string `yaml:"model-override" json:"model_override,omitempty"`
	// TemperatureOverride selects a non-default sampling temperature.
	TemperatureOverride *float64 `yaml:"temperature-override" json:"temperature_override,omitempty"`
	// AutoConfirm skips interactive confirmation for this role's tool calls.
	AutoConfirm bool `yaml:"auto-confirm" json:"auto_confirm"`
	// BudgetMultiplier scales the per-agent token allowance for this role.
	// Zero means the default multiplier of 1.0.
	BudgetMultiplier float64 `yaml:"budget-multiplier" json:"budget_multiplier,omitempty"`
}

// DefaultRoleName is the fallback role when the planner emits an unknown one.
const DefaultRoleName = "coder"

// ReviewerRoleName is the role the coordinator routes auto-reviews to.
const ReviewerRoleName = "reviewer"
