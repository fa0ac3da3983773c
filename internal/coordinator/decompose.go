package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/isrc101/crew/pkg/models"
)

// decomposePrompt is the planner prompt template. The planner must return a
// JSON array of task descriptors; fenced blocks and surrounding prose are
// tolerated by the parser.
const decomposePrompt = `You are a task coordinator for a multi-agent coding crew.

Given the user's request and the available specialist roles, decompose the request
into a list of concrete tasks. Each task should be assigned to exactly one role.

Available roles:
%s

Output ONLY a JSON array of task objects. Each object must have:
- "id": short identifier (e.g. "t1", "t2")
- "description": what the agent should do (be specific and actionable)
- "assigned_role": one of the available role names
- "depends_on": array of task IDs that must complete first (empty if independent)
- "context_from": array of task IDs whose results should be passed as context (optional, defaults to depends_on)
- "complexity": integer 1-5 effort estimate (optional)

Rules:
- Tasks that can run independently should have empty depends_on
- Order tasks logically: research before coding, coding before review, review before testing
- Keep tasks focused — each task should be completable by a single agent
- Include 2-6 tasks for typical requests
- Do NOT include any text outside the JSON array

User request: %s`

// plannerSystem frames the planner call.
const plannerSystem = "You are a planning assistant. Answer precisely and follow output format instructions exactly."

// fencedBlockRe matches a fenced code block and captures its body.
var fencedBlockRe = regexp.MustCompile("(?s)```(?:\\w*)\\s*\\n(.*?)```")

// taskDescriptor is the JSON structure the planner returns per task.
type taskDescriptor struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	AssignedRole string   `json:"assigned_role"`
	DependsOn    []string `json:"depends_on"`
	ContextFrom  []string `json:"context_from"`
	Complexity   int      `json:"complexity"`
}

// decompose asks the planner to break the request into tasks. An empty or
// unparsable planner response aborts the run before any worker is spawned.
func (c *Coordinator) decompose(ctx context.Context, request string) ([]*models.CrewTask, error) {
	var roleLines []string
	for _, spec := range c.roles.List() {
		roleLines = append(roleLines, fmt.Sprintf("- %s: %s", spec.Name, spec.Description))
	}
	prompt := fmt.Sprintf(decomposePrompt, strings.Join(roleLines, "\n"), request)

	response, usage, err := c.completer.Complete(ctx, plannerSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("decomposition call failed: %w", err)
	}
	c.budget.Consume(usage.TotalTokens, "")

	tasks := c.parseTasks(response)
	if len(tasks) == 0 {
		c.logger.Log("[decompose] unparsable planner output: %.200s", response)
		return nil, fmt.Errorf("planner returned no parsable tasks")
	}
	return tasks, nil
}

// parseTasks extracts the JSON task array from planner output. It tolerates
// the array being wrapped in a fenced block or surrounded by prose (locating
// the outermost brackets), and falls back unknown roles to the default role.
func (c *Coordinator) parseTasks(raw string) []*models.CrewTask {
	text := strings.TrimSpace(raw)

	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if !strings.HasPrefix(text, "[") {
		start := strings.Index(text, "[")
		end := strings.LastIndex(text, "]")
		if start >= 0 && end > start {
			text = text[start : end+1]
		}
	}

	var descriptors []taskDescriptor
	if err := json.Unmarshal([]byte(text), &descriptors); err != nil {
		return nil
	}

	var tasks []*models.CrewTask
	for _, d := range descriptors {
		id := d.ID
		if id == "" {
			id = fmt.Sprintf("t%d", len(tasks)+1)
		}
		role := d.AssignedRole
		if !c.roles.Has(role) {
			role = models.DefaultRoleName
		}
		tasks = append(tasks, &models.CrewTask{
			ID:           id,
			Description:  d.Description,
			AssignedRole: role,
			DependsOn:    d.DependsOn,
			ContextFrom:  d.ContextFrom,
			Complexity:   d.Complexity,
		})
	}
	return tasks
}
