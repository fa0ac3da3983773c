package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/isrc101/crew/pkg/models"
)

// synthesizePrompt is the summarization prompt template for the final step.
const synthesizePrompt = `You are synthesizing the results from a multi-agent crew execution.

The original user request was:
%s

Here are the results from each agent:

%s

Provide a unified, coherent summary of what was accomplished. Include:
1. What was done (key changes, findings)
2. Any issues or warnings from the agents
3. Suggested next steps if applicable

Be concise but complete.`

// noTasksCompleted is returned when the run produced no results at all.
const noTasksCompleted = "No tasks were completed."

// allTasksFailed is returned when every task failed.
const allTasksFailed = "All tasks failed. Check the event stream for details."

// synthesize combines the DONE task results into one user-facing answer.
// A summarization failure degrades to returning the raw concatenation of
// results rather than failing the run.
func (c *Coordinator) synthesize(ctx context.Context, request string, results []*models.TaskResult) string {
	if len(results) == 0 {
		return noTasksCompleted
	}

	var sections []string
	for _, r := range results {
		if r.Status != models.ResultDone {
			continue
		}
		sections = append(sections, fmt.Sprintf("### Task %s (%s):\n%s", r.TaskID, r.RoleName, r.Output))
	}
	if len(sections) == 0 {
		return allTasksFailed
	}
	resultsText := strings.Join(sections, "\n\n")

	prompt := fmt.Sprintf(synthesizePrompt, request, resultsText)
	response, usage, err := c.completer.Complete(ctx, plannerSystem, prompt)
	c.budget.Consume(usage.TotalTokens, "")
	if err != nil {
		c.logger.Log("[synthesize] summarization call failed, returning raw results: %v", err)
		return resultsText
	}
	if strings.TrimSpace(response) == "" {
		return resultsText
	}
	return response
}
