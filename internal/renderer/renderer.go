// Package renderer prints crew execution progress and the final summary to
// the console.
package renderer

import (
	"fmt"
	"hash/fnv"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/isrc101/crew/internal/coordinator"
	"github.com/isrc101/crew/pkg/models"
)

// roleColors is the palette used to distinguish roles in output. A role's
// color is a stable hash of its name.
var roleColors = []color.Attribute{
	color.FgBlue,
	color.FgGreen,
	color.FgYellow,
	color.FgMagenta,
	color.FgCyan,
	color.FgHiBlue,
	color.FgHiMagenta,
	color.FgRed,
}

func colorForRole(role string) *color.Color {
	h := fnv.New32a()
	h.Write([]byte(role))
	return color.New(roleColors[h.Sum32()%uint32(len(roleColors))])
}

// ConsoleRenderer consumes coordinator events and prints one line per event.
// Safe for a single consuming goroutine; writes are serialized internally so
// Summary can be called from another goroutine after Follow returns.
type ConsoleRenderer struct {
	out     io.Writer
	verbose bool
	mu      sync.Mutex
}

// New creates a ConsoleRenderer writing to out. Verbose mode includes status
// ticks and budget reallocations.
func New(out io.Writer, verbose bool) *ConsoleRenderer {
	return &ConsoleRenderer{out: out, verbose: verbose}
}

// Follow drains the event channel until it closes, rendering each event.
func (r *ConsoleRenderer) Follow(events <-chan coordinator.CrewEvent) {
	for ev := range events {
		r.render(ev)
	}
}

func (r *ConsoleRenderer) render(ev coordinator.CrewEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dim := color.New(color.Faint)
	switch ev.Type {
	case coordinator.EventPlanCreated:
		fmt.Fprintf(r.out, "%s %s\n", color.New(color.Bold).Sprint("Plan:"), ev.Message)
	case coordinator.EventTaskStarted:
		fmt.Fprintf(r.out, "  %s %s\n",
			colorForRole(ev.Role).Sprintf("▶ %s", ev.Worker),
			dim.Sprintf("starting task %s", ev.TaskID))
	case coordinator.EventTaskDone:
		fmt.Fprintf(r.out, "  %s %s completed %s\n",
			color.GreenString("✓"),
			colorForRole(ev.Role).Sprint(ev.Role),
			dim.Sprintf("(task %s, %d tokens, %.1fs)", ev.TaskID, ev.TokensUsed, ev.Elapsed))
	case coordinator.EventTaskFailed:
		fmt.Fprintf(r.out, "  %s %s failed: %s\n",
			color.RedString("✗"),
			colorForRole(ev.Role).Sprint(ev.Role),
			color.RedString("%s", ev.Message))
	case coordinator.EventReviewCreated:
		fmt.Fprintf(r.out, "  %s %s\n",
			color.CyanString("⟳ review requested"),
			dim.Sprintf("for task %s by %s", ev.TaskID, ev.Worker))
	case coordinator.EventReviewPassed:
		fmt.Fprintf(r.out, "  %s %s\n",
			color.GreenString("✓ review passed"),
			dim.Sprintf("for task %s", ev.TaskID))
	case coordinator.EventReworkRequested:
		fmt.Fprintf(r.out, "  %s %s\n",
			color.CyanString("⟲ rework #%d", ev.ReworkCount),
			dim.Sprintf("requested for task %s", ev.TaskID))
	case coordinator.EventReworkLimit:
		fmt.Fprintf(r.out, "  %s\n",
			dim.Sprintf("⊘ rework limit reached for task %s, accepting current output", ev.TaskID))
	case coordinator.EventBudgetWarning:
		fmt.Fprintf(r.out, "  %s %s\n", color.YellowString("⚠"), ev.Message)
	case coordinator.EventBudgetReallocated:
		if r.verbose {
			fmt.Fprintf(r.out, "  %s\n", dim.Sprint(ev.Message))
		}
	case coordinator.EventStatusTick:
		if r.verbose {
			fmt.Fprintf(r.out, "  %s\n",
				dim.Sprintf("… %s working on %s (%d tokens, %.0fs)", ev.Worker, ev.TaskID, ev.TokensUsed, ev.Elapsed))
		}
	}
}

// Summary prints the per-task result table and totals.
func (r *ConsoleRenderer) Summary(results []*models.TaskResult, skipped []*models.CrewTask) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dim := color.New(color.Faint)
	fmt.Fprintf(r.out, "\n%s\n", color.New(color.Bold).Sprint("Crew Summary"))

	var totalTokens int64
	var totalTime float64
	for _, res := range results {
		status := color.GreenString(string(res.Status))
		if res.Status != models.ResultDone {
			status = color.RedString(string(res.Status))
		}
		fmt.Fprintf(r.out, "  %-8s %-12s %s %s\n",
			res.TaskID,
			colorForRole(res.RoleName).Sprint(res.RoleName),
			status,
			dim.Sprintf("%d tokens, %.1fs", res.TokensUsed, res.ElapsedSeconds))
		totalTokens += res.TokensUsed
		totalTime += res.ElapsedSeconds
	}
	for _, task := range skipped {
		fmt.Fprintf(r.out, "  %-8s %-12s %s\n",
			task.ID, task.AssignedRole, dim.Sprint("skipped"))
	}
	fmt.Fprintf(r.out, "  %s\n", dim.Sprintf("%.1fs total, %d tokens", totalTime, totalTokens))
}
