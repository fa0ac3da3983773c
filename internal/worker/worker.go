// Package worker implements the crew's long-lived execution units: one
// goroutine per role instance, draining a mailbox and executing exactly one
// task or review at a time.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/isrc101/crew/internal/agent"
	"github.com/isrc101/crew/internal/bus"
	"github.com/isrc101/crew/pkg/models"
)

// recvTimeout bounds each mailbox wait so the worker can notice Stop.
const recvTimeout = 5 * time.Second

// statusInterval is how often a running task reports STATUS_UPDATE.
const statusInterval = 15 * time.Second

// AgentWorker is a long-lived execution unit bound to one role-instance
// name. It registers its own inbox, blocks on mailbox receives, and executes
// tasks and reviews synchronously through fresh agent instances.
type AgentWorker struct {
	// name is the instance name (e.g. "coder-1"), unique within the crew.
	name string
	// role is the specialization this instance executes as.
	role models.RoleSpec
	// bus carries all communication with the coordinator.
	bus *bus.MessageBus
	// factory builds a fresh agent per task/review.
	factory agent.Factory
	// done signals the worker to stop; closed exactly once by Stop.
	done chan struct{}
	// finished is closed when the worker goroutine exits.
	finished chan struct{}
}

// New creates an AgentWorker. Call Start to launch its goroutine.
func New(name string, role models.RoleSpec, b *bus.MessageBus, factory agent.Factory) *AgentWorker {
	return &AgentWorker{
		name:     name,
		role:     role,
		bus:      b,
		factory:  factory,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Name returns the worker instance name.
func (w *AgentWorker) Name() string {
	return w.name
}

// Role returns the worker's role spec.
func (w *AgentWorker) Role() models.RoleSpec {
	return w.role
}

// Start registers the worker's inbox and launches its goroutine.
func (w *AgentWorker) Start() {
	w.bus.RegisterWorker(w.name)
	go w.run()
}

// Stop signals the worker to exit after its current message. Safe to call
// alongside a SHUTDOWN broadcast; whichever arrives first wins.
func (w *AgentWorker) Stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}

// Join waits up to timeout for the worker goroutine to exit.
// Returns false if the worker is still running when the timeout elapses.
func (w *AgentWorker) Join(timeout time.Duration) bool {
	select {
	case <-w.finished:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (w *AgentWorker) run() {
	defer close(w.finished)
	defer w.bus.UnregisterWorker(w.name)

	for {
		select {
		case <-w.done:
			return
		default:
		}

		msg := w.bus.WorkerRecv(w.name, recvTimeout)
		if msg == nil {
			continue
		}

		switch msg.Type {
		case models.MsgShutdown:
			return
		case models.MsgTaskAssigned, models.MsgReworkAssigned:
			w.handleTask(msg)
		case models.MsgReviewRequest:
			w.handleReview(msg)
		case models.MsgTaskComplete, models.MsgTaskFailed, models.MsgReviewPassed,
			models.MsgReworkNeeded, models.MsgStatusUpdate, models.MsgScratchpadWrite:
			// Coordinator-bound types; nothing to do if one is misrouted.
		default:
			log.Printf("[worker %s] unexpected message type %q", w.name, msg.Type)
		}
	}
}

// handleTask executes one assigned task through a fresh agent instance.
// Agent construction failure fails the task immediately; execution failure
// reports the error with the tokens consumed so far.
func (w *AgentWorker) handleTask(msg *models.CrewMessage) {
	start := time.Now()

	ag, err := w.factory.NewAgent(w.role)
	if err != nil {
		w.send(models.MsgTaskFailed, msg.TaskID,
			fmt.Sprintf("agent creation failed: %v", err),
			map[string]any{"tokens": int64(0), "elapsed": time.Since(start).Seconds()})
		return
	}

	instruction := msg.Content
	if feedback := msg.MetaString("rework_feedback"); feedback != "" {
		instruction += "\n\n## Review Feedback (please address):\n" + feedback
	}
	if previous := msg.MetaString("previous_output"); previous != "" {
		instruction += "\n\n## Your Previous Output:\n" + previous
	}

	// Heartbeat goroutine: STATUS_UPDATE with elapsed time and the running
	// token count until the chat call returns.
	taskDone := make(chan struct{})
	go w.heartbeat(msg.TaskID, start, ag, statusInterval, taskDone)

	output, err := ag.Chat(context.Background(), instruction)
	close(taskDone)

	elapsed := time.Since(start).Seconds()
	if err != nil {
		w.send(models.MsgTaskFailed, msg.TaskID, err.Error(),
			withAgentID(ag, map[string]any{"tokens": ag.TotalTokens(), "elapsed": elapsed}))
		return
	}
	w.send(models.MsgTaskComplete, msg.TaskID, output,
		withAgentID(ag, map[string]any{"tokens": ag.TotalTokens(), "elapsed": elapsed}))
}

// handleReview runs one review request. Review failures are fail-open: a
// broken reviewer must never block the pipeline, so agent-creation or chat
// errors report REVIEW_PASSED with the review_error flag set.
func (w *AgentWorker) handleReview(msg *models.CrewMessage) {
	start := time.Now()

	ag, err := w.factory.NewAgent(w.role)
	if err != nil {
		w.send(models.MsgReviewPassed, msg.TaskID,
			fmt.Sprintf("review skipped (agent creation failed): %v", err),
			map[string]any{"tokens": int64(0), "elapsed": time.Since(start).Seconds(), "review_error": true})
		return
	}

	prompt := fmt.Sprintf("Review the following output from a coding task.\n\n"+
		"## Task Description:\n%s\n\n"+
		"## Code/Output to Review:\n%s\n\n"+
		"If the output is acceptable, respond with exactly: LGTM\n"+
		"If issues found, describe them clearly for the author to fix.",
		msg.MetaString("task_description"), msg.Content)

	output, err := ag.Chat(context.Background(), prompt)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		w.send(models.MsgReviewPassed, msg.TaskID,
			fmt.Sprintf("review error: %v", err),
			withAgentID(ag, map[string]any{"tokens": ag.TotalTokens(), "elapsed": elapsed, "review_error": true}))
		return
	}

	verdict := models.MsgReworkNeeded
	if isApproval(output) {
		verdict = models.MsgReviewPassed
	}
	w.send(verdict, msg.TaskID, output,
		withAgentID(ag, map[string]any{"tokens": ag.TotalTokens(), "elapsed": elapsed}))
}

// heartbeat sends STATUS_UPDATE every interval until stop is closed.
func (w *AgentWorker) heartbeat(taskID string, start time.Time, ag agent.Agent, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.send(models.MsgStatusUpdate, taskID, "",
				withAgentID(ag, map[string]any{"elapsed": time.Since(start).Seconds(), "tokens": ag.TotalTokens()}))
		}
	}
}

// withAgentID stamps the agent's budget identity into metadata when the
// agent exposes one, letting the coordinator reclaim its unused allocation.
func withAgentID(ag agent.Agent, metadata map[string]any) map[string]any {
	if ider, ok := ag.(interface{ AgentID() string }); ok {
		metadata["agent_id"] = ider.AgentID()
	}
	return metadata
}

func (w *AgentWorker) send(t models.MessageType, taskID, content string, metadata map[string]any) {
	m := models.NewMessage(t, w.name, models.CoordinatorName)
	m.TaskID = taskID
	m.Content = content
	m.Metadata = metadata
	w.bus.SendToCoordinator(m)
}
