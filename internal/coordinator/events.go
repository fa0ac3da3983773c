package coordinator

import (
	"time"
)

// EventType represents the kind of crew lifecycle event.
type EventType string

const (
	// EventPlanCreated indicates the request was decomposed into tasks.
	EventPlanCreated EventType = "plan_created"
	// EventTaskStarted indicates a task was dispatched to a worker.
	EventTaskStarted EventType = "task_started"
	// EventTaskDone indicates a task completed successfully.
	EventTaskDone EventType = "task_done"
	// EventTaskFailed indicates a task failed or timed out.
	EventTaskFailed EventType = "task_failed"
	// EventReviewCreated indicates a completed task entered review.
	EventReviewCreated EventType = "review_created"
	// EventReviewPassed indicates a review approved the task output.
	EventReviewPassed EventType = "review_passed"
	// EventReworkRequested indicates a reviewer rejected the output.
	EventReworkRequested EventType = "rework_requested"
	// EventReworkLimit indicates the rework budget was exhausted and the
	// last output was accepted as-is.
	EventReworkLimit EventType = "rework_limit"
	// EventBudgetWarning indicates an agent crossed a spend threshold.
	EventBudgetWarning EventType = "budget_warning"
	// EventBudgetReallocated indicates unused allowance was reclaimed.
	EventBudgetReallocated EventType = "budget_reallocated"
	// EventStatusTick is a periodic progress update from a running task.
	EventStatusTick EventType = "status_tick"
)

// CrewEvent is a structured lifecycle event emitted for observability.
// Consumers are write-only sinks; the coordinator never reads events back.
type CrewEvent struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the related task, if applicable.
	TaskID string
	// Role is the role involved, if applicable.
	Role string
	// Worker is the worker instance involved, if applicable.
	Worker string
	// Message provides additional context about the event.
	Message string
	// TokensUsed is the token count relevant to the event.
	TokensUsed int64
	// Elapsed is the wall-clock seconds relevant to the event.
	Elapsed float64
	// ReworkCount is the rework cycle number for rework events.
	ReworkCount int
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
