package models

// TaskState represents the current state of a crew task on the board.
type TaskState string

const (
	// TaskStatePending indicates the task has not been assigned yet.
	TaskStatePending TaskState = "pending"
	// TaskStateAssigned indicates the task has been handed to a worker instance.
	TaskStateAssigned TaskState = "assigned"
	// TaskStateRunning indicates a worker is actively executing the task.
	TaskStateRunning TaskState = "running"
	// TaskStateDone indicates the task completed successfully.
	TaskStateDone TaskState = "done"
	// TaskStateFailed indicates the task failed.
	TaskStateFailed TaskState = "failed"
	// TaskStateInReview indicates the task output is being reviewed.
	TaskStateInReview TaskState = "in_review"
	// TaskStateRework indicates a reviewer rejected the output and the task
	// is waiting to be re-assigned to its original role.
	TaskStateRework TaskState = "rework"
	// TaskStateSkipped indicates the task was skipped because a dependency failed.
	TaskStateSkipped TaskState = "skipped"
)

// Valid returns true if the state is a known value.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStatePending, TaskStateAssigned, TaskStateRunning, TaskStateDone,
		TaskStateFailed, TaskStateInReview, TaskStateRework, TaskStateSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are possible from this state.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateDone, TaskStateFailed, TaskStateSkipped:
		return true
	default:
		return false
	}
}

// CrewTask is a single unit of decomposed work in the crew execution plan.
// Once added to a board the board owns it; other components only ever see
// copies or message-borne projections.
type CrewTask struct {
	// ID is the unique identifier for this task within a board.
	ID string `json:"id"`
	// Description is what the assigned agent should do.
	Description string `json:"description"`
	// AssignedRole names the specialist role that should execute the task.
	AssignedRole string `json:"assigned_role"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// ContextFrom lists task IDs whose outputs are injected as context.
	// When empty, DependsOn is used instead.
	ContextFrom []string `json:"context_from,omitempty"`
	// Complexity is the planner-declared effort estimate, used as a
	// scheduling tiebreaker (higher runs first).
	Complexity int `json:"complexity,omitempty"`
	// MaxRetries caps automatic retries for this task.
	MaxRetries int `json:"max_retries,omitempty"`
	// ReviewOf points to the reviewed task ID if this is a review task.
	ReviewOf string `json:"review_of,omitempty"`
	// AssignedWorker is the worker instance name, set on dispatch.
	AssignedWorker string `json:"assigned_worker,omitempty"`
}

// ResultStatus is the outcome classification of a TaskResult.
type ResultStatus string

const (
	// ResultDone indicates the task produced usable output.
	ResultDone ResultStatus = "done"
	// ResultFailed indicates the task did not produce usable output.
	ResultFailed ResultStatus = "failed"
)

// TaskResult is the outcome of a single task execution. It is produced by a
// worker, or synthesized by the coordinator when a task times out.
type TaskResult struct {
	// TaskID is the ID of the task this result belongs to.
	TaskID string `json:"task_id"`
	// RoleName is the role that produced the result.
	RoleName string `json:"role_name"`
	// Status is "done" or "failed".
	Status ResultStatus `json:"status"`
	// Output is the agent's final text output.
	Output string `json:"output"`
	// Error holds the failure reason when Status is "failed".
	Error string `json:"error,omitempty"`
	// TokensUsed is the number of tokens consumed producing this result.
	TokensUsed int64 `json:"tokens_used"`
	// ElapsedSeconds is the wall-clock execution time.
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}
