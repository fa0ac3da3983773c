// Package board implements the crew task state machine and the
// dependency/priority index used for dispatch ordering.
package board

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/isrc101/crew/pkg/models"
)

// TaskBoard is the single source of truth for task existence, state,
// assignment, and results. All public methods serialize on one internal
// mutex; the board never calls into other crew components while locked.
type TaskBoard struct {
	// tasks maps task ID to the task record. The board owns these.
	tasks map[string]*models.CrewTask
	// order preserves insertion order of task IDs for stable iteration.
	order []string
	// states maps task ID to its current state.
	states map[string]models.TaskState
	// results maps task ID to its stored result.
	results map[string]*models.TaskResult
	// assignments maps task ID to the assigned worker instance name.
	assignments map[string]string
	// reworkCounts maps task ID to the number of rework cycles so far.
	reworkCounts map[string]int
	// mu protects all fields.
	mu sync.Mutex
}

// New creates an empty TaskBoard.
func New() *TaskBoard {
	return &TaskBoard{
		tasks:        make(map[string]*models.CrewTask),
		states:       make(map[string]models.TaskState),
		results:      make(map[string]*models.TaskResult),
		assignments:  make(map[string]string),
		reworkCounts: make(map[string]int),
	}
}

// AddTask inserts a task at PENDING with a zero rework counter.
// Re-adding an existing ID overwrites the record but keeps its position.
func (b *TaskBoard) AddTask(task *models.CrewTask) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addLocked(task)
}

// AddTasks inserts several tasks at PENDING.
func (b *TaskBoard) AddTasks(tasks []*models.CrewTask) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range tasks {
		b.addLocked(t)
	}
}

func (b *TaskBoard) addLocked(task *models.CrewTask) {
	if _, exists := b.tasks[task.ID]; !exists {
		b.order = append(b.order, task.ID)
	}
	b.tasks[task.ID] = task
	b.states[task.ID] = models.TaskStatePending
	b.reworkCounts[task.ID] = 0
}

// GetTask returns the task for an ID, or nil if unknown.
func (b *TaskBoard) GetTask(taskID string) *models.CrewTask {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tasks[taskID]
}

// AllTasks returns all tasks in insertion order.
func (b *TaskBoard) AllTasks() []*models.CrewTask {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*models.CrewTask, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.tasks[id])
	}
	return out
}

// UsedRoles returns the set of role names referenced by current tasks.
func (b *TaskBoard) UsedRoles() map[string]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	roles := make(map[string]bool)
	for _, t := range b.tasks {
		roles[t.AssignedRole] = true
	}
	return roles
}

// Assign moves a PENDING or REWORK task to ASSIGNED and records the worker.
func (b *TaskBoard) Assign(taskID, worker string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[taskID] = models.TaskStateAssigned
	b.assignments[taskID] = worker
	if t := b.tasks[taskID]; t != nil {
		t.AssignedWorker = worker
	}
}

// MarkRunning moves a task to RUNNING.
func (b *TaskBoard) MarkRunning(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[taskID] = models.TaskStateRunning
}

// MarkDone moves a task to DONE and stores its result.
func (b *TaskBoard) MarkDone(taskID string, result *models.TaskResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[taskID] = models.TaskStateDone
	b.results[taskID] = result
}

// MarkFailed moves a task to FAILED and stores its result.
func (b *TaskBoard) MarkFailed(taskID string, result *models.TaskResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[taskID] = models.TaskStateFailed
	b.results[taskID] = result
}

// MarkInReview moves a task to IN_REVIEW.
func (b *TaskBoard) MarkInReview(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[taskID] = models.TaskStateInReview
}

// StashResult stores a result without changing task state. Used mid-review so
// the candidate output survives until the reviewer's verdict arrives.
func (b *TaskBoard) StashResult(taskID string, result *models.TaskResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[taskID] = result
}

// RequestRework increments the task's rework counter, moves it to REWORK, and
// returns the new counter value.
func (b *TaskBoard) RequestRework(taskID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reworkCounts[taskID]++
	b.states[taskID] = models.TaskStateRework
	return b.reworkCounts[taskID]
}

// ReworkCount returns the number of rework cycles recorded for a task.
func (b *TaskBoard) ReworkCount(taskID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reworkCounts[taskID]
}

// GetResult returns the stored result for a task, or nil.
func (b *TaskBoard) GetResult(taskID string) *models.TaskResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.results[taskID]
}

// GetState returns the current state of a task. Unknown IDs return "".
func (b *TaskBoard) GetState(taskID string) models.TaskState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states[taskID]
}

// GetAssignment returns the worker instance name assigned to a task.
func (b *TaskBoard) GetAssignment(taskID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.assignments[taskID]
}

// GetAssignable returns tasks in PENDING or REWORK whose dependencies are all
// DONE, in dispatch priority order: transitive downstream dependent count
// descending, then declared complexity descending, stable on ties.
//
// Dependency IDs not present on the board are treated as already satisfied.
// Priorities are recomputed on every call: dependency edges are static after
// decomposition but states change between calls.
func (b *TaskBoard) GetAssignable() []*models.CrewTask {
	b.mu.Lock()
	defer b.mu.Unlock()

	var assignable []*models.CrewTask
	for _, id := range b.order {
		task := b.tasks[id]
		state := b.states[id]
		if state != models.TaskStatePending && state != models.TaskStateRework {
			continue
		}
		depsMet := true
		for _, dep := range task.DependsOn {
			if _, known := b.tasks[dep]; !known {
				continue
			}
			if b.states[dep] != models.TaskStateDone {
				depsMet = false
				break
			}
		}
		if depsMet {
			assignable = append(assignable, task)
		}
	}

	downstream := make(map[string]int, len(assignable))
	for _, t := range assignable {
		downstream[t.ID] = b.downstreamCountLocked(t.ID)
	}
	sort.SliceStable(assignable, func(i, j int) bool {
		di, dj := downstream[assignable[i].ID], downstream[assignable[j].ID]
		if di != dj {
			return di > dj
		}
		return assignable[i].Complexity > assignable[j].Complexity
	})
	return assignable
}

// downstreamCountLocked counts tasks transitively depending on taskID via a
// reverse-edge traversal. Caller must hold b.mu.
func (b *TaskBoard) downstreamCountLocked(taskID string) int {
	visited := make(map[string]bool)
	queue := []string{taskID}
	for len(queue) > 0 {
		current := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		for id, task := range b.tasks {
			if visited[id] {
				continue
			}
			for _, dep := range task.DependsOn {
				if dep == current {
					visited[id] = true
					queue = append(queue, id)
					break
				}
			}
		}
	}
	return len(visited)
}

// SkipDownstream recursively marks every PENDING or REWORK transitive
// dependent of a failed task as SKIPPED. Idempotent: re-invoking after a
// previous sweep produces the same set.
func (b *TaskBoard) SkipDownstream(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	visited := make(map[string]bool)
	b.skipDownstreamLocked(taskID, visited)
}

func (b *TaskBoard) skipDownstreamLocked(failedID string, visited map[string]bool) {
	for id, task := range b.tasks {
		if visited[id] {
			continue
		}
		state := b.states[id]
		if state != models.TaskStatePending && state != models.TaskStateRework {
			continue
		}
		for _, dep := range task.DependsOn {
			if dep == failedID {
				b.states[id] = models.TaskStateSkipped
				visited[id] = true
				b.skipDownstreamLocked(id, visited)
				break
			}
		}
	}
}

// SkippedTasks returns tasks in SKIPPED state, in insertion order.
func (b *TaskBoard) SkippedTasks() []*models.CrewTask {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*models.CrewTask
	for _, id := range b.order {
		if b.states[id] == models.TaskStateSkipped {
			out = append(out, b.tasks[id])
		}
	}
	return out
}

// AllResolved returns true when every known task is in a terminal state.
// An empty board is not resolved.
func (b *TaskBoard) AllResolved() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.states) == 0 {
		return false
	}
	for _, s := range b.states {
		if !s.Terminal() {
			return false
		}
	}
	return true
}

// GetContextForTask builds the dependency context block for a task from the
// DONE results of its ContextFrom sources (DependsOn when ContextFrom is
// empty), in source-ID order.
func (b *TaskBoard) GetContextForTask(task *models.CrewTask) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	sourceIDs := task.ContextFrom
	if len(sourceIDs) == 0 {
		sourceIDs = task.DependsOn
	}
	var parts []string
	for _, id := range sourceIDs {
		result := b.results[id]
		if result != nil && result.Status == models.ResultDone {
			parts = append(parts, fmt.Sprintf("--- Result from task '%s' (%s) ---\n%s",
				id, result.RoleName, result.Output))
		}
	}
	return strings.Join(parts, "\n\n")
}
