package board

import (
	"strings"
	"testing"

	"github.com/isrc101/crew/pkg/models"
)

func task(id string, deps ...string) *models.CrewTask {
	return &models.CrewTask{ID: id, Description: "task " + id, AssignedRole: "coder", DependsOn: deps}
}

func TestAddTaskStartsPending(t *testing.T) {
	b := New()
	b.AddTask(task("t1"))

	if got := b.GetState("t1"); got != models.TaskStatePending {
		t.Errorf("expected PENDING, got %s", got)
	}
	if got := b.ReworkCount("t1"); got != 0 {
		t.Errorf("expected rework count 0, got %d", got)
	}
}

func TestGetAssignableNoDeps(t *testing.T) {
	b := New()
	b.AddTasks([]*models.CrewTask{task("t1"), task("t2")})

	got := b.GetAssignable()
	if len(got) != 2 {
		t.Fatalf("expected 2 assignable tasks, got %d", len(got))
	}
}

func TestGetAssignableBlockedByDependency(t *testing.T) {
	b := New()
	b.AddTasks([]*models.CrewTask{task("t1"), task("t2", "t1")})

	got := b.GetAssignable()
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("expected only t1 assignable, got %v", ids(got))
	}

	b.MarkDone("t1", &models.TaskResult{TaskID: "t1", Status: models.ResultDone})
	got = b.GetAssignable()
	if len(got) != 1 || got[0].ID != "t2" {
		t.Fatalf("expected only t2 assignable after t1 done, got %v", ids(got))
	}
}

func TestGetAssignableDanglingDepSatisfied(t *testing.T) {
	b := New()
	b.AddTask(task("t1", "no-such-task"))

	if got := b.GetAssignable(); len(got) != 1 {
		t.Fatalf("dangling dependency should not block, got %v", ids(got))
	}
}

func TestGetAssignablePriorityOrder(t *testing.T) {
	b := New()
	// t1 unblocks two downstream tasks, t4 none, so t1 dispatches first.
	b.AddTasks([]*models.CrewTask{
		task("t1"),
		task("t2", "t1"),
		task("t3", "t2"),
		task("t4"),
	})

	got := b.GetAssignable()
	if len(got) != 2 {
		t.Fatalf("expected 2 assignable, got %v", ids(got))
	}
	if got[0].ID != "t1" || got[1].ID != "t4" {
		t.Errorf("expected [t1 t4], got %v", ids(got))
	}
}

func TestGetAssignableComplexityTiebreak(t *testing.T) {
	b := New()
	simple := task("t1")
	hard := task("t2")
	hard.Complexity = 5
	b.AddTasks([]*models.CrewTask{simple, hard})

	got := b.GetAssignable()
	if got[0].ID != "t2" {
		t.Errorf("higher complexity should win the tie, got %v", ids(got))
	}
}

func TestReworkCycle(t *testing.T) {
	b := New()
	b.AddTask(task("t1"))
	b.Assign("t1", "coder")
	b.MarkInReview("t1")

	if n := b.RequestRework("t1"); n != 1 {
		t.Fatalf("expected rework count 1, got %d", n)
	}
	if got := b.GetState("t1"); got != models.TaskStateRework {
		t.Errorf("expected REWORK, got %s", got)
	}
	// REWORK tasks with met dependencies are assignable again.
	if got := b.GetAssignable(); len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("rework task should be assignable, got %v", ids(got))
	}
	if n := b.RequestRework("t1"); n != 2 {
		t.Errorf("expected rework count 2, got %d", n)
	}
}

func TestSkipDownstreamTransitive(t *testing.T) {
	b := New()
	b.AddTasks([]*models.CrewTask{
		task("t1"),
		task("t2", "t1"),
		task("t3", "t2"),
		task("t4"),
	})

	b.MarkFailed("t1", &models.TaskResult{TaskID: "t1", Status: models.ResultFailed})
	b.SkipDownstream("t1")

	if got := b.GetState("t2"); got != models.TaskStateSkipped {
		t.Errorf("t2: expected SKIPPED, got %s", got)
	}
	if got := b.GetState("t3"); got != models.TaskStateSkipped {
		t.Errorf("t3: expected SKIPPED, got %s", got)
	}
	if got := b.GetState("t4"); got != models.TaskStatePending {
		t.Errorf("t4: expected PENDING, got %s", got)
	}

	// Idempotent: a second sweep changes nothing.
	b.SkipDownstream("t1")
	if got := len(b.SkippedTasks()); got != 2 {
		t.Errorf("expected 2 skipped tasks after re-sweep, got %d", got)
	}
}

func TestSkipDownstreamSparesFinishedTasks(t *testing.T) {
	b := New()
	b.AddTasks([]*models.CrewTask{task("t1"), task("t2", "t1")})
	b.MarkDone("t2", &models.TaskResult{TaskID: "t2", Status: models.ResultDone})

	b.MarkFailed("t1", &models.TaskResult{TaskID: "t1", Status: models.ResultFailed})
	b.SkipDownstream("t1")

	if got := b.GetState("t2"); got != models.TaskStateDone {
		t.Errorf("DONE dependent must not be skipped, got %s", got)
	}
}

func TestAllResolved(t *testing.T) {
	b := New()
	if b.AllResolved() {
		t.Error("empty board must not be resolved")
	}

	b.AddTasks([]*models.CrewTask{task("t1"), task("t2")})
	if b.AllResolved() {
		t.Error("pending tasks must not resolve the board")
	}

	b.MarkDone("t1", &models.TaskResult{TaskID: "t1", Status: models.ResultDone})
	b.MarkFailed("t2", &models.TaskResult{TaskID: "t2", Status: models.ResultFailed})
	if !b.AllResolved() {
		t.Error("all terminal states should resolve the board")
	}
}

func TestFailureScenario(t *testing.T) {
	// t2 depends on t1, t3 independent. t1 fails: t2 skipped, t3 runs.
	b := New()
	b.AddTasks([]*models.CrewTask{task("t1"), task("t2", "t1"), task("t3")})

	b.Assign("t1", "coder")
	b.MarkRunning("t1")
	b.MarkFailed("t1", &models.TaskResult{TaskID: "t1", Status: models.ResultFailed, Error: "boom"})
	b.SkipDownstream("t1")

	b.Assign("t3", "coder-2")
	b.MarkRunning("t3")
	b.MarkDone("t3", &models.TaskResult{TaskID: "t3", Status: models.ResultDone, Output: "ok"})

	if !b.AllResolved() {
		t.Error("board should be resolved")
	}
	if got := b.GetState("t2"); got != models.TaskStateSkipped {
		t.Errorf("t2: expected SKIPPED, got %s", got)
	}
}

func TestGetContextForTask(t *testing.T) {
	b := New()
	b.AddTasks([]*models.CrewTask{task("t1"), task("t2"), task("t3", "t1", "t2")})
	b.MarkDone("t1", &models.TaskResult{TaskID: "t1", RoleName: "researcher", Status: models.ResultDone, Output: "findings"})
	b.MarkFailed("t2", &models.TaskResult{TaskID: "t2", RoleName: "coder", Status: models.ResultFailed, Error: "boom"})

	got := b.GetContextForTask(b.GetTask("t3"))
	if !strings.Contains(got, "Result from task 't1' (researcher)") {
		t.Errorf("missing t1 header in context:\n%s", got)
	}
	if !strings.Contains(got, "findings") {
		t.Errorf("missing t1 output in context:\n%s", got)
	}
	if strings.Contains(got, "t2") {
		t.Errorf("failed task must not contribute context:\n%s", got)
	}
}

func TestGetContextForTaskPrefersContextFrom(t *testing.T) {
	b := New()
	b.AddTasks([]*models.CrewTask{task("t1"), task("t2")})
	b.MarkDone("t1", &models.TaskResult{TaskID: "t1", RoleName: "coder", Status: models.ResultDone, Output: "one"})
	b.MarkDone("t2", &models.TaskResult{TaskID: "t2", RoleName: "coder", Status: models.ResultDone, Output: "two"})

	t3 := task("t3", "t1")
	t3.ContextFrom = []string{"t2"}
	b.AddTask(t3)

	got := b.GetContextForTask(t3)
	if !strings.Contains(got, "two") || strings.Contains(got, "one") {
		t.Errorf("ContextFrom should override DependsOn:\n%s", got)
	}
}

func TestAssignRecordsWorker(t *testing.T) {
	b := New()
	b.AddTask(task("t1"))
	b.Assign("t1", "coder-2")

	if got := b.GetAssignment("t1"); got != "coder-2" {
		t.Errorf("expected coder-2, got %q", got)
	}
	if got := b.GetTask("t1").AssignedWorker; got != "coder-2" {
		t.Errorf("task record should carry the worker, got %q", got)
	}
}

func ids(tasks []*models.CrewTask) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
