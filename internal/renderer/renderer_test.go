package renderer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/isrc101/crew/internal/coordinator"
	"github.com/isrc101/crew/pkg/models"
)

func plainRenderer(verbose bool) (*ConsoleRenderer, *bytes.Buffer) {
	color.NoColor = true
	buf := &bytes.Buffer{}
	return New(buf, verbose), buf
}

func TestFollowRendersLifecycle(t *testing.T) {
	r, buf := plainRenderer(false)

	events := make(chan coordinator.CrewEvent, 8)
	events <- coordinator.CrewEvent{Type: coordinator.EventPlanCreated, Message: "3 tasks"}
	events <- coordinator.CrewEvent{Type: coordinator.EventTaskStarted, TaskID: "t1", Role: "coder", Worker: "coder"}
	events <- coordinator.CrewEvent{Type: coordinator.EventTaskDone, TaskID: "t1", Role: "coder", TokensUsed: 42, Elapsed: 1.5}
	events <- coordinator.CrewEvent{Type: coordinator.EventTaskFailed, TaskID: "t2", Role: "tester", Message: "boom"}
	events <- coordinator.CrewEvent{Type: coordinator.EventStatusTick, TaskID: "t3", Worker: "coder"}
	close(events)

	r.Follow(events)
	out := buf.String()

	for _, want := range []string{"Plan: 3 tasks", "starting task t1", "42 tokens", "failed: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "working on") {
		t.Errorf("status ticks are verbose-only:\n%s", out)
	}
}

func TestVerboseIncludesStatusTicks(t *testing.T) {
	r, buf := plainRenderer(true)

	events := make(chan coordinator.CrewEvent, 1)
	events <- coordinator.CrewEvent{Type: coordinator.EventStatusTick, TaskID: "t1", Worker: "coder", TokensUsed: 10, Elapsed: 30}
	close(events)

	r.Follow(events)
	if !strings.Contains(buf.String(), "working on t1") {
		t.Errorf("verbose mode should render status ticks:\n%s", buf.String())
	}
}

func TestSummaryTotals(t *testing.T) {
	r, buf := plainRenderer(false)

	results := []*models.TaskResult{
		{TaskID: "t1", RoleName: "coder", Status: models.ResultDone, TokensUsed: 100, ElapsedSeconds: 2},
		{TaskID: "t2", RoleName: "tester", Status: models.ResultFailed, TokensUsed: 50, ElapsedSeconds: 1},
	}
	skipped := []*models.CrewTask{{ID: "t3", AssignedRole: "coder", Description: "later"}}
	r.Summary(results, skipped)
	out := buf.String()

	for _, want := range []string{"Crew Summary", "t1", "done", "failed", "skipped", "3.0s total, 150 tokens"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
