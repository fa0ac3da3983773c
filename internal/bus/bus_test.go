package bus

import (
	"testing"
	"time"

	"github.com/isrc101/crew/pkg/models"
)

func TestSendToCoordinatorFIFO(t *testing.T) {
	b := New()
	for i := 0; i < 3; i++ {
		m := models.NewMessage(models.MsgStatusUpdate, "coder", models.CoordinatorName)
		m.Content = string(rune('a' + i))
		b.SendToCoordinator(m)
	}

	for i := 0; i < 3; i++ {
		got := b.CoordinatorRecv(time.Second)
		if got == nil {
			t.Fatalf("message %d: unexpected nil", i)
		}
		if want := string(rune('a' + i)); got.Content != want {
			t.Errorf("message %d: expected %q, got %q", i, want, got.Content)
		}
	}
}

func TestWorkerRecvTimesOut(t *testing.T) {
	b := New()
	b.RegisterWorker("coder")

	start := time.Now()
	if got := b.WorkerRecv("coder", 20*time.Millisecond); got != nil {
		t.Fatalf("expected nil on timeout, got %v", got)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("returned before the timeout: %s", elapsed)
	}
}

func TestSendToWorkerRouting(t *testing.T) {
	b := New()
	b.RegisterWorker("coder")
	b.RegisterWorker("tester")

	m := models.NewMessage(models.MsgTaskAssigned, models.CoordinatorName, "coder")
	m.TaskID = "t1"
	b.SendToWorker(m)

	if got := b.WorkerRecv("tester", 20*time.Millisecond); got != nil {
		t.Errorf("tester should not receive coder's message")
	}
	got := b.WorkerRecv("coder", time.Second)
	if got == nil || got.TaskID != "t1" {
		t.Fatalf("coder should receive the assignment, got %v", got)
	}
}

func TestSendToUnknownWorkerDropped(t *testing.T) {
	b := New()
	m := models.NewMessage(models.MsgTaskAssigned, models.CoordinatorName, "ghost")
	b.SendToWorker(m)

	if got := b.DroppedCount(); got != 1 {
		t.Errorf("expected 1 dropped message, got %d", got)
	}
}

func TestBroadcastToWorkers(t *testing.T) {
	b := New()
	b.RegisterWorker("coder")
	b.RegisterWorker("reviewer")

	b.BroadcastToWorkers(models.NewMessage(models.MsgShutdown, models.CoordinatorName, ""))

	for _, name := range []string{"coder", "reviewer"} {
		got := b.WorkerRecv(name, time.Second)
		if got == nil || got.Type != models.MsgShutdown {
			t.Errorf("%s: expected SHUTDOWN, got %v", name, got)
		}
	}
}

func TestHistoryCap(t *testing.T) {
	b := NewWithHistory(5)
	for i := 0; i < 8; i++ {
		b.SendToCoordinator(models.NewMessage(models.MsgStatusUpdate, "coder", models.CoordinatorName))
	}

	if got := len(b.GetHistory()); got != 5 {
		t.Errorf("expected history capped at 5, got %d", got)
	}
}

func TestQueueDepth(t *testing.T) {
	b := New()
	b.RegisterWorker("coder")
	b.SendToWorker(models.NewMessage(models.MsgTaskAssigned, models.CoordinatorName, "coder"))
	b.SendToWorker(models.NewMessage(models.MsgTaskAssigned, models.CoordinatorName, "coder"))

	if got := b.QueueDepth("coder"); got != 2 {
		t.Errorf("expected depth 2, got %d", got)
	}
	if got := b.CoordinatorQueueDepth(); got != 0 {
		t.Errorf("expected coordinator depth 0, got %d", got)
	}
}

func TestUnregisterWorkerStopsDelivery(t *testing.T) {
	b := New()
	b.RegisterWorker("coder")
	b.UnregisterWorker("coder")

	b.SendToWorker(models.NewMessage(models.MsgTaskAssigned, models.CoordinatorName, "coder"))
	if got := b.DroppedCount(); got != 1 {
		t.Errorf("expected drop after unregister, got %d", got)
	}
}
