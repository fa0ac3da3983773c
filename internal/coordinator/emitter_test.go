package coordinator

import (
	"testing"
	"time"
)

func TestEmitterDeliversInOrder(t *testing.T) {
	e := NewEventEmitter(10)
	e.Emit(CrewEvent{Type: EventPlanCreated})
	e.Emit(CrewEvent{Type: EventTaskStarted})
	e.Close()

	var got []EventType
	for ev := range e.Events() {
		got = append(got, ev.Type)
		if ev.Timestamp.IsZero() {
			t.Error("emit should stamp a timestamp")
		}
	}
	if len(got) != 2 || got[0] != EventPlanCreated || got[1] != EventTaskStarted {
		t.Errorf("unexpected event order %v", got)
	}
}

func TestEmitterDropsWhenFull(t *testing.T) {
	e := NewEventEmitter(1)
	e.Emit(CrewEvent{Type: EventStatusTick})

	start := time.Now()
	e.Emit(CrewEvent{Type: EventStatusTick})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("drop should happen after the short grace period, took %s", elapsed)
	}
	if got := e.DroppedCount(); got != 1 {
		t.Errorf("expected 1 dropped event, got %d", got)
	}
}
