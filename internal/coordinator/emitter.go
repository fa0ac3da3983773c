package coordinator

import (
	"log"
	"sync/atomic"
	"time"
)

// EventEmitter delivers lifecycle events to a subscriber channel.
// Emission never blocks the event loop for long: a full channel gets a
// short grace period, then the event is dropped and counted.
type EventEmitter struct {
	events       chan CrewEvent
	droppedCount atomic.Uint64
}

// NewEventEmitter creates an EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan CrewEvent, bufferSize),
	}
}

// Emit sends an event, waiting briefly if the channel is full before
// dropping it.
func (e *EventEmitter) Emit(event CrewEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case e.events <- event:
		return
	default:
	}
	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[coordinator] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events dropped so far.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the read-only subscriber channel.
func (e *EventEmitter) Events() <-chan CrewEvent {
	return e.events
}

// Close closes the events channel. Call only after the run has finished.
func (e *EventEmitter) Close() {
	close(e.events)
}
