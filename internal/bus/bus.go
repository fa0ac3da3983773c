// Package bus implements the crew message bus: per-recipient FIFO mailboxes
// plus a bounded history ring for observability.
package bus

import (
	"log"
	"sync"
	"time"

	"github.com/isrc101/crew/pkg/models"
)

// DefaultMaxHistory is the default history ring capacity.
const DefaultMaxHistory = 200

// mailboxCapacity sizes each inbox channel. Senders that find a full inbox
// wait briefly, then drop the message rather than block the crew.
const mailboxCapacity = 256

// sendPatience is how long a sender waits on a full inbox before dropping.
const sendPatience = 100 * time.Millisecond

// MessageBus delivers messages in send order per recipient. There is no
// ordering guarantee across different recipients. All methods are safe for
// concurrent use.
type MessageBus struct {
	// coordinatorInbox receives all worker → coordinator traffic.
	coordinatorInbox chan models.CrewMessage
	// workerInboxes maps worker instance name to its inbox.
	workerInboxes map[string]chan models.CrewMessage
	// history is the bounded observational ring of sent messages.
	history []models.CrewMessage
	// maxHistory caps the history ring; oldest entries are dropped.
	maxHistory int
	// dropped counts messages dropped on full inboxes.
	dropped uint64
	// mu protects workerInboxes, history, and dropped.
	mu sync.Mutex
}

// New creates a MessageBus with the default history capacity.
func New() *MessageBus {
	return NewWithHistory(DefaultMaxHistory)
}

// NewWithHistory creates a MessageBus with an explicit history capacity.
func NewWithHistory(maxHistory int) *MessageBus {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &MessageBus{
		coordinatorInbox: make(chan models.CrewMessage, mailboxCapacity),
		workerInboxes:    make(map[string]chan models.CrewMessage),
		maxHistory:       maxHistory,
	}
}

// RegisterWorker creates a dedicated inbox for a worker instance.
// Registering an existing name replaces its inbox.
func (b *MessageBus) RegisterWorker(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.workerInboxes[name] = make(chan models.CrewMessage, mailboxCapacity)
}

// UnregisterWorker removes a worker's inbox. Messages sent to the name
// afterwards are silently dropped.
func (b *MessageBus) UnregisterWorker(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.workerInboxes, name)
}

// SendToCoordinator enqueues a message on the coordinator inbox.
func (b *MessageBus) SendToCoordinator(msg models.CrewMessage) {
	b.recordHistory(msg)
	b.deliver(b.coordinatorInbox, msg)
}

// SendToWorker enqueues a message on the recipient worker's inbox.
// Unknown recipients drop the message, counted in DroppedCount.
func (b *MessageBus) SendToWorker(msg models.CrewMessage) {
	b.mu.Lock()
	b.appendHistoryLocked(msg)
	inbox := b.workerInboxes[msg.Recipient]
	if inbox == nil {
		b.dropped++
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.deliver(inbox, msg)
}

// BroadcastToWorkers fans the same message into every currently-registered
// worker inbox.
func (b *MessageBus) BroadcastToWorkers(msg models.CrewMessage) {
	b.mu.Lock()
	b.appendHistoryLocked(msg)
	inboxes := make([]chan models.CrewMessage, 0, len(b.workerInboxes))
	for _, inbox := range b.workerInboxes {
		inboxes = append(inboxes, inbox)
	}
	b.mu.Unlock()
	for _, inbox := range inboxes {
		b.deliver(inbox, msg)
	}
}

// CoordinatorRecv blocks up to timeout for the next coordinator message.
// Returns nil when the timeout elapses with no message.
func (b *MessageBus) CoordinatorRecv(timeout time.Duration) *models.CrewMessage {
	return recv(b.coordinatorInbox, timeout)
}

// WorkerRecv blocks up to timeout for the next message on a worker's inbox.
// Returns nil on timeout or if the worker is not registered.
func (b *MessageBus) WorkerRecv(name string, timeout time.Duration) *models.CrewMessage {
	b.mu.Lock()
	inbox := b.workerInboxes[name]
	b.mu.Unlock()
	if inbox == nil {
		return nil
	}
	return recv(inbox, timeout)
}

// GetHistory returns a snapshot of the bounded message history.
// The history is purely observational, never read for control decisions.
func (b *MessageBus) GetHistory() []models.CrewMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.CrewMessage, len(b.history))
	copy(out, b.history)
	return out
}

// QueueDepth returns the approximate pending message count for a worker.
func (b *MessageBus) QueueDepth(name string) int {
	b.mu.Lock()
	inbox := b.workerInboxes[name]
	b.mu.Unlock()
	if inbox == nil {
		return 0
	}
	return len(inbox)
}

// CoordinatorQueueDepth returns the approximate pending coordinator count.
func (b *MessageBus) CoordinatorQueueDepth() int {
	return len(b.coordinatorInbox)
}

// DroppedCount returns the number of messages dropped on full inboxes.
func (b *MessageBus) DroppedCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// deliver enqueues with a bounded wait, dropping the message if the inbox
// stays full past the patience window.
func (b *MessageBus) deliver(inbox chan models.CrewMessage, msg models.CrewMessage) {
	select {
	case inbox <- msg:
		return
	default:
	}
	select {
	case inbox <- msg:
	case <-time.After(sendPatience):
		b.mu.Lock()
		b.dropped++
		count := b.dropped
		b.mu.Unlock()
		if count%10 == 1 {
			log.Printf("[bus] WARNING: inbox full, dropped message (total dropped: %d): type=%s recipient=%s",
				count, msg.Type, msg.Recipient)
		}
	}
}

func (b *MessageBus) recordHistory(msg models.CrewMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendHistoryLocked(msg)
}

// appendHistoryLocked appends to the ring, dropping the oldest entry past
// capacity. Caller must hold b.mu.
func (b *MessageBus) appendHistoryLocked(msg models.CrewMessage) {
	b.history = append(b.history, msg)
	if len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}
}

func recv(inbox chan models.CrewMessage, timeout time.Duration) *models.CrewMessage {
	select {
	case msg := <-inbox:
		return &msg
	case <-time.After(timeout):
		return nil
	}
}
