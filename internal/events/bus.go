// Package events provides pub-sub distribution of transcription progress
// events to SSE subscribers.
package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ProgressEvent is one progress update for a transcription job. Percent
// tracks the reference UI's milestones (10/20/50/75/100).
type ProgressEvent struct {
	ID        string `json:"-"`
	JobID     string `json:"job_id"`
	Phase     string `json:"phase"`
	Percent   int    `json:"percent"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Bus fans progress events out to subscribers. Slow subscribers drop
// events rather than blocking the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan ProgressEvent
	nextID      uint64
	seq         atomic.Uint64
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[uint64]chan ProgressEvent)}
}

// Subscribe registers a new subscriber and returns a channel and cancel function.
func (b *Bus) Subscribe() (<-chan ProgressEvent, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan ProgressEvent, 64)
	b.subscribers[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish sends an event to all subscribers, stamping it with a sequence ID
// and timestamp.
func (b *Bus) Publish(e ProgressEvent) {
	seq := b.seq.Add(1)
	e.ID = fmt.Sprintf("%d-%d", time.Now().UnixMilli(), seq)
	e.Timestamp = time.Now().UTC().Format(time.RFC3339)

	b.mu.RLock()
	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			// Drop if subscriber is slow
		}
	}
	b.mu.RUnlock()
}
