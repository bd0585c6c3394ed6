// Package transport holds what the session transports share.
package transport

import (
	"sync"

	"github.com/fpt/klein-bot/internal/session"
)

// DefaultBufferSize is the number of batches a Bus holds before Publish blocks.
const DefaultBufferSize = 64

// Bus decouples a network client's callbacks from the session consumer.
// Publish after Close is dropped; Close closes the events channel once.
type Bus struct {
	mu     sync.Mutex
	once   sync.Once
	events chan session.Batch
	done   chan struct{}
	closed bool
}

func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		events: make(chan session.Batch, bufferSize),
		done:   make(chan struct{}),
	}
}

func (b *Bus) Events() <-chan session.Batch { return b.events }

// Done is closed by Close.
func (b *Bus) Done() <-chan struct{} { return b.done }

// Publish delivers a batch, blocking while the buffer is full. It reports
// false when the bus was closed first.
func (b *Bus) Publish(events ...session.Event) bool {
	if len(events) == 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.events <- session.Batch(events):
		return true
	case <-b.done:
		return false
	}
}

// Close ends the stream. It is safe to call more than once.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.done) })

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
}
