package orchestrator

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/taskforge/pkg/models"
)

// EventEmitter buffers run events on a channel for a single consumer such
// as the CLI's progress printer.
type EventEmitter struct {
	events       chan models.Event
	droppedCount atomic.Uint64
	logger       *slog.Logger
	closeOnce    sync.Once
	mu           sync.RWMutex
	closed       bool
}

// NewEventEmitter creates an EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int, logger *slog.Logger) *EventEmitter {
	if logger == nil {
		logger = NopLogger().Slog()
	}
	return &EventEmitter{
		events: make(chan models.Event, bufferSize),
		logger: logger,
	}
}

// Emit sends an event. If the buffer stays full for 100ms the event is
// dropped. Emit after Close is a no-op.
func (e *EventEmitter) Emit(event models.Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
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
			e.logger.Warn("event buffer full, dropped event",
				"type", string(event.Type), "dropped_total", count)
		}
	}
}

// Sink returns Emit as an EventSink for WithEvents.
func (e *EventEmitter) Sink() models.EventSink {
	return e.Emit
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the receive side of the buffer.
func (e *EventEmitter) Events() <-chan models.Event {
	return e.events
}

// Close closes the events channel once no Emit is in flight.
func (e *EventEmitter) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.events)
		e.mu.Unlock()
	})
}
