package service

import (
	"context"
	"log"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter — decouples services from their host process
// ─────────────────────────────────────────────────────────────

// EventEmitter is an interface for emitting lifecycle events such as
// "upload:finished". The headless daemon logs them; an embedding
// application can forward them to its own event bus. Services receive
// this interface, which makes them independently testable with a mock
// emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes events to the standard logger. Used by the daemon,
// which has no frontend to notify.
type LogEmitter struct{}

func (LogEmitter) Emit(_ context.Context, event string, data any) {
	log.Printf("[EVENT] %s: %+v", event, data)
}

// MockEmitter records every emission for test assertions.
type MockEmitter struct {
	Events []EmittedEvent
}

// EmittedEvent is one recorded Emit call.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Last returns the most recently recorded event, or nil if none.
func (m *MockEmitter) Last() *EmittedEvent {
	if len(m.Events) == 0 {
		return nil
	}
	return &m.Events[len(m.Events)-1]
}
