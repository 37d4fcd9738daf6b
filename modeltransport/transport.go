package modeltransport

import (
	"context"
	"encoding/json"
	"sync"
)

// ToolSpec describes one tool for providers with native tool calling.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// Request is one model call.
type Request struct {
	Model  string     `json:"model"`
	System string     `json:"system,omitempty"`
	Prompt string     `json:"prompt"`
	Tools  []ToolSpec `json:"tools,omitempty"`
}

// ToolCall is a native structured tool-call event from the provider's
// side channel.
type ToolCall struct {
	Index     int             `json:"index"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Stream is one in-flight model response. Fragments and ToolCalls are
// both closed when the response ends, whether naturally, by error, or by
// Cancel; Err is meaningful only after that. Cancel is safe to call more
// than once and aborts the response without draining it.
type Stream interface {
	Fragments() <-chan string
	ToolCalls() <-chan ToolCall
	Cancel()
	Err() error
}

// Transport is a streaming connection to one model provider.
type Transport interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}

// eventStream is the Stream implementation shared by the concrete
// transports. The producing goroutine emits fragments and tool calls,
// then calls finish exactly once.
type eventStream struct {
	frags  chan string
	calls  chan ToolCall
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func newEventStream(cancel context.CancelFunc) *eventStream {
	return &eventStream{
		frags:  make(chan string, 64),
		calls:  make(chan ToolCall, 8),
		cancel: cancel,
	}
}

func (s *eventStream) Fragments() <-chan string { return s.frags }
func (s *eventStream) ToolCalls() <-chan ToolCall { return s.calls }

func (s *eventStream) Cancel() { s.cancel() }

func (s *eventStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// emitFragment delivers a fragment unless the stream has been cancelled.
// It reports whether the producer should keep going.
func (s *eventStream) emitFragment(ctx context.Context, fragment string) bool {
	select {
	case s.frags <- fragment:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitToolCall delivers a native tool-call event unless cancelled.
func (s *eventStream) emitToolCall(ctx context.Context, call ToolCall) bool {
	select {
	case s.calls <- call:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish records the terminal error (nil for clean completion) and
// closes both channels.
func (s *eventStream) finish(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	close(s.frags)
	close(s.calls)
}
