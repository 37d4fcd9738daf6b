package agentcore

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adelie-ai/adelie/modeltransport"
)

// stubStream implements modeltransport.Stream for scripted responses.
type stubStream struct {
	frags  chan string
	calls  chan modeltransport.ToolCall
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func (s *stubStream) Fragments() <-chan string { return s.frags }
func (s *stubStream) ToolCalls() <-chan modeltransport.ToolCall { return s.calls }
func (s *stubStream) Cancel() { s.cancel() }

func (s *stubStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// scriptedResponse is one turn's worth of model output.
type scriptedResponse struct {
	fragments []string
	toolCalls []modeltransport.ToolCall
	hang      bool // block after fragments until cancelled
}

// scriptedTransport replays responses in order, repeating the last one
// when the script runs out.
type scriptedTransport struct {
	mu        sync.Mutex
	responses []scriptedResponse
	streamErr error
	callCount int
}

func (t *scriptedTransport) Name() string { return "scripted" }

func (t *scriptedTransport) Stream(ctx context.Context, _ modeltransport.Request) (modeltransport.Stream, error) {
	t.mu.Lock()
	if t.streamErr != nil {
		err := t.streamErr
		t.mu.Unlock()
		return nil, err
	}
	idx := t.callCount
	if idx >= len(t.responses) {
		idx = len(t.responses) - 1
	}
	resp := t.responses[idx]
	t.callCount++
	t.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)
	s := &stubStream{
		frags:  make(chan string, 16),
		calls:  make(chan modeltransport.ToolCall, 4),
		cancel: cancel,
	}
	go func() {
		defer func() {
			close(s.frags)
			close(s.calls)
		}()
		for _, f := range resp.fragments {
			select {
			case s.frags <- f:
			case <-streamCtx.Done():
				s.mu.Lock()
				s.err = streamCtx.Err()
				s.mu.Unlock()
				return
			}
		}
		for _, c := range resp.toolCalls {
			select {
			case s.calls <- c:
			case <-streamCtx.Done():
				return
			}
		}
		if resp.hang {
			<-streamCtx.Done()
			s.mu.Lock()
			s.err = streamCtx.Err()
			s.mu.Unlock()
		}
	}()
	return s, nil
}

// echoRegistry returns a registry with an "echo" tool that returns its
// payload, plus the completion tools.
func echoRegistry() *ToolRegistry {
	reg := NewToolRegistry()
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{Name: "echo", Description: "Echo the payload back."},
		Run: func(_ context.Context, payload string, _ Environment) (string, error) {
			return payload, nil
		},
	})
	RegisterCompletionTools(reg)
	return reg
}

func newTestEngine(t *testing.T, transport modeltransport.Transport, store *MemoryStore, mode Mode, maxIterations int) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.ToolTimeout = 5 * time.Second
	cfg.Termination.MaxIterations = maxIterations
	return NewEngine(
		WithTransport(transport),
		WithStore(store),
		WithRegistry(echoRegistry()),
		WithConfig(cfg),
		WithMode(mode),
	)
}

func TestRunImplicitCompletionOnPlainText(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{fragments: []string{"Sure, here's ", "the answer: 42."}},
	}}
	eng := newTestEngine(t, transport, NewMemoryStore(), ModeConversational, 10)

	outcome, err := eng.Run(context.Background(), "what is 6*7?")
	require.NoError(t, err)
	assert.Equal(t, StatusImplicit, outcome.Status)
	assert.Equal(t, 1, outcome.IterationsUsed)
	assert.Empty(t, outcome.ActionResults)
	assert.Equal(t, "Sure, here's the answer: 42.", outcome.FinalText)
}

func TestRunOneActionPerIteration(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{fragments: []string{"<echo>one</echo><echo>two</echo>"}},
		{fragments: []string{"Both done, stopping here."}},
	}}
	eng := newTestEngine(t, transport, NewMemoryStore(), ModeConversational, 10)

	outcome, err := eng.Run(context.Background(), "run both")
	require.NoError(t, err)
	require.Len(t, outcome.ActionResults, 1)
	assert.Equal(t, "echo", outcome.ActionResults[0].ActionName)
	assert.Equal(t, "one", outcome.ActionResults[0].Output)
}

func TestRunDirectiveRoundTripStatus(t *testing.T) {
	payload, _ := json.Marshal(map[string]string{"summary": "x", "status": "partial"})
	transport := &scriptedTransport{responses: []scriptedResponse{
		{fragments: []string{"<task_complete>" + string(payload) + "</task_complete>"}},
	}}
	eng := newTestEngine(t, transport, NewMemoryStore(), ModeTask, 10)

	outcome, err := eng.Run(context.Background(), "finish up")
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, outcome.Status)
	require.Len(t, outcome.ActionResults, 1)
	assert.Contains(t, outcome.ActionResults[0].Output, "[STATUS:partial]")
	assert.Contains(t, outcome.FinalText, "[STATUS:partial]")
}

func TestRunEchoSuppression(t *testing.T) {
	echoed := ResultMarker + " echo (ok)\nstale output"
	transport := &scriptedTransport{responses: []scriptedResponse{
		{fragments: []string{echoed + "\n<echo>fresh</echo>"}},
		{fragments: []string{"Understood, stopping here."}},
	}}
	eng := newTestEngine(t, transport, NewMemoryStore(), ModeConversational, 10)

	outcome, err := eng.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.Empty(t, outcome.ActionResults, "echoed result must suppress directive execution")
}

func TestRunWhitespaceModelStopsEarly(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{fragments: []string{"   \n"}},
	}}
	store := NewMemoryStore()
	eng := newTestEngine(t, transport, store, ModeTask, 10)

	outcome, err := eng.Run(context.Background(), "do something")
	require.NoError(t, err)
	assert.Contains(t, []RunStatus{StatusStalled, StatusTrivial}, outcome.Status)
	assert.LessOrEqual(t, outcome.IterationsUsed, 3)

	var sawPlaceholder bool
	for _, msg := range store.Messages() {
		if msg.Content == PlaceholderContent {
			sawPlaceholder = true
			assert.Equal(t, "true", msg.Metadata[MetaSynthetic])
		}
	}
	assert.True(t, sawPlaceholder, "placeholder message must be appended so the prompt advances")
}

func TestRunTrivialStreak(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{fragments: []string{"ok."}},
	}}
	eng := newTestEngine(t, transport, NewMemoryStore(), ModeTask, 10)

	outcome, err := eng.Run(context.Background(), "do something")
	require.NoError(t, err)
	assert.Equal(t, StatusTrivial, outcome.Status)
	assert.Equal(t, 3, outcome.IterationsUsed)
}

func TestRunIterationCeilingExact(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{fragments: []string{"<echo>again</echo>"}},
	}}
	eng := newTestEngine(t, transport, NewMemoryStore(), ModeTask, 4)

	outcome, err := eng.Run(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.Equal(t, StatusMaxIterations, outcome.Status)
	assert.Equal(t, 4, outcome.IterationsUsed)
	assert.Len(t, outcome.ActionResults, 4)
}

func TestRunCancellationMidStream(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{fragments: []string{"thinking..."}, hang: true},
	}}
	eng := newTestEngine(t, transport, NewMemoryStore(), ModeTask, 10)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome, err := eng.Run(ctx, "never finishes")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, outcome.Status)
	assert.Empty(t, outcome.ActionResults)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunNativeToolCall(t *testing.T) {
	args, _ := json.Marshal(map[string]string{"input": "hi"})
	transport := &scriptedTransport{responses: []scriptedResponse{
		{toolCalls: []modeltransport.ToolCall{{Name: "echo", Arguments: args}}},
		{fragments: []string{"Native call handled, all done."}},
	}}
	eng := newTestEngine(t, transport, NewMemoryStore(), ModeConversational, 10)

	outcome, err := eng.Run(context.Background(), "use the native channel")
	require.NoError(t, err)
	require.Len(t, outcome.ActionResults, 1)
	assert.Equal(t, "echo", outcome.ActionResults[0].ActionName)
	assert.JSONEq(t, string(args), outcome.ActionResults[0].Output)
}

func TestRunTransportError(t *testing.T) {
	transport := &scriptedTransport{streamErr: assert.AnError}
	eng := newTestEngine(t, transport, NewMemoryStore(), ModeTask, 10)

	outcome, err := eng.Run(context.Background(), "boom")
	require.Error(t, err)
	assert.Equal(t, StatusError, outcome.Status)
}

func TestRunAppendsResultsInIterationOrder(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{fragments: []string{"<echo>first</echo>"}},
		{fragments: []string{"<echo>second</echo>"}},
		{fragments: []string{"All finished now, goodbye."}},
	}}
	store := NewMemoryStore()
	eng := newTestEngine(t, transport, store, ModeConversational, 10)

	outcome, err := eng.Run(context.Background(), "two steps")
	require.NoError(t, err)
	require.Len(t, outcome.ActionResults, 2)
	assert.Equal(t, "first", outcome.ActionResults[0].Output)
	assert.Equal(t, "second", outcome.ActionResults[1].Output)

	var resultContents []string
	for _, msg := range store.Messages() {
		if msg.Category == CategoryActionResult {
			resultContents = append(resultContents, msg.Content)
		}
	}
	require.Len(t, resultContents, 2)
	assert.True(t, strings.Contains(resultContents[0], "first"))
	assert.True(t, strings.Contains(resultContents[1], "second"))
}

func TestRunEmitsEvents(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{fragments: []string{"<echo>ping</echo>"}},
		{fragments: []string{"Event check complete, done."}},
	}}
	emitter := NewEventEmitter(64)
	cfg := DefaultEngineConfig()
	eng := NewEngine(
		WithTransport(transport),
		WithRegistry(echoRegistry()),
		WithObserver(emitter),
		WithConfig(cfg),
	)

	_, err := eng.Run(context.Background(), "observe me")
	require.NoError(t, err)
	emitter.Close()

	kinds := map[EventKind]int{}
	for ev := range emitter.Events() {
		kinds[ev.Kind]++
	}
	assert.GreaterOrEqual(t, kinds[EventTurnStarted], 2)
	assert.Equal(t, 1, kinds[EventDirectiveDetected])
	assert.Equal(t, 1, kinds[EventActionCompleted])
	assert.GreaterOrEqual(t, kinds[EventTurnFinished], 2)
}
