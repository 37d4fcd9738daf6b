package agentcore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/adelie-ai/adelie/modeltransport"
)

// EngineConfig holds the tunables for one engine.
type EngineConfig struct {
	Model        string            `json:"model"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	ToolTimeout  time.Duration     `json:"tool_timeout"`
	Termination  TerminationPolicy `json:"termination"`
	Breaker      BreakerConfig     `json:"breaker"`
	// TaskSignal and ChatSignal name the directives that end a run in the
	// respective mode.
	TaskSignal string `json:"task_signal"`
	ChatSignal string `json:"chat_signal"`
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ToolTimeout: 60 * time.Second,
		Termination: DefaultTerminationPolicy(),
		Breaker:     DefaultBreakerConfig(),
		TaskSignal:  SignalTaskComplete,
		ChatSignal:  SignalChatComplete,
	}
}

// Engine drives one logical run: it streams model output into a
// TurnBuffer, interrupts the stream on the first complete directive,
// dispatches to the ActionExecutor, appends results to the conversation,
// and consults the TerminationDetector, looping up to the iteration
// ceiling. One Engine instance runs sequentially; separate agents run
// separate engines, sharing at most the registry and breaker.
type Engine struct {
	transport modeltransport.Transport
	store     ConversationStore
	registry  *ToolRegistry
	executor  *ActionExecutor
	detector  *TerminationDetector
	observer  Observer
	env       Environment
	cfg       EngineConfig
	mode      Mode
	agentID   string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithTransport(t modeltransport.Transport) EngineOption {
	return func(e *Engine) { e.transport = t }
}

func WithStore(s ConversationStore) EngineOption {
	return func(e *Engine) { e.store = s }
}

func WithRegistry(r *ToolRegistry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

func WithExecutor(x *ActionExecutor) EngineOption {
	return func(e *Engine) { e.executor = x }
}

func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

func WithEnvironment(env Environment) EngineOption {
	return func(e *Engine) { e.env = env }
}

func WithConfig(cfg EngineConfig) EngineOption {
	return func(e *Engine) { e.cfg = cfg }
}

func WithMode(m Mode) EngineOption {
	return func(e *Engine) { e.mode = m }
}

func WithAgentID(id string) EngineOption {
	return func(e *Engine) { e.agentID = id }
}

// NewEngine builds an engine. Missing collaborators get working defaults:
// an in-memory store, an empty registry, a local environment, a no-op
// observer, and an executor with the configured timeout and breaker.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:     DefaultEngineConfig(),
		mode:    ModeConversational,
		agentID: uuid.New().String(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.store == nil {
		e.store = NewMemoryStore()
	}
	if e.registry == nil {
		e.registry = NewToolRegistry()
	}
	if e.env == nil {
		e.env = NewLocalEnvironment("")
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	if e.executor == nil {
		e.executor = NewActionExecutor(e.registry, NewCircuitBreaker(e.cfg.Breaker), e.env, e.cfg.ToolTimeout)
	}
	if e.detector == nil {
		e.detector = NewTerminationDetector(e.cfg.Termination)
	}
	return e
}

// signalName returns the termination signal for the engine's mode.
func (e *Engine) signalName() string {
	if e.mode == ModeTask {
		return e.cfg.TaskSignal
	}
	return e.cfg.ChatSignal
}

// Run executes the turn loop for one input and always returns a
// LoopOutcome. The error is non-nil only for transport or programming
// failures (the outcome carries StatusError then); everything the model
// does wrong resolves to a status.
func (e *Engine) Run(ctx context.Context, input string) (*LoopOutcome, error) {
	runID := uuid.New().String()
	state := &TurnState{
		Mode:              e.mode,
		TerminationSignal: e.signalName(),
		StartedAt:         time.Now(),
	}

	outcome := &LoopOutcome{Status: StatusError}
	defer func() {
		outcome.IterationsUsed = state.Iteration
		outcome.Elapsed = time.Since(state.StartedAt)
	}()

	if input != "" {
		if err := e.store.Append(NewMessage(RoleUser, input, CategoryDialog, e.agentID)); err != nil {
			return outcome, errors.Wrap(err, "append user message")
		}
	}

	var finalText string
	for state.Iteration = 1; state.Iteration <= e.detector.policy.MaxIterations; state.Iteration++ {
		// The external stop token is checked at the top of every iteration
		// and honored mid-stream.
		if ctx.Err() != nil {
			outcome.Status = StatusStopped
			return outcome, nil
		}

		prompt, err := e.store.RenderForPrompt(e.agentID)
		if err != nil {
			return outcome, errors.Wrap(err, "render prompt")
		}
		sentFingerprint := FingerprintContext(prompt)

		e.emit(EventTurnStarted, runID, state.Iteration, nil)
		log.Debug().Str("run_id", runID).Int("iteration", state.Iteration).Msg("engine: model call")

		text, directive, err := e.streamTurn(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				outcome.Status = StatusStopped
				return outcome, nil
			}
			outcome.Status = StatusError
			return outcome, errors.Wrap(err, "model transport")
		}

		state.LastResponseText = text
		if strings.TrimSpace(text) != "" {
			if err := e.store.Append(NewMessage(RoleAssistant, text, CategoryDialog, e.agentID)); err != nil {
				return outcome, errors.Wrap(err, "append assistant message")
			}
			finalText = text
		}

		var result *ActionResult
		if directive != nil {
			e.emit(EventDirectiveDetected, runID, state.Iteration, map[string]interface{}{
				"name":   directive.Name,
				"origin": string(directive.Origin),
			})
			// No tool executions once cancellation is observed.
			if ctx.Err() != nil {
				outcome.Status = StatusStopped
				return outcome, nil
			}
			res := e.executor.Execute(ctx, *directive)
			result = &res
			outcome.ActionResults = append(outcome.ActionResults, res)

			msg := NewMessage(RoleTool, res.FormatMessage(), CategoryActionResult, e.agentID)
			msg.Type = TypeAction
			if err := e.store.Append(msg); err != nil {
				return outcome, errors.Wrap(err, "append action result")
			}
			e.emit(EventActionCompleted, runID, state.Iteration, map[string]interface{}{
				"name":        res.ActionName,
				"outcome":     string(res.Outcome),
				"duration_ms": res.Duration.Milliseconds(),
			})
		}

		nextPrompt, err := e.store.RenderForPrompt(e.agentID)
		if err != nil {
			return outcome, errors.Wrap(err, "render prompt")
		}

		// The prompt about to be sent is compared against the one just
		// sent; identical fingerprints mean this turn added nothing.
		state.LastContextFingerprint = sentFingerprint
		decision := e.detector.Assess(state, text, directive, result, FingerprintContext(nextPrompt))

		if decision.InsertPlaceholder {
			placeholder := NewMessage(RoleAssistant, PlaceholderContent, CategoryDialog, e.agentID)
			placeholder.Metadata = map[string]string{MetaSynthetic: "true"}
			if err := e.store.Append(placeholder); err != nil {
				return outcome, errors.Wrap(err, "append placeholder")
			}
			log.Debug().Str("run_id", runID).Int("iteration", state.Iteration).Msg("engine: forced placeholder append")
		}

		e.emit(EventTurnFinished, runID, state.Iteration, map[string]interface{}{
			"reason": decision.Reason,
			"stop":   decision.Stop,
		})

		if decision.Stop {
			outcome.Status = decision.Status
			if result != nil && result.ActionName == state.TerminationSignal {
				finalText = result.Output
			}
			outcome.FinalText = finalText
			log.Info().Str("run_id", runID).Int("iterations", state.Iteration).
				Str("status", string(decision.Status)).Str("reason", decision.Reason).Msg("engine: run finished")
			return outcome, nil
		}
	}

	// Loop guard and detector rule 5 agree; reaching here means the
	// ceiling fired on the loop condition.
	state.Iteration = e.detector.policy.MaxIterations
	outcome.Status = StatusMaxIterations
	outcome.FinalText = finalText
	return outcome, nil
}

// streamTurn performs one model call, feeding every fragment to a fresh
// TurnBuffer and consulting the directive parser after each one. The
// in-flight call is cancelled as soon as a complete directive appears:
// tool-bearing responses are often followed by filler the user should not
// wait for.
func (e *Engine) streamTurn(ctx context.Context, prompt string) (string, *Directive, error) {
	req := modeltransport.Request{
		Model:  e.cfg.Model,
		System: e.cfg.SystemPrompt,
		Prompt: prompt,
		Tools:  e.toolSpecs(),
	}

	stream, err := e.transport.Stream(ctx, req)
	if err != nil {
		return "", nil, err
	}
	defer stream.Cancel()

	buf := NewTurnBuffer()
	frags := stream.Fragments()
	calls := stream.ToolCalls()

	for frags != nil || calls != nil {
		select {
		case <-ctx.Done():
			return buf.Snapshot(), nil, ctx.Err()
		case fragment, ok := <-frags:
			if !ok {
				frags = nil
				continue
			}
			buf.Feed(fragment)
			if d := ScanDirective(buf.Snapshot()); d != nil {
				stream.Cancel()
				return buf.Snapshot(), d, nil
			}
		case call, ok := <-calls:
			if !ok {
				calls = nil
				continue
			}
			d := NativeDirective(call.Name, call.Arguments, call.Index)
			stream.Cancel()
			return buf.Snapshot(), d, nil
		}
	}

	if err := stream.Err(); err != nil {
		return buf.Snapshot(), nil, err
	}
	return buf.Snapshot(), nil, nil
}

func (e *Engine) toolSpecs() []modeltransport.ToolSpec {
	defs := e.registry.Definitions()
	if len(defs) == 0 {
		return nil
	}
	specs := make([]modeltransport.ToolSpec, 0, len(defs))
	for _, def := range defs {
		specs = append(specs, modeltransport.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	return specs
}

func (e *Engine) emit(kind EventKind, runID string, iteration int, data map[string]interface{}) {
	e.observer.Publish(Event{
		Kind:      kind,
		RunID:     runID,
		Iteration: iteration,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}
