package agentcore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ResultMarker is the literal prefix the executor stamps on every action
// result appended to the conversation. The directive parser checks for it
// verbatim to detect a model echoing stale tool output; downstream
// consumers pattern-match on it, so the exact text is load-bearing.
const ResultMarker = "[Tool Result]"

// Outcome classifies the result of executing one directive.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeError   Outcome = "error"
	OutcomeTimeout Outcome = "timeout"
)

// Completion status words embeddable in an action result's output as the
// literal substring [STATUS:<word>].
const (
	StatusWordDone    = "done"
	StatusWordPartial = "partial"
	StatusWordBlocked = "blocked"
)

var statusMarkerRegexp = regexp.MustCompile(`\[STATUS:([a-z]+)\]`)

// StatusMarker renders the machine-readable completion marker for a
// status word. The bracket syntax is fixed wire format.
func StatusMarker(word string) string {
	return fmt.Sprintf("[STATUS:%s]", word)
}

// ExtractStatus returns the first embedded status word in s, or "" when
// no marker is present.
func ExtractStatus(s string) string {
	m := statusMarkerRegexp.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// ActionResult is the outcome of executing one directive. Output is
// always non-empty, even on failure: failures are text the model can
// read, not transport-level errors.
type ActionResult struct {
	ActionName string        `json:"action_name"`
	Output     string        `json:"output"`
	Outcome    Outcome       `json:"outcome"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// OK reports whether the action succeeded.
func (r ActionResult) OK() bool { return r.Outcome == OutcomeOK }

// FormatMessage renders the result as conversation text, prefixed with
// the ResultMarker the parser's echo suppression keys on.
func (r ActionResult) FormatMessage() string {
	return fmt.Sprintf("%s %s (%s)\n%s", ResultMarker, r.ActionName, r.Outcome, r.Output)
}

// ActionExecutor resolves directives against a ToolRegistry and runs them
// under a deadline and a circuit breaker. It never panics or returns
// control-flow errors across the boundary: every failure mode becomes a
// readable ActionResult.
type ActionExecutor struct {
	registry *ToolRegistry
	breaker  *CircuitBreaker
	env      Environment
	timeout  time.Duration
}

// NewActionExecutor creates an executor. A nil breaker gets the default
// policy; a zero timeout defaults to 60s.
func NewActionExecutor(registry *ToolRegistry, breaker *CircuitBreaker, env Environment, timeout time.Duration) *ActionExecutor {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultBreakerConfig())
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ActionExecutor{
		registry: registry,
		breaker:  breaker,
		env:      env,
		timeout:  timeout,
	}
}

// Breaker returns the executor's circuit breaker.
func (e *ActionExecutor) Breaker() *CircuitBreaker { return e.breaker }

// Execute runs one directive and returns its ActionResult. Unknown tool
// names, tool errors, panics, open circuits, and deadline overruns all
// come back as results; a timed-out call is abandoned, not awaited.
func (e *ActionExecutor) Execute(ctx context.Context, d Directive) ActionResult {
	start := time.Now()

	tool := e.registry.Lookup(d.Name)
	if tool == nil {
		return ActionResult{
			ActionName: d.Name,
			Output:     fmt.Sprintf("Unknown tool: %q. Available tools: %s", d.Name, strings.Join(e.registry.Names(), ", ")),
			Outcome:    OutcomeError,
			Duration:   time.Since(start),
		}
	}

	if !e.breaker.Allow(d.Name) {
		return ActionResult{
			ActionName: d.Name,
			Output:     fmt.Sprintf("Tool %q is temporarily disabled (circuit open after repeated failures). Try a different approach.", d.Name),
			Outcome:    OutcomeError,
			Duration:   time.Since(start),
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type callResult struct {
		output string
		err    error
	}
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- callResult{err: fmt.Errorf("tool panicked: %v", rec)}
			}
		}()
		out, err := tool.Run(callCtx, d.RawPayload, e.env)
		done <- callResult{output: out, err: err}
	}()

	select {
	case <-callCtx.Done():
		e.breaker.RecordFailure(d.Name)
		log.Warn().Str("tool", d.Name).Dur("timeout", e.timeout).Msg("tool call abandoned after deadline")
		return ActionResult{
			ActionName: d.Name,
			Output:     fmt.Sprintf("Tool %q did not finish within %s and was abandoned.", d.Name, e.timeout),
			Outcome:    OutcomeTimeout,
			Duration:   time.Since(start),
			Err:        callCtx.Err(),
		}
	case res := <-done:
		if res.err != nil {
			e.breaker.RecordFailure(d.Name)
			return ActionResult{
				ActionName: d.Name,
				Output:     fmt.Sprintf("Tool error (%s): %v", d.Name, res.err),
				Outcome:    OutcomeError,
				Duration:   time.Since(start),
				Err:        res.err,
			}
		}
		e.breaker.RecordSuccess(d.Name)
		output := res.output
		if output == "" {
			output = "(no output)"
		}
		return ActionResult{
			ActionName: d.Name,
			Output:     TruncateToolOutput(output, d.Name),
			Outcome:    OutcomeOK,
			Duration:   time.Since(start),
		}
	}
}
