package agentcore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExecutor(reg *ToolRegistry, timeout time.Duration) *ActionExecutor {
	return NewActionExecutor(reg, nil, NewLocalEnvironment(""), timeout)
}

func staticTool(name, output string, err error) RegisteredTool {
	return RegisteredTool{
		Definition: ToolDefinition{Name: name},
		Run: func(_ context.Context, _ string, _ Environment) (string, error) {
			return output, err
		},
	}
}

func TestExecuteSuccess(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{Name: "greet"},
		Run: func(_ context.Context, payload string, _ Environment) (string, error) {
			return "hello " + payload, nil
		},
	})

	res := testExecutor(reg, time.Second).Execute(context.Background(), Directive{Name: "greet", RawPayload: "world"})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.True(t, res.OK())
	assert.Equal(t, "hello world", res.Output)
	assert.NoError(t, res.Err)
}

func TestExecuteUnknownTool(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(staticTool("greet", "hi", nil))

	res := testExecutor(reg, time.Second).Execute(context.Background(), Directive{Name: "frobnicate"})
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Contains(t, res.Output, "Unknown tool")
	assert.Contains(t, res.Output, "greet", "the result lists the available tools")
}

func TestExecuteToolError(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(staticTool("flaky", "", errors.New("disk full")))

	res := testExecutor(reg, time.Second).Execute(context.Background(), Directive{Name: "flaky"})
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Contains(t, res.Output, "disk full")
	assert.Error(t, res.Err)
}

func TestExecuteTimeoutAbandons(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{Name: "slow"},
		Run: func(ctx context.Context, _ string, _ Environment) (string, error) {
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			return "too late", nil
		},
	})

	start := time.Now()
	res := testExecutor(reg, 30*time.Millisecond).Execute(context.Background(), Directive{Name: "slow"})
	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Contains(t, res.Output, "abandoned")
	assert.Less(t, time.Since(start), 500*time.Millisecond, "the call is abandoned, not awaited")
}

func TestExecutePanicBecomesResult(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{Name: "boom"},
		Run: func(_ context.Context, _ string, _ Environment) (string, error) {
			panic("nil map write")
		},
	})

	res := testExecutor(reg, time.Second).Execute(context.Background(), Directive{Name: "boom"})
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Contains(t, res.Output, "panicked")
}

func TestExecuteEmptyOutputPlaceholder(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(staticTool("quiet", "", nil))

	res := testExecutor(reg, time.Second).Execute(context.Background(), Directive{Name: "quiet"})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "(no output)", res.Output)
}

func TestExecuteCircuitOpen(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(staticTool("flaky", "", errors.New("nope")))

	breaker := NewCircuitBreaker(BreakerConfig{FailureThreshold: 2, Window: time.Hour})
	exec := NewActionExecutor(reg, breaker, NewLocalEnvironment(""), time.Second)

	exec.Execute(context.Background(), Directive{Name: "flaky"})
	exec.Execute(context.Background(), Directive{Name: "flaky"})

	res := exec.Execute(context.Background(), Directive{Name: "flaky"})
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Contains(t, res.Output, "temporarily disabled")
}

func TestExecuteTruncatesOversizedOutput(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(staticTool("execute", strings.Repeat("x", 40000), nil))

	res := testExecutor(reg, time.Second).Execute(context.Background(), Directive{Name: "execute"})
	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Less(t, len(res.Output), 40000)
	assert.Contains(t, res.Output, "truncated")
}

func TestFormatMessageCarriesMarker(t *testing.T) {
	res := ActionResult{ActionName: "execute", Output: "done", Outcome: OutcomeOK}
	msg := res.FormatMessage()
	assert.True(t, strings.HasPrefix(msg, ResultMarker))
	assert.Contains(t, msg, "execute (ok)")
	assert.Contains(t, msg, "done")
}

func TestStatusMarkerRoundTrip(t *testing.T) {
	assert.Equal(t, "[STATUS:partial]", StatusMarker(StatusWordPartial))
	assert.Equal(t, "partial", ExtractStatus("wrapped up [STATUS:partial] for now"))
	assert.Equal(t, "", ExtractStatus("no marker here"))
	assert.Equal(t, "done", ExtractStatus("[STATUS:done] [STATUS:blocked]"), "first marker wins")
}
