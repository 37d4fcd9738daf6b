// Package agentcore implements the execution core of the Adelie coding
// agent runtime: the loop that drives a language model through repeated
// turns, executes the tool directives it emits, and decides when the run
// is finished.
//
// The package is organized around these concepts:
//
//   - TurnBuffer: Accumulates streamed model output fragment by fragment.
//   - Directive / ScanDirective: Recognizes one complete tool invocation
//     embedded in model text as a <name>...</name> block.
//   - ActionExecutor: Resolves a directive against a ToolRegistry and runs
//     it under a timeout and a per-tool circuit breaker.
//   - TerminationDetector: Layered stop policy, from explicit completion
//     directives down to heuristics for degenerate model output.
//   - Engine: Orchestrates streaming, interruption, dispatch, and the
//     conversation store across iterations.
//
// A run always produces a LoopOutcome with a status from a closed set;
// model misbehavior (empty output, echoed tool results, missing completion
// signals) is resolved to a status, never raised as an error.
//
// # Quick Start
//
//	reg := agentcore.NewToolRegistry()
//	agentcore.RegisterCoreTools(reg, 30*time.Second)
//	agentcore.RegisterCompletionTools(reg)
//
//	eng := agentcore.NewEngine(
//	    agentcore.WithTransport(transport),
//	    agentcore.WithRegistry(reg),
//	    agentcore.WithMode(agentcore.ModeTask),
//	)
//	outcome, err := eng.Run(ctx, "Create a hello.py file")
package agentcore
