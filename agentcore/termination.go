package agentcore

import (
	"strings"
	"time"
)

// Mode selects which termination signal ends a run.
type Mode string

const (
	ModeConversational Mode = "conversational"
	ModeTask           Mode = "task"
)

// RunStatus is the closed set of final statuses a run can report. Callers
// never need to catch an error to detect that the model behaved badly.
type RunStatus string

const (
	StatusCompleted     RunStatus = "completed"
	StatusPartial       RunStatus = "partial"
	StatusBlocked       RunStatus = "blocked"
	StatusImplicit      RunStatus = "implicit-completion"
	StatusTrivial       RunStatus = "trivial-completion"
	StatusStalled       RunStatus = "stalled"
	StatusMaxIterations RunStatus = "max-iterations"
	StatusStopped       RunStatus = "stopped"
	StatusError         RunStatus = "error"
)

// PlaceholderContent is the synthetic assistant text the engine appends
// when the model produced nothing, so the next prompt differs from the
// last one sent.
const PlaceholderContent = "[no content received]"

// TurnState is the mutable per-run state owned exclusively by the engine.
// It is created at the start of a run and discarded at the end, never
// persisted.
type TurnState struct {
	Iteration              int
	TrivialStreak          int
	StallCount             int
	LastResponseText       string
	LastContextFingerprint ContextFingerprint
	Mode                   Mode
	TerminationSignal      string
	StartedAt              time.Time
}

// LoopOutcome is a run's final result.
type LoopOutcome struct {
	FinalText      string         `json:"final_text"`
	IterationsUsed int            `json:"iterations_used"`
	ActionResults  []ActionResult `json:"action_results"`
	Status         RunStatus      `json:"status"`
	Elapsed        time.Duration  `json:"elapsed"`
}

// Decision is the termination detector's verdict for one iteration.
type Decision struct {
	Stop              bool
	Status            RunStatus
	InsertPlaceholder bool
	Reason            string
}

// TerminationPolicy holds the detector's tunables. The trivial floor and
// streak threshold are policy constants discovered empirically, not
// derived; keep the defaults unless evidence says otherwise.
type TerminationPolicy struct {
	MaxIterations int `json:"max_iterations"`
	// TrivialFloor is the minimum trimmed response length (in characters)
	// below which a response counts as degenerate.
	TrivialFloor int `json:"trivial_floor"`
	// TrivialStreakLimit is the number of consecutive degenerate responses
	// after which the run stops.
	TrivialStreakLimit int `json:"trivial_streak_limit"`
}

// DefaultTerminationPolicy returns the stated defaults.
func DefaultTerminationPolicy() TerminationPolicy {
	return TerminationPolicy{
		MaxIterations:      10,
		TrivialFloor:       10,
		TrivialStreakLimit: 3,
	}
}

// TerminationDetector decides, once per iteration, whether a run stops,
// continues, or restarts with forced placeholder content. Rules are
// layered from explicit signal down to heuristic safety nets; the first
// matching rule wins.
type TerminationDetector struct {
	policy TerminationPolicy
}

// NewTerminationDetector creates a detector; zero policy fields take
// their defaults.
func NewTerminationDetector(policy TerminationPolicy) *TerminationDetector {
	def := DefaultTerminationPolicy()
	if policy.MaxIterations <= 0 {
		policy.MaxIterations = def.MaxIterations
	}
	if policy.TrivialFloor <= 0 {
		policy.TrivialFloor = def.TrivialFloor
	}
	if policy.TrivialStreakLimit <= 0 {
		policy.TrivialStreakLimit = def.TrivialStreakLimit
	}
	return &TerminationDetector{policy: policy}
}

// statusFromWord maps an embedded status word to a run status. Absent or
// unrecognized words default to the neutral done status.
func statusFromWord(word string) RunStatus {
	switch word {
	case StatusWordPartial:
		return StatusPartial
	case StatusWordBlocked:
		return StatusBlocked
	default:
		return StatusCompleted
	}
}

// Assess evaluates the layered stop policy for the iteration that just
// ran. text is the model's raw output, result the ActionResult produced
// this iteration (nil if none), directive the directive detected (nil if
// none), and nextFingerprint the fingerprint of the prompt about to be
// sent. Assess mutates the streak and stall counters on state.
func (td *TerminationDetector) Assess(state *TurnState, text string, directive *Directive, result *ActionResult, nextFingerprint ContextFingerprint) Decision {
	// Rule 1: explicit termination signal for the current mode.
	if result != nil && result.ActionName == state.TerminationSignal {
		word := ExtractStatus(result.Output)
		return Decision{Stop: true, Status: statusFromWord(word), Reason: "termination signal"}
	}

	// Rule 2: context did not advance. The next prompt would be identical
	// to the one already sent, so nothing the model said this iteration
	// made it into the conversation. Force a placeholder append so the
	// next prompt differs; two consecutive detections mean even that is
	// not helping.
	if nextFingerprint == state.LastContextFingerprint {
		state.StallCount++
		state.TrivialStreak++
		if state.StallCount >= 2 {
			return Decision{Stop: true, Status: StatusStalled, Reason: "context fingerprint unchanged twice"}
		}
		return Decision{InsertPlaceholder: true, Reason: "context fingerprint unchanged"}
	}
	state.StallCount = 0

	// Rule 3: consecutive degenerate responses.
	if len(strings.TrimSpace(text)) < td.policy.TrivialFloor {
		state.TrivialStreak++
		if state.TrivialStreak >= td.policy.TrivialStreakLimit {
			return Decision{Stop: true, Status: StatusTrivial, Reason: "trivial response streak"}
		}
		if state.Iteration >= td.policy.MaxIterations {
			return Decision{Stop: true, Status: StatusMaxIterations, Reason: "iteration ceiling"}
		}
		return Decision{Reason: "trivial response, streak below threshold"}
	}
	state.TrivialStreak = 0

	// Rule 4: no directive and no directive-shaped markup anywhere. The
	// model is not using the action protocol; its text is the final
	// conversational answer. Waiting for a signal that will never come
	// just burns the iteration budget.
	if directive == nil && !HasDirectiveMarkup(text) {
		return Decision{Stop: true, Status: StatusImplicit, Reason: "no directive markup"}
	}

	// Rule 5: iteration ceiling.
	if state.Iteration >= td.policy.MaxIterations {
		return Decision{Stop: true, Status: StatusMaxIterations, Reason: "iteration ceiling"}
	}

	return Decision{Reason: "continue"}
}
