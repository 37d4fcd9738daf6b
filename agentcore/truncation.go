package agentcore

import (
	"fmt"
	"strings"
)

// TruncationMode specifies which part of oversized output is kept.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// Per-tool character ceilings for output returned to the model. Oversized
// tool output is the cheapest way to blow the context budget, so limits
// are enforced centrally rather than per tool.
var defaultToolCharLimits = map[string]int{
	"read_file":  50000,
	"execute":    30000,
	"list_files": 20000,
}

var defaultTruncationModes = map[string]TruncationMode{
	"read_file":  TruncateHeadTail,
	"execute":    TruncateHeadTail,
	"list_files": TruncateTail,
}

const fallbackCharLimit = 30000

// TruncateOutput caps output at maxChars, keeping the head and tail or
// only the tail depending on mode.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}
	removed := len(output) - maxChars

	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[Output truncated: first %d characters removed.]\n\n", removed) +
			output[len(output)-maxChars:]
	default:
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[Output truncated: %d characters removed from the middle. Re-run the tool with narrower parameters if you need them.]\n\n", removed) +
			output[len(output)-half:]
	}
}

// TruncateLines caps output at maxLines using a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}
	head := maxLines / 2
	tail := maxLines - head
	omitted := len(lines) - head - tail
	return strings.Join(lines[:head], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tail:], "\n")
}

// TruncateToolOutput applies the per-tool truncation policy to output
// before it is handed back to the model.
func TruncateToolOutput(output, toolName string) string {
	maxChars, ok := defaultToolCharLimits[toolName]
	if !ok {
		maxChars = fallbackCharLimit
	}
	mode, ok := defaultTruncationModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}
	return TruncateOutput(output, maxChars, mode)
}
