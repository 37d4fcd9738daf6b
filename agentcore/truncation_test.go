package agentcore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateOutputUnderLimit(t *testing.T) {
	out := TruncateOutput("short", 100, TruncateHeadTail)
	assert.Equal(t, "short", out)
}

func TestTruncateOutputHeadTail(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 500)
	out := TruncateOutput(input, 200, TruncateHeadTail)

	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 100)))
	assert.True(t, strings.HasSuffix(out, strings.Repeat("z", 100)))
	assert.Contains(t, out, "800 characters removed from the middle")
}

func TestTruncateOutputTail(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 200)
	out := TruncateOutput(input, 200, TruncateTail)

	assert.True(t, strings.HasSuffix(out, strings.Repeat("z", 200)))
	assert.Contains(t, out, "first 500 characters removed")
	assert.NotContains(t, out[len(out)-200:], "a")
}

func TestTruncateLines(t *testing.T) {
	input := strings.TrimSuffix(strings.Repeat("line\n", 100), "\n")
	out := TruncateLines(input, 10)
	assert.Contains(t, out, "90 lines omitted")

	short := "one\ntwo\nthree"
	assert.Equal(t, short, TruncateLines(short, 10))
}

func TestTruncateToolOutputPerToolLimits(t *testing.T) {
	big := strings.Repeat("x", 60000)

	readOut := TruncateToolOutput(big, "read_file")
	assert.Contains(t, readOut, "truncated")

	listOut := TruncateToolOutput(strings.Repeat("x", 25000), "list_files")
	assert.Contains(t, listOut, "first 5000 characters removed", "list_files keeps the tail")

	unknown := TruncateToolOutput(strings.Repeat("x", 29000), "custom_tool")
	assert.Equal(t, strings.Repeat("x", 29000), unknown, "fallback limit is 30000")
}
