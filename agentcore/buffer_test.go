package agentcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnBufferAccumulates(t *testing.T) {
	buf := NewTurnBuffer()
	assert.False(t, buf.Started())
	assert.Equal(t, 0, buf.FragmentCount())

	buf.Feed("Hello, ")
	buf.Feed("world")
	buf.Feed("!")

	assert.Equal(t, "Hello, world!", buf.Snapshot())
	assert.Equal(t, 3, buf.FragmentCount())
	assert.True(t, buf.Started())
	assert.False(t, buf.IsWhitespaceOnly())
}

func TestTurnBufferEmptyFragmentStarts(t *testing.T) {
	buf := NewTurnBuffer()
	buf.Feed("")

	assert.True(t, buf.Started(), "an empty fragment still counts as receiving output")
	assert.Equal(t, 1, buf.FragmentCount())
	assert.True(t, buf.IsWhitespaceOnly())
}

func TestTurnBufferWhitespaceOnly(t *testing.T) {
	buf := NewTurnBuffer()
	buf.Feed("  \n")
	buf.Feed("\t ")

	assert.True(t, buf.IsWhitespaceOnly())
	assert.Equal(t, "  \n\t ", buf.Snapshot())
}
