package agentcore

import "strings"

// TurnBuffer accumulates streamed text fragments from the model during a
// single turn.
//
// Every fragment delivered by the transport must reach Feed, including
// empty and whitespace-only ones: receiving any fragment transitions the
// buffer to started, and a buffer that never starts can never be
// finalized, which would silently defeat every downstream safeguard.
type TurnBuffer struct {
	sb        strings.Builder
	started   bool
	fragments int
}

// NewTurnBuffer creates an empty buffer.
func NewTurnBuffer() *TurnBuffer {
	return &TurnBuffer{}
}

// Feed appends one streamed fragment. An empty fragment still marks the
// buffer as started.
func (b *TurnBuffer) Feed(fragment string) {
	b.started = true
	b.fragments++
	b.sb.WriteString(fragment)
}

// Snapshot returns all text accumulated so far.
func (b *TurnBuffer) Snapshot() string {
	return b.sb.String()
}

// Started reports whether at least one fragment has been fed.
func (b *TurnBuffer) Started() bool {
	return b.started
}

// FragmentCount returns the number of fragments fed.
func (b *TurnBuffer) FragmentCount() int {
	return b.fragments
}

// IsWhitespaceOnly reports whether the accumulated text is empty or
// consists solely of whitespace.
func (b *TurnBuffer) IsWhitespaceOnly() bool {
	return strings.TrimSpace(b.sb.String()) == ""
}
