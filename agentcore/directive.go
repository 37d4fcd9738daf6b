package agentcore

import (
	"encoding/json"
	"regexp"
	"strings"
)

// DirectiveOrigin records how a directive reached the engine.
type DirectiveOrigin string

const (
	// OriginTag marks a directive parsed out of the model's text stream.
	OriginTag DirectiveOrigin = "tag-embedded"
	// OriginNative marks a directive delivered as a structured tool-call
	// event on the transport's side channel.
	OriginNative DirectiveOrigin = "native-tool-call"
)

// Directive is a parsed, not-yet-executed tool invocation extracted from
// model output. RawPayload may be plain text or a serialized JSON object;
// the tool decides how to interpret it.
type Directive struct {
	Name          string          `json:"name"`
	RawPayload    string          `json:"raw_payload"`
	Origin        DirectiveOrigin `json:"origin"`
	SequenceIndex int             `json:"sequence_index"`
}

// ToolCallRequest is the structured form of a directive, used to drive
// providers that accept native tool calls from the same textual directive
// surface.
type ToolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// openTagRegexp matches a directive-shaped opening tag, closed or not.
var openTagRegexp = regexp.MustCompile(`(?i)<([a-z][a-z0-9_]*)>`)

// ScanDirective returns the first complete, outermost directive in text,
// or nil if none is recognizable yet. Partial blocks (opening tag seen,
// closing tag not yet streamed) never match. Content after the first
// complete block is preserved by the caller but not parsed in this pass.
//
// If text contains a verbatim echo of a previous action result (detected
// by the ResultMarker substring the executor emits), ScanDirective reports
// no directive even when a well-formed block is present: re-emitting stale
// tool output alongside a directive is evidence of model confusion, not an
// intentional fresh call.
func ScanDirective(text string) *Directive {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if strings.Contains(text, ResultMarker) {
		return nil
	}

	// Walk opening tags left to right and return the first whose matching
	// closer has arrived. An enclosing block's opener precedes any nested
	// opener, so the outermost complete block wins.
	//
	// Tag names are ASCII, so an ASCII-only fold suffices for matching.
	// A full Unicode lowercasing can change byte lengths (U+0130, U+212A)
	// and would misalign these offsets against text.
	lower := asciiLower(text)
	for _, loc := range openTagRegexp.FindAllStringSubmatchIndex(lower, -1) {
		name := lower[loc[2]:loc[3]]
		bodyStart := loc[1]
		end := strings.Index(lower[bodyStart:], "</"+name+">")
		if end < 0 {
			continue
		}
		return &Directive{
			Name:          name,
			RawPayload:    text[bodyStart : bodyStart+end],
			Origin:        OriginTag,
			SequenceIndex: 0,
		}
	}
	return nil
}

// asciiLower lowercases ASCII letters only, leaving every other byte in
// place so indexes into the result are valid for the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// HasDirectiveMarkup reports whether text contains any directive-shaped
// markup at all, complete or not. An unclosed opening tag counts: a model
// that attempted the action protocol must not be misread as having given a
// plain conversational answer.
func HasDirectiveMarkup(text string) bool {
	return openTagRegexp.MatchString(text)
}

// NativeDirective builds a Directive from a native structured tool-call
// event.
func NativeDirective(name string, arguments json.RawMessage, index int) *Directive {
	return &Directive{
		Name:          strings.ToLower(strings.TrimSpace(name)),
		RawPayload:    string(arguments),
		Origin:        OriginNative,
		SequenceIndex: index,
	}
}

// ToolCallRequest bridges a directive to a structured tool call. JSON
// object payloads pass through unchanged; anything else is wrapped as
// {"input": ...} so providers always receive a JSON object.
func (d Directive) ToolCallRequest() ToolCallRequest {
	payload := strings.TrimSpace(d.RawPayload)
	if json.Valid([]byte(payload)) && strings.HasPrefix(payload, "{") {
		return ToolCallRequest{Name: d.Name, Arguments: json.RawMessage(payload)}
	}
	wrapped, _ := json.Marshal(map[string]string{"input": d.RawPayload})
	return ToolCallRequest{Name: d.Name, Arguments: wrapped}
}
