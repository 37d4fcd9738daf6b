package agentcore

import (
	"context"
	"fmt"
	"strings"
)

// Default termination signal names. The engine stops when the executed
// directive's name equals the signal for the current mode.
const (
	SignalTaskComplete = "task_complete"
	SignalChatComplete = "chat_complete"
)

// RegisterCompletionTools registers the termination directives. Their
// payload is either plain summary text or {"summary", "status"}; the
// result embeds the [STATUS:<word>] marker the termination detector and
// downstream consumers pattern-match on.
func RegisterCompletionTools(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        SignalTaskComplete,
			Description: "Signal that the task is finished. Payload: summary text, or {\"summary\": ..., \"status\": \"done\"|\"partial\"|\"blocked\"}.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"summary": map[string]interface{}{"type": "string"},
					"status": map[string]interface{}{
						"type": "string",
						"enum": []string{StatusWordDone, StatusWordPartial, StatusWordBlocked},
					},
				},
			},
		},
		Run: completionRun,
	})

	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        SignalChatComplete,
			Description: "Signal that the conversational reply is finished. Payload: closing text, or {\"summary\": ...}.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"summary": map[string]interface{}{"type": "string"},
				},
			},
		},
		Run: completionRun,
	})
}

// completionRun formats the completion summary with its status marker.
// Unknown or absent status words default to done.
func completionRun(_ context.Context, payload string, _ Environment) (string, error) {
	summary := strings.TrimSpace(payload)
	status := StatusWordDone

	if args, err := ParsePayloadObject(payload); err == nil {
		if s, ok := StringField(args, "summary"); ok {
			summary = s
		}
		if w, ok := StringField(args, "status"); ok {
			switch w {
			case StatusWordDone, StatusWordPartial, StatusWordBlocked:
				status = w
			}
		}
	}
	if summary == "" {
		summary = "Completed."
	}
	return fmt.Sprintf("%s %s", summary, StatusMarker(status)), nil
}
