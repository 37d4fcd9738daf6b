package agentcore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// ToolFunc executes one tool invocation. The payload is the directive's
// raw payload, which may be plain text or a JSON object; each tool owns
// its own payload convention.
type ToolFunc func(ctx context.Context, payload string, env Environment) (string, error)

// ToolDefinition describes a tool to the model (serializable metadata).
// Parameters follow JSON-schema shape for providers with native tool
// calling; tag-only providers see the name and description in the prompt.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// RegisteredTool pairs a definition with its executable.
type RegisteredTool struct {
	Definition ToolDefinition
	Run        ToolFunc
}

// ToolRegistry manages tool registration and lookup. It is read-mostly
// and may be shared read-only across concurrent runs.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*RegisteredTool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*RegisteredTool)}
}

// Register adds or replaces a tool.
func (r *ToolRegistry) Register(tool RegisteredTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Definition.Name] = &tool
}

// Unregister removes a tool.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Lookup returns a registered tool by name, or nil if unknown.
func (r *ToolRegistry) Lookup(name string) *RegisteredTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns all tool definitions for inclusion in a model
// request.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition)
	}
	return defs
}

// Names returns the names of all registered tools.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ParsePayloadObject unmarshals a JSON-object payload into a map. Tools
// that accept either JSON or plain text call this first and fall back to
// text handling on error.
func ParsePayloadObject(payload string) (map[string]interface{}, error) {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &args); err != nil {
		return nil, errors.Wrap(err, "payload is not a JSON object")
	}
	return args, nil
}

// StringField extracts a string field from a parsed payload object.
func StringField(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IntField extracts an integer field from a parsed payload object.
func IntField(args map[string]interface{}, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
