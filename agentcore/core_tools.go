package agentcore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RegisterCoreTools registers the built-in file and shell tools, bound to
// the given environment via the executor's Environment parameter.
//
// Payload conventions: tools accept either a JSON object or the compact
// colon-separated text form shown in each description, so both native
// tool-call providers and tag-only providers can drive them.
func RegisterCoreTools(reg *ToolRegistry, commandTimeout time.Duration) {
	if commandTimeout <= 0 {
		commandTimeout = 30 * time.Second
	}
	registerExecute(reg, commandTimeout)
	registerReadFile(reg)
	registerWriteFile(reg)
	registerListFiles(reg)
}

func registerExecute(reg *ToolRegistry, commandTimeout time.Duration) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        "execute",
			Description: "Run a shell command in the working directory. Payload: the command text, or {\"command\": ...}.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"command": map[string]interface{}{
						"type":        "string",
						"description": "Shell command to run.",
					},
				},
				"required": []string{"command"},
			},
		},
		Run: func(ctx context.Context, payload string, env Environment) (string, error) {
			command := strings.TrimSpace(payload)
			if args, err := ParsePayloadObject(payload); err == nil {
				if c, ok := StringField(args, "command"); ok {
					command = c
				} else if c, ok := StringField(args, "input"); ok {
					command = c
				}
			}
			if command == "" {
				return "", fmt.Errorf("execute: empty command")
			}
			res, err := env.ExecCommand(ctx, command, commandTimeout)
			if err != nil {
				return "", err
			}
			if res.TimedOut {
				return fmt.Sprintf("Command timed out after %s.\n%s", commandTimeout, res.Combined()), nil
			}
			if res.ExitCode != 0 {
				return fmt.Sprintf("Exit code %d.\n%s", res.ExitCode, res.Combined()), nil
			}
			return res.Combined(), nil
		},
	})
}

func registerReadFile(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        "read_file",
			Description: "Read a file with line numbers. Payload: path, path:offset:limit, or {\"path\", \"offset\", \"limit\"}.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   map[string]interface{}{"type": "string"},
					"offset": map[string]interface{}{"type": "integer", "description": "1-based first line."},
					"limit":  map[string]interface{}{"type": "integer", "description": "Maximum lines to read."},
				},
				"required": []string{"path"},
			},
		},
		Run: func(ctx context.Context, payload string, env Environment) (string, error) {
			path := strings.TrimSpace(payload)
			offset, limit := 0, 0
			if args, err := ParsePayloadObject(payload); err == nil {
				path, _ = StringField(args, "path")
				offset, _ = IntField(args, "offset")
				limit, _ = IntField(args, "limit")
			} else if parts := strings.Split(path, ":"); len(parts) == 3 {
				path = parts[0]
				fmt.Sscanf(parts[1], "%d", &offset)
				fmt.Sscanf(parts[2], "%d", &limit)
			}
			if path == "" {
				return "", fmt.Errorf("read_file: empty path")
			}
			return env.ReadFile(path, offset, limit)
		},
	})
}

func registerWriteFile(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        "write_file",
			Description: "Write content to a file, creating directories as needed. Payload: path:content or {\"path\", \"content\"}.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    map[string]interface{}{"type": "string"},
					"content": map[string]interface{}{"type": "string"},
				},
				"required": []string{"path", "content"},
			},
		},
		Run: func(ctx context.Context, payload string, env Environment) (string, error) {
			var path, content string
			if args, err := ParsePayloadObject(payload); err == nil {
				path, _ = StringField(args, "path")
				content, _ = StringField(args, "content")
			} else {
				parts := strings.SplitN(payload, ":", 2)
				if len(parts) != 2 {
					return "", fmt.Errorf("write_file: payload must be path:content or a JSON object")
				}
				path, content = strings.TrimSpace(parts[0]), parts[1]
			}
			if path == "" {
				return "", fmt.Errorf("write_file: empty path")
			}
			if err := env.WriteFile(path, content); err != nil {
				return "", err
			}
			return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
		},
	})
}

func registerListFiles(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        "list_files",
			Description: "List directory entries. Payload: path (empty for working directory) or {\"path\"}.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{"type": "string"},
				},
			},
		},
		Run: func(ctx context.Context, payload string, env Environment) (string, error) {
			path := strings.TrimSpace(payload)
			if args, err := ParsePayloadObject(payload); err == nil {
				path, _ = StringField(args, "path")
			}
			entries, err := env.ListDirectory(path)
			if err != nil {
				return "", err
			}
			if len(entries) == 0 {
				return "(empty directory)", nil
			}
			return strings.Join(entries, "\n"), nil
		},
	})
}
