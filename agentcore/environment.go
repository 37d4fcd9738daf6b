package agentcore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ExecResult holds the result of one command execution.
type ExecResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"duration"`
}

// Combined returns stdout and stderr as one block.
func (r ExecResult) Combined() string {
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// Environment abstracts where built-in tools operate. Tool catalogs
// beyond the built-ins live outside this package and may ignore it.
type Environment interface {
	WorkingDirectory() string
	ReadFile(path string, offset, limit int) (string, error)
	WriteFile(path string, content string) error
	ListDirectory(path string) ([]string, error)
	ExecCommand(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error)
}

// LocalEnvironment runs tools on the local machine rooted at a working
// directory.
type LocalEnvironment struct {
	workingDir string
}

// NewLocalEnvironment creates a local environment. An empty workingDir
// defaults to the process working directory.
func NewLocalEnvironment(workingDir string) *LocalEnvironment {
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}
	return &LocalEnvironment{workingDir: workingDir}
}

func (e *LocalEnvironment) WorkingDirectory() string { return e.workingDir }

func (e *LocalEnvironment) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.workingDir, path)
}

// ReadFile returns line-numbered file content. Offset is 1-based; a zero
// limit reads to the end.
func (e *LocalEnvironment) ReadFile(path string, offset, limit int) (string, error) {
	data, err := os.ReadFile(e.resolve(path))
	if err != nil {
		return "", errors.Wrap(err, "read_file")
	}

	lines := strings.Split(string(data), "\n")
	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start >= len(lines) {
		return "", nil
	}
	end := len(lines)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%d | %s\n", i+1, lines[i])
	}
	return sb.String(), nil
}

func (e *LocalEnvironment) WriteFile(path string, content string) error {
	resolved := e.resolve(path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return errors.Wrap(err, "write_file")
	}
	return errors.Wrap(os.WriteFile(resolved, []byte(content), 0o644), "write_file")
}

func (e *LocalEnvironment) ListDirectory(path string) ([]string, error) {
	if path == "" {
		path = "."
	}
	entries, err := os.ReadDir(e.resolve(path))
	if err != nil {
		return nil, errors.Wrap(err, "list_files")
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return names, nil
}

// ExecCommand runs a shell command in the working directory under a
// timeout. A timed-out command reports TimedOut rather than failing the
// call.
func (e *LocalEnvironment) ExecCommand(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shell, shellArg := "/bin/bash", "-c"
	if runtime.GOOS == "windows" {
		shell, shellArg = "cmd.exe", "/c"
	}

	cmd := exec.CommandContext(ctx, shell, shellArg, command)
	cmd.Dir = e.workingDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			result.ExitCode = -1
			return result, nil
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, errors.Wrap(err, "exec")
	}
	return result, nil
}
