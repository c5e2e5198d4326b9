package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// outputTailLimit bounds how much captured tool output travels inside an
// error. Full output goes to the log as it is captured.
const outputTailLimit = 8 << 10

// ExternalToolFailure wraps a non-zero exit from the compiler, archiver or
// uploader, with the tail of its combined output attached for diagnostics.
type ExternalToolFailure struct {
	Tool     string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExternalToolFailure) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
}

func (e *ExternalToolFailure) Unwrap() error { return e.Err }

// ToolRunner invokes external tools synchronously, capturing their output.
// Extra environment entries are passed to the child but never logged; that
// is the channel for uploader credentials.
type ToolRunner struct {
	Logger *slog.Logger
	Dir    string
	Env    []string
}

// Run executes a tool and logs its full argument list.
func (r *ToolRunner) Run(ctx context.Context, tool string, args ...string) error {
	return r.run(ctx, tool, args, strings.Join(args, " "))
}

// RunRedacted executes a tool but logs only the given display string in
// place of the argument list, for invocations whose arguments carry
// credential material.
func (r *ToolRunner) RunRedacted(ctx context.Context, tool string, args []string, display string) error {
	return r.run(ctx, tool, args, display)
}

func (r *ToolRunner) run(ctx context.Context, tool string, args []string, display string) error {
	r.Logger.Info("running external tool", "tool", tool, "args", display, "dir", r.Dir)

	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), r.Env...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		r.Logger.Error("external tool failed",
			"tool", tool, "exit_code", code, "output", tail(out.Bytes()))
		return &ExternalToolFailure{
			Tool:     tool,
			ExitCode: code,
			Output:   tail(out.Bytes()),
			Err:      err,
		}
	}

	r.Logger.Info("external tool finished", "tool", tool)
	return nil
}

func tail(b []byte) string {
	if len(b) > outputTailLimit {
		b = b[len(b)-outputTailLimit:]
	}
	return string(b)
}
