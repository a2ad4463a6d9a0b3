package docexport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/alnah/go-docexport/internal/process"
)

// Command is one renderer invocation.
type Command struct {
	Name string
	Args []string
	Dir  string // working directory, "" = current
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandRunner abstracts command execution to enable testing without real subprocesses.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (stdout string, stderr string, err error)
}

// Compile-time interface check.
var _ CommandRunner = (*ExecRunner)(nil)

// ExecRunner implements CommandRunner using os/exec. Each command runs in
// its own process group, killed as a whole when ctx is canceled.
type ExecRunner struct{}

func (r *ExecRunner) Run(ctx context.Context, c Command) (string, string, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	process.Isolate(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil && (errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)) {
		err = fmt.Errorf("%w: %s", ErrToolNotFound, c.Name)
	}
	return stdout.String(), stderr.String(), err
}

// runTool runs c and wraps a failure as a StageExecutionError for stage.
// The tool's stderr (or stdout when stderr is empty) becomes the diagnostic.
func runTool(ctx context.Context, runner CommandRunner, stage string, c Command) error {
	stdout, stderr, err := runner.Run(ctx, c)
	if err == nil {
		return nil
	}
	output := stderr
	if strings.TrimSpace(output) == "" {
		output = stdout
	}
	return &StageExecutionError{Stage: stage, Tool: c.Name, Output: tail(output, maxDiagnosticLines), Err: err}
}

// maxDiagnosticLines bounds the tool output kept in errors.
const maxDiagnosticLines = 40

// tail returns the last n lines of s.
func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
