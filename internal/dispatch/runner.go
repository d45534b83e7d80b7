package dispatch

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks github.com/mattjoyce/verigate/internal/dispatch ProcessRunner

// Invocation describes one subprocess to execute.
type Invocation struct {
	// Path is the executable to run.
	Path string

	// Args is the argument vector, not including Path.
	Args []string

	// Env holds environment overrides merged over the process environment
	// at spawn time. Override wins on conflict.
	Env map[string]string
}

// ExitStartFailure is returned when the child cannot be started at all
// (missing interpreter or script). Matches shell command-not-found.
const ExitStartFailure = 127

// ProcessRunner executes a subprocess synchronously and reports its exit code.
type ProcessRunner interface {
	Run(ctx context.Context, inv Invocation) (int, error)
}

// ExecRunner is the production ProcessRunner backed by os/exec. The child
// inherits stdin and writes stdout/stderr through unaltered; no buffering
// or interpretation happens here.
type ExecRunner struct{}

// NewExecRunner creates an ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the invocation and blocks until the child terminates.
// The returned code is the child's own exit code verbatim.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (int, error) {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = mergeEnv(os.Environ(), inv.Env)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	// The child never started (e.g. interpreter or script not found)
	return ExitStartFailure, err
}

// mergeEnv inherits the process environment and overrides it with the
// supplied variables.
func mergeEnv(environ []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return environ
	}

	merged := make([]string, 0, len(environ)+len(overrides))
	for _, kv := range environ {
		key, _, ok := strings.Cut(kv, "=")
		if ok {
			if _, overridden := overrides[key]; overridden {
				continue
			}
		}
		merged = append(merged, kv)
	}
	for key, value := range overrides {
		merged = append(merged, key+"="+value)
	}
	return merged
}
