// Package dispatch resolves a target name and parameter map into exactly
// one subprocess execution, propagating the child's exit code verbatim.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mattjoyce/verigate/internal/config"
	"github.com/mattjoyce/verigate/internal/log"
	"github.com/mattjoyce/verigate/internal/target"
)

// Dispatcher resolves targets and executes their checker scripts.
type Dispatcher struct {
	registry *target.Registry
	cfg      *config.Config
	runner   ProcessRunner
	logger   *slog.Logger
}

// New creates a Dispatcher.
func New(registry *target.Registry, cfg *config.Config, runner ProcessRunner) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		cfg:      cfg,
		runner:   runner,
		logger:   log.WithComponent("dispatch"),
	}
}

// Run looks up the named target, validates its required parameters, and
// executes its checker script synchronously. The returned int is the exit
// code the process should terminate with; err is non-nil for local failures
// (unknown target, missing parameter, spawn failure) and nil when the child
// ran, whatever its exit code.
func (d *Dispatcher) Run(ctx context.Context, targetName string, params map[string]string) (int, error) {
	spec, ok := d.registry.Get(targetName)
	if !ok {
		d.logger.Debug("dispatch refused", "target", targetName, "reason", "unknown target")
		return 1, &UnknownTargetError{Name: targetName}
	}

	// Validate before anything else: no subprocess is spawned on failure.
	// An empty value counts as missing, same as the original shell guard.
	for _, name := range spec.RequiredParams {
		if params[name] == "" {
			d.logger.Debug("dispatch refused", "target", targetName, "reason", "missing parameter", "param", name)
			return 2, &MissingParamError{
				Target: spec.Name,
				Param:  name,
				Usage:  Usage(spec),
			}
		}
	}

	args, err := spec.ExpandArgs(params)
	if err != nil {
		return 1, fmt.Errorf("build argument vector: %w", err)
	}

	inv := Invocation{
		Path: d.cfg.Interpreter,
		Args: append([]string{spec.ScriptPath(d.cfg.ScriptsDir)}, args...),
		Env:  spec.Env,
	}

	runLogger := log.WithRun(uuid.NewString()).With("target", spec.Name)
	runLogger.Info("executing target", "script", spec.Script, "args", args)

	code, err := d.runner.Run(ctx, inv)
	if err != nil {
		runLogger.Error("failed to run checker script", "error", err)
		return code, fmt.Errorf("run %s: %w", spec.Script, err)
	}

	if code != 0 {
		runLogger.Warn("checker exited non-zero", "exit_code", code)
	} else {
		runLogger.Info("checker passed")
	}
	return code, nil
}

// Usage renders the invocation synopsis for a target, one --flag per
// required parameter.
func Usage(spec *target.Spec) string {
	var b strings.Builder
	b.WriteString("Usage: verigate ")
	b.WriteString(spec.Name)
	for _, p := range spec.RequiredParams {
		b.WriteString(" --")
		b.WriteString(p)
		b.WriteString(" VALUE")
	}
	return b.String()
}
