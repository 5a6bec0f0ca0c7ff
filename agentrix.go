// Package agentrix orchestrates multi-agent analysis runs: independent
// workers execute against a shared input under a configurable strategy,
// with bounded concurrency, per-worker timeouts and priority-ordered
// fallback substitution.
package agentrix

import (
	"context"

	"github.com/agentrix-dev/agentrix/internal/executor"
	"github.com/agentrix-dev/agentrix/internal/strategy"
	"github.com/agentrix-dev/agentrix/pkg/config"
)

// Re-exported types so callers outside this module can build invokers and
// consume results without importing internal packages.
type (
	// WorkerConfig identifies one analysis worker.
	WorkerConfig = strategy.WorkerConfig
	// ExecutionContext is the run-scoped input handed to workers.
	ExecutionContext = strategy.Context
	// Payload is the opaque result a worker produces.
	Payload = strategy.Payload
	// TokenUsage is the accounting signal attached to a payload.
	TokenUsage = strategy.TokenUsage
	// Invoker is the worker invocation capability.
	Invoker = strategy.Invoker
	// Options are the run-scoped execution options.
	Options = strategy.Options
	// File is one element of the shared analysis input.
	File = strategy.File
	// RunConfig is a validated named run.
	RunConfig = executor.RunConfig
	// RunResult is the aggregate outcome of one run.
	RunResult = executor.RunResult
	// WorkerOutcome is the per-worker result record.
	WorkerOutcome = strategy.Outcome
)

// Worker position classes.
const (
	PositionPrimary    = strategy.PositionPrimary
	PositionSecondary  = strategy.PositionSecondary
	PositionFallback   = strategy.PositionFallback
	PositionSpecialist = strategy.PositionSpecialist
)

// NewExecutor validates the run configuration and builds an executor.
func NewExecutor(cfg RunConfig, invoker Invoker) (*executor.Executor, error) {
	return executor.New(cfg, invoker)
}

// Run loads a run configuration from a YAML file and executes it once over
// the given files with the given invoker.
func Run(ctx context.Context, configPath string, invoker Invoker, files []File) (*RunResult, error) {
	cfg, opts, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	exec, err := executor.New(*cfg, invoker)
	if err != nil {
		return nil, err
	}
	return exec.Execute(ctx, files, opts)
}
