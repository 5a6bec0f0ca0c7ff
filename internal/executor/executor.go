// Package executor drives a run: it resolves the configured strategy, runs
// the primary/secondary/specialist workers, substitutes fallback workers in
// priority order when primaries fail, and aggregates per-worker outcomes
// into a combined run result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentrix-dev/agentrix/internal/observability"
	"github.com/agentrix-dev/agentrix/internal/strategy"
	"github.com/agentrix-dev/agentrix/internal/timeout"
	metrics "github.com/agentrix-dev/agentrix/pkg/observability"
)

// ErrAllWorkersFailed is returned alongside the populated RunResult when no
// worker, primary or fallback, succeeded.
var ErrAllWorkersFailed = errors.New("all workers failed")

// Executor is the top-level run driver. Stateless between runs: every run
// owns its own context and result map.
type Executor struct {
	config   RunConfig
	invoker  strategy.Invoker
	selector *strategy.Selector
	timeouts *timeout.Controller
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeoutConfig overrides the timeout controller defaults.
func WithTimeoutConfig(cfg timeout.Config) Option {
	return func(e *Executor) {
		e.timeouts = timeout.NewController(cfg)
	}
}

// New validates the run configuration and builds the executor. A
// *ConfigError is fatal; the caller must fix the configuration.
func New(config RunConfig, invoker strategy.Invoker, opts ...Option) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if invoker == nil {
		return nil, &ConfigError{Reason: "invoker is required"}
	}

	e := &Executor{
		config:   config,
		invoker:  invoker,
		timeouts: timeout.NewController(timeout.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.selector = strategy.NewSelector(invoker, e.timeouts)
	return e, nil
}

// Timeouts exposes the timeout controller for external interruption
// (user abort, shutdown).
func (e *Executor) Timeouts() *timeout.Controller {
	return e.timeouts
}

// Execute performs one run over the shared input files. It always returns
// a RunResult unless the sequential strategy aborts on a primary failure
// outside debug mode; when no worker at all succeeds, the populated result
// is returned together with ErrAllWorkersFailed.
func (e *Executor) Execute(ctx context.Context, files []strategy.File, opts strategy.Options) (*RunResult, error) {
	if opts.MaxConcurrentAgents < 1 {
		opts.MaxConcurrentAgents = e.config.MaxConcurrentAgents
	}

	analysisID := uuid.New().String()
	ctx, span := observability.StartSpan(ctx, "executor.run",
		trace.WithAttributes(
			attribute.String("run.analysis_id", analysisID),
			attribute.String("run.strategy", string(e.config.Strategy)),
			attribute.Int("run.agent_count", len(e.config.Agents)),
			attribute.Bool("run.fallback_enabled", e.config.FallbackEnabled),
		),
	)
	defer span.End()

	start := time.Now()
	if opts.Debug {
		log.Printf("[EXECUTOR] run %s starting: strategy=%s agents=%d files=%d",
			analysisID, e.config.Strategy, len(e.config.Agents), len(files))
	}

	strat, err := e.resolveStrategy()
	if err != nil {
		return nil, err
	}

	ec := strategy.NewContext(files, activeAgents(e.config.Agents), opts)
	stratResult, err := strat.Execute(ctx, ec)
	if err != nil && stratResult == nil {
		span.RecordError(err)
		metrics.RecordRun(string(e.config.Strategy), "error", time.Since(start))
		return nil, err
	}

	result := &RunResult{
		AnalysisID: analysisID,
		Strategy:   e.config.Strategy,
		Config:     e.config,
		Results:    map[string]strategy.Outcome{},
	}

	assigner := newSlotAssigner(e.config.Agents)
	for _, outcome := range stratResult.Outcomes {
		result.Results[assigner.slotFor(outcome)] = outcome
	}

	// A sequential (or hybrid phase-1) abort propagates to the caller; the
	// partial outcomes are already folded in for diagnostics.
	if err != nil {
		result.Duration = time.Since(start)
		span.RecordError(err)
		metrics.RecordRun(string(e.config.Strategy), "aborted", result.Duration)
		return result, err
	}

	primarySucceeded := anyPrimarySucceeded(stratResult.Outcomes)
	fallbackSucceeded := false

	if e.config.FallbackEnabled && !primarySucceeded && len(e.config.FallbackAgents) > 0 {
		fallbackSucceeded = e.runFallbacks(ctx, ec, result)
	}

	result.Successful = primarySucceeded || fallbackSucceeded
	result.Duration = time.Since(start)
	result.TotalCost = totalCost(result.Results)
	result.Combined = e.combined(result)

	status := "success"
	if !result.Successful {
		status = "failure"
	}
	span.SetAttributes(
		attribute.Bool("run.successful", result.Successful),
		attribute.Bool("run.used_fallback", result.UsedFallback),
		attribute.Int64("run.duration_ms", result.Duration.Milliseconds()),
		attribute.Float64("run.total_cost", result.TotalCost),
	)
	metrics.RecordRun(string(e.config.Strategy), status, result.Duration)

	if !result.Successful {
		return result, ErrAllWorkersFailed
	}
	return result, nil
}

// resolveStrategy maps the configured name to a strategy instance. Hybrid
// is a composite and comes from its own accessor, not the name map.
func (e *Executor) resolveStrategy() (strategy.Strategy, error) {
	if e.config.Strategy == strategy.NameHybrid {
		return e.selector.Hybrid(), nil
	}
	return e.selector.ForName(e.config.Strategy)
}

// runFallbacks tries the fallback workers in descending priority order,
// stopping at the first success but recording every attempt. Each attempt
// gets the stretched fallback timeout.
func (e *Executor) runFallbacks(ctx context.Context, ec *strategy.Context, result *RunResult) bool {
	type candidate struct {
		agent     strategy.WorkerConfig
		configIdx int
	}
	candidates := make([]candidate, len(e.config.FallbackAgents))
	for i, agent := range e.config.FallbackAgents {
		candidates[i] = candidate{agent: agent, configIdx: i}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].agent.Priority > candidates[j].agent.Priority
	})

	succeeded := false
	for _, c := range candidates {
		result.UsedFallback = true
		outcome := strategy.InvokeWorker(ctx, e.timeouts, e.invoker, c.agent, ec, timeout.RunOptions{
			Timeout:    e.config.FallbackTimeout,
			IsFallback: true,
		})
		result.Results[slotID(strategy.PositionFallback, c.configIdx)] = outcome
		metrics.RecordFallbackAttempt(outcome.Successful)

		if outcome.Successful {
			succeeded = true
			break
		}
		log.Printf("[EXECUTOR] fallback agent %s (priority %d) failed: %v",
			c.agent.Provider, c.agent.Priority, outcome.Err)
	}
	return succeeded
}

// combined builds the combined payload: the union of successful payloads in
// configuration order when CombineResults is set, otherwise a mirror of the
// primary payload. Configuration order matters for scalar conflicts: the
// earliest-configured successful worker wins, so a fallback never shadows a
// secondary's value.
func (e *Executor) combined(result *RunResult) map[string]any {
	if e.config.CombineResults {
		outcomes := make([]strategy.Outcome, 0, len(result.Results))
		seen := make(map[string]bool, len(result.Results))
		for _, slot := range e.configOrderSlots() {
			if outcome, ok := result.Results[slot]; ok {
				outcomes = append(outcomes, outcome)
				seen[slot] = true
			}
		}
		// Outcomes keyed outside the configured slots (unknown agents) come
		// last, in stable order.
		for _, slot := range orderedSlots(result.Results) {
			if !seen[slot] {
				outcomes = append(outcomes, result.Results[slot])
			}
		}
		return combinePayloads(outcomes)
	}

	primary, ok := result.Results["primary"]
	if !ok || !primary.Successful || primary.Result == nil {
		return nil
	}
	mirror := make(map[string]any, len(primary.Result.Fields))
	for k, v := range primary.Result.Fields {
		mirror[k] = v
	}
	return mirror
}

// configOrderSlots lists the slot ids in configuration order: the main
// agent slots first, then the fallback slots.
func (e *Executor) configOrderSlots() []string {
	slots := newSlotAssigner(e.config.Agents).slots
	for i := range e.config.FallbackAgents {
		slots = append(slots, slotID(strategy.PositionFallback, i))
	}
	return slots
}

// orderedSlots returns the result map's keys in a stable order so combining
// is deterministic across runs.
func orderedSlots(results map[string]strategy.Outcome) []string {
	slots := make([]string, 0, len(results))
	for slot := range results {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}

func activeAgents(agents []strategy.WorkerConfig) []strategy.WorkerConfig {
	active := make([]strategy.WorkerConfig, 0, len(agents))
	for _, agent := range agents {
		if agent.Position != strategy.PositionFallback {
			active = append(active, agent)
		}
	}
	return active
}

func anyPrimarySucceeded(outcomes []strategy.Outcome) bool {
	for _, o := range outcomes {
		if o.Agent.Position == strategy.PositionPrimary && o.Successful {
			return true
		}
	}
	return false
}

func totalCost(results map[string]strategy.Outcome) float64 {
	var total float64
	for _, outcome := range results {
		if outcome.Result != nil {
			total += outcome.Result.Cost
		}
	}
	return total
}

// String implements fmt.Stringer for debug logging.
func (r *RunResult) String() string {
	return fmt.Sprintf("run %s: strategy=%s successful=%t fallback=%t cost=%.4f duration=%s",
		r.AnalysisID, r.Strategy, r.Successful, r.UsedFallback, r.TotalCost, r.Duration)
}
