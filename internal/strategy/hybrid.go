package strategy

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentrix-dev/agentrix/internal/observability"
)

// Hybrid composes the other three strategies into three ordered phases:
// primaries run sequentially, secondaries run in parallel with the primary
// results propagated forward, and specialists run under the specialized
// strategy with everything that ran before them.
type Hybrid struct {
	sequential  *Sequential
	parallel    *Parallel
	specialized *Specialized
}

// NewHybrid creates the hybrid strategy from its three phases.
func NewHybrid(sequential *Sequential, parallel *Parallel, specialized *Specialized) *Hybrid {
	return &Hybrid{
		sequential:  sequential,
		parallel:    parallel,
		specialized: specialized,
	}
}

// Name returns the strategy identifier.
func (h *Hybrid) Name() string { return "hybrid" }

// Execute runs the three phases in order, accumulating metadata. A primary
// failure in phase 1 propagates exactly as it would under Sequential.
func (h *Hybrid) Execute(ctx context.Context, ec *Context) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "strategy.hybrid",
		trace.WithAttributes(attribute.Int("strategy.agent_count", len(ec.Agents))),
	)
	defer span.End()

	start := time.Now()
	byPosition := splitByPosition(ec.Agents)
	result := &Result{}

	// Phase 1: primaries, sequential.
	if primaries := byPosition[PositionPrimary]; len(primaries) > 0 {
		phase, err := h.sequential.Execute(ctx, ec.WithAgents(primaries))
		if phase != nil {
			result.accumulate(phase)
		}
		if err != nil {
			span.RecordError(err)
			result.Metadata.Elapsed = time.Since(start)
			return result, err
		}
	}

	// Phase 2: secondaries, parallel, with phase-1 results visible.
	if secondaries := byPosition[PositionSecondary]; len(secondaries) > 0 {
		phaseCtx := ec.WithAgents(secondaries).
			Extend(ContextPrimaryResults, append([]Outcome(nil), result.Outcomes...))
		phase, err := h.parallel.Execute(ctx, phaseCtx)
		if err != nil {
			span.RecordError(err)
			result.Metadata.Elapsed = time.Since(start)
			return result, err
		}
		result.accumulate(phase)
	}

	// Phase 3: specialists, specialized, with phases 1-2 visible.
	if specialists := byPosition[PositionSpecialist]; len(specialists) > 0 {
		phaseCtx := ec.WithAgents(specialists).
			Extend(ContextAllPreviousResults, append([]Outcome(nil), result.Outcomes...))
		phase, err := h.specialized.Execute(ctx, phaseCtx)
		if err != nil {
			span.RecordError(err)
			result.Metadata.Elapsed = time.Since(start)
			return result, err
		}
		result.accumulate(phase)
	}

	result.Metadata.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("strategy.success_count", result.Metadata.Succeeded),
		attribute.Int("strategy.error_count", result.Metadata.Failed),
	)
	return result, nil
}

// accumulate folds a phase result into the overall result.
func (r *Result) accumulate(phase *Result) {
	r.Outcomes = append(r.Outcomes, phase.Outcomes...)
	r.Metadata.Succeeded += phase.Metadata.Succeeded
	r.Metadata.Failed += phase.Metadata.Failed
	r.Metadata.Groups = append(r.Metadata.Groups, phase.Metadata.Groups...)
}
