package strategy

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentrix-dev/agentrix/internal/observability"
	"github.com/agentrix-dev/agentrix/internal/timeout"
)

// Sequential executes workers one at a time in configured order. After each
// worker settles, its result is folded into the Additional bag consumed by
// the next worker only; the context handed to earlier workers is never
// touched again.
type Sequential struct {
	invoker  Invoker
	timeouts *timeout.Controller
}

// NewSequential creates the sequential strategy.
func NewSequential(invoker Invoker, timeouts *timeout.Controller) *Sequential {
	return &Sequential{invoker: invoker, timeouts: timeouts}
}

// Name returns the strategy identifier.
func (s *Sequential) Name() string { return "sequential" }

// Execute runs the workers in order. A primary worker's failure stops the
// sequence and propagates to the caller unless the run is in debug mode,
// in which case execution continues past the failure.
func (s *Sequential) Execute(ctx context.Context, ec *Context) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "strategy.sequential",
		trace.WithAttributes(attribute.Int("strategy.agent_count", len(ec.Agents))),
	)
	defer span.End()

	start := time.Now()
	result := &Result{}
	stepCtx := ec

	for i, agent := range ec.Agents {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		stepCtx = stepCtx.Extend(ContextExecutionStep, i+1)
		outcome := InvokeWorker(ctx, s.timeouts, s.invoker, agent, stepCtx, timeout.RunOptions{})
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Successful {
			result.Metadata.Succeeded++
		} else {
			result.Metadata.Failed++
			if agent.Position == PositionPrimary && !ec.Options.Debug {
				result.Metadata.Elapsed = time.Since(start)
				err := fmt.Errorf("primary agent %s failed: %w", agent.Provider, outcome.Err)
				span.RecordError(err)
				return result, err
			}
			if ec.Options.Debug {
				log.Printf("[SEQUENTIAL] agent %s failed, continuing in debug mode: %v", agent.Provider, outcome.Err)
			}
		}

		// Fold this step's result forward for the next worker.
		stepCtx = stepCtx.ExtendAll(map[string]any{
			ContextPreviousResults: append([]Outcome(nil), result.Outcomes...),
			ContextLastResult:      outcome,
		})
	}

	result.Metadata.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("strategy.success_count", result.Metadata.Succeeded),
		attribute.Int("strategy.error_count", result.Metadata.Failed),
	)
	return result, nil
}
