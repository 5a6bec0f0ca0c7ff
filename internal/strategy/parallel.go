package strategy

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentrix-dev/agentrix/internal/observability"
	"github.com/agentrix-dev/agentrix/internal/timeout"
)

// Parallel submits every worker in the context concurrently, bounded by
// MaxConcurrentAgents. Failures settle independently: one worker's failure
// never aborts its siblings.
type Parallel struct {
	invoker  Invoker
	timeouts *timeout.Controller
}

// NewParallel creates the parallel strategy.
func NewParallel(invoker Invoker, timeouts *timeout.Controller) *Parallel {
	return &Parallel{invoker: invoker, timeouts: timeouts}
}

// Name returns the strategy identifier.
func (p *Parallel) Name() string { return "parallel" }

// Execute fans out all workers through the admission gate and waits for
// every one of them to settle.
func (p *Parallel) Execute(ctx context.Context, ec *Context) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "strategy.parallel",
		trace.WithAttributes(
			attribute.Int("strategy.agent_count", len(ec.Agents)),
			attribute.Int("strategy.max_concurrent", ec.Options.MaxConcurrentAgents),
		),
	)
	defer span.End()

	start := time.Now()
	outcomes := make([]Outcome, len(ec.Agents))

	limit := ec.Options.MaxConcurrentAgents
	if limit < 1 {
		limit = 1
	}
	g := newGate(limit, ec.Options)

	settled := make([]<-chan error, len(ec.Agents))
	for i, agent := range ec.Agents {
		i, agent := i, agent
		settled[i] = g.Run(ctx, func(ctx context.Context) error {
			outcomes[i] = InvokeWorker(ctx, p.timeouts, p.invoker, agent, ec, timeout.RunOptions{})
			return nil
		})
	}

	for i, ch := range settled {
		if err := <-ch; err != nil {
			// Admission failed (context cancelled while queued); the
			// worker never ran.
			outcomes[i] = Outcome{Agent: ec.Agents[i], Err: err, Files: ec.FilePaths()}
		}
	}

	result := &Result{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Successful {
			result.Metadata.Succeeded++
		} else {
			result.Metadata.Failed++
		}
	}
	result.Metadata.Elapsed = time.Since(start)

	span.SetAttributes(
		attribute.Int("strategy.success_count", result.Metadata.Succeeded),
		attribute.Int("strategy.error_count", result.Metadata.Failed),
		attribute.Int64("strategy.duration_ms", result.Metadata.Elapsed.Milliseconds()),
	)
	return result, nil
}
