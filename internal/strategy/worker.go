package strategy

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/agentrix-dev/agentrix/internal/gate"
	"github.com/agentrix-dev/agentrix/internal/timeout"
	"github.com/agentrix-dev/agentrix/pkg/observability"
)

// InvokeWorker runs one worker through the timeout controller and folds the
// controller outcome into a per-worker record. Worker failures never escape
// here; they are isolated into the Outcome's Err field. The orchestrator
// uses the same path for fallback attempts, with fallback run options.
func InvokeWorker(ctx context.Context, tc *timeout.Controller, invoker Invoker, agent WorkerConfig, ec *Context, opts timeout.RunOptions) Outcome {
	if opts.Timeout <= 0 {
		opts.Timeout = ec.Options.Timeout
	}

	observability.WorkerStarted()
	defer observability.WorkerFinished()

	res := tc.Run(ctx, operationID(agent), func(ctx context.Context) (any, error) {
		payload, err := invoker(ctx, agent, ec)
		if err != nil {
			return nil, err
		}
		return payload, nil
	}, opts)

	outcome := Outcome{
		Agent:    agent,
		Duration: res.ExecutionTime,
		Files:    ec.FilePaths(),
	}
	if res.Completed {
		if payload, ok := res.Value.(*Payload); ok {
			outcome.Result = payload
		}
		outcome.Successful = true
	} else {
		outcome.Err = res.Err
	}

	observability.RecordWorker(agent.Role, string(agent.Position), outcome.Duration, outcome.Successful)
	return outcome
}

// newGate builds the admission gate for one worker batch, applying the
// configured launch rate when one is set.
func newGate(limit int, opts Options) *gate.Gate {
	if opts.LaunchRate > 0 {
		return gate.New(limit, gate.WithRateLimit(rate.NewLimiter(rate.Limit(opts.LaunchRate), 1)))
	}
	return gate.New(limit)
}

func operationID(agent WorkerConfig) string {
	return fmt.Sprintf("%s/%s/%s", agent.Position, agent.Role, agent.Provider)
}

// splitByPosition partitions workers by position class, preserving
// configuration order within each class.
func splitByPosition(agents []WorkerConfig) map[Position][]WorkerConfig {
	byPosition := make(map[Position][]WorkerConfig)
	for _, agent := range agents {
		byPosition[agent.Position] = append(byPosition[agent.Position], agent)
	}
	return byPosition
}
