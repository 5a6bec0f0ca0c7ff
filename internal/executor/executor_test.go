package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrix-dev/agentrix/internal/strategy"
	"github.com/agentrix-dev/agentrix/internal/timeout"
)

func baseConfig() RunConfig {
	return RunConfig{
		Name:     "review",
		Strategy: strategy.NameParallel,
		Agents: []strategy.WorkerConfig{
			{Provider: "p1", Role: "review", Position: strategy.PositionPrimary},
			{Provider: "s1", Role: "review", Position: strategy.PositionSecondary},
		},
		FallbackEnabled: true,
		FallbackAgents: []strategy.WorkerConfig{
			{Provider: "f1", Role: "review", Position: strategy.PositionFallback, Priority: 1},
		},
		MaxConcurrentAgents: 2,
		FallbackTimeout:     200 * time.Millisecond,
	}
}

func okInvoker(fields map[string]any) strategy.Invoker {
	return func(ctx context.Context, agent strategy.WorkerConfig, ec *strategy.Context) (*strategy.Payload, error) {
		return &strategy.Payload{Fields: fields}, nil
	}
}

func TestNew_ConfigValidation(t *testing.T) {
	invoker := okInvoker(nil)

	t.Run("no primary agent", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Agents = []strategy.WorkerConfig{
			{Provider: "s1", Role: "review", Position: strategy.PositionSecondary},
		}
		_, err := New(cfg, invoker)
		var ce *ConfigError
		require.ErrorAs(t, err, &ce)
	})

	t.Run("non-positive concurrency", func(t *testing.T) {
		cfg := baseConfig()
		cfg.MaxConcurrentAgents = 0
		_, err := New(cfg, invoker)
		var ce *ConfigError
		require.ErrorAs(t, err, &ce)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Strategy = "adaptive"
		_, err := New(cfg, invoker)
		var ce *ConfigError
		require.ErrorAs(t, err, &ce)
	})

	t.Run("nil invoker", func(t *testing.T) {
		_, err := New(baseConfig(), nil)
		var ce *ConfigError
		require.ErrorAs(t, err, &ce)
	})

	t.Run("valid", func(t *testing.T) {
		_, err := New(baseConfig(), invoker)
		require.NoError(t, err)
	})
}

func TestExecute_AllPrimariesSucceed(t *testing.T) {
	fallbackInvoked := false
	invoker := func(ctx context.Context, agent strategy.WorkerConfig, ec *strategy.Context) (*strategy.Payload, error) {
		if agent.Position == strategy.PositionFallback {
			fallbackInvoked = true
		}
		return &strategy.Payload{Cost: 0.01}, nil
	}

	e, err := New(baseConfig(), invoker)
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), nil, strategy.Options{})
	require.NoError(t, err)

	assert.True(t, result.Successful)
	assert.False(t, result.UsedFallback)
	assert.False(t, fallbackInvoked, "fallback must not run when primaries succeed")
	assert.ElementsMatch(t, []string{"primary", "secondary-0"}, slotKeys(result))
	assert.NotEmpty(t, result.AnalysisID)
	assert.InDelta(t, 0.02, result.TotalCost, 1e-9)
}

func TestExecute_PrimaryFailureTriggersFallback(t *testing.T) {
	invoker := func(ctx context.Context, agent strategy.WorkerConfig, ec *strategy.Context) (*strategy.Payload, error) {
		if agent.Provider == "p1" {
			return nil, errors.New("provider rejected the request")
		}
		return &strategy.Payload{}, nil
	}

	e, err := New(baseConfig(), invoker)
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), nil, strategy.Options{})
	require.NoError(t, err)

	assert.True(t, result.Successful, "fallback success must make the run successful")
	assert.True(t, result.UsedFallback)
	assert.ElementsMatch(t, []string{"primary", "secondary-0", "fallback-0"}, slotKeys(result))
	assert.False(t, result.Results["primary"].Successful)
	assert.True(t, result.Results["fallback-0"].Successful)
}

func TestExecute_FallbackPriorityOrderAndFirstSuccessWins(t *testing.T) {
	var mu sync.Mutex
	var fallbackOrder []string

	invoker := func(ctx context.Context, agent strategy.WorkerConfig, ec *strategy.Context) (*strategy.Payload, error) {
		switch agent.Position {
		case strategy.PositionFallback:
			mu.Lock()
			fallbackOrder = append(fallbackOrder, agent.Provider)
			mu.Unlock()
			if agent.Provider == "f-mid" {
				return &strategy.Payload{}, nil
			}
			return nil, errors.New("fallback failed")
		default:
			return nil, errors.New("primary down")
		}
	}

	cfg := baseConfig()
	cfg.Agents = cfg.Agents[:1] // primary only
	cfg.FallbackAgents = []strategy.WorkerConfig{
		{Provider: "f-low", Role: "review", Position: strategy.PositionFallback, Priority: 1},
		{Provider: "f-high", Role: "review", Position: strategy.PositionFallback, Priority: 9},
		{Provider: "f-mid", Role: "review", Position: strategy.PositionFallback, Priority: 5},
	}

	e, err := New(cfg, invoker)
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), nil, strategy.Options{})
	require.NoError(t, err)

	// Strictly descending priority, stopping at the first success.
	assert.Equal(t, []string{"f-high", "f-mid"}, fallbackOrder)
	assert.True(t, result.Successful)

	// Slot indices follow configuration order, not attempt order.
	assert.Contains(t, result.Results, "fallback-1") // f-high
	assert.Contains(t, result.Results, "fallback-2") // f-mid
	assert.NotContains(t, result.Results, "fallback-0", "f-low was never attempted")
}

func TestExecute_FallbackDisabled(t *testing.T) {
	invoker := func(ctx context.Context, agent strategy.WorkerConfig, ec *strategy.Context) (*strategy.Payload, error) {
		if agent.Position == strategy.PositionFallback {
			t.Error("fallback invoked while disabled")
		}
		return nil, errors.New("down")
	}

	cfg := baseConfig()
	cfg.FallbackEnabled = false

	e, err := New(cfg, invoker)
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), nil, strategy.Options{})
	require.ErrorIs(t, err, ErrAllWorkersFailed)
	require.NotNil(t, result, "result must still carry per-slot outcomes")
	assert.False(t, result.Successful)
	assert.False(t, result.UsedFallback)
}

func TestExecute_SequentialAbortPropagates(t *testing.T) {
	secondaryInvoked := false
	invoker := func(ctx context.Context, agent strategy.WorkerConfig, ec *strategy.Context) (*strategy.Payload, error) {
		if agent.Position == strategy.PositionPrimary {
			return nil, errors.New("primary down")
		}
		secondaryInvoked = true
		return &strategy.Payload{}, nil
	}

	cfg := baseConfig()
	cfg.Strategy = strategy.NameSequential

	e, err := New(cfg, invoker)
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), nil, strategy.Options{Debug: false})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAllWorkersFailed)
	assert.False(t, secondaryInvoked, "secondary must never run after the abort")
	if result != nil {
		assert.Contains(t, result.Results, "primary")
	}
}

func TestExecute_CombineResultsUnionsListFields(t *testing.T) {
	invoker := func(ctx context.Context, agent strategy.WorkerConfig, ec *strategy.Context) (*strategy.Payload, error) {
		return &strategy.Payload{
			Fields: map[string]any{
				"findings": []any{agent.Provider + "-finding"},
				"summary":  agent.Provider,
			},
		}, nil
	}

	cfg := baseConfig()
	cfg.CombineResults = true

	e, err := New(cfg, invoker)
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), nil, strategy.Options{})
	require.NoError(t, err)
	require.NotNil(t, result.Combined)

	findings, ok := result.Combined["findings"].([]any)
	require.True(t, ok, "list fields must be concatenated, got %T", result.Combined["findings"])
	assert.ElementsMatch(t, []any{"p1-finding", "s1-finding"}, findings)
	assert.Contains(t, result.Combined, "summary")
}

func TestExecute_CombineScalarsFollowConfigurationOrder(t *testing.T) {
	invoker := func(ctx context.Context, agent strategy.WorkerConfig, ec *strategy.Context) (*strategy.Payload, error) {
		switch agent.Provider {
		case "p1":
			return nil, errors.New("primary down")
		default:
			return &strategy.Payload{Fields: map[string]any{"verdict": "from-" + agent.Provider}}, nil
		}
	}

	cfg := baseConfig()
	cfg.CombineResults = true

	e, err := New(cfg, invoker)
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), nil, strategy.Options{})
	require.NoError(t, err)
	require.True(t, result.UsedFallback, "primary failure must trigger the fallback")

	// Both the secondary and the fallback succeeded with a conflicting
	// scalar; the earlier-configured secondary wins, even though its slot
	// key sorts after "fallback-0".
	assert.Equal(t, "from-s1", result.Combined["verdict"])
}

func TestExecute_CombinedMirrorsPrimaryWhenDisabled(t *testing.T) {
	invoker := func(ctx context.Context, agent strategy.WorkerConfig, ec *strategy.Context) (*strategy.Payload, error) {
		return &strategy.Payload{Fields: map[string]any{"from": agent.Provider}}, nil
	}

	e, err := New(baseConfig(), invoker)
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), nil, strategy.Options{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"from": "p1"}, result.Combined)
}

func TestExecute_IdempotentSlotKeys(t *testing.T) {
	invoker := func(ctx context.Context, agent strategy.WorkerConfig, ec *strategy.Context) (*strategy.Payload, error) {
		if agent.Provider == "s1" {
			return nil, errors.New("deterministic failure")
		}
		return &strategy.Payload{}, nil
	}

	e, err := New(baseConfig(), invoker)
	require.NoError(t, err)

	first, err := e.Execute(context.Background(), nil, strategy.Options{})
	require.NoError(t, err)
	second, err := e.Execute(context.Background(), nil, strategy.Options{})
	require.NoError(t, err)

	assert.ElementsMatch(t, slotKeys(first), slotKeys(second))
	assert.NotEqual(t, first.AnalysisID, second.AnalysisID, "each run gets a fresh analysis id")
	for slot, outcome := range first.Results {
		assert.Equal(t, outcome.Successful, second.Results[slot].Successful, "slot %s", slot)
	}
}

func TestExecute_HybridStrategyResolves(t *testing.T) {
	invoker := okInvoker(nil)

	cfg := baseConfig()
	cfg.Strategy = strategy.NameHybrid
	cfg.Agents = append(cfg.Agents, strategy.WorkerConfig{
		Provider: "x1", Role: strategy.RoleSecurity, Position: strategy.PositionSpecialist,
	})

	e, err := New(cfg, invoker)
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), nil, strategy.Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"primary", "secondary-0", "specialist-0"}, slotKeys(result))
}

func TestExecute_WorkerTimeoutRecordedPerSlot(t *testing.T) {
	invoker := func(ctx context.Context, agent strategy.WorkerConfig, ec *strategy.Context) (*strategy.Payload, error) {
		if agent.Provider == "s1" {
			select {
			case <-time.After(time.Second):
				return &strategy.Payload{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &strategy.Payload{}, nil
	}

	e, err := New(baseConfig(), invoker, WithTimeoutConfig(timeout.Config{
		Default: 50 * time.Millisecond,
		Min:     10 * time.Millisecond,
		Max:     100 * time.Millisecond,
	}))
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), nil, strategy.Options{})
	require.NoError(t, err, "primary succeeded; the run must not fail")

	var te *timeout.TimeoutError
	require.ErrorAs(t, result.Results["secondary-0"].Err, &te)
	assert.True(t, result.Successful)
}

func slotKeys(result *RunResult) []string {
	keys := make([]string, 0, len(result.Results))
	for k := range result.Results {
		keys = append(keys, k)
	}
	return keys
}
