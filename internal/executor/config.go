package executor

import (
	"fmt"
	"time"

	"github.com/agentrix-dev/agentrix/internal/strategy"
)

// ConfigError reports an invalid run configuration. Always fatal at
// construction; never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid run configuration: %s", e.Reason)
}

// RunConfig is a named run: the primary worker set, the fallback set, the
// strategy, and the execution options shared by every worker. Built once by
// the configuration factory and validated before any execution.
type RunConfig struct {
	Name     string
	Strategy strategy.Name
	Agents   []strategy.WorkerConfig

	FallbackEnabled bool
	FallbackAgents  []strategy.WorkerConfig
	FallbackTimeout time.Duration

	MaxConcurrentAgents int
	CombineResults      bool
}

// Validate enforces the construction-time invariants: at least one primary
// worker, positive concurrency, a known strategy.
func (c *RunConfig) Validate() error {
	switch c.Strategy {
	case strategy.NameParallel, strategy.NameSequential, strategy.NameSpecialized, strategy.NameHybrid:
	default:
		return &ConfigError{Reason: fmt.Sprintf("unknown strategy %q", c.Strategy)}
	}

	if c.MaxConcurrentAgents < 1 {
		return &ConfigError{Reason: fmt.Sprintf("max concurrent agents must be >= 1, got %d", c.MaxConcurrentAgents)}
	}

	hasPrimary := false
	for _, agent := range c.Agents {
		if agent.Position == strategy.PositionPrimary {
			hasPrimary = true
			break
		}
	}
	if !hasPrimary {
		return &ConfigError{Reason: "at least one primary agent is required"}
	}

	for _, agent := range c.FallbackAgents {
		if agent.Position != strategy.PositionFallback {
			return &ConfigError{Reason: fmt.Sprintf("fallback agent %s has position %q", agent.Provider, agent.Position)}
		}
	}
	return nil
}
