// Package config is the run-configuration factory: it loads named run
// configurations from YAML, applies defaults, validates them against the
// executor's construction rules, and can synthesize fallback agents from a
// primary set.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentrix-dev/agentrix/internal/executor"
	"github.com/agentrix-dev/agentrix/internal/strategy"
)

// Defaults applied after unmarshal.
const (
	DefaultMaxConcurrentAgents = 3
	DefaultFallbackTimeout     = 45 * time.Second
	DefaultWorkerTimeout       = 30 * time.Second
)

// Duration wraps time.Duration for YAML scalars like "45s".
type Duration struct{ time.Duration }

// UnmarshalText parses Go duration syntax.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// File is the top-level configuration file.
type File struct {
	Run     RunDef     `yaml:"run"`
	Options OptionsDef `yaml:"options,omitempty"`
}

// RunDef describes one named run.
type RunDef struct {
	Name     string                  `yaml:"name"`
	Strategy string                  `yaml:"strategy"`
	Agents   []strategy.WorkerConfig `yaml:"agents"`

	FallbackEnabled bool                    `yaml:"fallback_enabled"`
	FallbackAgents  []strategy.WorkerConfig `yaml:"fallback_agents,omitempty"`
	FallbackTimeout Duration                `yaml:"fallback_timeout,omitempty"`

	MaxConcurrentAgents int  `yaml:"max_concurrent_agents,omitempty"`
	CombineResults      bool `yaml:"combine_results"`
}

// OptionsDef holds the run-scoped execution options.
type OptionsDef struct {
	TokenBudget int `yaml:"token_budget,omitempty"`
	// LaunchRate is worker launches per second; zero means unthrottled.
	LaunchRate float64  `yaml:"launch_rate,omitempty"`
	Timeout    Duration `yaml:"timeout,omitempty"`
	Debug      bool     `yaml:"debug,omitempty"`
}

// Load reads and validates a run configuration from a YAML file.
func Load(path string) (*executor.RunConfig, strategy.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, strategy.Options{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a validated run configuration from YAML bytes.
func Parse(data []byte) (*executor.RunConfig, strategy.Options, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, strategy.Options{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := executor.RunConfig{
		Name:                file.Run.Name,
		Strategy:            strategy.Name(file.Run.Strategy),
		Agents:              file.Run.Agents,
		FallbackEnabled:     file.Run.FallbackEnabled,
		FallbackAgents:      file.Run.FallbackAgents,
		FallbackTimeout:     file.Run.FallbackTimeout.Duration,
		MaxConcurrentAgents: file.Run.MaxConcurrentAgents,
		CombineResults:      file.Run.CombineResults,
	}

	// Apply defaults.
	if cfg.MaxConcurrentAgents == 0 {
		cfg.MaxConcurrentAgents = DefaultMaxConcurrentAgents
	}
	if cfg.FallbackTimeout == 0 {
		cfg.FallbackTimeout = DefaultFallbackTimeout
	}
	for i := range cfg.Agents {
		if cfg.Agents[i].Position == "" {
			cfg.Agents[i].Position = strategy.PositionSecondary
		}
	}
	for i := range cfg.FallbackAgents {
		if cfg.FallbackAgents[i].Position == "" {
			cfg.FallbackAgents[i].Position = strategy.PositionFallback
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, strategy.Options{}, err
	}

	opts := strategy.Options{
		MaxConcurrentAgents: cfg.MaxConcurrentAgents,
		LaunchRate:          file.Options.LaunchRate,
		TokenBudget:         file.Options.TokenBudget,
		Timeout:             file.Options.Timeout.Duration,
		Debug:               file.Options.Debug,
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultWorkerTimeout
	}
	return &cfg, opts, nil
}

// SynthesizeFallbacks derives fallback agents from the primary set: one
// fallback per distinct role, carrying the role's parameters, with
// priorities descending in configuration order so earlier-configured roles
// are tried first.
func SynthesizeFallbacks(agents []strategy.WorkerConfig, provider string) []strategy.WorkerConfig {
	seen := map[string]bool{}
	var fallbacks []strategy.WorkerConfig

	priority := len(agents)
	for _, agent := range agents {
		if agent.Position != strategy.PositionPrimary && agent.Position != strategy.PositionSecondary {
			continue
		}
		if seen[agent.Role] {
			continue
		}
		seen[agent.Role] = true

		fallbacks = append(fallbacks, strategy.WorkerConfig{
			Provider:   provider,
			Role:       agent.Role,
			Position:   strategy.PositionFallback,
			Priority:   priority,
			FocusAreas: agent.FocusAreas,
			Parameters: agent.Parameters,
		})
		priority--
	}
	return fallbacks
}
