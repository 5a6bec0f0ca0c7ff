// Package strategy implements the execution strategies that decide worker
// ordering, grouping and context propagation for a run. All strategies
// launch workers through the admission gate and the timeout controller;
// they differ only in scheduling and in how results flow forward.
package strategy

import (
	"context"
	"time"
)

// Position classes govern execution order and failure escalation.
type Position string

const (
	PositionPrimary    Position = "primary"
	PositionSecondary  Position = "secondary"
	PositionFallback   Position = "fallback"
	PositionSpecialist Position = "specialist"
)

// Roles recognized by the specialized strategy's grouping rules. Any other
// role is legal; it just lands in the general group.
const (
	RoleSecurity    = "security"
	RolePerformance = "performance"
	RoleCodeQuality = "code-quality"
)

// WorkerConfig identifies one analysis worker. Immutable once a run starts.
type WorkerConfig struct {
	// Provider is an opaque identifier of the backing capability.
	Provider string `yaml:"provider"`
	// Role is the analysis domain label.
	Role     string   `yaml:"role"`
	Position Position `yaml:"position"`
	// Priority orders fallback workers; higher runs first. Ignored for
	// other positions.
	Priority int `yaml:"priority,omitempty"`
	// FilePatterns restricts which input files this worker sees.
	FilePatterns []string       `yaml:"file_patterns,omitempty"`
	FocusAreas   []string       `yaml:"focus_areas,omitempty"`
	Parameters   map[string]any `yaml:"parameters,omitempty"`
}

// Options are the run-scoped execution options.
type Options struct {
	MaxConcurrentAgents int
	// LaunchRate throttles worker launches to this many per second when
	// positive, for capabilities that are rate limited upstream.
	LaunchRate  float64
	TokenBudget int
	Timeout     time.Duration
	Debug       bool
}

// File is one element of the shared analysis input.
type File struct {
	Path    string
	Content string
}

// TokenUsage is the opaque accounting signal a worker payload may carry.
type TokenUsage struct {
	Input  int
	Output int
	Total  int
}

// Payload is the opaque result a worker produces. Fields are whatever the
// worker computed; Cost and Tokens are accounting signals supplied by the
// invocation capability.
type Payload struct {
	Fields map[string]any
	Cost   float64
	Tokens *TokenUsage
}

// Outcome is the per-worker result record produced during a run.
type Outcome struct {
	Agent      WorkerConfig
	Result     *Payload
	Err        error
	Duration   time.Duration
	Successful bool
	// Files are the input paths this worker actually saw (the pattern-
	// filtered view for specialized workers).
	Files []string
}

// Invoker is the worker invocation capability. The ctx parameter is the
// cooperative cancellation token: the worker must observe it at its
// suspension points.
type Invoker func(ctx context.Context, agent WorkerConfig, ec *Context) (*Payload, error)

// Metadata summarizes one strategy execution.
type Metadata struct {
	Succeeded int
	Failed    int
	// Elapsed is wall-clock time for the whole strategy execution, not the
	// sum of individual worker durations.
	Elapsed time.Duration
	// Groups lists the specialization group names that ran, in order.
	Groups []string
}

// Result is what a strategy execution returns.
type Result struct {
	Outcomes []Outcome
	Metadata Metadata
}

// Strategy is the common execution contract.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, ec *Context) (*Result, error)
}

// Keys used in Context.Additional for forward propagation.
const (
	ContextPreviousResults    = "previousResults"
	ContextLastResult         = "lastResult"
	ContextExecutionStep      = "executionStep"
	ContextPrimaryResults     = "primaryResults"
	ContextAllPreviousResults = "allPreviousResults"
)
