package strategy

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/agentrix-dev/agentrix/internal/observability"
	"github.com/agentrix-dev/agentrix/internal/timeout"
)

// Specialized partitions workers into specialization groups and runs the
// groups one after another, with all workers inside a group executing
// concurrently. Grouping precedence: an explicit file-pattern match first,
// then a recognized role, otherwise the general group. A failure escaping a
// group marks every worker in that group as failed without aborting the
// remaining groups.
type Specialized struct {
	invoker  Invoker
	timeouts *timeout.Controller
}

// NewSpecialized creates the specialized strategy.
func NewSpecialized(invoker Invoker, timeouts *timeout.Controller) *Specialized {
	return &Specialized{invoker: invoker, timeouts: timeouts}
}

// Name returns the strategy identifier.
func (s *Specialized) Name() string { return "specialized" }

// group is one specialization group: its display name, its workers, and the
// file view each worker in the group receives.
type group struct {
	name   string
	agents []WorkerConfig
	files  []File
}

// Execute partitions the context's workers and runs group after group.
func (s *Specialized) Execute(ctx context.Context, ec *Context) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "strategy.specialized",
		trace.WithAttributes(attribute.Int("strategy.agent_count", len(ec.Agents))),
	)
	defer span.End()

	start := time.Now()
	groups := partition(ec.Agents, ec.Files)

	result := &Result{}
	for _, grp := range groups {
		result.Metadata.Groups = append(result.Metadata.Groups, grp.name)
		outcomes := s.executeGroup(ctx, ec, grp)
		result.Outcomes = append(result.Outcomes, outcomes...)
		for _, o := range outcomes {
			if o.Successful {
				result.Metadata.Succeeded++
			} else {
				result.Metadata.Failed++
			}
		}
	}

	result.Metadata.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.StringSlice("strategy.groups", result.Metadata.Groups),
		attribute.Int("strategy.success_count", result.Metadata.Succeeded),
		attribute.Int("strategy.error_count", result.Metadata.Failed),
	)
	return result, nil
}

// executeGroup runs all workers of one group concurrently. A group-level
// error (admission failure, cancelled context) fails the whole group.
func (s *Specialized) executeGroup(ctx context.Context, ec *Context, grp group) []Outcome {
	groupCtx := ec.WithFiles(grp.files)
	outcomes := make([]Outcome, len(grp.agents))

	g := newGate(len(grp.agents), ec.Options)
	eg, egCtx := errgroup.WithContext(ctx)
	for i, agent := range grp.agents {
		i, agent := i, agent
		eg.Go(func() error {
			if err := g.Acquire(egCtx); err != nil {
				return err
			}
			defer g.Release()
			outcomes[i] = InvokeWorker(egCtx, s.timeouts, s.invoker, agent, groupCtx, timeout.RunOptions{})
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		for i, agent := range grp.agents {
			outcomes[i] = Outcome{Agent: agent, Err: err, Files: groupCtx.FilePaths()}
		}
	}
	return outcomes
}

// partition assigns each worker to a specialization group, preserving the
// order in which groups first appear in the configuration.
func partition(agents []WorkerConfig, files []File) []group {
	var order []string
	byKey := make(map[string]*group)

	add := func(key, name string, agent WorkerConfig, view []File) {
		grp, ok := byKey[key]
		if !ok {
			grp = &group{name: name, files: view}
			byKey[key] = grp
			order = append(order, key)
		}
		grp.agents = append(grp.agents, agent)
	}

	for _, agent := range agents {
		switch {
		case len(agent.FilePatterns) > 0:
			view := matchFiles(files, agent.FilePatterns)
			name := groupNameFromPatterns(agent.FilePatterns)
			// Workers share a group only when they declare the same
			// pattern set.
			key := "patterns:" + strings.Join(agent.FilePatterns, ",")
			add(key, name, agent, view)

		case recognizedRole(agent.Role):
			add("role:"+agent.Role, agent.Role, agent, files)

		default:
			add("general", "general", agent, files)
		}
	}

	groups := make([]group, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups
}

func recognizedRole(role string) bool {
	switch role {
	case RoleSecurity, RolePerformance, RoleCodeQuality:
		return true
	}
	return false
}

// matchFiles returns the subset of files matching any of the glob patterns.
// Patterns are matched against the base name, falling back to the full path
// for patterns that contain a separator.
func matchFiles(files []File, patterns []string) []File {
	var view []File
	for _, f := range files {
		for _, pattern := range patterns {
			target := filepath.Base(f.Path)
			if strings.ContainsRune(pattern, filepath.Separator) || strings.Contains(pattern, "/") {
				target = f.Path
			}
			if ok, err := filepath.Match(pattern, target); err == nil && ok {
				view = append(view, f)
				break
			}
		}
	}
	return view
}

// groupNameFromPatterns derives a human-readable group label from keyword
// matching against the pattern strings. The label is used for logging and
// metadata only; it plays no part in scheduling.
func groupNameFromPatterns(patterns []string) string {
	joined := strings.ToLower(strings.Join(patterns, " "))
	switch {
	case strings.Contains(joined, "test") || strings.Contains(joined, "spec"):
		return "testing"
	case strings.Contains(joined, "config") || strings.Contains(joined, "yml") || strings.Contains(joined, "json"):
		return "configuration"
	case strings.Contains(joined, "docker") || strings.Contains(joined, "ci") || strings.Contains(joined, "cd"):
		return "devops"
	case strings.Contains(joined, "frontend") || strings.Contains(joined, "ui") || strings.Contains(joined, "css"):
		return "frontend"
	case strings.Contains(joined, "api") || strings.Contains(joined, "backend") || strings.Contains(joined, "server"):
		return "backend"
	default:
		return "file-specific"
	}
}
