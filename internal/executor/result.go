package executor

import (
	"fmt"
	"reflect"
	"time"

	"github.com/agentrix-dev/agentrix/internal/strategy"
)

// RunResult is the aggregate outcome of one run. Created fresh per run; the
// executor holds no cross-run state.
type RunResult struct {
	AnalysisID string
	Strategy   strategy.Name
	Config     RunConfig
	// Results is keyed by stable slot id: "primary", "secondary-{i}",
	// "fallback-{i}", "specialist-{i}" with i zero-based within the
	// position class, in configuration order.
	Results      map[string]strategy.Outcome
	Successful   bool
	Duration     time.Duration
	TotalCost    float64
	UsedFallback bool
	Combined     map[string]any
}

// slotAssigner hands out stable slot ids for worker outcomes. Slots are
// derived from the configuration order, not from settlement order, so
// re-running the same config yields identical keys.
type slotAssigner struct {
	agents []strategy.WorkerConfig
	slots  []string
	used   []bool
}

func newSlotAssigner(agents []strategy.WorkerConfig) *slotAssigner {
	a := &slotAssigner{
		agents: agents,
		slots:  make([]string, len(agents)),
		used:   make([]bool, len(agents)),
	}
	counts := map[strategy.Position]int{}
	for i, agent := range agents {
		idx := counts[agent.Position]
		counts[agent.Position]++
		a.slots[i] = slotID(agent.Position, idx)
	}
	return a
}

// slotID formats one slot key. The first primary gets the bare "primary"
// key; additional primaries are indexed like the other classes.
func slotID(position strategy.Position, idx int) string {
	if position == strategy.PositionPrimary && idx == 0 {
		return "primary"
	}
	return fmt.Sprintf("%s-%d", position, idx)
}

// slotFor matches an outcome back to its configured agent. Strategies may
// reorder outcomes (groups, phases), so matching goes by identity fields
// with an occupancy flag for duplicate configurations.
func (a *slotAssigner) slotFor(outcome strategy.Outcome) string {
	for i, agent := range a.agents {
		if a.used[i] {
			continue
		}
		if agent.Provider == outcome.Agent.Provider &&
			agent.Role == outcome.Agent.Role &&
			agent.Position == outcome.Agent.Position {
			a.used[i] = true
			return a.slots[i]
		}
	}
	// Unknown agent; key it by identity so the outcome is never dropped.
	return fmt.Sprintf("%s-%s", outcome.Agent.Position, outcome.Agent.Provider)
}

// combinePayloads unions the successful outcomes' payload fields.
// List-valued fields are concatenated; scalar fields keep the value from
// the earliest successful outcome.
func combinePayloads(outcomes []strategy.Outcome) map[string]any {
	combined := map[string]any{}
	for _, outcome := range outcomes {
		if !outcome.Successful || outcome.Result == nil {
			continue
		}
		for key, value := range outcome.Result.Fields {
			existing, ok := combined[key]
			if !ok {
				combined[key] = value
				continue
			}
			if merged, ok := concatLists(existing, value); ok {
				combined[key] = merged
			}
		}
	}
	return combined
}

// concatLists concatenates two slice values of any element type into a
// []any. Non-slice values report false.
func concatLists(a, b any) (any, bool) {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() || va.Kind() != reflect.Slice || vb.Kind() != reflect.Slice {
		return nil, false
	}
	merged := make([]any, 0, va.Len()+vb.Len())
	for i := 0; i < va.Len(); i++ {
		merged = append(merged, va.Index(i).Interface())
	}
	for i := 0; i < vb.Len(); i++ {
		merged = append(merged, vb.Index(i).Interface())
	}
	return merged, true
}
