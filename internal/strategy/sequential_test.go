package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestSequential_OrderAndContextFolding(t *testing.T) {
	var mu sync.Mutex
	var order []string
	var steps []int
	var lastSeen []any

	invoker := func(ctx context.Context, agent WorkerConfig, ec *Context) (*Payload, error) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, agent.Provider)
		steps = append(steps, ec.Additional[ContextExecutionStep].(int))
		lastSeen = append(lastSeen, ec.Additional[ContextLastResult])
		return &Payload{Fields: map[string]any{"from": agent.Provider}}, nil
	}

	s := NewSequential(invoker, testController())
	ec := NewContext(nil, workers(PositionPrimary, "a1", "a2", "a3"), Options{})

	result, err := s.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(result.Outcomes))
	}

	for i, want := range []string{"a1", "a2", "a3"} {
		if order[i] != want {
			t.Fatalf("execution order %v, want a1,a2,a3", order)
		}
	}
	for i, step := range steps {
		if step != i+1 {
			t.Errorf("worker %d saw executionStep %d, want %d", i+1, step, i+1)
		}
	}

	// The first worker must not see any previous result; later workers see
	// exactly the preceding worker's outcome, never a later one.
	if lastSeen[0] != nil {
		t.Errorf("first worker saw a lastResult: %v", lastSeen[0])
	}
	for i := 1; i < 3; i++ {
		last, ok := lastSeen[i].(Outcome)
		if !ok {
			t.Fatalf("worker %d missing lastResult", i+1)
		}
		if last.Agent.Provider != order[i-1] {
			t.Errorf("worker %d saw lastResult from %s, want %s", i+1, last.Agent.Provider, order[i-1])
		}
	}

	// The original run context must be untouched (copy-on-extend).
	if len(ec.Additional) != 0 {
		t.Errorf("run context mutated: %v", ec.Additional)
	}
}

func TestSequential_PrimaryFailureStopsRun(t *testing.T) {
	errBoom := errors.New("boom")
	secondaryInvoked := false

	invoker := func(ctx context.Context, agent WorkerConfig, ec *Context) (*Payload, error) {
		if agent.Position == PositionPrimary {
			return nil, errBoom
		}
		secondaryInvoked = true
		return &Payload{}, nil
	}

	agents := []WorkerConfig{
		{Provider: "p1", Role: "review", Position: PositionPrimary},
		{Provider: "s1", Role: "review", Position: PositionSecondary},
	}
	s := NewSequential(invoker, testController())

	result, err := s.Execute(context.Background(), NewContext(nil, agents, Options{Debug: false}))
	if err == nil {
		t.Fatal("expected the primary failure to propagate")
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("expected wrapped worker error, got %v", err)
	}
	if secondaryInvoked {
		t.Error("secondary worker ran after the primary failure")
	}
	if len(result.Outcomes) != 1 {
		t.Errorf("expected only the failed primary outcome, got %d", len(result.Outcomes))
	}
}

func TestSequential_DebugModeContinuesPastFailure(t *testing.T) {
	errBoom := errors.New("boom")
	invoker := func(ctx context.Context, agent WorkerConfig, ec *Context) (*Payload, error) {
		if agent.Position == PositionPrimary {
			return nil, errBoom
		}
		return &Payload{}, nil
	}

	agents := []WorkerConfig{
		{Provider: "p1", Role: "review", Position: PositionPrimary},
		{Provider: "s1", Role: "review", Position: PositionSecondary},
	}
	s := NewSequential(invoker, testController())

	result, err := s.Execute(context.Background(), NewContext(nil, agents, Options{Debug: true}))
	if err != nil {
		t.Fatalf("debug mode must not abort: %v", err)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(result.Outcomes))
	}
	if result.Metadata.Succeeded != 1 || result.Metadata.Failed != 1 {
		t.Errorf("unexpected metadata: %+v", result.Metadata)
	}
}

func TestSequential_NonPrimaryFailureContinues(t *testing.T) {
	invoker := func(ctx context.Context, agent WorkerConfig, ec *Context) (*Payload, error) {
		if agent.Provider == "s1" {
			return nil, errors.New("boom")
		}
		return &Payload{}, nil
	}

	agents := []WorkerConfig{
		{Provider: "p1", Role: "review", Position: PositionPrimary},
		{Provider: "s1", Role: "review", Position: PositionSecondary},
		{Provider: "s2", Role: "review", Position: PositionSecondary},
	}
	s := NewSequential(invoker, testController())

	result, err := s.Execute(context.Background(), NewContext(nil, agents, Options{}))
	if err != nil {
		t.Fatalf("secondary failure must not abort: %v", err)
	}
	if len(result.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(result.Outcomes))
	}
	if !result.Outcomes[2].Successful {
		t.Error("worker after the failed secondary did not run")
	}
}
