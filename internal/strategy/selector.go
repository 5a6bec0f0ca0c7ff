package strategy

import (
	"errors"
	"fmt"

	"github.com/agentrix-dev/agentrix/internal/timeout"
)

// Name is the closed set of configurable strategies.
type Name string

const (
	NameParallel    Name = "parallel"
	NameSequential  Name = "sequential"
	NameSpecialized Name = "specialized"
	// NameHybrid is not part of the ForName map: hybrid is a composite of
	// the other three and is obtained through the Hybrid accessor.
	NameHybrid Name = "hybrid"
)

// ErrUnknownStrategy is returned for strategy names outside the closed set.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Selector maps configured strategy names to strategy instances sharing one
// invoker and one timeout controller.
type Selector struct {
	parallel    *Parallel
	sequential  *Sequential
	specialized *Specialized
	hybrid      *Hybrid
}

// NewSelector builds the selector and its strategy instances.
func NewSelector(invoker Invoker, timeouts *timeout.Controller) *Selector {
	parallel := NewParallel(invoker, timeouts)
	sequential := NewSequential(invoker, timeouts)
	specialized := NewSpecialized(invoker, timeouts)
	return &Selector{
		parallel:    parallel,
		sequential:  sequential,
		specialized: specialized,
		hybrid:      NewHybrid(sequential, parallel, specialized),
	}
}

// ForName resolves a configured strategy name. Unknown names fail
// explicitly; nothing ever silently defaults.
func (s *Selector) ForName(name Name) (Strategy, error) {
	switch name {
	case NameParallel:
		return s.parallel, nil
	case NameSequential:
		return s.sequential, nil
	case NameSpecialized:
		return s.specialized, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Hybrid returns the composite strategy.
func (s *Selector) Hybrid() *Hybrid {
	return s.hybrid
}
