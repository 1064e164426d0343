// Package saga records undo steps for multi-step remote operations so a
// failed operation can release what it already created.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type step struct {
	name string
	undo func(ctx context.Context) error
}

// Saga is a stack of compensating actions.
type Saga struct {
	mu    sync.Mutex
	steps []step
}

func New() *Saga {
	return &Saga{}
}

// Push records undo for a step that has completed.
func (s *Saga) Push(name string, undo func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{name: name, undo: undo})
}

// Len returns the number of recorded steps.
func (s *Saga) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// Compensate runs every undo in reverse order and empties the stack. A failing
// undo does not stop the others; all failures are joined in the result.
func (s *Saga) Compensate(ctx context.Context) error {
	s.mu.Lock()
	steps := s.steps
	s.steps = nil
	s.mu.Unlock()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		st := steps[i]
		err := st.undo(ctx)
		if err != nil {
			slog.Error("failed to compensate step", "error", err, "step", st.name)
			errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
			continue
		}
		slog.Debug("compensated step", "step", st.name)
	}
	return errors.Join(errs...)
}

// Forget drops all recorded steps without running them.
func (s *Saga) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = nil
}
