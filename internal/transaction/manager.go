package transaction

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// UndoFunc reverses one completed step
type UndoFunc func() error

type step struct {
	name string
	undo UndoFunc
}

// Manager records undo steps for an operation that mutates the store and
// replays them newest first when the operation fails.
type Manager struct {
	mu     sync.Mutex
	steps  []step
	logger *zerolog.Logger
}

// NewManager creates a manager; logger may be nil
func NewManager(logger *zerolog.Logger) *Manager {
	return &Manager{logger: logger}
}

// Add registers the undo action for a step that has just completed
func (m *Manager) Add(name string, undo UndoFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, undo: undo})
}

// Len returns the number of pending undo steps
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

// Rollback runs every pending undo step in reverse order. All steps run even
// when some fail; their errors are joined.
func (m *Manager) Rollback() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.steps) == 0 {
		return nil
	}
	if m.logger != nil {
		m.logger.Debug().Int("steps", len(m.steps)).Msg("rolling back")
	}

	var errs []error
	for i := len(m.steps) - 1; i >= 0; i-- {
		s := m.steps[i]
		if err := s.undo(); err != nil {
			errs = append(errs, fmt.Errorf("undo %s: %w", s.name, err))
			if m.logger != nil {
				m.logger.Error().Err(err).Str("step", s.name).Msg("rollback step failed")
			}
		}
	}
	m.steps = nil

	return errors.Join(errs...)
}

// Commit drops all pending undo steps
func (m *Manager) Commit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = nil
}
