package command

import "sync/atomic"

// DependentSet is an ordered list of commands sharing a primary command's
// progress scopes. Duplicates are kept. The set does not own its members.
type DependentSet struct {
	cmds []Commander
}

// Add appends c. A nil c is ignored.
func (d *DependentSet) Add(c Commander) {
	if c == nil {
		return
	}
	d.cmds = append(d.cmds, c)
}

// Len returns the number of registered dependents.
func (d *DependentSet) Len() int {
	if d == nil {
		return 0
	}
	return len(d.cmds)
}

// All returns a copy of the dependents in registration order.
func (d *DependentSet) All() []Commander {
	if d == nil {
		return nil
	}
	return append([]Commander(nil), d.cmds...)
}

// DisableAll disables every dependent.
func (d *DependentSet) DisableAll() {
	for _, c := range d.All() {
		c.Disable()
	}
}

// EnableAll enables every dependent.
func (d *DependentSet) EnableAll() {
	for _, c := range d.All() {
		c.Enable()
	}
}

// ScopeOption configures a ProgressScope.
type ScopeOption func(*ProgressScope)

// WithoutDisable makes a scope signal progress only, leaving commands
// enabled.
func WithoutDisable() ScopeOption {
	return func(s *ProgressScope) { s.shouldDisable = false }
}

// ProgressScope couples a progress key with the disabled state of a command
// and its dependents. The enter transition happens in NewProgressScope; the
// inverse happens exactly once, on the first Close.
type ProgressScope struct {
	primary       Commander
	dependents    *DependentSet
	tracker       ProgressTracker
	key           any
	shouldDisable bool
	closed        atomic.Bool
}

// NewProgressScope starts progress for key on tracker (if non-nil) and
// disables primary and every dependent. deps is borrowed, not copied.
func NewProgressScope(primary Commander, deps *DependentSet, tracker ProgressTracker, key any, opts ...ScopeOption) *ProgressScope {
	s := &ProgressScope{
		primary:       primary,
		dependents:    deps,
		tracker:       tracker,
		key:           key,
		shouldDisable: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.enter()
	return s
}

func (s *ProgressScope) enter() {
	if s.tracker != nil {
		s.tracker.StartIndeterminateProgress(s.key)
	}
	if s.shouldDisable {
		s.dependents.DisableAll()
		s.primary.Disable()
	}
}

// Key returns the scope's progress key.
func (s *ProgressScope) Key() any {
	return s.key
}

// Close stops progress and re-enables the commands. Only the first call has
// an effect. The error is always nil; Close returns one to satisfy
// io.Closer.
func (s *ProgressScope) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.tracker != nil {
		s.tracker.StopIndeterminateProgress(s.key)
	}
	if s.shouldDisable {
		s.dependents.EnableAll()
		s.primary.Enable()
	}
	return nil
}
