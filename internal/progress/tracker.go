// Package progress tracks indeterminate progress sources for UI indicators.
package progress

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/mattjoyce/relaycmd/internal/events"
)

// Tracker records which progress keys are active. Keys are compared with
// ==; keys whose type is not comparable are never tracked. It is safe for
// concurrent use.
type Tracker struct {
	mu     sync.Mutex
	active []any
	hub    *events.Hub
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithHub publishes progress.started and progress.stopped events to hub.
func WithHub(hub *events.Hub) Option {
	return func(t *Tracker) { t.hub = hub }
}

// NewTracker creates an empty Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartIndeterminateProgress marks key active. Starting an active key again
// has no effect, and so does starting a key that cannot be compared.
func (t *Tracker) StartIndeterminateProgress(key any) {
	if !isComparable(key) {
		return
	}
	if t.add(key) {
		t.hub.Publish(events.ProgressStarted, keyString(key), nil)
	}
}

// StopIndeterminateProgress marks key inactive. Stopping a key that is not
// active is a no-op.
func (t *Tracker) StopIndeterminateProgress(key any) {
	if t.remove(key) {
		t.hub.Publish(events.ProgressStopped, keyString(key), nil)
	}
}

func (t *Tracker) add(key any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.indexLocked(key) >= 0 {
		return false
	}
	t.active = append(t.active, key)
	return true
}

func (t *Tracker) remove(key any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexLocked(key)
	if i < 0 {
		return false
	}
	t.active = append(t.active[:i], t.active[i+1:]...)
	return true
}

// IsActive reports whether key is currently active.
func (t *Tracker) IsActive(key any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.indexLocked(key) >= 0
}

// IndeterminateProgressActive reports whether any indeterminate progress is
// active.
func (t *Tracker) IndeterminateProgressActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active) > 0
}

// AnyProgressActive reports whether any progress of any kind is active.
// Only indeterminate progress is tracked, so it matches
// IndeterminateProgressActive.
func (t *Tracker) AnyProgressActive() bool {
	return t.IndeterminateProgressActive()
}

// ActiveIndeterminateProgresses returns the active keys in start order.
func (t *Tracker) ActiveIndeterminateProgresses() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]any(nil), t.active...)
}

func (t *Tracker) indexLocked(key any) int {
	if !isComparable(key) {
		return -1
	}
	for i, k := range t.active {
		if equal(k, key) {
			return i
		}
	}
	return -1
}

// isComparable reports whether key's dynamic type supports ==. nil is
// comparable.
func isComparable(key any) bool {
	typ := reflect.TypeOf(key)
	return typ == nil || typ.Comparable()
}

// equal compares two keys, treating a runtime comparison panic (a struct
// holding an uncomparable interface value) as inequality.
func equal(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

func keyString(key any) string {
	switch k := key.(type) {
	case nil:
		return ""
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
}
