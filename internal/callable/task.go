package callable

import (
	"context"
	"fmt"
)

// Task is the pending result of an asynchronous invocation.
// It settles exactly once.
type Task[R any] struct {
	done  chan struct{}
	value R
	err   error
}

func newTask[R any]() *Task[R] {
	return &Task[R]{done: make(chan struct{})}
}

// Resolved returns a Task that has already settled with v.
func Resolved[R any](v R) *Task[R] {
	t := newTask[R]()
	t.settle(v, nil)
	return t
}

func (t *Task[R]) settle(v R, err error) {
	t.value = v
	t.err = err
	close(t.done)
}

// Done returns a channel that is closed once the task settles.
func (t *Task[R]) Done() <-chan struct{} {
	return t.done
}

// Settled reports whether the task has completed.
func (t *Task[R]) Settled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Result returns the settled value and error without blocking. ok is false
// while the task is pending.
func (t *Task[R]) Result() (value R, err error, ok bool) {
	if !t.Settled() {
		return value, nil, false
	}
	return t.value, t.err, true
}

// Wait blocks until the task settles or ctx is done. Cancelling ctx only
// stops the wait; the underlying work keeps running.
func (t *Task[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// PanicError carries a panic recovered from an asynchronous function.
type PanicError struct {
	Name  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Name, e.Value)
}
