package command

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mattjoyce/relaycmd/internal/callable"
	"github.com/mattjoyce/relaycmd/internal/log"
)

// Option configures a Command.
type Option func(*settings)

type settings struct {
	name                  string
	disableWhileExecuting bool
	logger                *slog.Logger
}

// DisableWhileExecuting force-disables the command from the start of each
// execution until the action returns or, for asynchronous actions, settles.
func DisableWhileExecuting() Option {
	return func(s *settings) { s.disableWhileExecuting = true }
}

// WithName labels the command in logs.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithLogger overrides the default component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type subscriber struct {
	id int
	fn func()
}

// Command is a UI-triggerable operation taking an argument of type A.
// Use callable.Void for commands that take no argument; such commands
// ignore whatever parameter they are given.
type Command[A any] struct {
	name                  string
	action                *callable.Func[A, callable.Void]
	predicate             *callable.Func[A, bool]
	disableWhileExecuting bool
	logger                *slog.Logger

	disabled atomic.Bool
	forced   atomic.Bool

	mu        sync.Mutex
	subs      []subscriber
	nextSubID int

	dependents *DependentSet
}

// New creates a command around action. predicate may be nil, in which case
// the command is executable whenever it is not disabled.
func New[A any](action *callable.Func[A, callable.Void], predicate *callable.Func[A, bool], opts ...Option) *Command[A] {
	s := settings{logger: log.WithComponent("command")}
	for _, opt := range opts {
		opt(&s)
	}
	return &Command[A]{
		name:                  s.name,
		action:                action,
		predicate:             predicate,
		disableWhileExecuting: s.disableWhileExecuting,
		logger:                s.logger,
		dependents:            &DependentSet{},
	}
}

// Name returns the label given with WithName.
func (c *Command[A]) Name() string {
	return c.name
}

// State reports the command's enabled state. The force flag wins when both
// flags are set.
func (c *Command[A]) State() State {
	switch {
	case c.forced.Load():
		return ForceDisabled
	case c.disabled.Load():
		return UserDisabled
	default:
		return Enabled
	}
}

// CanExecute reports whether Execute would run the action for param.
// A param that is neither nil nor an A makes the command non-executable.
// A predicate whose receiver has been collected evaluates to false.
func (c *Command[A]) CanExecute(param any) bool {
	if c.disabled.Load() || c.forced.Load() {
		return false
	}
	arg, ok := c.argument(param)
	if !ok {
		return false
	}
	return c.evaluate(arg)
}

func (c *Command[A]) evaluate(arg A) bool {
	if c.predicate == nil {
		return true
	}
	if !c.predicate.IsAlive() {
		return false
	}
	return c.predicate.Execute(arg)
}

// argument converts a UI parameter to A. nil maps to A's zero value.
func (c *Command[A]) argument(param any) (A, bool) {
	var zero A
	if param == nil {
		return zero, true
	}
	if _, ok := any(zero).(callable.Void); ok {
		return zero, true
	}
	v, ok := param.(A)
	return v, ok
}

// Execute runs the action for param if the command can execute. It is a
// silent no-op otherwise, including when the action's receiver is gone.
func (c *Command[A]) Execute(param any) {
	c.Dispatch(context.Background(), param)
}

// Dispatch is Execute returning the action's Task so callers can observe
// asynchronous failures. ctx is handed to asynchronous actions. It returns
// nil when the action did not run. For synchronous actions the returned
// Task has already settled.
func (c *Command[A]) Dispatch(ctx context.Context, param any) *callable.Task[callable.Void] {
	if !c.CanExecute(param) {
		return nil
	}
	arg, _ := c.argument(param)
	if !c.action.IsAlive() {
		c.logger.Debug("action receiver released, skipping execute", "command", c.name)
		return nil
	}

	if c.disableWhileExecuting {
		c.forceDisable()
	}

	if c.action.CanExecuteAsync() {
		task := c.action.ExecuteAsync(ctx, arg)
		if c.disableWhileExecuting {
			go c.restoreAfter(task)
		}
		return task
	}

	c.run(arg)
	return callable.Resolved(callable.Void{})
}

// run restores the force flag even when the action panics; the panic
// still reaches the caller.
func (c *Command[A]) run(arg A) {
	if c.disableWhileExecuting {
		defer c.forceEnable()
	}
	c.action.Execute(arg)
}

// restoreAfter re-enables the command once task settles. The task's error is
// left for the Dispatch caller.
func (c *Command[A]) restoreAfter(task *callable.Task[callable.Void]) {
	<-task.Done()
	c.forceEnable()
}

// Enable clears the user-disabled flag and notifies subscribers.
func (c *Command[A]) Enable() {
	c.disabled.Store(false)
	c.RaiseCanExecuteChanged()
}

// Disable sets the user-disabled flag and notifies subscribers.
func (c *Command[A]) Disable() {
	c.disabled.Store(true)
	c.RaiseCanExecuteChanged()
}

func (c *Command[A]) forceEnable() {
	c.forced.Store(false)
	c.RaiseCanExecuteChanged()
}

func (c *Command[A]) forceDisable() {
	c.forced.Store(true)
	c.RaiseCanExecuteChanged()
}

// Subscribe registers fn to be called, with no payload, whenever the
// command's state may have changed. fn runs on the goroutine that made the
// change, which for asynchronous actions is not the caller's goroutine.
func (c *Command[A]) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}

	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// RaiseCanExecuteChanged notifies subscribers without changing state.
func (c *Command[A]) RaiseCanExecuteChanged() {
	c.mu.Lock()
	fns := make([]func(), len(c.subs))
	for i, s := range c.subs {
		fns[i] = s.fn
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// AddDependent registers d to be disabled and enabled together with this
// command by its progress scopes. It does not affect CanExecute of either
// command outside a scope.
func (c *Command[A]) AddDependent(d Commander) {
	c.dependents.Add(d)
}

// Dependents returns the command's dependent set. Scopes borrow it, so
// commands added later are covered by scopes opened later.
func (c *Command[A]) Dependents() *DependentSet {
	return c.dependents
}

// ProgressScope starts progress for key on tracker and disables the command
// and its dependents until the returned scope is closed. tracker may be nil.
func (c *Command[A]) ProgressScope(tracker ProgressTracker, key any, opts ...ScopeOption) *ProgressScope {
	return NewProgressScope(c, c.dependents, tracker, key, opts...)
}

// Busy disables the command and its dependents until the returned scope is
// closed, without signalling progress.
func (c *Command[A]) Busy() *ProgressScope {
	return NewProgressScope(c, c.dependents, nil, nil)
}

// RunWithProgress runs fn inside a progress scope and closes the scope on
// every exit path, including a panic in fn.
func (c *Command[A]) RunWithProgress(tracker ProgressTracker, key any, fn func() error) error {
	scope := c.ProgressScope(tracker, key)
	defer scope.Close()
	return fn()
}

var _ Commander = (*Command[callable.Void])(nil)
