// Package registry builds named commands from configuration and exposes
// them to the API and terminal bindings.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/relaycmd/internal/callable"
	"github.com/mattjoyce/relaycmd/internal/command"
	"github.com/mattjoyce/relaycmd/internal/config"
	"github.com/mattjoyce/relaycmd/internal/events"
	"github.com/mattjoyce/relaycmd/internal/log"
	"github.com/mattjoyce/relaycmd/internal/progress"
	"github.com/mattjoyce/relaycmd/internal/state"
)

var (
	// ErrNotFound is returned for an unknown command name.
	ErrNotFound = errors.New("command not found")
	// ErrNotExecutable is returned when a command refuses to execute.
	ErrNotExecutable = errors.New("command cannot execute")
)

// Entry is one named command with the worker that backs its action.
type Entry struct {
	Name         string
	Description  string
	Async        bool
	ShowProgress bool
	Dependents   []string
	Command      *command.Command[callable.Void]

	// ProgressKey identifies this command's runs on the tracker.
	ProgressKey uuid.UUID

	worker *worker
	deps   []*Entry

	// userDisabled is the operator's choice. Progress scopes toggle the
	// command's own user flag, so it is re-applied when a scope closes.
	userDisabled atomic.Bool
}

func (e *Entry) setUserDisabled(disabled bool) {
	e.userDisabled.Store(disabled)
	if disabled {
		e.Command.Disable()
	} else {
		e.Command.Enable()
	}
}

// Runs reports how many times the command's action has started.
func (e *Entry) Runs() int64 {
	return e.worker.runs.Load()
}

// View is the JSON-friendly snapshot of an entry.
type View struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	CanExecute   bool     `json:"can_execute"`
	State        string   `json:"state"`
	UserDisabled bool     `json:"user_disabled"`
	Async        bool     `json:"async"`
	ShowProgress bool     `json:"show_progress"`
	InProgress   bool     `json:"in_progress"`
	Runs         int64    `json:"runs"`
	Dependents   []string `json:"dependents,omitempty"`
}

// ProgressView names an active progress key.
type ProgressView struct {
	Key     string `json:"key"`
	Command string `json:"command,omitempty"`
}

// Execution is a dispatched run. Task settles when the action finishes.
type Execution struct {
	ID      string
	Command string
	Task    *callable.Task[callable.Void]
}

// Recorder persists execution history and user-disabled flags.
// *state.Store implements it.
type Recorder interface {
	Begin(ctx context.Context, id, command string, at time.Time) error
	Finish(ctx context.Context, id, status, errMsg string, at time.Time) error
	History(ctx context.Context, command string, limit int) ([]state.Record, error)
	SaveEnabled(ctx context.Context, command string, enabled bool) error
	LoadEnabled(ctx context.Context) (map[string]bool, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithRecorder records every execution and restores persisted
// user-disabled flags when the registry is built.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) {
		r.recorder = rec
	}
}

// Registry owns the commands declared in configuration.
type Registry struct {
	tracker  *progress.Tracker
	hub      *events.Hub
	recorder Recorder
	logger   *slog.Logger

	entries map[string]*Entry
	order   []string
	keys    map[uuid.UUID]string

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	unsubs    []func()
	closeOnce sync.Once
}

// New builds a command for each declaration, wires dependents and starts
// publishing command.changed events to hub. tracker and hub may be nil.
func New(decls []config.CommandConfig, tracker *progress.Tracker, hub *events.Hub, opts ...Option) (*Registry, error) {
	if tracker == nil {
		tracker = progress.NewTracker(progress.WithHub(hub))
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		tracker: tracker,
		hub:     hub,
		logger:  log.WithComponent("registry"),
		entries: make(map[string]*Entry, len(decls)),
		keys:    make(map[uuid.UUID]string, len(decls)),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, d := range decls {
		if d.Name == "" {
			cancel()
			return nil, fmt.Errorf("command name is required")
		}
		if _, exists := r.entries[d.Name]; exists {
			cancel()
			return nil, fmt.Errorf("command %q declared twice", d.Name)
		}
		e := r.build(d)
		r.entries[d.Name] = e
		r.order = append(r.order, d.Name)
		r.keys[e.ProgressKey] = d.Name
	}

	for _, name := range r.order {
		e := r.entries[name]
		for _, depName := range e.Dependents {
			dep, ok := r.entries[depName]
			if !ok {
				cancel()
				return nil, fmt.Errorf("command %q: unknown dependent %q", name, depName)
			}
			e.Command.AddDependent(dep.Command)
			e.deps = append(e.deps, dep)
		}
	}

	if err := r.restoreEnabled(); err != nil {
		cancel()
		return nil, err
	}

	for _, name := range r.order {
		e := r.entries[name]
		r.unsubs = append(r.unsubs, e.Command.Subscribe(func() {
			r.hub.Publish(events.CommandChanged, e.Name, r.view(e))
		}))
	}

	r.logger.Info("registry built", "commands", len(r.order))
	return r, nil
}

// restoreEnabled applies persisted user flags. They override start_disabled.
func (r *Registry) restoreEnabled() error {
	if r.recorder == nil {
		return nil
	}
	flags, err := r.recorder.LoadEnabled(r.ctx)
	if err != nil {
		return fmt.Errorf("restore command state: %w", err)
	}
	for name, enabled := range flags {
		e, ok := r.entries[name]
		if !ok {
			r.logger.Debug("ignoring persisted state for undeclared command", "command", name)
			continue
		}
		e.setUserDisabled(!enabled)
	}
	return nil
}

func (r *Registry) build(d config.CommandConfig) *Entry {
	w := &worker{name: d.Name, duration: d.Duration}

	var action *callable.Action
	if d.Async {
		action = callable.BindAsyncAction(w, (*worker).RunAsync)
	} else {
		action = callable.BindAction(w, (*worker).Run)
	}

	opts := []command.Option{
		command.WithName(d.Name),
		command.WithLogger(log.WithCommand(d.Name)),
	}
	if d.DisableWhileExecuting {
		opts = append(opts, command.DisableWhileExecuting())
	}
	cmd := command.New(action, nil, opts...)

	e := &Entry{
		Name:         d.Name,
		Description:  d.Description,
		Async:        d.Async,
		ShowProgress: d.ShowProgress,
		Dependents:   append([]string(nil), d.Dependents...),
		Command:      cmd,
		ProgressKey:  uuid.New(),
		worker:       w,
	}
	if d.ShowProgress {
		w.scope = func() func() {
			s := cmd.ProgressScope(r.tracker, e.ProgressKey)
			return func() {
				_ = s.Close()
				r.reapplyUserDisabled(e)
			}
		}
	}
	if d.StartDisabled {
		e.setUserDisabled(true)
	}
	return e
}

// reapplyUserDisabled restores operator disables that closing a progress
// scope cleared on e and its dependents.
func (r *Registry) reapplyUserDisabled(e *Entry) {
	for _, x := range append([]*Entry{e}, e.deps...) {
		if x.userDisabled.Load() {
			x.Command.Disable()
		}
	}
}

// Tracker returns the progress tracker shared by every command.
func (r *Registry) Tracker() *progress.Tracker {
	return r.tracker
}

// Len returns the number of commands.
func (r *Registry) Len() int {
	return len(r.order)
}

// Names returns command names in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Get returns the named entry.
func (r *Registry) Get(name string) (*Entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

// View returns a snapshot of the named command.
func (r *Registry) View(name string) (View, error) {
	e, err := r.Get(name)
	if err != nil {
		return View{}, err
	}
	return r.view(e), nil
}

// List returns snapshots of every command in declaration order.
func (r *Registry) List() []View {
	out := make([]View, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.view(r.entries[name]))
	}
	return out
}

func (r *Registry) view(e *Entry) View {
	return View{
		Name:         e.Name,
		Description:  e.Description,
		CanExecute:   e.Command.CanExecute(nil),
		State:        e.Command.State().String(),
		UserDisabled: e.userDisabled.Load(),
		Async:        e.Async,
		ShowProgress: e.ShowProgress,
		InProgress:   r.tracker.IsActive(e.ProgressKey),
		Runs:         e.Runs(),
		Dependents:   e.Dependents,
	}
}

// Progress lists active progress keys in start order, naming the command
// each key belongs to.
func (r *Registry) Progress() []ProgressView {
	active := r.tracker.ActiveIndeterminateProgresses()
	out := make([]ProgressView, 0, len(active))
	for _, k := range active {
		pv := ProgressView{Key: fmt.Sprint(k)}
		if id, ok := k.(uuid.UUID); ok {
			pv.Command = r.keys[id]
		}
		out = append(out, pv)
	}
	return out
}

// Enable clears the named command's user-disabled flag.
func (r *Registry) Enable(name string) error {
	e, err := r.Get(name)
	if err != nil {
		return err
	}
	e.setUserDisabled(false)
	r.saveEnabled(name, true)
	return nil
}

// Disable sets the named command's user-disabled flag.
func (r *Registry) Disable(name string) error {
	e, err := r.Get(name)
	if err != nil {
		return err
	}
	e.setUserDisabled(true)
	r.saveEnabled(name, false)
	return nil
}

// saveEnabled persists a toggle. Failures are logged; the in-memory flag
// stays authoritative.
func (r *Registry) saveEnabled(name string, enabled bool) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.SaveEnabled(context.Background(), name, enabled); err != nil {
		r.logger.Warn("failed to persist command state", "command", name, "enabled", enabled, "error", err)
	}
}

// History returns recorded executions of the named command, newest first.
// Without a recorder it returns an empty list.
func (r *Registry) History(ctx context.Context, name string, limit int) ([]state.Record, error) {
	if _, err := r.Get(name); err != nil {
		return nil, err
	}
	if r.recorder == nil {
		return []state.Record{}, nil
	}
	return r.recorder.History(ctx, name, limit)
}

// Subscribe registers fn to be called whenever any command's executable
// state may have changed. fn runs on the goroutine that made the change.
func (r *Registry) Subscribe(fn func()) func() {
	cancels := make([]func(), 0, len(r.order))
	for _, name := range r.order {
		cancels = append(cancels, r.entries[name].Command.Subscribe(fn))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// Execute dispatches the named command. Synchronous commands have finished
// when Execute returns; asynchronous ones keep running under the registry's
// context until their task settles or Close is called.
func (r *Registry) Execute(name string) (*Execution, error) {
	e, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if !e.Command.CanExecute(nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotExecutable, name)
	}

	id := uuid.NewString()
	logger := log.WithExecution(id).With("command", name)
	logger.Debug("dispatching")

	started := time.Now()
	task := e.Command.Dispatch(r.ctx, nil)
	if task == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotExecutable, name)
	}

	exec := &Execution{ID: id, Command: name, Task: task}
	if r.recorder != nil {
		if err := r.recorder.Begin(context.Background(), id, name, started); err != nil {
			logger.Warn("failed to record execution start", "error", err)
		}
	}
	r.wg.Add(1)
	go r.observe(exec, logger)
	return exec, nil
}

func (r *Registry) observe(exec *Execution, logger *slog.Logger) {
	defer r.wg.Done()

	<-exec.Task.Done()
	_, err, _ := exec.Task.Result()
	r.recordFinish(exec.ID, err, logger)

	data := map[string]string{"execution_id": exec.ID}
	if err != nil {
		data["error"] = err.Error()
		logger.Warn("execution failed", "error", err)
		r.hub.Publish(events.CommandFailed, exec.Command, data)
		return
	}
	logger.Info("execution completed")
	r.hub.Publish(events.CommandExecuted, exec.Command, data)
}

func (r *Registry) recordFinish(id string, execErr error, logger *slog.Logger) {
	if r.recorder == nil {
		return
	}
	status, msg := state.StatusSucceeded, ""
	if execErr != nil {
		status, msg = state.StatusFailed, execErr.Error()
	}
	if err := r.recorder.Finish(context.Background(), id, status, msg, time.Now()); err != nil {
		logger.Warn("failed to record execution result", "error", err)
	}
}

// Close cancels running asynchronous actions, waits for them to settle and
// stops publishing change events.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		r.wg.Wait()
		for _, unsub := range r.unsubs {
			unsub()
		}
	})
}
