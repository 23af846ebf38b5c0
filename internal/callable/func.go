package callable

import (
	"context"
	"reflect"
	"runtime"
	"weak"
)

// Void stands in for "no argument" and "no result".
type Void struct{}

// shape is the closed set of callable kinds. Implementations are chosen by
// the constructors and never inspected again at call time.
type shape[A, R any] interface {
	static() bool
	async() bool
	alive() bool
	call(ctx context.Context, a A) (R, error)
	name() string
}

// gate is an optional liveness check for static callables.
type gate interface {
	alive() bool
}

type weakGate[O any] struct {
	ref weak.Pointer[O]
}

func (g weakGate[O]) alive() bool {
	return g.ref.Value() != nil
}

type staticFunc[A, R any] struct {
	fn      func(context.Context, A) (R, error)
	isAsync bool
	owner   gate
	label   string
}

func (s *staticFunc[A, R]) static() bool { return true }
func (s *staticFunc[A, R]) async() bool  { return s.isAsync }
func (s *staticFunc[A, R]) name() string { return s.label }

func (s *staticFunc[A, R]) alive() bool {
	return s.owner == nil || s.owner.alive()
}

func (s *staticFunc[A, R]) call(ctx context.Context, a A) (R, error) {
	return s.fn(ctx, a)
}

type boundFunc[T, A, R any] struct {
	recv    weak.Pointer[T]
	method  func(*T, context.Context, A) (R, error)
	isAsync bool
	label   string
}

func (b *boundFunc[T, A, R]) static() bool { return false }
func (b *boundFunc[T, A, R]) async() bool  { return b.isAsync }
func (b *boundFunc[T, A, R]) name() string { return b.label }

func (b *boundFunc[T, A, R]) alive() bool {
	return b.recv.Value() != nil
}

func (b *boundFunc[T, A, R]) call(ctx context.Context, a A) (R, error) {
	recv := b.recv.Value()
	if recv == nil {
		var zero R
		return zero, nil
	}
	return b.method(recv, ctx, a)
}

// Option configures a static callable.
type Option func(*options)

type options struct {
	owner gate
}

// WithOwner makes a static callable report IsAlive false once owner has
// been collected. Use it for closures whose usefulness is tied to an outer
// object. A nil owner is ignored. Bound callables ignore this option: their
// receiver is already the owner.
func WithOwner[O any](owner *O) Option {
	return func(o *options) {
		if owner == nil {
			return
		}
		o.owner = weakGate[O]{ref: weak.Make(owner)}
	}
}

// Func weakly holds a callable taking A and returning R.
type Func[A, R any] struct {
	shape shape[A, R]
}

// Static wraps a synchronous function that has no receiver.
func Static[A, R any](fn func(A) R, opts ...Option) *Func[A, R] {
	if fn == nil {
		return &Func[A, R]{}
	}
	return newStatic(func(_ context.Context, a A) (R, error) {
		return fn(a), nil
	}, false, funcName(fn), opts)
}

// StaticAsync wraps an asynchronous function that has no receiver.
func StaticAsync[A, R any](fn func(context.Context, A) (R, error), opts ...Option) *Func[A, R] {
	if fn == nil {
		return &Func[A, R]{}
	}
	return newStatic(fn, true, funcName(fn), opts)
}

func newStatic[A, R any](fn func(context.Context, A) (R, error), isAsync bool, label string, opts []Option) *Func[A, R] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Func[A, R]{shape: &staticFunc[A, R]{
		fn:      fn,
		isAsync: isAsync,
		owner:   o.owner,
		label:   label,
	}}
}

// Bound wraps a synchronous method expression and a weakly held receiver.
func Bound[T, A, R any](recv *T, method func(*T, A) R) *Func[A, R] {
	if recv == nil || method == nil {
		return &Func[A, R]{}
	}
	return &Func[A, R]{shape: &boundFunc[T, A, R]{
		recv: weak.Make(recv),
		method: func(t *T, _ context.Context, a A) (R, error) {
			return method(t, a), nil
		},
		label: funcName(method),
	}}
}

// BoundAsync wraps an asynchronous method expression and a weakly held
// receiver.
func BoundAsync[T, A, R any](recv *T, method func(*T, context.Context, A) (R, error)) *Func[A, R] {
	if recv == nil || method == nil {
		return &Func[A, R]{}
	}
	return &Func[A, R]{shape: &boundFunc[T, A, R]{
		recv:    weak.Make(recv),
		method:  method,
		isAsync: true,
		label:   funcName(method),
	}}
}

// IsStatic reports whether f was built from a function without a receiver.
func (f *Func[A, R]) IsStatic() bool {
	return f != nil && f.shape != nil && f.shape.static()
}

// IsAlive reports whether f's receiver (or optional owner) still exists.
func (f *Func[A, R]) IsAlive() bool {
	return f != nil && f.shape != nil && f.shape.alive()
}

// CanExecuteAsync reports whether f was built from an asynchronous function.
func (f *Func[A, R]) CanExecuteAsync() bool {
	return f != nil && f.shape != nil && f.shape.async()
}

// Name returns the underlying function's name, or "" once released.
func (f *Func[A, R]) Name() string {
	if f == nil || f.shape == nil {
		return ""
	}
	return f.shape.name()
}

func (f *Func[A, R]) invocable() bool {
	return f.IsStatic() || f.IsAlive()
}

// Execute invokes f synchronously and returns its result. It returns the
// zero value without invoking anything when f is bound to a collected
// receiver or has been released. Asynchronous functions run to completion
// on the calling goroutine; their error is discarded.
func (f *Func[A, R]) Execute(a A) R {
	if !f.invocable() {
		var zero R
		return zero
	}
	v, _ := f.shape.call(context.Background(), a)
	return v
}

// ExecuteAsync starts f on a new goroutine and returns its pending result.
// When f is not asynchronous, is bound to a collected receiver, or has been
// released, the returned Task has already settled with the zero value.
func (f *Func[A, R]) ExecuteAsync(ctx context.Context, a A) *Task[R] {
	var zero R
	if !f.CanExecuteAsync() || !f.invocable() {
		return Resolved(zero)
	}

	s := f.shape
	t := newTask[R]()
	go func() {
		var (
			v   R
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				t.settle(zero, &PanicError{Name: s.name(), Value: r})
				return
			}
			t.settle(v, err)
		}()
		v, err = s.call(ctx, a)
	}()
	return t
}

// Release drops every reference f holds. It cannot be undone.
func (f *Func[A, R]) Release() {
	if f == nil {
		return
	}
	f.shape = nil
}

func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	if rf := runtime.FuncForPC(v.Pointer()); rf != nil {
		return rf.Name()
	}
	return ""
}
