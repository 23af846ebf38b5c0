package callable

import "context"

// Action is a weakly held callable with no argument and no result.
type Action = Func[Void, Void]

// Predicate is a weakly held callable with no argument returning a bool.
type Predicate = Func[Void, bool]

// NewAction wraps fn as a static synchronous Action.
func NewAction(fn func(), opts ...Option) *Action {
	if fn == nil {
		return &Action{}
	}
	f := Static(func(Void) Void {
		fn()
		return Void{}
	}, opts...)
	f.relabel(fn)
	return f
}

// NewAsyncAction wraps fn as a static asynchronous Action.
func NewAsyncAction(fn func(context.Context) error, opts ...Option) *Action {
	if fn == nil {
		return &Action{}
	}
	f := StaticAsync(func(ctx context.Context, _ Void) (Void, error) {
		return Void{}, fn(ctx)
	}, opts...)
	f.relabel(fn)
	return f
}

// BindAction wraps a method expression such as (*T).Close.
func BindAction[T any](recv *T, method func(*T)) *Action {
	if method == nil {
		return &Action{}
	}
	f := Bound(recv, func(t *T, _ Void) Void {
		method(t)
		return Void{}
	})
	f.relabel(method)
	return f
}

// BindAsyncAction wraps an asynchronous method expression.
func BindAsyncAction[T any](recv *T, method func(*T, context.Context) error) *Action {
	if method == nil {
		return &Action{}
	}
	f := BoundAsync(recv, func(t *T, ctx context.Context, _ Void) (Void, error) {
		return Void{}, method(t, ctx)
	})
	f.relabel(method)
	return f
}

// NewPredicate wraps fn as a static Predicate.
func NewPredicate(fn func() bool, opts ...Option) *Predicate {
	if fn == nil {
		return &Predicate{}
	}
	f := Static(func(Void) bool { return fn() }, opts...)
	f.relabel(fn)
	return f
}

// BindPredicate wraps a predicate method expression.
func BindPredicate[T any](recv *T, method func(*T) bool) *Predicate {
	if method == nil {
		return &Predicate{}
	}
	f := Bound(recv, func(t *T, _ Void) bool { return method(t) })
	f.relabel(method)
	return f
}

// NewArgAction wraps fn as a static synchronous one-argument action.
func NewArgAction[A any](fn func(A), opts ...Option) *Func[A, Void] {
	if fn == nil {
		return &Func[A, Void]{}
	}
	f := Static(func(a A) Void {
		fn(a)
		return Void{}
	}, opts...)
	f.relabel(fn)
	return f
}

// NewAsyncArgAction wraps fn as a static asynchronous one-argument action.
func NewAsyncArgAction[A any](fn func(context.Context, A) error, opts ...Option) *Func[A, Void] {
	if fn == nil {
		return &Func[A, Void]{}
	}
	f := StaticAsync(func(ctx context.Context, a A) (Void, error) {
		return Void{}, fn(ctx, a)
	}, opts...)
	f.relabel(fn)
	return f
}

// BindArgAction wraps a one-argument method expression.
func BindArgAction[T, A any](recv *T, method func(*T, A)) *Func[A, Void] {
	if method == nil {
		return &Func[A, Void]{}
	}
	f := Bound(recv, func(t *T, a A) Void {
		method(t, a)
		return Void{}
	})
	f.relabel(method)
	return f
}

// BindAsyncArgAction wraps an asynchronous one-argument method expression.
func BindAsyncArgAction[T, A any](recv *T, method func(*T, context.Context, A) error) *Func[A, Void] {
	if method == nil {
		return &Func[A, Void]{}
	}
	f := BoundAsync(recv, func(t *T, ctx context.Context, a A) (Void, error) {
		return Void{}, method(t, ctx, a)
	})
	f.relabel(method)
	return f
}

// NewArgPredicate wraps fn as a static one-argument predicate.
func NewArgPredicate[A any](fn func(A) bool, opts ...Option) *Func[A, bool] {
	return Static(fn, opts...)
}

// BindArgPredicate wraps a one-argument predicate method expression.
func BindArgPredicate[T, A any](recv *T, method func(*T, A) bool) *Func[A, bool] {
	return Bound(recv, method)
}

// relabel records the name of the caller's function rather than the
// adapter closure wrapping it.
func (f *Func[A, R]) relabel(fn any) {
	switch s := f.shape.(type) {
	case *staticFunc[A, R]:
		s.label = funcName(fn)
	case interface{ setLabel(string) }:
		s.setLabel(funcName(fn))
	}
}

func (b *boundFunc[T, A, R]) setLabel(label string) { b.label = label }
