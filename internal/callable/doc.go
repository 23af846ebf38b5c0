// Package callable stores functions for later invocation without keeping
// their receivers alive.
//
// A Func is built by exactly one of four constructors, and the constructor
// fixes the callable's shape for its whole life:
//
//   - Static: a plain function. The function value is held strongly. An
//     optional owner (see WithOwner) acts as an extra liveness gate.
//   - StaticAsync: a plain function that runs on its own goroutine and
//     reports completion through a Task.
//   - Bound: a method expression plus a receiver. The receiver is held
//     through a weak.Pointer, so the Func never postpones its collection.
//   - BoundAsync: the asynchronous form of Bound.
//
// # Liveness
//
// IsAlive reports whether the receiver (bound) or the optional owner
// (static) can still be resolved. Invoking a bound Func whose receiver has
// been collected is not an error: Execute returns the zero value and
// ExecuteAsync returns an already settled Task. UI handlers are routinely
// torn down before the commands that reference them, so a dead receiver is
// an expected race.
//
// Pass method expressions to the Bound constructors:
//
//	f := callable.BindAction(view, (*View).Refresh)
//
// A method value (view.Refresh) or a closure that captures view holds a
// strong reference and defeats the weak link.
//
// # Release
//
// Release clears every reference the Func holds. It is one-way: a released
// Func is neither static nor alive, and all invocations become no-ops.
package callable
