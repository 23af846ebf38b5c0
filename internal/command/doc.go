// Package command coordinates the enabled state of UI-triggered operations.
//
// A Command wraps a weakly held action (see package callable) and an
// optional predicate. UI bindings ask CanExecute before offering the
// command and subscribe to its change notification to know when to ask
// again. Notifications carry no payload; subscribers re-query.
//
// # Enabled state
//
// Two independent flags disable a command:
//
//   - the user flag, set by Disable and cleared by Enable;
//   - the force flag, set by the command itself for the duration of an
//     execution when DisableWhileExecuting was requested.
//
// The command is disabled while either flag is set. Every transition
// notifies subscribers, even when CanExecute does not change.
//
// # Re-entrancy
//
// DisableWhileExecuting is the only re-entrancy guard. Without it, a second
// Execute may start while an asynchronous first one is still running.
//
// # Progress scopes
//
// A ProgressScope disables a command and its registered dependents and
// marks a progress key active on a ProgressTracker until Close is called:
//
//	scope := cmd.ProgressScope(tracker, key)
//	defer scope.Close()
//
// Scopes are not counted. Closing any scope re-enables the command, even if
// another scope on the same command is still open.
package command
