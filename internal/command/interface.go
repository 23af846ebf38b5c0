package command

//go:generate mockgen -destination=mocks/mock_tracker.go -package=mocks github.com/mattjoyce/relaycmd/internal/command ProgressTracker

// Commander is the capability set UI bindings consume.
type Commander interface {
	CanExecute(param any) bool
	Execute(param any)
	Enable()
	Disable()
	// Subscribe registers fn for change notifications and returns a
	// function that removes it.
	Subscribe(fn func()) (cancel func())
	AddDependent(c Commander)
}

// ProgressTracker records active indeterminate progress sources.
// StopIndeterminateProgress must tolerate keys that are not active.
type ProgressTracker interface {
	StartIndeterminateProgress(key any)
	StopIndeterminateProgress(key any)
}

// State is the externally visible enabled state of a command.
type State int

const (
	Enabled State = iota
	UserDisabled
	ForceDisabled
)

func (s State) String() string {
	switch s {
	case Enabled:
		return "enabled"
	case UserDisabled:
		return "user_disabled"
	case ForceDisabled:
		return "force_disabled"
	default:
		return "unknown"
	}
}
