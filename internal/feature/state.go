package feature

// State represents the lifecycle state of a feature.
type State int

// Feature states.
const (
	// StateUnregistered - Feature is unknown to the runner.
	StateUnregistered State = iota

	// StateRegistered - Feature is registered but not installed.
	StateRegistered

	// StateInstalling - Install is running.
	StateInstalling

	// StateInstalled - Feature is installed and running.
	StateInstalled

	// StateUninstalling - Uninstall is running.
	StateUninstalling

	// StateUninstalled - Feature was installed and has been torn down.
	StateUninstalled

	// StateFailed - Install failed or timed out.
	StateFailed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateUninstalling:
		return "uninstalling"
	case StateUninstalled:
		return "uninstalled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTransient returns true while an install or uninstall is in progress.
func (s State) IsTransient() bool {
	return s == StateInstalling || s == StateUninstalling
}

// CanInstall returns true if InstallAll may install a feature in this state.
func (s State) CanInstall() bool {
	return s == StateRegistered || s == StateUninstalled || s == StateFailed
}
