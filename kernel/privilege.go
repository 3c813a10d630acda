package kernel

// PrivilegeGate runs kernel-mutating code in privileged mode.
//
// Privileged callers run directly. Unprivileged callers go through the
// supervisor trap, which makes thread mode privileged; the gate drops back to
// unprivileged on every way out of fn, including a panic.
type PrivilegeGate struct {
	port Port
}

// Run executes fn with elevated rights.
func (g PrivilegeGate) Run(fn func() error) (err error) {
	if g.port.Privileged() {
		return fn()
	}

	g.port.SupervisorCall(SVCElevate)
	if !g.port.Privileged() {
		return ErrPrivilegeViolation
	}
	defer func() {
		if derr := g.port.SetThreadPrivileged(false); derr != nil && err == nil {
			err = derr
		}
	}()
	return fn()
}
