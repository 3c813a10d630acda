package kernel

// SVC is a supervisor call number.
type SVC uint8

const (
	// SVCElevate asks the trap handler to make thread mode privileged.
	SVCElevate SVC = iota + 1
	// SVCSchedule asks the trap handler to make a scheduling decision.
	SVCSchedule
)

func (n SVC) String() string {
	switch n {
	case SVCElevate:
		return "elevate"
	case SVCSchedule:
		return "schedule"
	default:
		return "unknown"
	}
}

// SwitchTrap is the deferred context switch exception (PendSV on Cortex-M).
type SwitchTrap interface {
	// PendSwitch arms the trap. Arming an armed trap is a no-op: the
	// trampoline runs once when the trap is serviced.
	PendSwitch()
	// SwitchPending reports whether the trap is armed and not yet serviced.
	SwitchPending() bool
}

// Vectors are the exception handlers a port routes to the kernel, plus the
// handoff the port's switch trampoline reads.
type Vectors struct {
	// SysTick runs once per timer tick.
	SysTick func()
	// SVCall runs in handler mode for every supervisor call.
	SVCall func(SVC)
	// Handoff names the control blocks of the pending switch.
	Handoff Handoff
}

// Port is the CPU-specific side of the kernel. Everything the core needs from
// the processor goes through it.
type Port interface {
	SwitchTrap

	// DisableInterrupts masks interrupts and returns the previous mask so
	// that critical sections nest.
	DisableInterrupts() uintptr
	// RestoreInterrupts restores a mask returned by DisableInterrupts.
	RestoreInterrupts(state uintptr)

	// Privileged reports whether the executing code runs privileged.
	Privileged() bool
	// SetThreadPrivileged changes the privilege of thread mode. It fails with
	// ErrPrivilegeViolation when called from unprivileged code.
	SetThreadPrivileged(privileged bool) error
	// SupervisorCall raises the supervisor trap; the port runs the installed
	// SVCall vector before returning.
	SupervisorCall(n SVC)

	// StartTimer starts the periodic tick with the given reload value.
	StartTimer(period uint32) error
	// InstallVectors routes SysTick and SVCall to the kernel.
	InstallVectors(v Vectors)
}

// critical runs fn with interrupts masked.
func critical(p Port, fn func()) {
	state := p.DisableInterrupts()
	defer p.RestoreInterrupts(state)
	fn()
}
