package kernel

// Error is a kernel fault code. Callers match it with errors.Is; the kernel
// wraps it with the offending task or operation.
type Error uint8

const (
	// ErrOutOfRange reports a task ID at or beyond MaxTasks.
	ErrOutOfRange Error = iota + 1
	// ErrDuplicateTask reports a create on an ID that is active or has exited.
	ErrDuplicateTask
	// ErrPrivilegeViolation reports a failed elevation or a privileged
	// operation attempted from unprivileged code.
	ErrPrivilegeViolation
	// ErrState reports an operation before Init or a second Start.
	ErrState
	// ErrStackTooSmall reports a stack that cannot hold the initial frame.
	ErrStackTooSmall
)

func (e Error) Error() string {
	switch e {
	case ErrOutOfRange:
		return "task id out of range"
	case ErrDuplicateTask:
		return "duplicate task"
	case ErrPrivilegeViolation:
		return "privilege violation"
	case ErrState:
		return "invalid kernel state"
	case ErrStackTooSmall:
		return "stack too small for initial frame"
	default:
		return "unknown kernel error"
	}
}
