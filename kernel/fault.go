package kernel

import (
	"sync"
	"sync/atomic"
)

// Fault describes a broken kernel invariant detected in interrupt context,
// where there is no caller to return an error to.
type Fault struct {
	Reason string
	Task   TaskID
	Stack  []byte
}

var (
	faultActive atomic.Bool
	faultOnce   sync.Once

	faultHandler atomic.Value // func(Fault)
)

// InFaultMode reports whether the kernel has faulted.
func InFaultMode() bool {
	return faultActive.Load()
}

// SetFaultHandler installs a process-wide fault handler.
//
// The handler is invoked at most once (on the first fault). It must not
// return control to the faulting handler by recovering; the kernel halts by
// panicking afterwards.
func SetFaultHandler(fn func(Fault)) {
	faultHandler.Store(fn)
}

func fault(reason string, task TaskID) {
	faultOnce.Do(func() {
		faultActive.Store(true)
		info := Fault{Reason: reason, Task: task, Stack: captureStack()}
		if v := faultHandler.Load(); v != nil {
			if fn, ok := v.(func(Fault)); ok && fn != nil {
				fn(info)
			}
		}
	})
	panic("kernel fault: " + reason)
}
