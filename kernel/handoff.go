package kernel

// Handoff is what the switch trampoline sees of a pending context switch.
//
// Both slots are task IDs resolved against the registry on every access, so
// the trampoline never holds a raw control block address between switches.
// The trampoline must:
//
//  1. if Current is non-nil, push the callee-saved registers on the
//     interrupted task's stack and store the resulting stack pointer in
//     Current().SP;
//  2. load the stack pointer from Next().SP, pop and resume.
//
// Current is nil for the very first switch: there is no prior context.
type Handoff struct {
	r *Registry
}

// Current returns the control block the running context is saved into.
func (h Handoff) Current() *TCB {
	if h.r == nil || !h.r.current.ok {
		return nil
	}
	return &h.r.slots[h.r.current.id].tcb
}

// Next returns the control block to resume.
func (h Handoff) Next() *TCB {
	if h.r == nil || !h.r.next.ok {
		return nil
	}
	return &h.r.slots[h.r.next.id].tcb
}

// CurrentID returns the task being switched away from.
func (h Handoff) CurrentID() (TaskID, bool) {
	if h.r == nil {
		return 0, false
	}
	return h.r.current.id, h.r.current.ok
}

// NextID returns the task being switched to.
func (h Handoff) NextID() (TaskID, bool) {
	if h.r == nil {
		return 0, false
	}
	return h.r.next.id, h.r.next.ok
}
