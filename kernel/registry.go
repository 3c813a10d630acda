package kernel

type taskSlot struct {
	tcb   TCB
	stack Stack
}

type handoffSlot struct {
	id TaskID
	ok bool
}

// Registry is the task table and the scheduling state. Its methods assume the
// caller holds the critical section; Kernel takes care of that.
type Registry struct {
	slots [MaxTasks]taskSlot

	active  TaskSet
	blocked TaskSet
	exited  TaskSet

	curr       TaskID
	running    bool
	started    bool
	preemptive bool
	ready      bool // Init has run

	current handoffSlot
	next    handoffSlot
}

// reset returns the registry to its boot configuration.
func (r *Registry) reset(preemptive bool) {
	*r = Registry{preemptive: preemptive, ready: true}
}

// create formats the stack for id and marks it active.
//
// IDs are direct indexes into the table. An ID is never handed out twice: a
// create on an exited ID fails the same way as a create on an active one.
func (r *Registry) create(id TaskID, st Stack, entry, param, ret uint32) error {
	if !id.Valid() {
		return ErrOutOfRange
	}
	if r.active.Has(id) || r.exited.Has(id) {
		return ErrDuplicateTask
	}
	sp, err := formatStack(st, entry, param, ret)
	if err != nil {
		return err
	}
	r.slots[id] = taskSlot{tcb: TCB{SP: sp}, stack: st}
	r.active = r.active.With(id)
	return nil
}

// NextTID returns the highest priority ready task, or the current task when
// nothing is ready. It does not modify the registry.
func (r *Registry) NextTID() TaskID {
	if id, ok := r.Ready().Lowest(); ok {
		return id
	}
	return r.curr
}

// preempt switches to NextTID when it differs from the current task. Until
// the first switch is armed no task owns the CPU, so the first decision
// always switches, even to the task whose ID curr already holds.
func (r *Registry) preempt(trap SwitchTrap) {
	if !r.running {
		return
	}
	next := r.NextTID()
	if next != r.curr || !r.started {
		r.contextSwitch(r.curr, next, trap)
	}
}

// contextSwitch publishes the handoff slots and arms the trap. The register
// transfer happens later, when the trap is serviced.
//
// While a previous switch is still pending the task on the CPU has not
// changed, so the current slot stays as published and only next moves.
func (r *Registry) contextSwitch(curr, next TaskID, trap SwitchTrap) {
	switch {
	case !r.started:
		r.started = true
		r.current = handoffSlot{}
	case !trap.SwitchPending():
		r.current = handoffSlot{id: curr, ok: true}
	}
	r.curr = next
	r.next = handoffSlot{id: next, ok: true}
	trap.PendSwitch()
}

func (r *Registry) block(mask TaskSet) {
	r.blocked = r.blocked.Union(mask.Intersect(r.active))
}

func (r *Registry) unblock(mask TaskSet) {
	r.blocked = r.blocked.Minus(mask.Intersect(r.active))
}

// exit retires id for good.
func (r *Registry) exit(id TaskID) {
	r.active = r.active.Without(id)
	r.blocked = r.blocked.Without(id)
	r.exited = r.exited.With(id)
}

// Active returns the created, not exited tasks.
func (r *Registry) Active() TaskSet { return r.active }

// Blocked returns the parked tasks.
func (r *Registry) Blocked() TaskSet { return r.blocked }

// Exited returns the retired task IDs.
func (r *Registry) Exited() TaskSet { return r.exited }

// Ready returns active \ blocked.
func (r *Registry) Ready() TaskSet { return r.active.Minus(r.blocked) }

// Current returns the ID of the task that owns (or is about to own) the CPU.
func (r *Registry) Current() TaskID { return r.curr }

// Running reports whether the kernel has started.
func (r *Registry) Running() bool { return r.running }

// Started reports whether the first context switch has been requested.
func (r *Registry) Started() bool { return r.started }

// Preemptive reports the scheduling mode.
func (r *Registry) Preemptive() bool { return r.preemptive }

// TCB returns the control block of an active task.
func (r *Registry) TCB(id TaskID) (*TCB, bool) {
	if !r.active.Has(id) {
		return nil, false
	}
	return &r.slots[id].tcb, true
}
