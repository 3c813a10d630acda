package kernel

import "fmt"

// Config holds the board-level constants the kernel needs.
type Config struct {
	// TaskReturn is the code address a task entry function returns into. It
	// becomes LR of every initial frame and normally points at a stub that
	// calls TaskExit.
	TaskReturn uint32
}

// State is a consistent snapshot of the scheduling state.
type State struct {
	Active     TaskSet
	Blocked    TaskSet
	Exited     TaskSet
	Current    TaskID
	Running    bool
	Started    bool
	Preemptive bool
}

// Kernel is the scheduling core: task registry, time base and privilege gate
// over one CPU port. There is exactly one per CPU; all of its state changes
// happen inside the port's critical section.
type Kernel struct {
	port Port
	cfg  Config

	reg  Registry
	gate PrivilegeGate
	tb   TimeBase
}

// New creates a kernel on port and installs its exception vectors. Init must
// be called before anything else.
func New(port Port, cfg Config) *Kernel {
	k := &Kernel{port: port, cfg: cfg, gate: PrivilegeGate{port: port}}
	k.tb.k = k
	port.InstallVectors(Vectors{SysTick: k.Tick, SVCall: k.HandleSVC, Handoff: k.Handoff()})
	return k
}

// Init resets the kernel to its boot configuration in the given scheduling
// mode. It fails once the kernel is running.
func (k *Kernel) Init(preemptive bool) error {
	var err error
	critical(k.port, func() {
		if k.reg.running {
			err = fmt.Errorf("init: %w", ErrState)
			return
		}
		k.reg.reset(preemptive)
		k.tb.clock = Clock{}
		k.tb.ticks = 0
	})
	return err
}

// Start arms the periodic tick and performs the first scheduling decision.
// It runs privileged and can only succeed once.
func (k *Kernel) Start(tickPeriod uint32) error {
	err := k.gate.Run(func() error {
		var err error
		critical(k.port, func() {
			switch {
			case !k.reg.ready:
				err = ErrState
			case k.reg.running:
				err = ErrState
			}
		})
		if err != nil {
			return err
		}
		if err := k.port.StartTimer(tickPeriod); err != nil {
			return err
		}
		critical(k.port, func() {
			k.reg.running = true
			k.reg.preempt(k.port)
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("start kernel: %w", err)
	}
	return nil
}

// CreateTask registers a task at id. The stack is formatted so that the first
// switch to the task resumes it at entry with param in R0.
func (k *Kernel) CreateTask(id TaskID, st Stack, entry, param uint32) error {
	err := k.gate.Run(func() error {
		var err error
		critical(k.port, func() {
			if !k.reg.ready {
				err = ErrState
				return
			}
			err = k.reg.create(id, st, entry, param, k.cfg.TaskReturn)
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("create task %d: %w", id, err)
	}
	return nil
}

// Schedule yields the CPU to the highest priority ready task. Unprivileged
// callers are routed through the supervisor trap; the outcome is the same.
func (k *Kernel) Schedule() error {
	if !k.initialized() {
		return fmt.Errorf("schedule: %w", ErrState)
	}
	if k.port.Privileged() {
		k.preempt()
		return nil
	}
	k.port.SupervisorCall(SVCSchedule)
	return nil
}

// BlockTasks parks the active tasks in mask. It does not switch by itself.
func (k *Kernel) BlockTasks(mask TaskSet) error {
	return k.mutate("block tasks", func(r *Registry) { r.block(mask) })
}

// UnblockTasks makes the tasks in mask eligible again. It does not switch by
// itself.
func (k *Kernel) UnblockTasks(mask TaskSet) error {
	return k.mutate("unblock tasks", func(r *Registry) { r.unblock(mask) })
}

// Release wakes the tasks in mask on behalf of an event. The released tasks
// compete from the next scheduling decision on; call Schedule to take it now.
func (k *Kernel) Release(mask TaskSet) error {
	return k.mutate("release", func(r *Registry) { r.unblock(mask) })
}

// TaskExit retires the calling task. Its ID is never scheduled or reused
// again. When no other task is ready the retired task stays on the CPU: debug
// builds fault, other builds leave it there until a release makes another
// task ready. The caller must not run task code after a successful return;
// the task return stub parks and yields instead.
func (k *Kernel) TaskExit() error {
	var err error
	critical(k.port, func() {
		if !k.reg.ready || !k.reg.running {
			err = ErrState
			return
		}
		k.reg.exit(k.reg.curr)
		if debugAsserts && k.reg.Ready().Empty() {
			fault("task exit: no ready task left", k.reg.curr)
		}
	})
	if err != nil {
		return fmt.Errorf("task exit: %w", err)
	}
	return k.Schedule()
}

// EnablePreemption lets the tick switch tasks.
func (k *Kernel) EnablePreemption() error {
	return k.mutate("enable preemption", func(r *Registry) { r.preemptive = true })
}

// DisablePreemption limits switches to explicit Schedule calls. The clock
// keeps running.
func (k *Kernel) DisablePreemption() error {
	return k.mutate("disable preemption", func(r *Registry) { r.preemptive = false })
}

// IsPreemptive reports the scheduling mode.
func (k *Kernel) IsPreemptive() bool {
	var v bool
	critical(k.port, func() { v = k.reg.preemptive })
	return v
}

// CurrentTID returns the task that owns the CPU, or will once the pending
// switch is serviced.
func (k *Kernel) CurrentTID() TaskID {
	var id TaskID
	critical(k.port, func() { id = k.reg.curr })
	return id
}

// NextTID returns the task the next scheduling decision would pick.
func (k *Kernel) NextTID() TaskID {
	var id TaskID
	critical(k.port, func() { id = k.reg.NextTID() })
	return id
}

// State returns a snapshot of the scheduling state.
func (k *Kernel) State() State {
	var s State
	critical(k.port, func() {
		r := &k.reg
		s = State{
			Active:     r.active,
			Blocked:    r.blocked,
			Exited:     r.exited,
			Current:    r.curr,
			Running:    r.running,
			Started:    r.started,
			Preemptive: r.preemptive,
		}
	})
	return s
}

// Handoff returns the switch trampoline's view of the pending switch.
func (k *Kernel) Handoff() Handoff {
	return Handoff{r: &k.reg}
}

// SetBoundaryNotifier installs the time-event subsystem.
func (k *Kernel) SetBoundaryNotifier(n BoundaryNotifier) {
	critical(k.port, func() { k.tb.notifier = n })
}

// Clock returns the time base counters.
func (k *Kernel) Clock() Clock {
	var c Clock
	critical(k.port, func() { c = k.tb.clock })
	return c
}

// SetClock loads the time base counters, e.g. from a real-time clock.
func (k *Kernel) SetClock(c Clock) error {
	if !c.Valid() {
		return fmt.Errorf("set clock %s: %w", c, ErrOutOfRange)
	}
	critical(k.port, func() { k.tb.clock = c })
	return nil
}

// Ticks returns the number of ticks handled since Init.
func (k *Kernel) Ticks() uint64 {
	var n uint64
	critical(k.port, func() { n = k.tb.ticks })
	return n
}

// Tick is the SysTick vector.
func (k *Kernel) Tick() { k.tb.Tick() }

// HandleSVC is the SVCall vector. It runs in handler mode, which is always
// privileged.
func (k *Kernel) HandleSVC(n SVC) {
	switch n {
	case SVCElevate:
		if err := k.port.SetThreadPrivileged(true); err != nil && debugAsserts {
			fault("svc elevate: "+err.Error(), k.reg.curr)
		}
	case SVCSchedule:
		k.preempt()
	default:
		if debugAsserts {
			fault("svc: unknown call "+n.String(), k.reg.curr)
		}
	}
}

func (k *Kernel) preempt() {
	critical(k.port, func() { k.reg.preempt(k.port) })
}

func (k *Kernel) initialized() bool {
	var ok bool
	critical(k.port, func() { ok = k.reg.ready })
	return ok
}

func (k *Kernel) mutate(op string, fn func(r *Registry)) error {
	var err error
	critical(k.port, func() {
		if !k.reg.ready {
			err = ErrState
			return
		}
		fn(&k.reg)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
