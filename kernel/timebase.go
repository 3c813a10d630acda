package kernel

// TimeBase is the periodic tick handler. Each tick makes the preemption
// decision against the clock as it was on entry, then advances the clock and
// reports the crossed boundaries, all inside one critical section.
type TimeBase struct {
	k        *Kernel
	clock    Clock
	notifier BoundaryNotifier
	ticks    uint64
}

// Tick handles one timer interrupt. It never blocks and never fails.
func (tb *TimeBase) Tick() {
	critical(tb.k.port, func() {
		tb.decide()
		tb.advance()
	})
}

// decide asks for a scheduling decision when preemption is enabled.
func (tb *TimeBase) decide() {
	r := &tb.k.reg
	if debugAsserts && !r.curr.Valid() {
		fault("tick: current task out of range", r.curr)
	}
	if r.preemptive {
		r.preempt(tb.k.port)
	}
}

// advance moves the clock and notifies each crossed boundary, finest first.
func (tb *TimeBase) advance() {
	tb.ticks++
	crossed := tb.clock.Advance()
	if tb.notifier == nil {
		return
	}
	crossed.Each(tb.notifier.NotifyBoundary)
}
