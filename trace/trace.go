// Package trace records which task held the CPU on every tick.
package trace

import (
	"fmt"
	"io"
	"text/tabwriter"

	"ember/kernel"
)

// Sample is the state observed at the end of one tick.
type Sample struct {
	Tick  uint64
	Task  kernel.TaskID
	Idle  bool // no task loaded yet
	Clock kernel.Clock
}

// Recorder keeps the most recent samples in a ring plus running totals.
// It is fed from the CPU's tick and switch hooks and is not safe for
// concurrent use.
type Recorder struct {
	ring  []Sample
	head  int
	count int

	ticks      uint64
	switches   uint64
	perTask    [kernel.MaxTasks]uint64
	boundaries [kernel.Hour + 1]uint64

	task   kernel.TaskID
	loaded bool
}

// NewRecorder returns a recorder keeping the last capacity samples.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 1
	}
	return &Recorder{ring: make([]Sample, capacity)}
}

// Switch records a context switch to task to.
func (r *Recorder) Switch(_ kernel.TaskID, _ bool, to kernel.TaskID) {
	r.switches++
	r.task, r.loaded = to, true
}

// Tick samples the task on the CPU.
func (r *Recorder) Tick(now kernel.Clock) {
	r.ticks++
	if r.loaded {
		r.perTask[r.task]++
	}
	r.ring[r.head] = Sample{Tick: r.ticks, Task: r.task, Idle: !r.loaded, Clock: now}
	r.head = (r.head + 1) % len(r.ring)
	if r.count < len(r.ring) {
		r.count++
	}
}

// NotifyBoundary counts clock boundaries.
func (r *Recorder) NotifyBoundary(g kernel.Granularity) {
	if int(g) < len(r.boundaries) {
		r.boundaries[g]++
	}
}

// Samples returns the retained samples, oldest first.
func (r *Recorder) Samples() []Sample {
	out := make([]Sample, 0, r.count)
	start := (r.head - r.count + len(r.ring)) % len(r.ring)
	for i := 0; i < r.count; i++ {
		out = append(out, r.ring[(start+i)%len(r.ring)])
	}
	return out
}

// Summary is the totals of a recording.
type Summary struct {
	Ticks      uint64
	Switches   uint64
	PerTask    map[kernel.TaskID]uint64
	Boundaries map[kernel.Granularity]uint64
}

// Summary returns the totals so far. Tasks that never held the CPU on a
// tick are left out.
func (r *Recorder) Summary() Summary {
	s := Summary{
		Ticks:      r.ticks,
		Switches:   r.switches,
		PerTask:    map[kernel.TaskID]uint64{},
		Boundaries: map[kernel.Granularity]uint64{},
	}
	for id, n := range r.perTask {
		if n > 0 {
			s.PerTask[kernel.TaskID(id)] = n
		}
	}
	for g, n := range r.boundaries {
		if n > 0 {
			s.Boundaries[kernel.Granularity(g)] = n
		}
	}
	return s
}

// WriteText writes the summary as an aligned table. names labels tasks;
// unnamed tasks print as their ID.
func (r *Recorder) WriteText(w io.Writer, names map[kernel.TaskID]string) error {
	s := r.Summary()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ticks\t%d\n", s.Ticks)
	fmt.Fprintf(tw, "switches\t%d\n", s.Switches)
	for g := kernel.Millisecond; g <= kernel.Hour; g++ {
		fmt.Fprintf(tw, "%s boundaries\t%d\n", g, s.Boundaries[g])
	}
	fmt.Fprintln(tw, "task\tname\tticks\tshare")
	for id := kernel.TaskID(0); id < kernel.MaxTasks; id++ {
		n, ok := s.PerTask[id]
		if !ok {
			continue
		}
		name := names[id]
		if name == "" {
			name = "-"
		}
		share := 0.0
		if s.Ticks > 0 {
			share = float64(n) * 100 / float64(s.Ticks)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f%%\n", id, name, n, share)
	}
	return tw.Flush()
}
