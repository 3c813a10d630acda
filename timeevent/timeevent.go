// Package timeevent releases blocked tasks on clock boundaries.
//
// A Table is the kernel's BoundaryNotifier: on every boundary the time base
// reports, it sweeps the events of that granularity and releases the task
// masks of those that are due. Sweeps run in the tick handler, so they never
// allocate or block.
package timeevent

import (
	"errors"
	"fmt"

	"ember/kernel"
)

// Capacity is the number of events a Table holds.
const Capacity = 16

var (
	ErrFull    = errors.New("event table full")
	ErrInvalid = errors.New("invalid event")
)

// Releaser wakes task masks. *kernel.Kernel implements it.
type Releaser interface {
	Release(mask kernel.TaskSet) error
}

// Event releases Tasks every Every boundaries of Unit.
type Event struct {
	Name  string
	Unit  kernel.Granularity
	Every uint32
	Tasks kernel.TaskSet
	// Once disarms the event after its first release.
	Once bool
}

func (e Event) validate() error {
	switch {
	case e.Every == 0:
		return fmt.Errorf("event %q: every must be positive: %w", e.Name, ErrInvalid)
	case e.Tasks.Empty():
		return fmt.Errorf("event %q: no tasks: %w", e.Name, ErrInvalid)
	case e.Unit > kernel.Hour:
		return fmt.Errorf("event %q: unit %d: %w", e.Name, e.Unit, ErrInvalid)
	}
	return nil
}

type entry struct {
	ev    Event
	count uint32
	armed bool
	fires uint64
}

// Table is a fixed-capacity set of periodic events.
type Table struct {
	r       Releaser
	entries [Capacity]entry
	n       int

	releases uint64
	failures uint64
	// OnRelease, if set, observes every release from the sweep.
	OnRelease func(ev Event)
	// OnError, if set, observes every release the kernel refused. The sweep
	// runs in the tick handler, so the error is reported, never returned.
	OnError func(ev Event, err error)
}

// NewTable returns an empty table that releases through r.
func NewTable(r Releaser) *Table {
	return &Table{r: r}
}

// Add arms ev and returns its slot.
func (t *Table) Add(ev Event) (int, error) {
	if err := ev.validate(); err != nil {
		return -1, err
	}
	if t.n == Capacity {
		return -1, fmt.Errorf("add event %q: %w", ev.Name, ErrFull)
	}
	i := t.n
	t.entries[i] = entry{ev: ev, armed: true}
	t.n++
	return i, nil
}

// Disarm stops the event in slot i from firing.
func (t *Table) Disarm(i int) {
	if i >= 0 && i < t.n {
		t.entries[i].armed = false
	}
}

// Armed reports whether slot i will fire again.
func (t *Table) Armed(i int) bool {
	return i >= 0 && i < t.n && t.entries[i].armed
}

// Fires returns how many times slot i has come due, refused releases included.
func (t *Table) Fires(i int) uint64 {
	if i < 0 || i >= t.n {
		return 0
	}
	return t.entries[i].fires
}

// Len returns the number of events added.
func (t *Table) Len() int { return t.n }

// Releases returns the total number of releases.
func (t *Table) Releases() uint64 { return t.releases }

// Failures returns the number of releases the kernel refused.
func (t *Table) Failures() uint64 { return t.failures }

// NotifyBoundary sweeps the events of granularity g.
func (t *Table) NotifyBoundary(g kernel.Granularity) {
	for i := 0; i < t.n; i++ {
		e := &t.entries[i]
		if !e.armed || e.ev.Unit != g {
			continue
		}
		e.count++
		if e.count < e.ev.Every {
			continue
		}
		e.count = 0
		e.fires++
		if e.ev.Once {
			e.armed = false
		}
		if err := t.r.Release(e.ev.Tasks); err != nil {
			t.failures++
			if t.OnError != nil {
				t.OnError(e.ev, err)
			}
			continue
		}
		t.releases++
		if t.OnRelease != nil {
			t.OnRelease(e.ev)
		}
	}
}

// ParseUnit maps "ms", "sec", "min" and "hour" to a granularity.
func ParseUnit(s string) (kernel.Granularity, error) {
	for g := kernel.Millisecond; g <= kernel.Hour; g++ {
		if g.String() == s {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unit %q: %w", s, ErrInvalid)
}
