package kernel

import "fmt"

// Granularity is a clock unit whose rollover is reported to the time-event
// subsystem.
type Granularity uint8

const (
	Millisecond Granularity = iota
	Second
	Minute
	Hour

	granularities
)

func (g Granularity) String() string {
	switch g {
	case Millisecond:
		return "ms"
	case Second:
		return "sec"
	case Minute:
		return "min"
	case Hour:
		return "hour"
	default:
		return "unknown"
	}
}

// Boundaries is the set of granularities crossed by one tick.
type Boundaries uint8

// Has reports whether g was crossed.
func (b Boundaries) Has(g Granularity) bool { return b&(1<<g) != 0 }

func (b Boundaries) with(g Granularity) Boundaries { return b | 1<<g }

// Each calls fn for every crossed granularity, finest first.
func (b Boundaries) Each(fn func(Granularity)) {
	for g := Millisecond; g < granularities; g++ {
		if b.Has(g) {
			fn(g)
		}
	}
}

// Clock is the layered millisecond counter kept by the time base. Hours are
// not counted; only the Hour boundary is reported.
type Clock struct {
	Millis  uint32
	Seconds uint32
	Minutes uint32
}

// Advance moves the clock forward by one millisecond and returns the crossed
// boundaries. Millisecond is always crossed; each coarser unit is only
// considered when the finer one rolled over on this tick.
func (c *Clock) Advance() Boundaries {
	b := Boundaries(0).with(Millisecond)

	c.Millis++
	if c.Millis < 1000 {
		return b
	}
	c.Millis = 0
	c.Seconds++
	b = b.with(Second)

	if c.Seconds < 60 {
		return b
	}
	c.Seconds = 0
	c.Minutes++
	b = b.with(Minute)

	if c.Minutes < 60 {
		return b
	}
	c.Minutes = 0
	return b.with(Hour)
}

// Valid reports whether every field is inside its unit.
func (c Clock) Valid() bool {
	return c.Millis < 1000 && c.Seconds < 60 && c.Minutes < 60
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d.%03d", c.Minutes, c.Seconds, c.Millis)
}

// BoundaryNotifier is the time-event subsystem. NotifyBoundary runs inside
// the tick's critical section and must not block.
type BoundaryNotifier interface {
	NotifyBoundary(g Granularity)
}

// NotifierFunc adapts a function to BoundaryNotifier.
type NotifierFunc func(Granularity)

func (f NotifierFunc) NotifyBoundary(g Granularity) { f(g) }
