package kernel

import (
	"math/bits"
	"strconv"
	"strings"
)

// MaxTasks is the capacity of the task table, one slot per TaskSet bit.
const MaxTasks = 32

// TaskID identifies a task slot. It doubles as the task priority: a lower ID
// always wins the scheduling decision.
type TaskID uint8

// IdleTask is the slot conventionally used for an always-ready idle task. It
// sits at the lowest priority so that it only runs when nothing else is ready.
// The kernel does not treat it specially.
const IdleTask TaskID = MaxTasks - 1

// Valid reports whether id addresses a slot of the task table.
func (id TaskID) Valid() bool { return id < MaxTasks }

// TaskSet is a fixed-width set of task IDs, one bit per ID.
//
// The untyped constant form (0b0110) is accepted wherever a TaskSet is expected.
type TaskSet uint32

// TasksOf returns the set containing the given IDs. Out-of-range IDs are ignored.
func TasksOf(ids ...TaskID) TaskSet {
	var s TaskSet
	for _, id := range ids {
		s = s.With(id)
	}
	return s
}

// Has reports whether id is a member of s.
func (s TaskSet) Has(id TaskID) bool {
	return id.Valid() && s&(1<<id) != 0
}

// With returns s plus id.
func (s TaskSet) With(id TaskID) TaskSet {
	if !id.Valid() {
		return s
	}
	return s | 1<<id
}

// Without returns s minus id.
func (s TaskSet) Without(id TaskID) TaskSet {
	if !id.Valid() {
		return s
	}
	return s &^ (1 << id)
}

// Union returns s ∪ o.
func (s TaskSet) Union(o TaskSet) TaskSet { return s | o }

// Intersect returns s ∩ o.
func (s TaskSet) Intersect(o TaskSet) TaskSet { return s & o }

// Minus returns s \ o.
func (s TaskSet) Minus(o TaskSet) TaskSet { return s &^ o }

// Empty reports whether s has no members.
func (s TaskSet) Empty() bool { return s == 0 }

// Len returns the number of members.
func (s TaskSet) Len() int { return bits.OnesCount32(uint32(s)) }

// Lowest returns the lowest ID in s, which is the highest priority member.
func (s TaskSet) Lowest() (TaskID, bool) {
	if s == 0 {
		return 0, false
	}
	return TaskID(bits.TrailingZeros32(uint32(s))), true
}

// Each calls fn for every member in ascending ID order.
func (s TaskSet) Each(fn func(TaskID)) {
	for s != 0 {
		id := TaskID(bits.TrailingZeros32(uint32(s)))
		fn(id)
		s &^= 1 << id
	}
}

// Mask returns the raw bitmask.
func (s TaskSet) Mask() uint32 { return uint32(s) }

func (s TaskSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	s.Each(func(id TaskID) {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(strconv.Itoa(int(id)))
	})
	b.WriteByte('}')
	return b.String()
}
