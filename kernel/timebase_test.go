package kernel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boundaryLog struct {
	got []Granularity
}

func (l *boundaryLog) NotifyBoundary(g Granularity) { l.got = append(l.got, g) }

func (l *boundaryLog) count(g Granularity) int {
	n := 0
	for _, x := range l.got {
		if x == g {
			n++
		}
	}
	return n
}

func TestClockAdvanceRollsOver(t *testing.T) {
	c := Clock{Millis: 998}
	assert.Equal(t, Boundaries(0).with(Millisecond), c.Advance())
	b := c.Advance()
	assert.True(t, b.Has(Second))
	assert.False(t, b.Has(Minute))
	assert.Equal(t, Clock{Seconds: 1}, c)
}

func TestClockExactAfter1500Ticks(t *testing.T) {
	k, _ := newTestKernel(t, false)
	log := &boundaryLog{}
	k.SetBoundaryNotifier(log)

	secondAt := 0
	for i := 1; i <= 1500; i++ {
		before := log.count(Second)
		k.Tick()
		if log.count(Second) != before {
			secondAt = i
		}
	}

	assert.Equal(t, Clock{Millis: 500, Seconds: 1, Minutes: 0}, k.Clock())
	assert.Equal(t, 1500, log.count(Millisecond))
	assert.Equal(t, 1, log.count(Second))
	assert.Equal(t, 1000, secondAt)
	assert.Zero(t, log.count(Minute))
	assert.Zero(t, log.count(Hour))
	assert.Equal(t, uint64(1500), k.Ticks())
}

func TestClockBoundaryCascade(t *testing.T) {
	k, _ := newTestKernel(t, false)
	log := &boundaryLog{}
	k.SetBoundaryNotifier(log)
	require.NoError(t, k.SetClock(Clock{Minutes: 59, Seconds: 59, Millis: 999}))

	k.Tick()

	want := []Granularity{Millisecond, Second, Minute, Hour}
	if diff := cmp.Diff(want, log.got); diff != "" {
		t.Fatalf("boundaries mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Clock{}, k.Clock())
}

func TestSetClockRejectsOutOfRange(t *testing.T) {
	k, _ := newTestKernel(t, false)
	require.ErrorIs(t, k.SetClock(Clock{Seconds: 60}), ErrOutOfRange)
	require.ErrorIs(t, k.SetClock(Clock{Millis: 1000}), ErrOutOfRange)
	require.ErrorIs(t, k.SetClock(Clock{Minutes: 60}), ErrOutOfRange)
}

func TestTickPreemptsBeforeAdvancingClock(t *testing.T) {
	k, p := newTestKernel(t, true, 1, 2)
	startTestKernel(t, k, p)
	require.NoError(t, k.SetClock(Clock{Seconds: 59, Millis: 999}))

	var atDecision Clock
	var seen []Granularity
	k.SetBoundaryNotifier(NotifierFunc(func(g Granularity) {
		seen = append(seen, g)
		if g == Minute {
			// release happens after this tick's decision
			require.NoError(t, k.Release(TasksOf(1)))
		}
	}))
	require.NoError(t, k.BlockTasks(TasksOf(1)))

	atDecision = k.Clock()
	k.Tick()
	assert.Equal(t, TaskID(2), k.CurrentTID(), "decision used the state at tick entry")
	assert.Equal(t, Clock{Seconds: 59, Millis: 999}, atDecision)
	assert.Equal(t, []Granularity{Millisecond, Second, Minute}, seen)
	assert.False(t, p.masked, "critical section is released after the tick")

	p.service()
	k.Tick()
	assert.Equal(t, TaskID(1), k.CurrentTID(), "released task wins the next decision")
}

func TestTickWithoutPreemptionOnlyCounts(t *testing.T) {
	k, p := newTestKernel(t, false, 1, 2)
	startTestKernel(t, k, p)
	require.NoError(t, k.BlockTasks(TasksOf(1)))
	arms := p.arms

	log := &boundaryLog{}
	k.SetBoundaryNotifier(log)
	for i := 0; i < 1000; i++ {
		k.Tick()
	}
	assert.Equal(t, arms, p.arms)
	assert.Equal(t, TaskID(1), k.CurrentTID())
	assert.Equal(t, 1, log.count(Second))

	require.NoError(t, k.EnablePreemption())
	assert.True(t, k.IsPreemptive())
	k.Tick()
	assert.Equal(t, TaskID(2), k.CurrentTID())

	require.NoError(t, k.DisablePreemption())
	assert.False(t, k.IsPreemptive())
}

func TestBoundariesEachOrder(t *testing.T) {
	b := Boundaries(0).with(Hour).with(Millisecond).with(Minute)
	var got []Granularity
	b.Each(func(g Granularity) { got = append(got, g) })
	assert.Equal(t, []Granularity{Millisecond, Minute, Hour}, got)
	assert.Equal(t, "sec", Second.String())
}
