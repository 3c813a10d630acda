package timeevent

import (
	"testing"

	"ember/hal"
	"ember/kernel"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	released []kernel.TaskSet
	err      error
}

func (r *recorder) Release(mask kernel.TaskSet) error {
	if r.err != nil {
		return r.err
	}
	r.released = append(r.released, mask)
	return nil
}

func TestAddValidates(t *testing.T) {
	tbl := NewTable(&recorder{})

	_, err := tbl.Add(Event{Name: "zero", Unit: kernel.Second, Tasks: kernel.TasksOf(1)})
	require.ErrorIs(t, err, ErrInvalid)
	_, err = tbl.Add(Event{Name: "empty", Unit: kernel.Second, Every: 1})
	require.ErrorIs(t, err, ErrInvalid)
	_, err = tbl.Add(Event{Name: "unit", Unit: kernel.Hour + 1, Every: 1, Tasks: kernel.TasksOf(1)})
	require.ErrorIs(t, err, ErrInvalid)

	for i := 0; i < Capacity; i++ {
		slot, err := tbl.Add(Event{Unit: kernel.Millisecond, Every: 1, Tasks: kernel.TasksOf(1)})
		require.NoError(t, err)
		assert.Equal(t, i, slot)
	}
	_, err = tbl.Add(Event{Name: "extra", Unit: kernel.Millisecond, Every: 1, Tasks: kernel.TasksOf(1)})
	require.ErrorIs(t, err, ErrFull)
	assert.Equal(t, Capacity, tbl.Len())
}

func TestSweepReleasesDueEvents(t *testing.T) {
	rec := &recorder{}
	tbl := NewTable(rec)
	fast, err := tbl.Add(Event{Name: "fast", Unit: kernel.Millisecond, Every: 2, Tasks: kernel.TasksOf(1)})
	require.NoError(t, err)
	slow, err := tbl.Add(Event{Name: "slow", Unit: kernel.Second, Every: 1, Tasks: kernel.TasksOf(2, 3)})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		tbl.NotifyBoundary(kernel.Millisecond)
	}
	tbl.NotifyBoundary(kernel.Second)
	tbl.NotifyBoundary(kernel.Minute)

	want := []kernel.TaskSet{kernel.TasksOf(1), kernel.TasksOf(1), kernel.TasksOf(2, 3)}
	if diff := cmp.Diff(want, rec.released); diff != "" {
		t.Fatalf("released (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(2), tbl.Fires(fast))
	assert.Equal(t, uint64(1), tbl.Fires(slow))
	assert.Equal(t, uint64(3), tbl.Releases())
}

func TestOnceDisarms(t *testing.T) {
	rec := &recorder{}
	tbl := NewTable(rec)
	var seen []string
	tbl.OnRelease = func(ev Event) { seen = append(seen, ev.Name) }

	slot, err := tbl.Add(Event{Name: "boot", Unit: kernel.Millisecond, Every: 3, Tasks: kernel.TasksOf(4), Once: true})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		tbl.NotifyBoundary(kernel.Millisecond)
	}

	assert.Equal(t, []string{"boot"}, seen)
	assert.False(t, tbl.Armed(slot))
	assert.Equal(t, uint64(1), tbl.Fires(slot))
}

func TestDisarm(t *testing.T) {
	rec := &recorder{}
	tbl := NewTable(rec)
	slot, err := tbl.Add(Event{Unit: kernel.Millisecond, Every: 1, Tasks: kernel.TasksOf(0)})
	require.NoError(t, err)

	tbl.Disarm(slot)
	tbl.Disarm(42)
	tbl.NotifyBoundary(kernel.Millisecond)
	assert.Empty(t, rec.released)
	assert.Zero(t, tbl.Fires(42))
}

func TestParseUnit(t *testing.T) {
	for s, want := range map[string]kernel.Granularity{
		"ms": kernel.Millisecond, "sec": kernel.Second, "min": kernel.Minute, "hour": kernel.Hour,
	} {
		got, err := ParseUnit(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseUnit("day")
	require.ErrorIs(t, err, ErrInvalid)
}

// A periodic task blocks itself and is woken by a second event on the
// simulated CPU, with task 1 spinning in between.
func TestReleaseWakesBlockedTask(t *testing.T) {
	cpu := hal.NewSimCPU(4096)
	k := kernel.New(cpu, kernel.Config{})
	require.NoError(t, k.Init(true))
	tbl := NewTable(k)
	k.SetBoundaryNotifier(tbl)
	_, err := tbl.Add(Event{Name: "tick", Unit: kernel.Millisecond, Every: 10, Tasks: kernel.TasksOf(0)})
	require.NoError(t, err)

	var runs []uint64
	create := func(id kernel.TaskID, p hal.Program) {
		st, err := cpu.AllocStack(64)
		require.NoError(t, err)
		require.NoError(t, k.CreateTask(id, st, cpu.LoadProgram(p), 0))
	}
	create(0, func(*hal.Thread) {
		runs = append(runs, k.Ticks())
		require.NoError(t, k.BlockTasks(kernel.TasksOf(0)))
		require.NoError(t, k.Schedule())
	})
	create(1, func(th *hal.Thread) { th.Add(4, 1) })

	require.NoError(t, k.Start(1))
	for i := 0; i < 35; i++ {
		require.NoError(t, cpu.Step())
	}

	// released while tick 10 advances the clock, picked by tick 11's decision
	assert.Equal(t, []uint64{0, 11, 21, 31}, runs)
}

func TestRefusedReleaseIsCounted(t *testing.T) {
	rec := &recorder{err: kernel.ErrState}
	tbl := NewTable(rec)
	var errs []error
	var released []string
	tbl.OnError = func(ev Event, err error) { errs = append(errs, err) }
	tbl.OnRelease = func(ev Event) { released = append(released, ev.Name) }
	slot, err := tbl.Add(Event{Name: "tick", Unit: kernel.Millisecond, Every: 1, Tasks: kernel.TasksOf(1)})
	require.NoError(t, err)

	tbl.NotifyBoundary(kernel.Millisecond)
	tbl.NotifyBoundary(kernel.Millisecond)
	assert.Equal(t, uint64(2), tbl.Failures())
	assert.Zero(t, tbl.Releases())
	assert.Equal(t, uint64(2), tbl.Fires(slot))
	assert.Empty(t, released)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], kernel.ErrState)

	rec.err = nil
	tbl.NotifyBoundary(kernel.Millisecond)
	assert.Equal(t, uint64(1), tbl.Releases())
	assert.Equal(t, []string{"tick"}, released)
}
