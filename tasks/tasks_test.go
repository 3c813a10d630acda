package tasks

import (
	"testing"

	"ember/hal"
	"ember/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rig struct {
	cpu *hal.SimCPU
	k   *kernel.Kernel
}

func newRig(t *testing.T, preemptive bool) *rig {
	t.Helper()
	r := &rig{cpu: hal.NewSimCPU(4096)}
	var k *kernel.Kernel
	exit := r.cpu.LoadProgram(func(th *hal.Thread) { Exit(k)(th) })
	k = kernel.New(r.cpu, kernel.Config{TaskReturn: exit})
	r.k = k
	require.NoError(t, k.Init(preemptive))
	return r
}

func (r *rig) create(t *testing.T, id kernel.TaskID, p hal.Program, param uint32) {
	t.Helper()
	st, err := r.cpu.AllocStack(64)
	require.NoError(t, err)
	require.NoError(t, r.k.CreateTask(id, st, r.cpu.LoadProgram(p), param))
}

func (r *rig) run(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, r.cpu.Step())
	}
}

func TestLookup(t *testing.T) {
	assert.Equal(t, []string{"idle", "oneshot", "periodic", "spin", "yield"}, Names())
	for _, n := range Names() {
		b, ok := Lookup(n)
		require.True(t, ok, n)
		assert.NotNil(t, b(nil))
	}
	_, ok := Lookup("nope")
	assert.False(t, ok)
}

func TestOneshotExitsToIdle(t *testing.T) {
	r := newRig(t, false)
	r.create(t, 2, Oneshot, 3)
	r.create(t, kernel.IdleTask, Idle, 0)
	require.NoError(t, r.k.Start(1000))

	// three slices of work, the return stub, then idle
	r.run(t, 6)

	s := r.k.State()
	assert.Equal(t, kernel.TasksOf(2), s.Exited)
	id, _ := r.cpu.Running()
	assert.Equal(t, kernel.IdleTask, id)
	assert.Equal(t, uint32(2), Count(r.cpu.Registers()))
}

func TestPeriodicBlocksItself(t *testing.T) {
	r := newRig(t, false)
	r.create(t, 1, Periodic(r.k), 2)
	r.create(t, kernel.IdleTask, Idle, 0)
	require.NoError(t, r.k.Start(1000))

	r.run(t, 2)
	assert.True(t, r.k.State().Blocked.Has(1))
	id, _ := r.cpu.Running()
	assert.Equal(t, kernel.IdleTask, id)

	require.NoError(t, r.k.Release(kernel.TasksOf(1)))
	require.NoError(t, r.k.Schedule())
	id, _ = r.cpu.Running()
	assert.Equal(t, kernel.TaskID(1), id)

	r.run(t, 2)
	assert.True(t, r.k.State().Blocked.Has(1))
	r.run(t, 1)
	id, _ = r.cpu.Running()
	assert.Equal(t, kernel.IdleTask, id)

	require.NoError(t, r.k.Release(kernel.TasksOf(1)))
	require.NoError(t, r.k.Schedule())
	assert.Equal(t, uint32(2), Count(r.cpu.Registers()), "two periods completed")
}

func TestYieldOnlyLosesToHigherPriority(t *testing.T) {
	r := newRig(t, false)
	r.create(t, 0, Periodic(r.k), 1)
	r.create(t, 5, Yield(r.k), 2)
	require.NoError(t, r.k.Start(1000))

	// task 0 works once and blocks; task 5 then yields to nobody
	r.run(t, 5)
	id, _ := r.cpu.Running()
	assert.Equal(t, kernel.TaskID(5), id)
	assert.Equal(t, uint32(4), Count(r.cpu.Registers()))

	// released, task 0 gets the CPU at task 5's next yield, not before
	require.NoError(t, r.k.Release(kernel.TasksOf(0)))
	r.run(t, 1)
	id, _ = r.cpu.Running()
	assert.Equal(t, kernel.TaskID(5), id)
	r.run(t, 1)
	id, _ = r.cpu.Running()
	assert.Equal(t, kernel.TaskID(0), id)
}

func TestSpinAdvancesGenerator(t *testing.T) {
	var regs hal.Registers
	th := hal.NewThread(&regs)
	Spin(th)
	Spin(th)
	assert.Equal(t, uint32(2), Count(regs))
	c := uint32(1013904223)
	assert.Equal(t, c*1664525+c, regs.R[regLeft])
}

type exitKernel struct {
	exits, schedules int
}

func (k *exitKernel) BlockTasks(kernel.TaskSet) error { return nil }
func (k *exitKernel) Schedule() error                 { k.schedules++; return nil }
func (k *exitKernel) TaskExit() error                 { k.exits++; return nil }
func (k *exitKernel) CurrentTID() kernel.TaskID       { return 0 }

func TestExitParksWhenNothingElseIsReady(t *testing.T) {
	k := &exitKernel{}
	var regs hal.Registers
	th := hal.NewThread(&regs)
	stub := Exit(k)

	stub(th)
	assert.True(t, Parked(regs))
	for i := 0; i < 4; i++ {
		stub(th)
	}
	assert.Equal(t, 1, k.exits, "the task is retired once")
	assert.Equal(t, 4, k.schedules, "a parked task only yields")
}

func TestParkedTaskHandsOverOnRelease(t *testing.T) {
	r := newRig(t, false)
	r.create(t, 1, Periodic(r.k), 1)
	r.create(t, 2, Oneshot, 1)
	require.NoError(t, r.k.Start(1000))

	// task 1 blocks after one slice, task 2 returns and parks in the stub
	r.run(t, 4)
	id, _ := r.cpu.Running()
	require.Equal(t, kernel.TaskID(2), id)
	require.True(t, Parked(r.cpu.Registers()))
	assert.True(t, r.k.State().Exited.Has(2))

	require.NoError(t, r.k.Release(kernel.TasksOf(1)))
	r.run(t, 1)
	id, _ = r.cpu.Running()
	assert.Equal(t, kernel.TaskID(1), id)
}
