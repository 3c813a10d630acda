// Package tasks holds the task programs scenarios are built from.
//
// Programs keep all of their state in registers so that it travels with the
// task's context: R0 is the creation parameter, R4 counts completed units of
// work and R5 is scratch. A kernel call that fails jumps to address zero,
// which the CPU reports as a hard fault in the calling task.
package tasks

import (
	"sort"

	"ember/hal"
	"ember/kernel"
)

const (
	regParam = 0
	regCount = 4
	regLeft  = 5
	regPark  = 12

	// parked marks a retired task that is still on the CPU.
	parked = 0xDEAD_0E17
)

// Kernel is the part of the kernel facade task programs call.
type Kernel interface {
	BlockTasks(mask kernel.TaskSet) error
	Schedule() error
	TaskExit() error
	CurrentTID() kernel.TaskID
}

// Builder makes a program bound to k.
type Builder func(k Kernel) hal.Program

var builders = map[string]Builder{
	"idle":     func(Kernel) hal.Program { return Idle },
	"spin":     func(Kernel) hal.Program { return Spin },
	"yield":    Yield,
	"periodic": Periodic,
	"oneshot":  func(Kernel) hal.Program { return Oneshot },
}

// Lookup returns the builder registered under name.
func Lookup(name string) (Builder, bool) {
	b, ok := builders[name]
	return b, ok
}

// Names returns the registered program names, sorted.
func Names() []string {
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Count returns the units of work recorded in a task's registers.
func Count(regs hal.Registers) uint32 { return regs.R[regCount] }

func fail(t *hal.Thread) { t.Jump(0) }

// Idle counts idle slices. It never blocks, so it keeps the ready set
// non-empty when created at the lowest priority.
func Idle(t *hal.Thread) { t.Add(regCount, 1) }

// Spin is a CPU-bound task: one unit of work per slice, forever. The work
// steps a linear congruential generator in R5.
func Spin(t *hal.Thread) {
	t.SetR(regLeft, t.R(regLeft)*1664525+1013904223)
	t.Add(regCount, 1)
}

// Yield does one unit of work per slice and offers the CPU every param
// slices. It only loses the CPU to a higher priority ready task.
func Yield(k Kernel) hal.Program {
	return func(t *hal.Thread) {
		n := t.Add(regCount, 1)
		every := t.R(regParam)
		if every == 0 {
			every = 1
		}
		if n%every != 0 {
			return
		}
		if err := k.Schedule(); err != nil {
			fail(t)
		}
	}
}

// Periodic works param slices, then blocks itself until an event releases
// it. R4 counts completed periods.
func Periodic(k Kernel) hal.Program {
	return func(t *hal.Thread) {
		if t.R(regLeft) == 0 {
			n := t.R(regParam)
			if n == 0 {
				n = 1
			}
			t.SetR(regLeft, n)
		}
		if t.Add(regLeft, ^uint32(0)) != 0 {
			return
		}
		t.Add(regCount, 1)
		if err := k.BlockTasks(kernel.TasksOf(k.CurrentTID())); err != nil {
			fail(t)
			return
		}
		if err := k.Schedule(); err != nil {
			fail(t)
		}
	}
}

// Oneshot works param slices and returns. The return lands in the task
// return stub, which retires the task.
func Oneshot(t *hal.Thread) {
	if t.Add(regCount, 1) >= t.R(regParam) {
		t.Return()
	}
}

// Exit is the task return stub: it retires the calling task. When no other
// task is ready the retired task keeps the CPU; the stub then parks and only
// yields on every later slice, so a released task takes over even without
// preemption.
func Exit(k Kernel) hal.Program {
	return func(t *hal.Thread) {
		if t.R(regPark) == parked {
			if err := k.Schedule(); err != nil {
				fail(t)
			}
			return
		}
		if err := k.TaskExit(); err != nil {
			fail(t)
			return
		}
		t.SetR(regPark, parked)
	}
}

// Parked reports whether regs belong to a retired task waiting in the exit
// stub.
func Parked(regs hal.Registers) bool { return regs.R[regPark] == parked }
