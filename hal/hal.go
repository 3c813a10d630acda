package hal

import (
	"errors"

	"ember/kernel"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// ErrHalt is returned by an application step function when the system has
// finished; runners stop cleanly on it.
var ErrHalt = errors.New("halt")

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Time provides a wall-clock millisecond tick stream. Hosts use it to compare
// kernel time with real time. Bare-metal HALs return nil: SysTick belongs to
// the kernel there.
type Time interface {
	Ticks() <-chan uint64
}

// Program is task code. The CPU runs it one slice at a time; interrupts are
// only taken between slices, so a slice is atomic with respect to the tick
// and the switch trap. All task state lives in the Thread registers.
type Program func(t *Thread)

// CPU is the processor the kernel runs on: the kernel.Port plus the memory
// and code services boot code needs to create tasks.
type CPU interface {
	kernel.Port

	// AllocStack reserves task stack memory of the given size in words.
	AllocStack(words int) (kernel.Stack, error)
	// LoadProgram places p in code memory and returns its entry address.
	LoadProgram(p Program) uint32
	// SetTaskPrivilege selects whether tasks resume privileged or not.
	SetTaskPrivilege(privileged bool)
	// Step runs the CPU until the next point where it can be observed: one
	// program slice on the simulator, one interrupt on hardware.
	Step() error
}

// HAL provides the only contact point between the OS and the outside world.
type HAL interface {
	Logger() Logger
	Display() Display
	Time() Time
	CPU() CPU
}
