package hal

import (
	"errors"
	"fmt"

	"ember/kernel"
)

const (
	simRAMBase  = 0x2000_0000
	simCodeBase = 0x0800_0000

	// DefaultSimRAMWords is 256 KiB of simulated SRAM.
	DefaultSimRAMWords = 64 * 1024

	// sysTickMaxReload is the 24-bit SysTick reload limit.
	sysTickMaxReload = 1<<24 - 1
)

var errNoProgram = errors.New("no program at address")

// SimHooks observe the simulated CPU. They run in handler mode with the
// kernel state consistent.
type SimHooks struct {
	// Tick runs after every SysTick handler.
	Tick func(ticks uint64)
	// Switch runs after every context switch. from is only meaningful when
	// fromOK is set; the first switch has no outgoing task.
	Switch func(from kernel.TaskID, fromOK bool, to kernel.TaskID)
}

// SimCPU is a host model of a single Cortex-M core. Programs run in slices;
// SysTick, SVCall and PendSV are taken between slices. Task stacks live in a
// simulated SRAM so that switch frames are stored and loaded the way the
// PendSV trampoline does on hardware.
type SimCPU struct {
	regs Registers

	primask        bool
	nPRIV          bool
	handler        int
	inSlice        bool
	taskPrivileged bool

	pendSV      bool
	tickPending bool
	reload      uint32
	count       uint32

	vectors kernel.Vectors
	hooks   SimHooks

	ram     []uint32
	ramUsed int
	code    []Program

	loaded bool
	task   kernel.TaskID

	steps    uint64
	ticks    uint64
	switches uint64
	err      error
}

// NewSimCPU returns a CPU in privileged thread mode with interrupts enabled.
func NewSimCPU(ramWords int) *SimCPU {
	if ramWords <= 0 {
		ramWords = DefaultSimRAMWords
	}
	return &SimCPU{
		ram:            make([]uint32, ramWords),
		taskPrivileged: true,
	}
}

// SetHooks installs observers for ticks and switches.
func (c *SimCPU) SetHooks(h SimHooks) { c.hooks = h }

func (c *SimCPU) InstallVectors(v kernel.Vectors) { c.vectors = v }

func (c *SimCPU) SetTaskPrivilege(privileged bool) { c.taskPrivileged = privileged }

// AllocStack carves a stack out of simulated SRAM. Stacks are never freed.
func (c *SimCPU) AllocStack(words int) (kernel.Stack, error) {
	if words <= 0 {
		return kernel.Stack{}, fmt.Errorf("alloc stack: invalid size %d", words)
	}
	// keep every stack 8-byte aligned
	start := c.ramUsed + c.ramUsed%2
	if start+words > len(c.ram) {
		return kernel.Stack{}, fmt.Errorf("alloc stack of %d words: out of memory (%d of %d used)", words, c.ramUsed, len(c.ram))
	}
	c.ramUsed = start + words
	return kernel.Stack{
		Words: c.ram[start : start+words : start+words],
		Base:  simRAMBase + uintptr(start)*4,
	}, nil
}

// LoadProgram places p in code memory. Entry addresses carry the thumb bit
// like function pointers on hardware do.
func (c *SimCPU) LoadProgram(p Program) uint32 {
	c.code = append(c.code, p)
	return (simCodeBase + uint32(len(c.code)-1)*4) | 1
}

func (c *SimCPU) fetch(pc uint32) (Program, error) {
	if pc < simCodeBase || pc%4 != 0 {
		return nil, fmt.Errorf("%w %#08x", errNoProgram, pc)
	}
	i := int((pc - simCodeBase) / 4)
	if i >= len(c.code) || c.code[i] == nil {
		return nil, fmt.Errorf("%w %#08x", errNoProgram, pc)
	}
	return c.code[i], nil
}

// Step runs one slice of the loaded task, advances SysTick by one count and
// takes any exception that became pending. A hard fault stops the CPU; every
// later Step returns the same error.
func (c *SimCPU) Step() error {
	if c.err != nil {
		return c.err
	}
	if c.loaded {
		p, err := c.fetch(c.regs.PC)
		if err != nil {
			c.hardFault(err)
			return c.err
		}
		c.inSlice = true
		p(&Thread{regs: &c.regs, privileged: c.Privileged})
		c.inSlice = false
	}
	c.steps++
	c.countTimer()
	c.takeExceptions()
	return c.err
}

func (c *SimCPU) countTimer() {
	if c.reload == 0 {
		return
	}
	c.count++
	if c.count >= c.reload {
		c.count = 0
		c.tickPending = true
	}
}

// takeExceptions runs pending exceptions in priority order. Inside a slice
// they stay pending until the slice ends; the slice is one instruction.
func (c *SimCPU) takeExceptions() {
	if c.primask || c.handler > 0 || c.inSlice {
		return
	}
	// SysTick outranks PendSV so a tick's decision is serviced by the same
	// exception return.
	if c.tickPending {
		c.tickPending = false
		c.exception(c.sysTick)
	}
	if c.pendSV && c.err == nil {
		c.pendSV = false
		c.exception(c.switchContext)
	}
}

func (c *SimCPU) exception(fn func()) {
	c.handler++
	defer func() { c.handler-- }()
	fn()
}

func (c *SimCPU) sysTick() {
	c.ticks++
	if c.vectors.SysTick != nil {
		c.vectors.SysTick()
	}
	if c.hooks.Tick != nil {
		c.hooks.Tick(c.ticks)
	}
}

// switchContext is the PendSV trampoline: save the outgoing context below its
// stack pointer, publish the new stack pointer in its control block, then
// restore the incoming context from the frame its control block names.
func (c *SimCPU) switchContext() {
	h := c.vectors.Handoff
	next := h.Next()
	if next == nil {
		c.hardFault(errors.New("switch trap without a next task"))
		return
	}
	from, fromOK := c.task, c.loaded
	if cur := h.Current(); cur != nil {
		sp := c.regs.SP - kernel.FrameWords*4
		f, err := c.frame(sp)
		if err != nil {
			c.hardFault(fmt.Errorf("save context: %w", err))
			return
		}
		c.save(f)
		cur.SP = sp
	}
	f, err := c.frame(next.SP)
	if err != nil {
		c.hardFault(fmt.Errorf("restore context: %w", err))
		return
	}
	c.restore(f)
	c.regs.SP = next.SP + kernel.FrameWords*4

	to, _ := h.NextID()
	c.task, c.loaded = to, true
	c.nPRIV = !c.taskPrivileged
	c.switches++
	if c.hooks.Switch != nil {
		c.hooks.Switch(from, fromOK, to)
	}
}

func (c *SimCPU) frame(sp uintptr) ([]uint32, error) {
	if sp < simRAMBase || sp%4 != 0 {
		return nil, fmt.Errorf("bus fault at %#x", sp)
	}
	i := int((sp - simRAMBase) / 4)
	if i+kernel.FrameWords > len(c.ram) {
		return nil, fmt.Errorf("bus fault at %#x", sp)
	}
	return c.ram[i : i+kernel.FrameWords], nil
}

func (c *SimCPU) save(f []uint32) {
	for i := 0; i < 8; i++ {
		f[kernel.FrameR4+i] = c.regs.R[4+i]
	}
	for i := 0; i < 4; i++ {
		f[kernel.FrameR0+i] = c.regs.R[i]
	}
	f[kernel.FrameR12] = c.regs.R[12]
	f[kernel.FrameLR] = c.regs.LR
	f[kernel.FramePC] = c.regs.PC
	f[kernel.FrameXPSR] = c.regs.XPSR
}

func (c *SimCPU) restore(f []uint32) {
	for i := 0; i < 8; i++ {
		c.regs.R[4+i] = f[kernel.FrameR4+i]
	}
	for i := 0; i < 4; i++ {
		c.regs.R[i] = f[kernel.FrameR0+i]
	}
	c.regs.R[12] = f[kernel.FrameR12]
	c.regs.LR = f[kernel.FrameLR]
	c.regs.PC = f[kernel.FramePC]
	c.regs.XPSR = f[kernel.FrameXPSR]
}

func (c *SimCPU) hardFault(err error) {
	if c.err != nil {
		return
	}
	if c.loaded {
		c.err = fmt.Errorf("hard fault in task %d: %w", c.task, err)
		return
	}
	c.err = fmt.Errorf("hard fault: %w", err)
}

func (c *SimCPU) DisableInterrupts() uintptr {
	var state uintptr
	if c.primask {
		state = 1
	}
	c.primask = true
	return state
}

func (c *SimCPU) RestoreInterrupts(state uintptr) {
	c.primask = state != 0
	if !c.primask {
		c.takeExceptions()
	}
}

func (c *SimCPU) Privileged() bool { return c.handler > 0 || !c.nPRIV }

func (c *SimCPU) SetThreadPrivileged(privileged bool) error {
	if !c.Privileged() {
		return kernel.ErrPrivilegeViolation
	}
	c.nPRIV = !privileged
	return nil
}

// SupervisorCall takes the SVCall exception synchronously. An SVC that
// cannot be taken escalates to a hard fault, as on hardware.
func (c *SimCPU) SupervisorCall(n kernel.SVC) {
	if c.primask || c.handler > 0 {
		c.hardFault(fmt.Errorf("svc %s: exception escalated", n))
		return
	}
	c.exception(func() {
		if c.vectors.SVCall != nil {
			c.vectors.SVCall(n)
		}
	})
	c.takeExceptions()
}

func (c *SimCPU) PendSwitch() { c.pendSV = true }

func (c *SimCPU) SwitchPending() bool { return c.pendSV }

// StartTimer starts SysTick. The period counts executed slices.
func (c *SimCPU) StartTimer(period uint32) error {
	if !c.Privileged() {
		return kernel.ErrPrivilegeViolation
	}
	if period == 0 || period > sysTickMaxReload {
		return fmt.Errorf("systick: reload %d out of range", period)
	}
	c.reload = period
	c.count = 0
	return nil
}

// Running returns the task whose context is loaded.
func (c *SimCPU) Running() (kernel.TaskID, bool) { return c.task, c.loaded }

// Registers returns a copy of the register file.
func (c *SimCPU) Registers() Registers { return c.regs }

// Steps returns the number of slices executed.
func (c *SimCPU) Steps() uint64 { return c.steps }

// Switches returns the number of context switches performed.
func (c *SimCPU) Switches() uint64 { return c.switches }

// Err returns the hard fault that stopped the CPU, if any.
func (c *SimCPU) Err() error { return c.err }
