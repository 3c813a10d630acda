//go:build tinygo && baremetal

package hal

/*
#include <stdint.h>

uint32_t ember_switch(uint32_t psp);
void ember_systick(void);
void ember_svcall(void);
void ember_run(uint32_t prog, uint32_t param, uint32_t ret);

// PendSV saves R4-R11 below the hardware frame on the process stack, lets the
// kernel swap control blocks and resumes the next task on the process stack.
__attribute__((naked)) void PendSV_Handler(void) {
	__asm volatile(
		"mrs r0, psp\n"
		"stmdb r0!, {r4-r11}\n"
		"bl ember_switch\n"
		"ldmia r0!, {r4-r11}\n"
		"msr psp, r0\n"
		"isb\n"
		"ldr lr, =0xFFFFFFFD\n"
		"bx lr\n");
}

void SysTick_Handler(void) { ember_systick(); }
void SVC_Handler(void) { ember_svcall(); }

#define EMBER_ENTRY(n) \
	static void ember_entry_##n(uint32_t param) { \
		ember_run(n, param, (uint32_t)(uintptr_t)__builtin_return_address(0)); \
		for (;;) {} \
	}
EMBER_ENTRY(0)
EMBER_ENTRY(1)
EMBER_ENTRY(2)
EMBER_ENTRY(3)
EMBER_ENTRY(4)
EMBER_ENTRY(5)
EMBER_ENTRY(6)
EMBER_ENTRY(7)

static void (*const ember_entries[8])(uint32_t) = {
	ember_entry_0, ember_entry_1, ember_entry_2, ember_entry_3,
	ember_entry_4, ember_entry_5, ember_entry_6, ember_entry_7,
};

static uint32_t ember_entry(uint32_t n) { return (uint32_t)(uintptr_t)ember_entries[n]; }
*/
import "C"

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"

	"ember/kernel"
)

const maxPrograms = 8

var (
	icsr    = (*volatile.Register32)(unsafe.Pointer(uintptr(0xE000ED04)))
	shpr3   = (*volatile.Register32)(unsafe.Pointer(uintptr(0xE000ED20)))
	systCSR = (*volatile.Register32)(unsafe.Pointer(uintptr(0xE000E010)))
	systRVR = (*volatile.Register32)(unsafe.Pointer(uintptr(0xE000E014)))
	systCVR = (*volatile.Register32)(unsafe.Pointer(uintptr(0xE000E018)))
)

const (
	icsrPendSVSet = 1 << 28

	systEnable    = 1 << 0
	systTickInt   = 1 << 1
	systClkSource = 1 << 2

	// PendSV lowest, SysTick just above it.
	shpr3Priorities = 0xC0<<24 | 0xFF<<16
)

// cpu0 is reached from the exception handlers.
var cpu0 *cortexM

// bootPSP absorbs the context save of the first switch, which has no task
// to save into.
var bootPSP [kernel.FrameWords * 2]uint32

type cortexM struct {
	vectors        kernel.Vectors
	taskPrivileged bool
	svc            kernel.SVC

	programs [maxPrograms]Program
	entries  [maxPrograms]uint32
	nprog    int
}

func newCortexM() *cortexM {
	c := &cortexM{taskPrivileged: true}
	cpu0 = c
	shpr3.Set(shpr3.Get()&0x0000FFFF | shpr3Priorities)
	top := uintptr(unsafe.Pointer(&bootPSP[len(bootPSP)-1])) + 4
	arm.AsmFull("msr PSP, {top}", map[string]interface{}{"top": top})
	return c
}

func (c *cortexM) DisableInterrupts() uintptr { return arm.DisableInterrupts() }

func (c *cortexM) RestoreInterrupts(state uintptr) { arm.EnableInterrupts(state) }

func (c *cortexM) Privileged() bool {
	if arm.AsmFull("mrs {}, IPSR", nil)&0x1FF != 0 {
		return true
	}
	return readControl()&1 == 0
}

func (c *cortexM) SetThreadPrivileged(privileged bool) error {
	if !c.Privileged() {
		return kernel.ErrPrivilegeViolation
	}
	ctrl := readControl()
	if privileged {
		ctrl &^= 1
	} else {
		ctrl |= 1
	}
	writeControl(ctrl)
	return nil
}

func (c *cortexM) SupervisorCall(n kernel.SVC) {
	c.svc = n
	arm.Asm("svc #0")
}

func (c *cortexM) PendSwitch() { icsr.Set(icsrPendSVSet) }

func (c *cortexM) SwitchPending() bool { return icsr.HasBits(icsrPendSVSet) }

func (c *cortexM) StartTimer(period uint32) error {
	if !c.Privileged() {
		return kernel.ErrPrivilegeViolation
	}
	if period == 0 || period > 1<<24 {
		return kernel.ErrOutOfRange
	}
	systRVR.Set(period - 1)
	systCVR.Set(0)
	systCSR.Set(systEnable | systTickInt | systClkSource)
	return nil
}

func (c *cortexM) InstallVectors(v kernel.Vectors) { c.vectors = v }

func (c *cortexM) SetTaskPrivilege(privileged bool) { c.taskPrivileged = privileged }

func (c *cortexM) AllocStack(words int) (kernel.Stack, error) {
	if words < kernel.FrameWords {
		return kernel.Stack{}, kernel.ErrStackTooSmall
	}
	return kernel.StackOf(make([]uint32, words)), nil
}

// LoadProgram binds p to one of the fixed C entry stubs.
func (c *cortexM) LoadProgram(p Program) uint32 {
	if c.nprog == maxPrograms {
		panic("hal: program table full")
	}
	n := c.nprog
	c.nprog++
	c.programs[n] = p
	c.entries[n] = uint32(C.ember_entry(C.uint32_t(n)))
	return c.entries[n]
}

// Step sleeps until the next interrupt; tasks run in their own contexts.
func (c *cortexM) Step() error {
	arm.Asm("wfi")
	return nil
}

func (c *cortexM) program(pc uint32) Program {
	for i := 0; i < c.nprog; i++ {
		if c.entries[i]&^1 == pc&^1 {
			return c.programs[i]
		}
	}
	return nil
}

func readControl() uintptr {
	return arm.AsmFull("mrs {}, CONTROL", nil)
}

func writeControl(v uintptr) {
	arm.AsmFull("msr CONTROL, {v}\nisb", map[string]interface{}{"v": v})
}

//export ember_switch
func emberSwitch(psp uint32) uint32 {
	h := cpu0.vectors.Handoff
	next := h.Next()
	if next == nil {
		return psp
	}
	if cur := h.Current(); cur != nil {
		cur.SP = uintptr(psp)
	}
	ctrl := readControl()
	if cpu0.taskPrivileged {
		ctrl &^= 1
	} else {
		ctrl |= 1
	}
	writeControl(ctrl)
	return uint32(next.SP)
}

//export ember_systick
func emberSysTick() {
	if cpu0.vectors.SysTick != nil {
		cpu0.vectors.SysTick()
	}
}

//export ember_svcall
func emberSVCall() {
	if cpu0.vectors.SVCall != nil {
		cpu0.vectors.SVCall(cpu0.svc)
	}
}

// ember_run is the body of every task: it runs program slices against a
// register file that lives on the task's own stack.
//
//export ember_run
func emberRun(prog, param, ret uint32) {
	c := cpu0
	regs := Registers{LR: ret, PC: c.entries[prog]}
	regs.R[0] = param
	t := &Thread{regs: &regs, privileged: c.Privileged}
	for {
		p := c.program(regs.PC)
		if p == nil {
			panic("hal: no program at pc")
		}
		p(t)
	}
}
