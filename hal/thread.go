package hal

// Registers is the Cortex-M register file visible to a program.
type Registers struct {
	R    [13]uint32 // R0..R12
	SP   uintptr
	LR   uint32
	PC   uint32
	XPSR uint32
}

// Thread is a program's view of the CPU while it runs.
type Thread struct {
	regs       *Registers
	privileged func() bool
}

// NewThread returns a privileged view of regs.
func NewThread(regs *Registers) *Thread {
	return &Thread{regs: regs}
}

// R returns general purpose register n (0..12).
func (t *Thread) R(n int) uint32 { return t.regs.R[n] }

// SetR sets general purpose register n (0..12).
func (t *Thread) SetR(n int, v uint32) { t.regs.R[n] = v }

// Add adds d to register n and returns the new value.
func (t *Thread) Add(n int, d uint32) uint32 {
	t.regs.R[n] += d
	return t.regs.R[n]
}

// PC returns the address of the running program.
func (t *Thread) PC() uint32 { return t.regs.PC }

// Jump continues execution at addr on the next slice.
func (t *Thread) Jump(addr uint32) { t.regs.PC = addr &^ 1 }

// Return continues execution at LR on the next slice, as "bx lr" would.
func (t *Thread) Return() { t.Jump(t.regs.LR) }

// Privileged reports whether the slice runs privileged.
func (t *Thread) Privileged() bool {
	if t.privileged == nil {
		return true
	}
	return t.privileged()
}
