package kernel

import "unsafe"

// TCB is a task control block. It holds only the saved stack pointer; every
// other register of a suspended task lives in the frame on its own stack.
//
// SP sits at offset 0 and is pointer sized. The switch trampoline addresses
// it directly, so the layout must not change.
type TCB struct {
	SP uintptr
}

// TCBStackPointerOffset is the byte offset of TCB.SP.
const TCBStackPointerOffset = unsafe.Offsetof(TCB{}.SP)

// Stack is the memory a task runs on: its words and the address of word 0 as
// seen by the CPU. Stacks grow down from the end of Words.
type Stack struct {
	Words []uint32
	Base  uintptr
}

// StackOf returns a Stack for words using their real address. Ports that
// simulate memory build a Stack with their own address space instead.
func StackOf(words []uint32) Stack {
	if len(words) == 0 {
		return Stack{}
	}
	return Stack{Words: words, Base: uintptr(unsafe.Pointer(unsafe.SliceData(words)))}
}

// Initial exception frame layout, in words from the saved stack pointer.
//
// The first eight words are the callee-saved registers pushed by the switch
// trampoline; the last eight are the frame the CPU stacks on exception entry
// and unstacks on exception return.
const (
	FrameR4 = iota
	FrameR5
	FrameR6
	FrameR7
	FrameR8
	FrameR9
	FrameR10
	FrameR11
	FrameR0
	FrameR1
	FrameR2
	FrameR3
	FrameR12
	FrameLR
	FramePC
	FrameXPSR

	// FrameWords is the size of a full saved context.
	FrameWords
)

// InitialXPSR has only the Thumb state bit set.
const InitialXPSR uint32 = 1 << 24

// StackAlign is the stack pointer alignment required at exception entry.
const StackAlign = 8

// formatStack writes a synthetic frame at the top of st so that the task looks
// as if it was interrupted right before its first instruction: PC is entry, R0
// carries param and LR is the address a returning entry falls into.
func formatStack(st Stack, entry, param, ret uint32) (uintptr, error) {
	top := len(st.Words)
	if (st.Base+uintptr(top)*4)%StackAlign != 0 {
		top--
	}
	if top < FrameWords || st.Base%4 != 0 {
		return 0, ErrStackTooSmall
	}

	f := st.Words[top-FrameWords : top]
	for i := range f {
		f[i] = 0
	}
	f[FrameR0] = param
	f[FrameLR] = ret
	f[FramePC] = entry &^ 1
	f[FrameXPSR] = InitialXPSR

	return st.Base + uintptr(top-FrameWords)*4, nil
}
