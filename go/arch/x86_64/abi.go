package x86_64

// Microsoft x64 calling convention
var AbiRegs = []int{RCX, RDX, R8, R9}

// callee-owned spill space above the return address
const ShadowSpace = 0x20

// StackArgOffset is the offset from RSP at function entry to stack argument n (n >= len(AbiRegs)).
func StackArgOffset(n int) uint64 {
	return 8 + ShadowSpace + 8*uint64(n-len(AbiRegs))
}
