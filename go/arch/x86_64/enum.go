package x86_64

// register enums, independent of any emulator
const (
	RAX = iota + 1
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	RIP
	RFLAGS
)

// GPRs in encoding order, so GPRs[n] is the register with ModRM number n.
var GPRs = []int{RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15}

// RFLAGS bit positions
const (
	CF = 0
	PF = 2
	AF = 4
	ZF = 6
	SF = 7
	TF = 8
	IF = 9
	DF = 10
	OF = 11
)

// bit 1 of RFLAGS always reads as set
const FlagsFixed = 1 << 1

const NumXMM = 16
