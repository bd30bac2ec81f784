package x86_64

import (
	"github.com/patchcorn/patchcorn/go/models"
)

var Arch = &models.Arch{
	Name:  "x86_64",
	Bits:  64,
	SP:    RSP,
	PC:    RIP,
	Flags: RFLAGS,
	Regs: map[int]string{
		RAX:    "rax",
		RBX:    "rbx",
		RCX:    "rcx",
		RDX:    "rdx",
		RSI:    "rsi",
		RDI:    "rdi",
		RBP:    "rbp",
		RSP:    "rsp",
		R8:     "r8",
		R9:     "r9",
		R10:    "r10",
		R11:    "r11",
		R12:    "r12",
		R13:    "r13",
		R14:    "r14",
		R15:    "r15",
		RIP:    "rip",
		RFLAGS: "rflags",
	},
}

// AllRegs lists every register enum the targets need to implement.
func AllRegs() []int {
	return append(append([]int(nil), GPRs...), RIP, RFLAGS)
}
