package patchcorn

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

const (
	STACK_BASE = 0x60000000
	STACK_SIZE = 1024 * 1024
)

func hexAddr(v uint64) string {
	return fmt.Sprintf("%#x", v)
}

// MapStack gives an emulated target a stack and points RSP at its top,
// leaving shadow space for a Win64 callee.
func MapStack(c cpu.Cpu) (uint64, error) {
	if err := c.MemMapProt(STACK_BASE, STACK_SIZE, cpu.PROT_RW); err != nil {
		return 0, errors.Wrap(err, "mapping stack")
	}
	sp := uint64(STACK_BASE + STACK_SIZE - x86_64.ShadowSpace - 8)
	return sp, c.RegWrite(x86_64.RSP, sp)
}
