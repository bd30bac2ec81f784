package walker

import (
	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

// gpr maps an x86asm register to our enum, operand size in bytes and bit shift (for ah..bh)
func gpr(r x86asm.Reg) (enum, size int, shift uint, ok bool) {
	switch {
	case r >= x86asm.RAX && r <= x86asm.R15:
		return x86_64.GPRs[r-x86asm.RAX], 8, 0, true
	case r >= x86asm.EAX && r <= x86asm.R15L:
		return x86_64.GPRs[r-x86asm.EAX], 4, 0, true
	case r >= x86asm.AX && r <= x86asm.R15W:
		return x86_64.GPRs[r-x86asm.AX], 2, 0, true
	case r >= x86asm.AL && r <= x86asm.BL:
		return x86_64.GPRs[r-x86asm.AL], 1, 0, true
	case r >= x86asm.AH && r <= x86asm.BH:
		return x86_64.GPRs[r-x86asm.AH], 1, 8, true
	case r >= x86asm.SPB && r <= x86asm.DIB:
		return x86_64.GPRs[4+r-x86asm.SPB], 1, 0, true
	case r >= x86asm.R8B && r <= x86asm.R15B:
		return x86_64.GPRs[8+r-x86asm.R8B], 1, 0, true
	}
	return 0, 0, 0, false
}

func xmm(r x86asm.Reg) (int, bool) {
	if r >= x86asm.X0 && r <= x86asm.X15 {
		return int(r - x86asm.X0), true
	}
	return 0, false
}

func sizeMask(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return 1<<(uint(size)*8) - 1
}

// operand size in bytes, falling back to the instruction's data size
func argSize(inst *x86asm.Inst, a x86asm.Arg) int {
	switch v := a.(type) {
	case x86asm.Reg:
		if _, size, _, ok := gpr(v); ok {
			return size
		}
		if _, ok := xmm(v); ok {
			return 16
		}
	case x86asm.Mem:
		if inst.MemBytes > 0 {
			return inst.MemBytes
		}
	}
	if inst.DataSize > 0 {
		return inst.DataSize / 8
	}
	return 8
}

// disp returns the displacement sign-extended. x86asm keeps a disp32 zero-extended,
// which only stands for itself in a 64-bit moffs with no base or index.
func disp(m x86asm.Mem) int64 {
	if m.Base == 0 && m.Index == 0 {
		return m.Disp
	}
	return int64(int32(m.Disp))
}

// effective address of a memory operand; next is the address of the following instruction
func (w *WalkerCpu) addr(m x86asm.Mem, next uint64) (uint64, error) {
	if m.Segment == x86asm.FS || m.Segment == x86asm.GS {
		return 0, errors.Wrap(ErrUnsupported, "segment override")
	}
	ea := uint64(disp(m))
	switch {
	case m.Base == x86asm.RIP:
		ea += next
	case m.Base != 0:
		enum, size, _, ok := gpr(m.Base)
		if !ok {
			return 0, errors.Wrapf(ErrUnsupported, "base register %s", m.Base)
		}
		val, _ := w.RegRead(enum)
		ea += val & sizeMask(size)
	}
	if m.Index != 0 {
		enum, size, _, ok := gpr(m.Index)
		if !ok {
			return 0, errors.Wrapf(ErrUnsupported, "index register %s", m.Index)
		}
		val, _ := w.RegRead(enum)
		ea += (val & sizeMask(size)) * uint64(m.Scale)
	}
	return ea, nil
}

func (w *WalkerCpu) readReg(r x86asm.Reg) (uint64, error) {
	enum, size, shift, ok := gpr(r)
	if !ok {
		return 0, errors.Wrapf(ErrUnsupported, "register %s", r)
	}
	val, err := w.RegRead(enum)
	return (val >> shift) & sizeMask(size), err
}

// 32-bit writes zero the upper half, 8/16-bit writes merge
func (w *WalkerCpu) writeReg(r x86asm.Reg, val uint64) error {
	enum, size, shift, ok := gpr(r)
	if !ok {
		return errors.Wrapf(ErrUnsupported, "register %s", r)
	}
	switch size {
	case 8, 4:
		return w.RegWrite(enum, val&sizeMask(size))
	default:
		old, _ := w.RegRead(enum)
		mask := sizeMask(size) << shift
		return w.RegWrite(enum, old&^mask|(val<<shift)&mask)
	}
}

// read an integer operand
func (w *WalkerCpu) get(inst *x86asm.Inst, a x86asm.Arg, next uint64) (uint64, error) {
	switch v := a.(type) {
	case x86asm.Reg:
		return w.readReg(v)
	case x86asm.Imm:
		return uint64(v), nil
	case x86asm.Mem:
		ea, err := w.addr(v, next)
		if err != nil {
			return 0, err
		}
		return w.ReadUint(ea, argSize(inst, a), cpu.PROT_READ)
	}
	return 0, errors.Wrapf(ErrUnsupported, "operand %v", a)
}

// write an integer operand
func (w *WalkerCpu) set(inst *x86asm.Inst, a x86asm.Arg, next uint64, val uint64) error {
	switch v := a.(type) {
	case x86asm.Reg:
		return w.writeReg(v, val)
	case x86asm.Mem:
		ea, err := w.addr(v, next)
		if err != nil {
			return err
		}
		return w.WriteUint(ea, argSize(inst, a), cpu.PROT_WRITE, val)
	}
	return errors.Wrapf(ErrUnsupported, "destination %v", a)
}

// vector operands: xmm registers or memory, n bytes wide
func (w *WalkerCpu) getVec(a x86asm.Arg, next uint64, n int) ([16]byte, error) {
	var out [16]byte
	switch v := a.(type) {
	case x86asm.Reg:
		idx, ok := xmm(v)
		if !ok {
			return out, errors.Wrapf(ErrUnsupported, "vector register %s", v)
		}
		copy(out[:n], w.vec[idx][:n])
		return out, nil
	case x86asm.Mem:
		ea, err := w.addr(v, next)
		if err != nil {
			return out, err
		}
		p, err := w.ReadProt(ea, uint64(n), cpu.PROT_READ)
		if err != nil {
			return out, err
		}
		copy(out[:], p)
		return out, nil
	}
	return out, errors.Wrapf(ErrUnsupported, "vector operand %v", a)
}

// zeroUpper clears the register bytes past n, as movss from memory does
func (w *WalkerCpu) setVec(a x86asm.Arg, next uint64, val [16]byte, n int, zeroUpper bool) error {
	switch v := a.(type) {
	case x86asm.Reg:
		idx, ok := xmm(v)
		if !ok {
			return errors.Wrapf(ErrUnsupported, "vector register %s", v)
		}
		if zeroUpper {
			w.vec[idx] = [16]byte{}
		}
		copy(w.vec[idx][:n], val[:n])
		return nil
	case x86asm.Mem:
		ea, err := w.addr(v, next)
		if err != nil {
			return err
		}
		return w.WriteProt(ea, val[:n], cpu.PROT_WRITE)
	}
	return errors.Wrapf(ErrUnsupported, "vector destination %v", a)
}
