package walker

import (
	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

func (w *WalkerCpu) push(val uint64) error {
	sp, _ := w.RegRead(x86_64.RSP)
	sp -= 8
	if err := w.WriteUint(sp, 8, cpu.PROT_WRITE, val); err != nil {
		return err
	}
	return w.RegWrite(x86_64.RSP, sp)
}

func (w *WalkerCpu) pop() (uint64, error) {
	sp, _ := w.RegRead(x86_64.RSP)
	val, err := w.ReadUint(sp, 8, cpu.PROT_READ)
	if err != nil {
		return 0, err
	}
	return val, w.RegWrite(x86_64.RSP, sp+8)
}

// branch target of a jmp/call/jcc operand
func (w *WalkerCpu) target(inst *x86asm.Inst, a x86asm.Arg, next uint64) (uint64, error) {
	if rel, ok := a.(x86asm.Rel); ok {
		return next + uint64(int64(rel)), nil
	}
	return w.get(inst, a, next)
}

// exec runs one instruction and returns the next pc.
func (w *WalkerCpu) exec(inst *x86asm.Inst, pc, next uint64) (uint64, error) {
	a, b := inst.Args[0], inst.Args[1]
	switch inst.Op {
	case x86asm.NOP, x86asm.PAUSE:

	case x86asm.HLT, x86asm.INT:
		w.exitRequest = true

	case x86asm.MOV:
		val, err := w.get(inst, b, next)
		if err != nil {
			return 0, err
		}
		return next, w.set(inst, a, next, val)

	case x86asm.MOVZX:
		val, err := w.get(inst, b, next)
		if err != nil {
			return 0, err
		}
		return next, w.set(inst, a, next, val)

	case x86asm.MOVSX, x86asm.MOVSXD:
		val, err := w.get(inst, b, next)
		if err != nil {
			return 0, err
		}
		return next, w.set(inst, a, next, cpu.SignExtend(val, argSize(inst, b)))

	case x86asm.LEA:
		m, ok := b.(x86asm.Mem)
		if !ok {
			return 0, errors.Wrap(ErrUnsupported, "lea without memory operand")
		}
		ea, err := w.addr(m, next)
		if err != nil {
			return 0, err
		}
		return next, w.set(inst, a, next, ea)

	case x86asm.XCHG:
		va, err := w.get(inst, a, next)
		if err != nil {
			return 0, err
		}
		vb, err := w.get(inst, b, next)
		if err != nil {
			return 0, err
		}
		if err := w.set(inst, a, next, vb); err != nil {
			return 0, err
		}
		return next, w.set(inst, b, next, va)

	case x86asm.ADD, x86asm.SUB, x86asm.CMP, x86asm.AND, x86asm.OR, x86asm.XOR, x86asm.TEST:
		return next, w.alu(inst, next)

	case x86asm.INC, x86asm.DEC, x86asm.NEG, x86asm.NOT:
		return next, w.unary(inst, next)

	case x86asm.PUSH:
		val, err := w.get(inst, a, next)
		if err != nil {
			return 0, err
		}
		if _, ok := a.(x86asm.Imm); ok {
			val = cpu.SignExtend(val, 4)
		}
		return next, w.push(val)

	case x86asm.POP:
		val, err := w.pop()
		if err != nil {
			return 0, err
		}
		return next, w.set(inst, a, next, val)

	case x86asm.PUSHFQ:
		flags, _ := w.RegRead(x86_64.RFLAGS)
		return next, w.push(flags)

	case x86asm.POPFQ:
		val, err := w.pop()
		if err != nil {
			return 0, err
		}
		return next, w.RegWrite(x86_64.RFLAGS, val|x86_64.FlagsFixed)

	case x86asm.JMP:
		return w.target(inst, a, next)

	case x86asm.CALL:
		to, err := w.target(inst, a, next)
		if err != nil {
			return 0, err
		}
		return to, w.push(next)

	case x86asm.RET:
		ret, err := w.pop()
		if err != nil {
			return 0, err
		}
		if imm, ok := a.(x86asm.Imm); ok {
			sp, _ := w.RegRead(x86_64.RSP)
			w.RegWrite(x86_64.RSP, sp+uint64(imm))
		}
		return ret, nil

	case x86asm.JRCXZ, x86asm.JECXZ, x86asm.JCXZ, x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return 0, errors.Wrap(ErrUnsupported, inst.Op.String())

	case x86asm.MOVDQU, x86asm.MOVDQA, x86asm.MOVUPS, x86asm.MOVAPS, x86asm.MOVUPD, x86asm.MOVAPD:
		val, err := w.getVec(b, next, 16)
		if err != nil {
			return 0, err
		}
		return next, w.setVec(a, next, val, 16, false)

	case x86asm.MOVSS, x86asm.MOVSD_XMM:
		n := 4
		if inst.Op == x86asm.MOVSD_XMM {
			n = 8
		}
		val, err := w.getVec(b, next, n)
		if err != nil {
			return 0, err
		}
		_, fromMem := b.(x86asm.Mem)
		return next, w.setVec(a, next, val, n, fromMem)

	default:
		if cond, ok := w.condition(inst.Op); ok {
			if cond {
				return w.target(inst, a, next)
			}
			return next, nil
		}
		// opaque: no modelled side effects
	}
	return next, nil
}
