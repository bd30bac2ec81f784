package walker

import (
	"math/bits"

	"golang.org/x/arch/x86/x86asm"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
)

type flagSet struct {
	cf, pf, af, zf, sf, of bool
}

func (w *WalkerCpu) flags() uint64 {
	val, _ := w.RegRead(x86_64.RFLAGS)
	return val
}

func (w *WalkerCpu) flag(bit uint) bool {
	return w.flags()&(1<<bit) != 0
}

func (w *WalkerCpu) storeFlags(f flagSet, keepCF bool) {
	val := w.flags()
	set := func(bit uint, on bool) {
		if on {
			val |= 1 << bit
		} else {
			val &^= 1 << bit
		}
	}
	if !keepCF {
		set(x86_64.CF, f.cf)
	}
	set(x86_64.PF, f.pf)
	set(x86_64.AF, f.af)
	set(x86_64.ZF, f.zf)
	set(x86_64.SF, f.sf)
	set(x86_64.OF, f.of)
	w.RegWrite(x86_64.RFLAGS, val|x86_64.FlagsFixed)
}

func resultFlags(res uint64, size int) flagSet {
	mask := sizeMask(size)
	sign := uint64(1) << (uint(size)*8 - 1)
	return flagSet{
		zf: res&mask == 0,
		sf: res&sign != 0,
		pf: bits.OnesCount8(uint8(res))%2 == 0,
	}
}

func addFlags(a, b, res uint64, size int) flagSet {
	mask := sizeMask(size)
	sign := uint64(1) << (uint(size)*8 - 1)
	f := resultFlags(res, size)
	f.cf = res&mask < a&mask
	f.of = ^(a^b)&(a^res)&sign != 0
	f.af = (a^b^res)&0x10 != 0
	return f
}

func subFlags(a, b, res uint64, size int) flagSet {
	mask := sizeMask(size)
	sign := uint64(1) << (uint(size)*8 - 1)
	f := resultFlags(res, size)
	f.cf = a&mask < b&mask
	f.of = (a^b)&(a^res)&sign != 0
	f.af = (a^b^res)&0x10 != 0
	return f
}

// two-operand integer ops
func (w *WalkerCpu) alu(inst *x86asm.Inst, next uint64) error {
	dst, src := inst.Args[0], inst.Args[1]
	size := argSize(inst, dst)
	a, err := w.get(inst, dst, next)
	if err != nil {
		return err
	}
	b, err := w.get(inst, src, next)
	if err != nil {
		return err
	}
	if _, ok := src.(x86asm.Imm); ok && size == 8 {
		b = uint64(int64(int32(b)))
	}
	var res uint64
	var f flagSet
	store := true
	switch inst.Op {
	case x86asm.ADD:
		res = a + b
		f = addFlags(a, b, res, size)
	case x86asm.SUB, x86asm.CMP:
		res = a - b
		f = subFlags(a, b, res, size)
		store = inst.Op == x86asm.SUB
	case x86asm.AND, x86asm.TEST:
		res = a & b
		f = resultFlags(res, size)
		store = inst.Op == x86asm.AND
	case x86asm.OR:
		res = a | b
		f = resultFlags(res, size)
	case x86asm.XOR:
		res = a ^ b
		f = resultFlags(res, size)
	}
	w.storeFlags(f, false)
	if store {
		return w.set(inst, dst, next, res&sizeMask(size))
	}
	return nil
}

func (w *WalkerCpu) unary(inst *x86asm.Inst, next uint64) error {
	dst := inst.Args[0]
	size := argSize(inst, dst)
	a, err := w.get(inst, dst, next)
	if err != nil {
		return err
	}
	var res uint64
	switch inst.Op {
	case x86asm.INC:
		res = a + 1
		w.storeFlags(addFlags(a, 1, res, size), true)
	case x86asm.DEC:
		res = a - 1
		w.storeFlags(subFlags(a, 1, res, size), true)
	case x86asm.NEG:
		res = -a
		f := subFlags(0, a, res, size)
		f.cf = a&sizeMask(size) != 0
		w.storeFlags(f, false)
	case x86asm.NOT:
		res = ^a
	}
	return w.set(inst, dst, next, res&sizeMask(size))
}

// condition evaluates a jcc against RFLAGS; ok is false for other ops
func (w *WalkerCpu) condition(op x86asm.Op) (taken, ok bool) {
	cf, zf := w.flag(x86_64.CF), w.flag(x86_64.ZF)
	sf, of, pf := w.flag(x86_64.SF), w.flag(x86_64.OF), w.flag(x86_64.PF)
	switch op {
	case x86asm.JO:
		return of, true
	case x86asm.JNO:
		return !of, true
	case x86asm.JB:
		return cf, true
	case x86asm.JAE:
		return !cf, true
	case x86asm.JE:
		return zf, true
	case x86asm.JNE:
		return !zf, true
	case x86asm.JBE:
		return cf || zf, true
	case x86asm.JA:
		return !cf && !zf, true
	case x86asm.JS:
		return sf, true
	case x86asm.JNS:
		return !sf, true
	case x86asm.JP:
		return pf, true
	case x86asm.JNP:
		return !pf, true
	case x86asm.JL:
		return sf != of, true
	case x86asm.JGE:
		return sf == of, true
	case x86asm.JLE:
		return zf || sf != of, true
	case x86asm.JG:
		return !zf && sf == of, true
	}
	return false, false
}
