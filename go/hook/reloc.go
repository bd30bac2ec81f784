package hook

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

// jcc condition codes, as in 0F 80+cc
var jccCodes = map[x86asm.Op]byte{
	x86asm.JO: 0x0, x86asm.JNO: 0x1, x86asm.JB: 0x2, x86asm.JAE: 0x3,
	x86asm.JE: 0x4, x86asm.JNE: 0x5, x86asm.JBE: 0x6, x86asm.JA: 0x7,
	x86asm.JS: 0x8, x86asm.JNS: 0x9, x86asm.JP: 0xa, x86asm.JNP: 0xb,
	x86asm.JL: 0xc, x86asm.JGE: 0xd, x86asm.JLE: 0xe, x86asm.JG: 0xf,
}

// steal decodes whole instructions from code until at least min bytes are covered.
func steal(code []byte, min int) ([]x86asm.Inst, int, error) {
	var insts []x86asm.Inst
	n := 0
	for n < min {
		if n >= len(code) {
			return nil, 0, errors.Wrapf(ErrTooShort, "%d bytes", n)
		}
		inst, err := x86asm.Decode(code[n:], 64)
		if err != nil {
			return nil, 0, errors.Wrapf(ErrRelocation, "decode at +%d: %v", n, err)
		}
		insts = append(insts, inst)
		n += inst.Len
		// the function ends before there is room for a jmp
		if n < min && (inst.Op == x86asm.RET || inst.Op == x86asm.JMP) {
			return nil, 0, errors.Wrapf(ErrTooShort, "%s at +%d", inst.Op, n-inst.Len)
		}
	}
	return insts, n, nil
}

// relocate re-encodes insts, decoded from code at from, to run at to.
// Short branches are widened to rel32.
func relocate(code []byte, insts []x86asm.Inst, from, to uint64) ([]byte, error) {
	window := 0
	for _, inst := range insts {
		window += inst.Len
	}
	a := newAsm(to)
	off := 0
	for _, inst := range insts {
		raw := code[off : off+inst.Len]
		end := from + uint64(off+inst.Len)
		off += inst.Len

		if rel, ok := inst.Args[0].(x86asm.Rel); ok {
			target := end + uint64(int64(rel))
			if target >= from && target < from+uint64(window) {
				return nil, errors.Wrapf(ErrRelocation, "%s branches into stolen bytes", inst.Op)
			}
			var err error
			if cc, ok := jccCodes[inst.Op]; ok {
				err = a.emitRel(target, 0x0f, 0x80|cc)
			} else if inst.Op == x86asm.JMP {
				err = a.jmp(target)
			} else if inst.Op == x86asm.CALL {
				err = a.emitRel(target, 0xe8)
			} else {
				err = errors.Wrapf(ErrRelocation, "%s has no rel32 form", inst.Op)
			}
			if err != nil {
				return nil, err
			}
			continue
		}

		if inst.PCRel == 4 {
			disp := int32(binary.LittleEndian.Uint32(raw[inst.PCRelOff:]))
			target := end + uint64(int64(disp))
			d, err := rel32(target, a.here()+uint64(inst.Len))
			if err != nil {
				return nil, err
			}
			fixed := append([]byte(nil), raw...)
			binary.LittleEndian.PutUint32(fixed[inst.PCRelOff:], uint32(d))
			a.emit(fixed...)
			continue
		}
		if inst.PCRel != 0 {
			return nil, errors.Wrapf(ErrRelocation, "%d-byte pc-relative operand", inst.PCRel)
		}
		a.emit(raw...)
	}
	return a.buf, nil
}
