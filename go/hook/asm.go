package hook

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
)

const (
	jmpSize  = 5
	saveSize = x86_64.NumXMM * 16
	// 8 movdqu without REX, 8 with
	spillSize = 8*8 + 8*9
)

// asm assembles position-dependent stub code starting at pc.
type asm struct {
	pc  uint64
	buf []byte
}

func newAsm(pc uint64) *asm {
	return &asm{pc: pc}
}

func (a *asm) here() uint64 {
	return a.pc + uint64(len(a.buf))
}

func (a *asm) emit(b ...byte) {
	a.buf = append(a.buf, b...)
}

// reserve emits n zero bytes aligned to align and returns their address.
func (a *asm) reserve(n, align int) uint64 {
	for a.here()%uint64(align) != 0 {
		a.emit(0xcc)
	}
	addr := a.here()
	a.emit(make([]byte, n)...)
	return addr
}

// rel32 is the displacement from end to to, if it fits.
func rel32(to, end uint64) (int32, error) {
	d := int64(to - end)
	if d != int64(int32(d)) {
		return 0, errors.Wrapf(ErrRelocation, "%#x is out of rel32 range of %#x", to, end)
	}
	return int32(d), nil
}

// emitRel emits op followed by a rel32 to target.
func (a *asm) emitRel(target uint64, op ...byte) error {
	d, err := rel32(target, a.here()+uint64(len(op))+4)
	if err != nil {
		return err
	}
	a.emit(op...)
	a.buf = binary.LittleEndian.AppendUint32(a.buf, uint32(d))
	return nil
}

func (a *asm) jmp(target uint64) error {
	return a.emitRel(target, 0xe9)
}

// jmp [rip+d] through an 8-byte slot
func (a *asm) jmpSlot(slot uint64) error {
	return a.emitRel(slot, 0xff, 0x25)
}

// movdqu [rip+d], xmmN or movdqu xmmN, [rip+d]
func (a *asm) movdqu(store bool, n int, addr uint64) error {
	op := []byte{0xf3}
	if n >= 8 {
		op = append(op, 0x44)
	}
	if store {
		op = append(op, 0x0f, 0x7f)
	} else {
		op = append(op, 0x0f, 0x6f)
	}
	op = append(op, byte(n&7)<<3|5)
	return a.emitRel(addr, op...)
}

// spill stores xmm0-15 to save
func (a *asm) spill(save uint64) error {
	for n := 0; n < x86_64.NumXMM; n++ {
		if err := a.movdqu(true, n, save+uint64(n)*16); err != nil {
			return err
		}
	}
	return nil
}

func (a *asm) reload(save uint64) error {
	for n := 0; n < x86_64.NumXMM; n++ {
		if err := a.movdqu(false, n, save+uint64(n)*16); err != nil {
			return err
		}
	}
	return nil
}

// redirect is the patch written over a hooked target: jmp stub, padded with nops.
func redirect(from, stub uint64, size int) ([]byte, error) {
	a := newAsm(from)
	if err := a.jmp(stub); err != nil {
		return nil, err
	}
	for len(a.buf) < size {
		a.emit(0x90)
	}
	return a.buf, nil
}
