package hook

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

// Trapper is a target that runs stub code for real, so callbacks can't be
// code hooks. Trap registers fn and returns the address of a function that
// calls it. The function takes the frame address and id as its first two
// arguments, in rcx/rdx on Windows and rdi/rsi elsewhere.
type Trapper interface {
	Mapper
	Trap(fn func(frame uint64)) (entry, id uint64, err error)
}

// A frame is what frameCall pushes, from low to high addresses.
const (
	frameXmm    = 0
	frameGPR    = frameXmm + x86_64.NumXMM*16
	frameFlags  = frameGPR + 16*8
	frameResume = frameFlags + 8
	// the System V red zone is skipped before anything is pushed
	redZone   = 0x80
	frameSize = frameResume + 8 + redZone
)

// index of rsp in x86_64.GPRs
const rspIndex = 4

// frameCall saves every register to a frame on the stack and calls entry
// with the frame address and id under both calling conventions. It leaves
// through the address stored in the frame's resume slot.
func (a *asm) frameCall(entry, id uint64) {
	a.emit(0x48, 0x8d, 0x64, 0x24, 0x80) // lea rsp, [rsp-0x80]
	a.emit(0x50)                         // resume slot
	a.emit(0x9c)                         // pushfq
	for n := 15; n >= 0; n-- {
		a.pushReg(n)
	}
	a.emit(0x48, 0x81, 0xec, 0x00, 0x01, 0x00, 0x00) // sub rsp, 0x100
	for n := 0; n < x86_64.NumXMM; n++ {
		a.movdquStack(true, n, n*16)
	}
	a.emit(0x48, 0x89, 0xe3)       // mov rbx, rsp
	a.emit(0x48, 0x83, 0xe4, 0xf0) // and rsp, -16
	a.emit(0x48, 0x83, 0xec, 0x20) // sub rsp, 0x20
	a.emit(0x48, 0x89, 0xd9)       // mov rcx, rbx
	a.emit(0x48, 0x89, 0xdf)       // mov rdi, rbx
	a.movImm(0xba, id)             // mov rdx, id
	a.movImm(0xbe, id)             // mov rsi, id
	a.movImm(0xb8, entry)          // mov rax, entry
	a.emit(0xff, 0xd0)             // call rax
	a.emit(0x48, 0x89, 0xdc)       // mov rsp, rbx
	for n := 0; n < x86_64.NumXMM; n++ {
		a.movdquStack(false, n, n*16)
	}
	a.emit(0x48, 0x81, 0xc4, 0x00, 0x01, 0x00, 0x00) // add rsp, 0x100
	for n := 0; n < 16; n++ {
		if n == rspIndex {
			a.emit(0x48, 0x8d, 0x64, 0x24, 0x08) // lea rsp, [rsp+8]
			continue
		}
		a.popReg(n)
	}
	a.emit(0x9d)             // popfq
	a.emit(0xc2, 0x80, 0x00) // ret 0x80
}

func (a *asm) pushReg(n int) {
	if n >= 8 {
		a.emit(0x41)
	}
	a.emit(0x50 + byte(n&7))
}

func (a *asm) popReg(n int) {
	if n >= 8 {
		a.emit(0x41)
	}
	a.emit(0x58 + byte(n&7))
}

// mov r64, imm64 with op = 0xb8+reg
func (a *asm) movImm(op byte, val uint64) {
	a.emit(0x48, op)
	a.buf = binary.LittleEndian.AppendUint64(a.buf, val)
}

// movdqu [rsp+off], xmmN or movdqu xmmN, [rsp+off]
func (a *asm) movdquStack(store bool, n, off int) {
	a.emit(0xf3)
	if n >= 8 {
		a.emit(0x44)
	}
	if store {
		a.emit(0x0f, 0x7f)
	} else {
		a.emit(0x0f, 0x6f)
	}
	a.emit(0x84|byte(n&7)<<3, 0x24)
	a.buf = binary.LittleEndian.AppendUint32(a.buf, uint32(off))
}

// loadFrame reads the registers frameCall saved at frame.
func loadFrame(mem cpu.Memory, frame, addr uint64) (*Context, error) {
	var buf [frameResume]byte
	if err := mem.MemReadInto(buf[:], frame); err != nil {
		return nil, errors.Wrapf(err, "failed to read hook frame at %#x", frame)
	}
	ctx := &Context{addr: addr, frame: frame}
	for i := range ctx.xmm {
		copy(ctx.xmm[i][:], buf[frameXmm+i*16:])
	}
	ctx.Xmm = ctx.xmm
	for i, p := range ctx.regs() {
		ctx.gpr[i] = binary.LittleEndian.Uint64(buf[frameGPR+i*8:])
		*p = ctx.gpr[i]
	}
	ctx.gpr[rspIndex] = frame + frameSize
	ctx.Rsp = ctx.gpr[rspIndex]
	ctx.flags = binary.LittleEndian.Uint64(buf[frameFlags:])
	ctx.Rflags = ctx.flags
	return ctx, nil
}

func putUint64(mem cpu.Memory, addr, val uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)
	return mem.MemWrite(addr, buf[:])
}

// commitFrame writes back the registers the callback changed.
func (ctx *Context) commitFrame(mem cpu.Memory) error {
	if ctx.Rsp != ctx.gpr[rspIndex] {
		return errors.Errorf("rsp can't be changed from a hook in a live process")
	}
	for i, p := range ctx.regs() {
		if *p != ctx.gpr[i] {
			if err := putUint64(mem, ctx.frame+frameGPR+uint64(i)*8, *p); err != nil {
				return err
			}
			ctx.gpr[i] = *p
		}
	}
	if ctx.Rflags != ctx.flags {
		if err := putUint64(mem, ctx.frame+frameFlags, ctx.Rflags|x86_64.FlagsFixed); err != nil {
			return err
		}
		ctx.flags = ctx.Rflags
	}
	for i := range ctx.Xmm {
		if ctx.Xmm[i] != ctx.xmm[i] {
			if err := mem.MemWrite(ctx.frame+frameXmm+uint64(i)*16, ctx.Xmm[i][:]); err != nil {
				return err
			}
			ctx.xmm[i] = ctx.Xmm[i]
		}
	}
	return nil
}

// resume sets where the stub continues once the frame is popped.
func resume(mem cpu.Memory, frame, addr uint64) error {
	return errors.Wrap(putUint64(mem, frame+frameResume, addr), "failed to set hook resume address")
}
