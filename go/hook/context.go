package hook

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

// RFLAGS bits
const (
	CF = x86_64.CF
	PF = x86_64.PF
	AF = x86_64.AF
	ZF = x86_64.ZF
	SF = x86_64.SF
	TF = x86_64.TF
	IF = x86_64.IF
	DF = x86_64.DF
	OF = x86_64.OF
)

// XMM is a vector register viewed as little-endian lanes.
type XMM [16]byte

func (x *XMM) U32(i int) uint32 {
	return binary.LittleEndian.Uint32(x[i*4:])
}

func (x *XMM) SetU32(i int, v uint32) {
	binary.LittleEndian.PutUint32(x[i*4:], v)
}

func (x *XMM) U64(i int) uint64 {
	return binary.LittleEndian.Uint64(x[i*8:])
}

func (x *XMM) SetU64(i int, v uint64) {
	binary.LittleEndian.PutUint64(x[i*8:], v)
}

func (x *XMM) F32(i int) float32 {
	return math.Float32frombits(x.U32(i))
}

func (x *XMM) SetF32(i int, v float32) {
	x.SetU32(i, math.Float32bits(v))
}

func (x *XMM) F64(i int) float64 {
	return math.Float64frombits(x.U64(i))
}

func (x *XMM) SetF64(i int, v float64) {
	x.SetU64(i, math.Float64bits(v))
}

// Context is the register state at a hooked instruction. It is only valid
// during the callback it was passed to. Changes are written back when the
// callback returns.
type Context struct {
	Rax, Rcx, Rdx, Rbx uint64
	Rsp, Rbp, Rsi, Rdi uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
	Rflags             uint64

	Xmm [x86_64.NumXMM]XMM

	addr  uint64
	save  uint64
	frame uint64
	flags uint64
	gpr   [16]uint64
	xmm  [x86_64.NumXMM]XMM
}

// Addr is the hooked address.
func (c *Context) Addr() uint64 {
	return c.addr
}

func (c *Context) Flag(bit uint) bool {
	return c.Rflags&(1<<bit) != 0
}

func (c *Context) SetFlag(bit uint) {
	c.Rflags |= 1 << bit
}

func (c *Context) ClearFlag(bit uint) {
	c.Rflags &^= 1 << bit
}

// in x86_64.GPRs order
func (c *Context) regs() [16]*uint64 {
	return [16]*uint64{
		&c.Rax, &c.Rcx, &c.Rdx, &c.Rbx, &c.Rsp, &c.Rbp, &c.Rsi, &c.Rdi,
		&c.R8, &c.R9, &c.R10, &c.R11, &c.R12, &c.R13, &c.R14, &c.R15,
	}
}

// Reg returns a pointer to the field backing a register enum.
func (c *Context) Reg(enum int) *uint64 {
	for i, e := range x86_64.GPRs {
		if e == enum {
			return c.regs()[i]
		}
	}
	if enum == x86_64.RFLAGS {
		return &c.Rflags
	}
	return nil
}

// RegRead lets a Context be dumped with Arch.RegDump.
func (c *Context) RegRead(enum int) (uint64, error) {
	if enum == x86_64.RIP {
		return c.addr, nil
	}
	if p := c.Reg(enum); p != nil {
		return *p, nil
	}
	return 0, errors.Errorf("invalid register: %d", enum)
}

// loadContext reads registers from c and vector registers from the save area the stub spilled them to.
func loadContext(c cpu.Cpu, save, addr uint64) (*Context, error) {
	ctx := &Context{addr: addr, save: save}
	for i, enum := range x86_64.GPRs {
		val, err := c.RegRead(enum)
		if err != nil {
			return nil, err
		}
		ctx.gpr[i] = val
		*ctx.regs()[i] = val
	}
	flags, err := c.RegRead(x86_64.RFLAGS)
	if err != nil {
		return nil, err
	}
	ctx.Rflags = flags
	var area [x86_64.NumXMM * 16]byte
	if err := c.MemReadInto(area[:], save); err != nil {
		return nil, errors.Wrap(err, "failed to read vector save area")
	}
	for i := range ctx.Xmm {
		copy(ctx.xmm[i][:], area[i*16:])
	}
	ctx.Xmm = ctx.xmm
	return ctx, nil
}

// commit writes back the registers the callback changed.
func (ctx *Context) commit(c cpu.Cpu) error {
	for i, p := range ctx.regs() {
		if *p != ctx.gpr[i] {
			if err := c.RegWrite(x86_64.GPRs[i], *p); err != nil {
				return err
			}
			ctx.gpr[i] = *p
		}
	}
	if flags, _ := c.RegRead(x86_64.RFLAGS); flags != ctx.Rflags {
		if err := c.RegWrite(x86_64.RFLAGS, ctx.Rflags|x86_64.FlagsFixed); err != nil {
			return err
		}
	}
	for i := range ctx.Xmm {
		if ctx.Xmm[i] != ctx.xmm[i] {
			if err := c.MemWrite(ctx.save+uint64(i)*16, ctx.Xmm[i][:]); err != nil {
				return errors.Wrap(err, "failed to write vector save area")
			}
			ctx.xmm[i] = ctx.Xmm[i]
		}
	}
	return nil
}
