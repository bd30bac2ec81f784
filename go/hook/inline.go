package hook

import (
	"encoding/binary"
	"reflect"

	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

type frame struct {
	ret   uint64
	after func(*Context)
}

// Call is the Context at the entry of an inline-hooked function.
type Call struct {
	*Context

	mem   cpu.Memory
	hook  *Hook
	ret   uint64
	skip  bool
	after func(*Context)
}

func (c *Call) readStack(off uint64) (uint64, error) {
	buf, err := c.mem.MemRead(c.Rsp+off, 8)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read stack at rsp+%#x", off)
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// Arg returns argument n under the Windows x64 convention.
func (c *Call) Arg(n int) (uint64, error) {
	if n < len(x86_64.AbiRegs) {
		return *c.Reg(x86_64.AbiRegs[n]), nil
	}
	return c.readStack(x86_64.StackArgOffset(n))
}

func (c *Call) SetArg(n int, val uint64) error {
	if n < len(x86_64.AbiRegs) {
		*c.Reg(x86_64.AbiRegs[n]) = val
		return nil
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)
	return c.mem.MemWrite(c.Rsp+x86_64.StackArgOffset(n), buf[:])
}

// Return skips the original function and returns val to the caller.
func (c *Call) Return(val uint64) {
	c.skip, c.ret = true, val
}

// After runs fn when the original function returns. It is ignored if Return was called.
func (c *Call) After(fn func(*Context)) {
	c.after = fn
}

// Original is the address of the relocated function entry.
func (c *Call) Original() uint64 {
	return c.hook.Trampoline
}

// Inline hooks the function entry at addr. fn runs on every call, before
// the original function.
func (m *Manager) Inline(addr uint64, fn func(*Call)) (Handle, error) {
	h, orig, err := m.prepare(KindInline, addr)
	if err != nil {
		return -1, err
	}
	h.inline = fn
	h.frames = make(map[uint64]frame)
	if m.trap != nil {
		return m.inlineTrap(h, orig)
	}
	_, err = m.arena.Emit(func(pc uint64) ([]byte, error) {
		a := newAsm(pc)
		h.save = a.reserve(saveSize, 16)
		h.slot = a.reserve(8, 8)
		// entry: spill, callback, reload, original
		h.Stub = a.here()
		if err := a.spill(h.save); err != nil {
			return nil, err
		}
		h.site = a.here()
		a.emit(0x90)
		if err := a.reload(h.save); err != nil {
			return nil, err
		}
		h.Trampoline = a.here()
		if err := a.emitOriginal(h, orig); err != nil {
			return nil, err
		}
		// early return
		h.retStub = a.here()
		if err := a.reload(h.save); err != nil {
			return nil, err
		}
		a.emit(0xc3)
		// after the original returns, leave through the saved return address
		h.leave = a.here()
		if err := a.spill(h.save); err != nil {
			return nil, err
		}
		h.leaveSite = a.here()
		a.emit(0x90)
		if err := a.reload(h.save); err != nil {
			return nil, err
		}
		if err := a.jmpSlot(h.slot); err != nil {
			return nil, err
		}
		return a.buf, nil
	})
	if err != nil {
		return -1, err
	}
	return m.activate(h,
		site{h.site, m.entryCallback(h)},
		site{h.leaveSite, m.leaveCallback(h)},
	)
}

func (m *Manager) entryCallback(h *Hook) func(cpu.Cpu, uint64, uint32) {
	return func(c cpu.Cpu, addr uint64, size uint32) {
		ctx, err := loadContext(c, h.save, h.Target)
		if err != nil {
			m.fail(h, err)
			return
		}
		call := m.enter(h, c, ctx)
		if err := ctx.commit(c); err != nil {
			m.fail(h, err)
			return
		}
		if call.skip {
			if err := c.RegWrite(x86_64.RIP, h.retStub); err != nil {
				m.fail(h, err)
			}
		}
	}
}

// enter runs the entry callback. When it asks for After, the return
// address is swapped for the leave stub and remembered by the stack
// pointer the function returns to, which is unique per thread.
func (m *Manager) enter(h *Hook, mem cpu.Memory, ctx *Context) *Call {
	call := &Call{Context: ctx, mem: mem, hook: h}
	h.inline(call)
	if call.skip {
		ctx.Rax = call.ret
		return call
	}
	if call.after == nil {
		return call
	}
	ret, err := call.readStack(0)
	if err != nil {
		m.fail(h, err)
		return call
	}
	if err := putUint64(mem, ctx.Rsp, h.leave); err != nil {
		m.fail(h, errors.Wrap(err, "failed to replace return address"))
		return call
	}
	h.mu.Lock()
	h.frames[ctx.Rsp+8] = frame{ret: ret, after: call.after}
	h.mu.Unlock()
	return call
}

// leaving takes the pending After for a function returning with rsp.
func (h *Hook) leaving(rsp uint64) (frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.frames[rsp]
	if !ok {
		return frame{}, errors.Errorf("%s: leave without a saved return address at rsp %#x", h, rsp)
	}
	delete(h.frames, rsp)
	return f, nil
}

func (m *Manager) leaveCallback(h *Hook) func(cpu.Cpu, uint64, uint32) {
	return func(c cpu.Cpu, addr uint64, size uint32) {
		rsp, _ := c.RegRead(x86_64.RSP)
		f, err := h.leaving(rsp)
		if err != nil {
			m.fail(h, err)
			return
		}
		if err := putUint64(c, h.slot, f.ret); err != nil {
			m.fail(h, err)
			return
		}
		ctx, err := loadContext(c, h.save, h.Target)
		if err != nil {
			m.fail(h, err)
			return
		}
		f.after(ctx)
		if err := ctx.commit(c); err != nil {
			m.fail(h, err)
		}
	}
}

// inlineTrap emits the live process version of the inline stubs. Each
// frame callback picks where its stub resumes: the original function, a
// bare ret for Return, or the saved return address after the original.
func (m *Manager) inlineTrap(h *Hook, orig *stolen) (Handle, error) {
	_, err := m.arena.Emit(func(pc uint64) ([]byte, error) {
		a := newAsm(pc)
		h.Stub = a.here()
		if err := m.trapCall(a, m.entryFrame(h)); err != nil {
			return nil, err
		}
		h.Trampoline = a.here()
		if err := a.emitOriginal(h, orig); err != nil {
			return nil, err
		}
		h.retStub = a.here()
		a.emit(0xc3)
		h.leave = a.here()
		if err := m.trapCall(a, m.leaveFrame(h)); err != nil {
			return nil, err
		}
		return a.buf, nil
	})
	if err != nil {
		return -1, err
	}
	return m.activate(h)
}

func (m *Manager) entryFrame(h *Hook) func(uint64) {
	return func(frame uint64) {
		if err := resume(m.mem, frame, h.Trampoline); err != nil {
			m.fail(h, err)
			return
		}
		ctx, err := loadFrame(m.mem, frame, h.Target)
		if err != nil {
			m.fail(h, err)
			return
		}
		call := m.enter(h, m.mem, ctx)
		if err := ctx.commitFrame(m.mem); err != nil {
			m.fail(h, err)
			return
		}
		if call.skip {
			if err := resume(m.mem, frame, h.retStub); err != nil {
				m.fail(h, err)
			}
		}
	}
}

func (m *Manager) leaveFrame(h *Hook) func(uint64) {
	return func(frame uint64) {
		ctx, err := loadFrame(m.mem, frame, h.Target)
		if err != nil {
			m.fail(h, err)
			return
		}
		f, err := h.leaving(ctx.Rsp)
		if err != nil {
			m.fail(h, err)
			return
		}
		if err := resume(m.mem, frame, f.ret); err != nil {
			m.fail(h, err)
			return
		}
		f.after(ctx)
		if err := ctx.commitFrame(m.mem); err != nil {
			m.fail(h, err)
		}
	}
}

var uint64Type = reflect.TypeOf(uint64(0))

// InlineFunc hooks addr with a typed Go function. Its parameters are
// filled from the call's arguments, and a first result convertible to
// uint64 replaces the original function.
func (m *Manager) InlineFunc(addr uint64, fn interface{}) (Handle, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return -1, errors.Errorf("InlineFunc needs a func, got %T", fn)
	}
	ft := fv.Type()
	in := make([]reflect.Type, ft.NumIn())
	for i := range in {
		in[i] = ft.In(i)
	}
	returns := ft.NumOut() > 0 && ft.Out(0).ConvertibleTo(uint64Type)
	return m.Inline(addr, func(c *Call) {
		args := make([]uint64, len(in))
		for i := range args {
			val, err := c.Arg(i)
			if err != nil {
				m.fail(c.hook, err)
				return
			}
			args[i] = val
		}
		converted, err := m.Argjoy.Convert(in, false, args)
		if err != nil {
			m.fail(c.hook, errors.Wrap(err, "failed to convert arguments"))
			return
		}
		out := fv.Call(converted)
		if returns {
			c.Return(out[0].Convert(uint64Type).Uint())
		}
	})
}
