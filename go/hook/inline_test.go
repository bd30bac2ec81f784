package hook

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/cpu/walker"
)

const (
	callerAddr = codeAddr + 0x20
	returnAddr = callerAddr + 5
)

// fn(rcx) = rcx + 1 at codeAddr, called once from callerAddr
func makeCall(t *testing.T) (*walker.WalkerCpu, *Manager) {
	code := make([]byte, 0x26)
	copy(code, []byte{
		0x48, 0x89, 0xc8, // mov rax, rcx
		0x48, 0x83, 0xc0, 0x01, // add rax, 1
		0xc3, // ret
	})
	for i := 8; i < len(code); i++ {
		code[i] = 0x90
	}
	// call codeAddr
	copy(code[0x20:], []byte{0xe8, 0xdb, 0xff, 0xff, 0xff})
	w, m := makeTarget(t, code)
	w.RegWrite(x86_64.RCX, 41)
	return w, m
}

func runCall(t *testing.T, w *walker.WalkerCpu) {
	w.Budget = 10000
	if err := w.Start(callerAddr, returnAddr); err != nil {
		t.Fatal(err)
	}
	if rsp := reg(w, x86_64.RSP); rsp != stackTop {
		t.Fatalf("rsp = %#x after return, expecting %#x", rsp, stackTop)
	}
}

func TestInlinePassthrough(t *testing.T) {
	w, m := makeCall(t)
	var arg [8]byte
	binary.LittleEndian.PutUint64(arg[:], 0x55)
	// fifth argument of the call, above the return address and shadow space
	w.MemWrite(stackTop+0x20, arg[:])
	calls := 0
	_, err := m.Inline(codeAddr, func(c *Call) {
		calls++
		if a0, _ := c.Arg(0); a0 != 41 {
			t.Errorf("Arg(0) = %d", a0)
		}
		if a4, err := c.Arg(4); err != nil || a4 != 0x55 {
			t.Errorf("Arg(4) = %#x, %v", a4, err)
		}
		if c.Original() == 0 {
			t.Error("no trampoline")
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	runCall(t, w)
	if calls != 1 {
		t.Fatalf("callback ran %d times", calls)
	}
	if rax := reg(w, x86_64.RAX); rax != 42 {
		t.Fatalf("rax = %d, expecting 42", rax)
	}
}

func TestInlineSetArg(t *testing.T) {
	w, m := makeCall(t)
	_, err := m.Inline(codeAddr, func(c *Call) {
		c.SetArg(0, 99)
	})
	if err != nil {
		t.Fatal(err)
	}
	runCall(t, w)
	if rax := reg(w, x86_64.RAX); rax != 100 {
		t.Fatalf("rax = %d, expecting 100", rax)
	}
}

func TestInlineReturn(t *testing.T) {
	w, m := makeCall(t)
	_, err := m.Inline(codeAddr, func(c *Call) {
		c.Return(7)
	})
	if err != nil {
		t.Fatal(err)
	}
	runCall(t, w)
	if rax := reg(w, x86_64.RAX); rax != 7 {
		t.Fatalf("rax = %d, expecting 7", rax)
	}
}

func TestInlineAfter(t *testing.T) {
	w, m := makeCall(t)
	handle, err := m.Inline(codeAddr, func(c *Call) {
		c.After(func(ctx *Context) {
			if ctx.Rax != 42 {
				t.Errorf("original returned %d", ctx.Rax)
			}
			ctx.Rax *= 2
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	runCall(t, w)
	if rax := reg(w, x86_64.RAX); rax != 84 {
		t.Fatalf("rax = %d, expecting 84", rax)
	}
	if h := m.Get(handle); len(h.frames) != 0 {
		t.Fatalf("%d return addresses left", len(h.frames))
	}
}

func TestInlineFunc(t *testing.T) {
	w, m := makeCall(t)
	w.RegWrite(x86_64.RCX, 6)
	w.RegWrite(x86_64.RDX, 7)
	_, err := m.InlineFunc(codeAddr, func(a, b int32) int64 {
		return int64(a) * int64(b)
	})
	if err != nil {
		t.Fatal(err)
	}
	runCall(t, w)
	if rax := reg(w, x86_64.RAX); rax != 42 {
		t.Fatalf("rax = %d, expecting 42", rax)
	}
	if _, err := m.InlineFunc(codeAddr+8, 5); err == nil {
		t.Fatal("InlineFunc should reject a non-func")
	}
}

// nested and concurrent calls each get their own After, keyed by the stack they return to
func TestInlineAfterPerStack(t *testing.T) {
	w, m := makeTarget(t, []byte{0x90})
	h := &Hook{leave: 0xdead0000, frames: make(map[uint64]frame)}
	var order []uint64
	h.inline = func(c *Call) {
		rsp := c.Rsp
		c.After(func(*Context) { order = append(order, rsp) })
	}
	outer, inner := uint64(stackTop-0x100), uint64(stackTop-0x200)
	for _, rsp := range []uint64{outer, inner} {
		putUint64(w, rsp, rsp+0x42)
		m.enter(h, w, &Context{Rsp: rsp})
		if ret, _ := w.MemRead(rsp, 8); binary.LittleEndian.Uint64(ret) != h.leave {
			t.Fatalf("return address at %#x was not replaced", rsp)
		}
	}
	for _, rsp := range []uint64{inner, outer} {
		f, err := h.leaving(rsp + 8)
		if err != nil {
			t.Fatal(err)
		}
		if f.ret != rsp+0x42 {
			t.Fatalf("leaving %#x returns to %#x", rsp, f.ret)
		}
		f.after(nil)
	}
	if len(order) != 2 || order[0] != inner || order[1] != outer {
		t.Fatalf("after order %#x", order)
	}
	if _, err := h.leaving(outer + 8); err == nil {
		t.Fatal("a frame was left twice")
	}

	var wg sync.WaitGroup
	for i := 1; i <= 16; i++ {
		wg.Add(1)
		go func(rsp uint64) {
			defer wg.Done()
			h.mu.Lock()
			h.frames[rsp] = frame{ret: rsp}
			h.mu.Unlock()
			if f, err := h.leaving(rsp); err != nil || f.ret != rsp {
				t.Errorf("frame %#x: %#x, %v", rsp, f.ret, err)
			}
		}(uint64(i) << 12)
	}
	wg.Wait()
	if len(h.frames) != 0 {
		t.Fatalf("%d frames left", len(h.frames))
	}
}
