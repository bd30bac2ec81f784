package cpu

import (
	"encoding/binary"
	"fmt"
	"strings"
	"testing"
)

// recorder logs every callback it receives, in order
type recorder struct {
	calls []string
	// fault callbacks report the fault handled when val matches
	handled int64
}

func (r *recorder) code(_ Cpu, addr uint64, size uint32) {
	r.calls = append(r.calls, fmt.Sprintf("code %#x/%d", addr, size))
}

func (r *recorder) block(_ Cpu, addr uint64, size uint32) {
	r.calls = append(r.calls, fmt.Sprintf("block %#x/%d", addr, size))
}

func (r *recorder) mem(_ Cpu, access int, addr uint64, size int, val int64) {
	r.calls = append(r.calls, fmt.Sprintf("mem %d %#x/%d=%#x", access, addr, size, val))
}

func (r *recorder) fault(_ Cpu, access int, addr uint64, size int, val int64) bool {
	r.calls = append(r.calls, fmt.Sprintf("fault %d %#x/%d", access, addr, size))
	return val == r.handled
}

func (r *recorder) install(t *testing.T, h *Hooks, start, end uint64) []Hook {
	var out []Hook
	for _, add := range []struct {
		htype int
		cb    interface{}
	}{
		{HOOK_CODE, r.code},
		{HOOK_BLOCK, r.block},
		{HOOK_MEM_WRITE, r.mem},
		{HOOK_MEM_ERR, r.fault},
	} {
		hh, err := h.HookAdd(add.htype, add.cb, start, end)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, hh)
	}
	return out
}

func (r *recorder) take() string {
	s := strings.Join(r.calls, "; ")
	r.calls = nil
	return s
}

func fire(h *Hooks, addr uint64) {
	h.OnCode(addr, 6)
	h.OnBlock(addr, 12)
	h.OnMem(MEM_WRITE, addr, 4, 0xc)
	h.OnFault(MEM_WRITE_UNMAPPED, addr, 4, 1)
}

func newHooks() *Hooks {
	return NewHooks(nil, NewMem(64, binary.LittleEndian))
}

func TestHooksEmpty(t *testing.T) {
	fire(newHooks(), 0x140001000)
}

func TestHookDispatch(t *testing.T) {
	h := newHooks()
	r := &recorder{handled: 1}
	hooks := r.install(t, h, 1, 0)
	fire(h, 0x140001000)
	want := "code 0x140001000/6; block 0x140001000/12; mem 16 0x140001000/4=0xc; fault 20 0x140001000/4"
	if got := r.take(); got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
	if !h.OnFault(MEM_WRITE_UNMAPPED, 0, 0, 1) || h.OnFault(MEM_WRITE_UNMAPPED, 0, 0, 2) {
		t.Fatal("fault handler result not returned")
	}
	r.take()

	for _, hh := range hooks {
		if err := h.HookDel(hh); err != nil {
			t.Fatal(err)
		}
	}
	fire(h, 0x140001000)
	if got := r.take(); got != "" {
		t.Fatalf("removed hooks still called: %s", got)
	}

	// installing twice calls twice
	r.install(t, h, 1, 0)
	r.install(t, h, 1, 0)
	h.OnCode(0x10, 1)
	if got := r.take(); got != "code 0x10/1; code 0x10/1" {
		t.Fatalf("got %q", got)
	}
}

func TestHookRange(t *testing.T) {
	tests := []struct {
		addr uint64
		hit  bool
	}{
		{0x140000fff, false},
		{0x140001000, true},
		{0x140001005, true},
		{0x140001006, false},
	}
	h := newHooks()
	r := &recorder{}
	// a mid hook site: one instruction wide, end inclusive
	r.install(t, h, 0x140001000, 0x140001005)
	for _, test := range tests {
		fire(h, test.addr)
		if got := r.take(); (got != "") != test.hit {
			t.Errorf("%#x: hit=%v, calls %q", test.addr, test.hit, got)
		}
	}
}

func TestHookBadCallback(t *testing.T) {
	h := newHooks()
	if _, err := h.HookAdd(HOOK_CODE, func() {}, 1, 0); err == nil {
		t.Fatal("HookAdd accepted a callback with the wrong signature")
	}
	if _, err := h.HookAdd(0x1234, func(Cpu, uint64, uint32) {}, 1, 0); err == nil {
		t.Fatal("HookAdd accepted an unknown hook type")
	}
	if err := h.HookDel(42); err == nil {
		t.Fatal("HookDel accepted a non-hook")
	}
}

func BenchmarkCodeHook(b *testing.B) {
	h := newHooks()
	if _, err := h.HookAdd(HOOK_CODE, func(Cpu, uint64, uint32) {}, 0x140001000, 0x140001fff); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.OnCode(0x140001000, 1)
	}
}
