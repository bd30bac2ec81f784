// Package hook redirects code in a target to Go callbacks.
//
// A hooked target is overwritten with a jmp to a stub in an arena near the
// image. On an emulated cpu the stub spills the vector registers to a save
// area, passes a code-hooked nop where the callback runs, reloads the vector
// registers and continues with the relocated original instructions. In a
// live process (a Trapper) the stub pushes every register to a frame and
// calls the callback through the function Trap returned.
package hook

import (
	"fmt"
	"sync"

	"github.com/lunixbochs/argjoy"
	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"

	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
	"github.com/patchcorn/patchcorn/go/patch"
)

type Kind int

const (
	KindMid Kind = iota
	KindInline
)

func (k Kind) String() string {
	if k == KindInline {
		return "inline"
	}
	return "mid"
}

type State int

const (
	Uninstalled State = iota
	// stub written and callback registered
	Installed
	// target redirected to the stub
	Active
)

func (s State) String() string {
	switch s {
	case Installed:
		return "installed"
	case Active:
		return "active"
	}
	return "uninstalled"
}

// Handle is a stable index into a Manager's hook table.
type Handle int

type Hook struct {
	Kind   Kind
	Target uint64
	// number of bytes overwritten at Target
	Stolen   int
	Original []byte
	// entry of the generated code
	Stub uint64
	// relocated original instructions, followed by a jmp back
	Trampoline uint64
	State      State

	save uint64
	site uint64

	mid    func(*Context)
	inline func(*Call)

	// inline only
	retStub   uint64
	leave     uint64
	leaveSite uint64
	slot      uint64
	// pending After callbacks by the stack pointer they return to
	frames map[uint64]frame
	mu     sync.Mutex

	hooks []cpu.Hook
}

func (h *Hook) String() string {
	return fmt.Sprintf("%s hook %#x (%s)", h.Kind, h.Target, h.State)
}

// Manager owns every hook installed in a target. Installing is not safe for
// concurrent use; install everything from one goroutine, then Seal.
// Callbacks may run on any thread of a live process.
type Manager struct {
	// OnError receives failures that happen inside a callback, where they can't be returned.
	OnError func(h *Hook, err error)
	Argjoy  argjoy.Argjoy

	mem     Mapper
	cpu     cpu.Cpu
	trap    Trapper
	img     models.Image
	patcher *patch.Patcher
	arena   *Arena

	// ArenaSize is used when the arena is first needed.
	ArenaSize uint64

	byAddr map[uint64]Handle
	hooks  []*Hook
	sealed bool
}

// NewManager fails with ErrUnsupported if mem is neither a Trapper nor a
// cpu.Cpu that can register code hooks.
func NewManager(mem cpu.Memory, img models.Image, patcher *patch.Patcher) (*Manager, error) {
	m := &Manager{
		img:    img,
		byAddr: make(map[uint64]Handle),
	}
	switch t := mem.(type) {
	case Trapper:
		m.mem, m.trap = t, t
	case cpu.Cpu:
		m.mem, m.cpu = t, t
	default:
		return nil, errors.Wrapf(ErrUnsupported, "%T", mem)
	}
	if patcher == nil {
		patcher = patch.New(mem, 0)
	}
	m.patcher = patcher
	m.Argjoy.Register(argjoy.IntToInt)
	return m, nil
}

// Seal makes the hook table read-only.
func (m *Manager) Seal() {
	m.sealed = true
}

func (m *Manager) Sealed() bool {
	return m.sealed
}

func (m *Manager) Get(h Handle) *Hook {
	if int(h) < 0 || int(h) >= len(m.hooks) {
		return nil
	}
	return m.hooks[h]
}

func (m *Manager) Lookup(addr uint64) (Handle, bool) {
	h, ok := m.byAddr[addr]
	return h, ok
}

func (m *Manager) Hooks() []*Hook {
	return append([]*Hook(nil), m.hooks...)
}

func (m *Manager) Arena() *Arena {
	return m.arena
}

func (m *Manager) fail(h *Hook, err error) {
	if m.OnError != nil {
		m.OnError(h, err)
	}
}

// readCode reads up to size bytes at addr, stopping at the end of mapped memory.
func (m *Manager) readCode(addr uint64, size uint64) ([]byte, error) {
	regions, err := m.mem.MemRegions()
	if err != nil {
		return nil, err
	}
	end := addr
	for _, page := range regions.FindRange(addr, size) {
		if page.Addr > end {
			break
		}
		end = page.Addr + page.Size
	}
	if end > addr+size {
		end = addr + size
	}
	if end <= addr {
		return nil, &cpu.MemError{Addr: addr, Size: int(size), Enum: cpu.MEM_READ_UNMAPPED}
	}
	return m.mem.MemRead(addr, end-addr)
}

// prepare validates addr and decodes the instructions a hook there would overwrite.
func (m *Manager) prepare(kind Kind, addr uint64) (*Hook, *stolen, error) {
	if m.sealed {
		return nil, nil, ErrSealed
	}
	if _, ok := m.byAddr[addr]; ok {
		return nil, nil, errors.Wrapf(ErrDoubleHook, "%#x", addr)
	}
	for _, other := range m.hooks {
		if addr >= other.Target && addr < other.Target+uint64(other.Stolen) {
			return nil, nil, errors.Wrapf(ErrOverlap, "%#x is inside %s", addr, other)
		}
	}
	code, err := m.readCode(addr, 32)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read code at %#x", addr)
	}
	insts, n, err := steal(code, jmpSize)
	if err != nil {
		return nil, nil, err
	}
	for _, other := range m.hooks {
		if addr < other.Target+uint64(other.Stolen) && other.Target < addr+uint64(n) {
			return nil, nil, errors.Wrapf(ErrOverlap, "%#x-%#x overlaps %s", addr, addr+uint64(n), other)
		}
	}
	if m.arena == nil {
		if m.arena, err = NewArena(m.mem, m.img, m.ArenaSize); err != nil {
			return nil, nil, err
		}
	}
	h := &Hook{
		Kind:     kind,
		Target:   addr,
		Stolen:   n,
		Original: append([]byte(nil), code[:n]...),
	}
	return h, &stolen{code: code[:n], insts: insts}, nil
}

type stolen struct {
	code  []byte
	insts []x86asm.Inst
}

// emitOriginal emits the stolen instructions relocated to the current
// address, followed by a jmp back to the rest of the target.
func (a *asm) emitOriginal(h *Hook, s *stolen) error {
	rel, err := relocate(s.code, s.insts, h.Target, a.here())
	if err != nil {
		return err
	}
	a.emit(rel...)
	return a.jmp(h.Target + uint64(h.Stolen))
}

type site struct {
	addr uint64
	cb   func(cpu.Cpu, uint64, uint32)
}

// trapCall registers fn with the Trapper and emits a frameCall to it.
func (m *Manager) trapCall(a *asm, fn func(frame uint64)) error {
	entry, id, err := m.trap.Trap(fn)
	if err != nil {
		return errors.Wrap(err, "failed to register hook callback")
	}
	a.frameCall(entry, id)
	return nil
}

// activate registers the callback sites and redirects the target.
func (m *Manager) activate(h *Hook, sites ...site) (Handle, error) {
	for _, s := range sites {
		hh, err := m.cpu.HookAdd(cpu.HOOK_CODE, s.cb, s.addr, s.addr)
		if err != nil {
			m.release(h)
			return -1, errors.Wrapf(err, "failed to add code hook at %#x", s.addr)
		}
		h.hooks = append(h.hooks, hh)
	}
	h.State = Installed
	jmp, err := redirect(h.Target, h.Stub, h.Stolen)
	if err != nil {
		m.release(h)
		return -1, err
	}
	if _, err := m.patcher.Bytes(h.Target, jmp); err != nil {
		m.release(h)
		return -1, err
	}
	h.State = Active
	handle := Handle(len(m.hooks))
	m.hooks = append(m.hooks, h)
	m.byAddr[h.Target] = handle
	return handle, nil
}

// release drops the code hooks of a hook that failed to activate. The
// stub stays in the arena unreferenced.
func (m *Manager) release(h *Hook) {
	if m.cpu == nil {
		h.State = Uninstalled
		return
	}
	for _, hh := range h.hooks {
		m.cpu.HookDel(hh)
	}
	h.hooks = nil
	h.State = Uninstalled
}

// Mid hooks the instruction at addr. fn runs before it, with the
// registers as they are there, and the original code continues afterwards.
func (m *Manager) Mid(addr uint64, fn func(*Context)) (Handle, error) {
	h, orig, err := m.prepare(KindMid, addr)
	if err != nil {
		return -1, err
	}
	h.mid = fn
	if m.trap != nil {
		_, err = m.arena.Emit(func(pc uint64) ([]byte, error) {
			a := newAsm(pc)
			h.Stub = a.here()
			if err := m.trapCall(a, m.midFrame(h)); err != nil {
				return nil, err
			}
			h.Trampoline = a.here()
			if err := a.emitOriginal(h, orig); err != nil {
				return nil, err
			}
			return a.buf, nil
		})
		if err != nil {
			return -1, err
		}
		return m.activate(h)
	}
	_, err = m.arena.Emit(func(pc uint64) ([]byte, error) {
		a := newAsm(pc)
		h.save = a.reserve(saveSize, 16)
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
		return a.buf, nil
	})
	if err != nil {
		return -1, err
	}
	return m.activate(h, site{h.site, m.midCallback(h)})
}

func (m *Manager) midCallback(h *Hook) func(cpu.Cpu, uint64, uint32) {
	return func(c cpu.Cpu, addr uint64, size uint32) {
		ctx, err := loadContext(c, h.save, h.Target)
		if err != nil {
			m.fail(h, err)
			return
		}
		h.mid(ctx)
		if err := ctx.commit(c); err != nil {
			m.fail(h, err)
		}
	}
}

func (m *Manager) midFrame(h *Hook) func(uint64) {
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
		h.mid(ctx)
		if err := ctx.commitFrame(m.mem); err != nil {
			m.fail(h, err)
		}
	}
}
