package unicorn

import (
	"sort"

	"github.com/pkg/errors"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

// register enums to unicorn's
var regMap = map[int]int{
	x86_64.RAX:    uc.X86_REG_RAX,
	x86_64.RCX:    uc.X86_REG_RCX,
	x86_64.RDX:    uc.X86_REG_RDX,
	x86_64.RBX:    uc.X86_REG_RBX,
	x86_64.RSP:    uc.X86_REG_RSP,
	x86_64.RBP:    uc.X86_REG_RBP,
	x86_64.RSI:    uc.X86_REG_RSI,
	x86_64.RDI:    uc.X86_REG_RDI,
	x86_64.R8:     uc.X86_REG_R8,
	x86_64.R9:     uc.X86_REG_R9,
	x86_64.R10:    uc.X86_REG_R10,
	x86_64.R11:    uc.X86_REG_R11,
	x86_64.R12:    uc.X86_REG_R12,
	x86_64.R13:    uc.X86_REG_R13,
	x86_64.R14:    uc.X86_REG_R14,
	x86_64.R15:    uc.X86_REG_R15,
	x86_64.RIP:    uc.X86_REG_RIP,
	x86_64.RFLAGS: uc.X86_REG_EFLAGS,
}

type Builder struct{}

func (b *Builder) New() (cpu.Cpu, error) {
	return New()
}

func New() (*UnicornCpu, error) {
	u, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_64)
	if err != nil {
		return nil, errors.Wrap(err, "NewUnicorn() failed")
	}
	return &UnicornCpu{u}, nil
}

// UnicornCpu runs x86-64 code in Unicorn.
type UnicornCpu struct {
	uc.Unicorn
}

func (u *UnicornCpu) Backend() interface{} {
	return u.Unicorn
}

func (u *UnicornCpu) RegRead(enum int) (uint64, error) {
	reg, ok := regMap[enum]
	if !ok {
		return 0, errors.Errorf("invalid register: %d", enum)
	}
	return u.Unicorn.RegRead(reg)
}

func (u *UnicornCpu) RegWrite(enum int, val uint64) error {
	reg, ok := regMap[enum]
	if !ok {
		return errors.Errorf("invalid register: %d", enum)
	}
	return u.Unicorn.RegWrite(reg, val)
}

func (u *UnicornCpu) HookAdd(htype int, cb interface{}, start uint64, end uint64, extra ...int) (cpu.Hook, error) {
	// have to wrap all hooks to conform to Cpu interface :(
	var wrap interface{}
	switch htype {
	case cpu.HOOK_BLOCK, cpu.HOOK_CODE:
		cbc, ok := cb.(func(cpu.Cpu, uint64, uint32))
		if !ok {
			return nil, errors.Errorf("bad code hook callback: %T", cb)
		}
		wrap = func(_ uc.Unicorn, addr uint64, size uint32) { cbc(u, addr, size) }

	case cpu.HOOK_MEM_READ, cpu.HOOK_MEM_WRITE, cpu.HOOK_MEM_READ | cpu.HOOK_MEM_WRITE:
		cbc, ok := cb.(func(cpu.Cpu, int, uint64, int, int64))
		if !ok {
			return nil, errors.Errorf("bad mem hook callback: %T", cb)
		}
		wrap = func(_ uc.Unicorn, access int, addr uint64, size int, val int64) { cbc(u, access, addr, size, val) }

	case cpu.HOOK_MEM_ERR:
		cbc, ok := cb.(func(cpu.Cpu, int, uint64, int, int64) bool)
		if !ok {
			return nil, errors.Errorf("bad fault hook callback: %T", cb)
		}
		wrap = func(_ uc.Unicorn, access int, addr uint64, size int, val int64) bool {
			return cbc(u, access, addr, size, val)
		}

	default:
		return nil, errors.Errorf("unknown hook type: %d", htype)
	}
	return u.Unicorn.HookAdd(htype, wrap, start, end, extra...)
}

func (u *UnicornCpu) HookDel(hh cpu.Hook) error {
	h, ok := hh.(uc.Hook)
	if !ok {
		return errors.Errorf("not a unicorn hook: %T", hh)
	}
	return u.Unicorn.HookDel(h)
}

func (u *UnicornCpu) MemProt(addr, size uint64, prot int) error {
	return u.Unicorn.MemProtect(addr, size, prot)
}

func (u *UnicornCpu) MemRegions() (cpu.Pages, error) {
	regions, err := u.Unicorn.MemRegions()
	if err != nil {
		return nil, err
	}
	pages := make(cpu.Pages, len(regions))
	for i, r := range regions {
		// region ends are inclusive
		pages[i] = &cpu.Page{Addr: r.Begin, Size: r.End - r.Begin + 1, Prot: r.Prot}
	}
	sort.Sort(pages)
	return pages, nil
}
