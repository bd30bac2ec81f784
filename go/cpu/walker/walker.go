package walker

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

// DefaultBudget bounds the instructions executed by one Start call.
const DefaultBudget = 1 << 20

var (
	ErrBudget      = errors.New("instruction budget exhausted")
	ErrUnsupported = errors.New("unsupported instruction")
)

type Builder struct{}

func (b *Builder) New() (cpu.Cpu, error) {
	return New(), nil
}

// WalkerCpu follows x86-64 control flow over simulated memory. It executes
// moves, integer arithmetic, stack and branch instructions and the SSE
// moves used by hook stubs. Anything else is stepped over without effect.
type WalkerCpu struct {
	*cpu.Hooks
	*cpu.Regs
	*cpu.Mem

	vec [x86_64.NumXMM][16]byte

	// Budget overrides DefaultBudget when positive.
	Budget int
	// Steps counts instructions executed by the last Start call.
	Steps int

	exitRequest bool
}

func New() *WalkerCpu {
	w := &WalkerCpu{
		Regs: cpu.NewRegs(64, x86_64.AllRegs()),
		Mem:  cpu.NewMem(64, binary.LittleEndian),
	}
	w.Mem.Strict = true
	w.Hooks = cpu.NewHooks(w, w.Mem)
	w.Regs.RegWrite(x86_64.RFLAGS, x86_64.FlagsFixed)
	return w
}

// VecRead returns the 16 bytes of xmm<n>.
func (w *WalkerCpu) VecRead(n int) [16]byte {
	return w.vec[n]
}

func (w *WalkerCpu) VecWrite(n int, val [16]byte) {
	w.vec[n] = val
}

func (w *WalkerCpu) fetch(pc uint64) (x86asm.Inst, error) {
	size := w.Mapped(pc)
	if size == 0 {
		return x86asm.Inst{}, &cpu.MemError{Addr: pc, Size: 1, Enum: cpu.MEM_FETCH_UNMAPPED}
	}
	if size > 15 {
		size = 15
	}
	mem, err := w.ReadProt(pc, size, cpu.PROT_EXEC)
	if err != nil {
		return x86asm.Inst{}, err
	}
	inst, err := x86asm.Decode(mem, 64)
	if err != nil {
		return inst, errors.Wrapf(err, "decode failed at %#x", pc)
	}
	return inst, nil
}

func (w *WalkerCpu) Start(begin, until uint64) error {
	budget := w.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	w.exitRequest = false
	w.Steps = 0
	pc := begin
	w.RegWrite(x86_64.RIP, pc)
	w.OnBlock(pc, 0)

	for pc != until && !w.exitRequest {
		if w.Steps >= budget {
			return errors.Wrapf(ErrBudget, "stopped at %#x after %d steps", pc, w.Steps)
		}
		inst, err := w.fetch(pc)
		if err != nil {
			return err
		}
		w.OnCode(pc, uint32(inst.Len))
		// exitRequest needs to be checked here so a hook can interrupt the walker
		if w.exitRequest {
			break
		}
		// a code hook may redirect execution by writing RIP
		if rip, _ := w.RegRead(x86_64.RIP); rip != pc {
			pc = rip
			w.OnBlock(pc, 0)
			continue
		}
		w.Steps++
		next := pc + uint64(inst.Len)
		target, err := w.exec(&inst, pc, next)
		if err != nil {
			return errors.Wrapf(err, "at %#x: %s", pc, inst.String())
		}
		if target != next {
			w.OnBlock(target, 0)
		}
		pc = target
		w.RegWrite(x86_64.RIP, pc)
	}
	return nil
}

func (w *WalkerCpu) Stop() error {
	w.exitRequest = true
	return nil
}

func (w *WalkerCpu) Close() error {
	return nil
}

func (w *WalkerCpu) Backend() interface{} {
	return w
}
