// Package native exposes the current process's own memory as a cpu.Memory.
// It also maps hook arenas and hands out a native entry for hook callbacks,
// which needs cgo outside Windows.
package native

import (
	"os"
	"path/filepath"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

type Process struct {
	pageSize uint64
}

func New() *Process {
	return &Process{pageSize: uint64(os.Getpagesize())}
}

func (p *Process) PageSize() uint64 {
	return p.pageSize
}

func view(addr, size uint64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size)
}

// check makes sure addr:addr+size is mapped with at least prot, so touching it can't fault.
func (p *Process) check(addr, size uint64, prot, unmapped, denied int) error {
	regions, err := p.MemRegions()
	if err != nil {
		return err
	}
	end := addr
	for _, pg := range regions.FindRange(addr, size) {
		if pg.Addr > end {
			break
		}
		if pg.Prot&prot != prot {
			return &cpu.MemError{Addr: end, Size: int(size), Enum: denied}
		}
		end = pg.Addr + pg.Size
		if end >= addr+size {
			return nil
		}
	}
	return &cpu.MemError{Addr: end, Size: int(size), Enum: unmapped}
}

func (p *Process) MemReadInto(buf []byte, addr uint64) error {
	if err := p.check(addr, uint64(len(buf)), cpu.PROT_READ, cpu.MEM_READ_UNMAPPED, cpu.MEM_READ_PROT); err != nil {
		return err
	}
	copy(buf, view(addr, uint64(len(buf))))
	return nil
}

func (p *Process) MemRead(addr, size uint64) ([]byte, error) {
	buf := make([]byte, size)
	if err := p.MemReadInto(buf, addr); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *Process) MemWrite(addr uint64, buf []byte) error {
	if err := p.check(addr, uint64(len(buf)), cpu.PROT_WRITE, cpu.MEM_WRITE_UNMAPPED, cpu.MEM_WRITE_PROT); err != nil {
		return err
	}
	copy(view(addr, uint64(len(buf))), buf)
	return nil
}

func (p *Process) MemProt(addr, size uint64, prot int) error {
	if addr%p.pageSize != 0 {
		return errors.Errorf("unaligned protection change at %#x", addr)
	}
	return errors.Wrapf(protect(addr, size, prot), "protect %#x-%#x", addr, addr+size)
}

// MemMapProt maps fresh memory at exactly addr.
func (p *Process) MemMapProt(addr, size uint64, prot int) error {
	if addr%p.pageSize != 0 {
		return errors.Errorf("unaligned mapping at %#x", addr)
	}
	return errors.Wrapf(mapAt(addr, size, prot), "map %#x-%#x", addr, addr+size)
}

func (p *Process) MemRegions() (cpu.Pages, error) {
	return regions()
}

// Image finds a loaded module by file name. An empty name means the main executable.
func (p *Process) Image(name string) (models.Image, error) {
	if name == "" {
		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return models.Image{}, errors.WithStack(err)
		}
		exe, err := proc.Exe()
		if err != nil {
			return models.Image{}, errors.Wrap(err, "finding executable")
		}
		name = filepath.Base(exe)
	}
	return module(p, name)
}
