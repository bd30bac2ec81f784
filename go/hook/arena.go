package hook

import (
	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

const (
	DefaultArenaSize = 0x10000
	arenaAlign       = 0x10000
	// farthest a rel32 can reach, leaving room for instruction lengths
	reach = 0x7fff0000
)

func alignUp(addr, align uint64) uint64 {
	return (addr + align - 1) &^ (align - 1)
}

// Mapper is memory that can map new pages for an arena.
type Mapper interface {
	cpu.Memory
	MemMapProt(addr, size uint64, prot int) error
}

// Arena is executable memory for stubs, within rel32 range of an image.
type Arena struct {
	Base, Size uint64

	mem  Mapper
	used uint64
}

// findArena searches for a free range of size bytes reachable from all of
// img: upwards from the end of the image, then downwards from its base.
func findArena(regions cpu.Pages, img models.Image, size uint64) (uint64, bool) {
	limit := img.Base + reach
	for addr := alignUp(img.End(), arenaAlign); addr+size <= limit; {
		busy := regions.FindRange(addr, size)
		if len(busy) == 0 {
			return addr, true
		}
		last := busy[len(busy)-1]
		addr = alignUp(last.Addr+last.Size, arenaAlign)
	}
	var floor uint64 = arenaAlign
	if img.End() > reach+floor {
		floor = img.End() - reach
	}
	if img.Base < size+floor {
		return 0, false
	}
	for addr := (img.Base - size) &^ (arenaAlign - 1); addr >= floor; {
		busy := regions.FindRange(addr, size)
		if len(busy) == 0 {
			return addr, true
		}
		if busy[0].Addr < size+floor {
			break
		}
		addr = (busy[0].Addr - size) &^ (arenaAlign - 1)
	}
	return 0, false
}

// NewArena maps size bytes of rwx memory near img.
func NewArena(c Mapper, img models.Image, size uint64) (*Arena, error) {
	if size == 0 {
		size = DefaultArenaSize
	}
	size = alignUp(size, 0x1000)
	regions, err := c.MemRegions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memory regions")
	}
	addr, ok := findArena(regions, img, size)
	if !ok {
		return nil, errors.Wrapf(ErrArenaFull, "no free %#x bytes within reach of %s", size, img)
	}
	if err := c.MemMapProt(addr, size, cpu.PROT_ALL); err != nil {
		return nil, errors.Wrapf(err, "failed to map arena at %#x", addr)
	}
	return &Arena{Base: addr, Size: size, mem: c}, nil
}

func (a *Arena) Used() uint64 {
	return a.used
}

func (a *Arena) Contains(addr uint64) bool {
	return addr >= a.Base && addr < a.Base+a.Size
}

// Emit calls build with the next free address and copies the code it
// returns into the arena. Nothing is consumed if build fails.
func (a *Arena) Emit(build func(pc uint64) ([]byte, error)) (uint64, error) {
	pc := a.Base + a.used
	code, err := build(pc)
	if err != nil {
		return 0, err
	}
	if a.used+uint64(len(code)) > a.Size {
		return 0, errors.Wrapf(ErrArenaFull, "%#x bytes requested, %#x left", len(code), a.Size-a.used)
	}
	if err := a.mem.MemWrite(pc, code); err != nil {
		return 0, errors.Wrapf(err, "failed to write stub at %#x", pc)
	}
	a.used = alignUp(a.used+uint64(len(code)), 16)
	return pc, nil
}
