// Package patch overwrites code and data of a target in place.
package patch

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
	"github.com/patchcorn/patchcorn/go/resolve"
)

const DefaultPageSize = 0x1000

// Record is one applied write. Records are never rolled back.
type Record struct {
	Addr     uint64
	Old, New []byte
}

func (r Record) String() string {
	return fmt.Sprintf("%#x: %s -> %s", r.Addr, models.HexSpaced(r.Old), models.HexSpaced(r.New))
}

type Patcher struct {
	mem      cpu.Memory
	pageSize uint64
	journal  []Record
}

func New(mem cpu.Memory, pageSize uint64) *Patcher {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	return &Patcher{mem: mem, pageSize: pageSize}
}

// Journal returns every write applied so far, oldest first.
func (p *Patcher) Journal() []Record {
	return append([]Record(nil), p.journal...)
}

// Bytes writes data at addr, restoring page protections afterwards.
func (p *Patcher) Bytes(addr uint64, data []byte) (*Record, error) {
	return p.write(addr, data, true)
}

// BytesKeepWritable writes data at addr and leaves the covering pages writable.
func (p *Patcher) BytesKeepWritable(addr uint64, data []byte) (*Record, error) {
	return p.write(addr, data, false)
}

// Nop fills n bytes at addr with 0x90.
func (p *Patcher) Nop(addr uint64, n int) (*Record, error) {
	return p.Bytes(addr, bytes.Repeat([]byte{0x90}, n))
}

type protRange struct {
	addr, size uint64
	prot       int
}

// unlock makes the pages covering addr:addr+size writable and returns the
// ranges whose protection it changed.
func (p *Patcher) unlock(addr, size uint64) ([]protRange, error) {
	start := addr &^ (p.pageSize - 1)
	end := (addr + size + p.pageSize - 1) &^ (p.pageSize - 1)
	regions, err := p.mem.MemRegions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to query protection")
	}
	var changed []protRange
	next := start
	for _, page := range regions.FindRange(start, end-start) {
		oaddr, osize, _ := page.Intersect(start, end-start)
		if oaddr != next {
			return changed, &cpu.MemError{Addr: next, Size: int(oaddr - next), Enum: cpu.MEM_WRITE_UNMAPPED}
		}
		next = oaddr + osize
		if page.Prot&cpu.PROT_WRITE != 0 {
			continue
		}
		if err := p.mem.MemProt(oaddr, osize, page.Prot|cpu.PROT_WRITE); err != nil {
			return changed, errors.Wrapf(err, "failed to unprotect %#x-%#x", oaddr, oaddr+osize)
		}
		changed = append(changed, protRange{oaddr, osize, page.Prot})
	}
	if next < end {
		return changed, &cpu.MemError{Addr: next, Size: int(end - next), Enum: cpu.MEM_WRITE_UNMAPPED}
	}
	return changed, nil
}

func (p *Patcher) relock(changed []protRange) error {
	var first error
	for _, r := range changed {
		if err := p.mem.MemProt(r.addr, r.size, r.prot); err != nil && first == nil {
			first = errors.Wrapf(err, "failed to restore protection at %#x", r.addr)
		}
	}
	return first
}

func (p *Patcher) write(addr uint64, data []byte, restore bool) (*Record, error) {
	if !resolve.Usable(addr) {
		return nil, errors.Wrap(resolve.ErrUnusable, "patch target")
	}
	if len(data) == 0 {
		return nil, errors.New("empty patch")
	}
	size := uint64(len(data))
	old, err := p.mem.MemRead(addr, size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read original bytes at %#x", addr)
	}
	changed, err := p.unlock(addr, size)
	if err != nil {
		p.relock(changed)
		return nil, err
	}
	werr := p.mem.MemWrite(addr, data)
	if restore || werr != nil {
		if err := p.relock(changed); err != nil && werr == nil {
			werr = err
		}
	}
	if werr != nil {
		return nil, errors.Wrapf(werr, "failed to patch %#x", addr)
	}
	rec := Record{Addr: addr, Old: old, New: append([]byte(nil), data...)}
	p.journal = append(p.journal, rec)
	return &p.journal[len(p.journal)-1], nil
}
