package models

import (
	"fmt"
)

// Image is the address range of a loaded module.
type Image struct {
	Name      string
	Base      uint64
	Size      uint64
	Timestamp uint32
}

func (i Image) End() uint64 {
	return i.Base + i.Size
}

func (i Image) Contains(addr uint64) bool {
	return addr >= i.Base && addr < i.End()
}

// Rel returns addr as an offset from the image base.
func (i Image) Rel(addr uint64) uint64 {
	return addr - i.Base
}

// Sym renders addr as name+0xoff, or as an absolute address outside the image.
func (i Image) Sym(addr uint64) string {
	if !i.Contains(addr) {
		return fmt.Sprintf("%#x", addr)
	}
	return fmt.Sprintf("%s+%#x", i.Name, i.Rel(addr))
}

func (i Image) String() string {
	return fmt.Sprintf("%s@%#x-%#x", i.Name, i.Base, i.End())
}
