package loader

import (
	"encoding/binary"

	"github.com/patchcorn/patchcorn/go/models"
)

type LoaderHeader struct {
	arch      string
	bits      int
	byteOrder binary.ByteOrder
	os        string
	entry     uint64
	image     models.Image
	symCache  []models.Symbol
	symbols   func() ([]models.Symbol, error)
}

func (l *LoaderHeader) Arch() string {
	return l.arch
}

func (l *LoaderHeader) Bits() int {
	return l.bits
}

func (l *LoaderHeader) ByteOrder() binary.ByteOrder {
	if l.byteOrder == nil {
		return binary.LittleEndian
	}
	return l.byteOrder
}

func (l *LoaderHeader) OS() string {
	return l.os
}

func (l *LoaderHeader) Entry() uint64 {
	return l.entry
}

func (l *LoaderHeader) Image() models.Image {
	return l.image
}

func (l *LoaderHeader) Symbols() ([]models.Symbol, error) {
	var err error
	if l.symCache == nil && l.symbols != nil {
		l.symCache, err = l.symbols()
	}
	return l.symCache, err
}
