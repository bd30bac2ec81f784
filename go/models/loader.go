package models

import (
	"encoding/binary"
)

type Loader interface {
	Arch() string
	Bits() int
	ByteOrder() binary.ByteOrder
	OS() string
	Entry() uint64
	// Image describes where the file expects to be loaded.
	Image() Image
	Symbols() ([]Symbol, error)
	Segments() ([]SegmentData, error)
}
