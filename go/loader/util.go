package loader

import (
	"io"
)

func getMagic(r io.ReaderAt) []byte {
	ret := make([]byte, 4)
	r.ReadAt(ret, 0)
	return ret
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
