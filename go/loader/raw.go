package loader

import (
	"encoding/binary"

	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

// RawLoader maps a flat code blob, such as a dumped .text section, at a fixed base.
type RawLoader struct {
	LoaderHeader
	data []byte
}

func NewRawLoader(data []byte, name string, base uint64) models.Loader {
	return &RawLoader{
		LoaderHeader: LoaderHeader{
			arch:      "x86_64",
			bits:      64,
			byteOrder: binary.LittleEndian,
			entry:     base,
			image:     models.Image{Name: name, Base: base, Size: alignUp(uint64(len(data)), peAlign)},
		},
		data: data,
	}
}

func (r *RawLoader) Segments() ([]models.SegmentData, error) {
	return []models.SegmentData{{
		Addr: r.image.Base,
		Size: r.image.Size,
		Prot: cpu.PROT_RX,
		Desc: "raw",
		DataFunc: func() ([]byte, error) {
			return r.data, nil
		},
	}}, nil
}
