package loader

import (
	"bytes"
	"io"

	"github.com/Binject/debug/pe"
	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

// section characteristics
const (
	scnMemExecute = 0x20000000
	scnMemRead    = 0x40000000
	scnMemWrite   = 0x80000000
)

const peAlign = 0x1000

type PELoader struct {
	LoaderHeader
	file        *pe.File
	headerSize  uint64
	headerBytes []byte
}

func MatchPE(r io.ReaderAt) bool {
	return bytes.Equal(getMagic(r)[:2], []byte("MZ"))
}

func sectionProt(c uint32) int {
	prot := 0
	if c&scnMemRead != 0 {
		prot |= cpu.PROT_READ
	}
	if c&scnMemWrite != 0 {
		prot |= cpu.PROT_WRITE
	}
	if c&scnMemExecute != 0 {
		prot |= cpu.PROT_EXEC
	}
	return prot
}

// NewPELoader parses a 64-bit PE image. name becomes the image name used in logs.
func NewPELoader(r io.ReaderAt, name string) (models.Loader, error) {
	file, err := pe.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing PE")
	}
	if file.Machine != pe.IMAGE_FILE_MACHINE_AMD64 {
		return nil, errors.Errorf("unsupported PE machine %#x", file.Machine)
	}
	opt, ok := file.OptionalHeader.(*pe.OptionalHeader64)
	if !ok {
		return nil, errors.New("PE is missing a 64-bit optional header")
	}
	l := &PELoader{file: file, headerSize: uint64(opt.SizeOfHeaders)}
	l.headerBytes = make([]byte, l.headerSize)
	if _, err := r.ReadAt(l.headerBytes, 0); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "reading PE headers")
	}
	l.LoaderHeader = LoaderHeader{
		arch:  "x86_64",
		bits:  64,
		os:    "windows",
		entry: opt.ImageBase + uint64(opt.AddressOfEntryPoint),
		image: models.Image{
			Name:      name,
			Base:      opt.ImageBase,
			Size:      uint64(opt.SizeOfImage),
			Timestamp: file.TimeDateStamp,
		},
		symbols: l.exports,
	}
	return l, nil
}

func (l *PELoader) exports() ([]models.Symbol, error) {
	exports, err := l.file.Exports()
	if err != nil {
		return nil, errors.Wrap(err, "reading exports")
	}
	syms := make([]models.Symbol, 0, len(exports))
	for _, e := range exports {
		if e.Name == "" {
			continue
		}
		syms = append(syms, models.Symbol{
			Name:    e.Name,
			Start:   l.image.Base + uint64(e.VirtualAddress),
			Dynamic: true,
		})
	}
	return syms, nil
}

func (l *PELoader) Segments() ([]models.SegmentData, error) {
	base := l.image.Base
	segs := []models.SegmentData{{
		Addr: base,
		Size: alignUp(l.headerSize, peAlign),
		Prot: cpu.PROT_READ,
		Desc: "headers",
		DataFunc: func() ([]byte, error) {
			return l.headerBytes, nil
		},
	}}
	for _, s := range l.file.Sections {
		s := s
		size := uint64(s.VirtualSize)
		if size == 0 {
			size = uint64(s.Size)
		}
		segs = append(segs, models.SegmentData{
			Off:  uint64(s.Offset),
			Addr: base + uint64(s.VirtualAddress),
			Size: alignUp(size, peAlign),
			Prot: sectionProt(s.Characteristics),
			Desc: s.Name,
			DataFunc: func() ([]byte, error) {
				data, err := s.Data()
				if err != nil {
					return nil, errors.Wrapf(err, "reading section %s", s.Name)
				}
				// raw data is padded to the file alignment
				if uint64(len(data)) > size {
					data = data[:size]
				}
				return data, nil
			},
		})
	}
	return segs, nil
}
