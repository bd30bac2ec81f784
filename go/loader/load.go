package loader

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

var UnknownMagic = errors.New("Could not identify file magic.")

func LoadFile(path string) (models.Loader, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return Load(bytes.NewReader(p), filepath.Base(path))
}

func Load(r io.ReaderAt, name string) (models.Loader, error) {
	if MatchPE(r) {
		return NewPELoader(r, name)
	}
	return nil, errors.WithStack(UnknownMagic)
}

// Mapper is the part of a target needed to map a loaded image.
type Mapper interface {
	MemMapProt(addr, size uint64, prot int) error
	MemProt(addr, size uint64, prot int) error
	MemWrite(addr uint64, p []byte) error
}

// Map writes every segment of l into c at its preferred base and applies segment protections.
// The whole image span is mapped read-only first so gaps between sections stay addressable.
func Map(c Mapper, l models.Loader) (models.Image, error) {
	img := l.Image()
	if err := c.MemMapProt(img.Base, alignUp(img.Size, peAlign), cpu.PROT_RW); err != nil {
		return img, errors.Wrapf(err, "mapping %v", img)
	}
	segs, err := l.Segments()
	if err != nil {
		return img, err
	}
	for _, s := range segs {
		data, err := s.Data()
		if err != nil {
			return img, err
		}
		if err := c.MemWrite(s.Addr, data); err != nil {
			return img, errors.Wrapf(err, "writing %s", s.Desc)
		}
	}
	if err := c.MemProt(img.Base, alignUp(img.Size, peAlign), cpu.PROT_READ); err != nil {
		return img, err
	}
	for _, s := range segs {
		if s.Addr+s.Size > img.End() {
			s.Size = img.End() - s.Addr
		}
		if err := c.MemProt(s.Addr, s.Size, s.Prot); err != nil {
			return img, errors.Wrapf(err, "protecting %s", s.Desc)
		}
	}
	return img, nil
}
