package scan

import (
	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

var ErrNotFound = errors.New("pattern not found")

// ChunkSize is how much memory is read at once while scanning.
var ChunkSize uint64 = 1 << 20

// readable returns the readable parts of img, merged into contiguous spans.
func readable(mem cpu.Memory, img models.Image) ([]*models.Segment, error) {
	regions, err := mem.MemRegions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memory regions")
	}
	var spans []*models.Segment
	for _, page := range regions.FindRange(img.Base, img.Size) {
		if page.Prot&cpu.PROT_READ == 0 {
			continue
		}
		seg := &models.Segment{Start: page.Addr, End: page.Addr + page.Size}
		if seg.Start < img.Base {
			seg.Start = img.Base
		}
		if seg.End > img.End() {
			seg.End = img.End()
		}
		if n := len(spans); n > 0 && spans[n-1].Adjacent(seg) {
			spans[n-1].Merge(seg)
		} else {
			spans = append(spans, seg)
		}
	}
	return spans, nil
}

// walk calls fn with each chunk of img. Chunks overlap by len(p)-1 bytes so
// no match is split; own is the number of leading bytes not repeated in the
// next chunk. fn returns false to stop.
func walk(mem cpu.Memory, img models.Image, p Pattern, fn func(addr uint64, buf []byte, own int) bool) error {
	if len(p) == 0 {
		return errors.Wrap(ErrPattern, "empty pattern")
	}
	spans, err := readable(mem, img)
	if err != nil {
		return err
	}
	overlap := uint64(len(p) - 1)
	buf := make([]byte, ChunkSize+overlap)
	for _, span := range spans {
		for addr := span.Start; addr < span.End; addr += ChunkSize {
			n := ChunkSize + overlap
			if addr+n > span.End {
				n = span.End - addr
			}
			if n < uint64(len(p)) {
				break
			}
			chunk := buf[:n]
			if err := mem.MemReadInto(chunk, addr); err != nil {
				return errors.Wrapf(err, "read failed at %#x", addr)
			}
			own := int(ChunkSize)
			if own > len(chunk) {
				own = len(chunk)
			}
			if !fn(addr, chunk, own) {
				return nil
			}
		}
	}
	return nil
}

// Find returns the address of the first match of p in img, in address order.
func Find(mem cpu.Memory, img models.Image, p Pattern) (uint64, error) {
	var hit uint64
	found := false
	err := walk(mem, img, p, func(addr uint64, buf []byte, own int) bool {
		if i := Match(buf, p); i >= 0 {
			hit, found = addr+uint64(i), true
		}
		return !found
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.Wrapf(ErrNotFound, "%s in %s", p, img.Name)
	}
	return hit, nil
}

// FindAll returns every match of p in img. Matches may overlap.
func FindAll(mem cpu.Memory, img models.Image, p Pattern) ([]uint64, error) {
	var hits []uint64
	err := walk(mem, img, p, func(addr uint64, buf []byte, own int) bool {
		for i := matchFrom(buf, p, 0); i >= 0 && i < own; i = matchFrom(buf, p, i+1) {
			hits = append(hits, addr+uint64(i))
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "%s in %s", p, img.Name)
	}
	return hits, nil
}
