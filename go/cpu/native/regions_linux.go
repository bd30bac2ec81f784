package native

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

// parseMaps reads /proc/<pid>/maps lines:
// 7f0000000000-7f0000001000 r-xp 00000000 08:01 1234 /usr/bin/game
func parseMaps(f *os.File) (cpu.Pages, error) {
	var pages cpu.Pages
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		span := strings.SplitN(fields[0], "-", 2)
		if len(span) != 2 {
			return nil, errors.Errorf("bad maps line: %q", scanner.Text())
		}
		start, err := strconv.ParseUint(span[0], 16, 64)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		end, err := strconv.ParseUint(span[1], 16, 64)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		prot := 0
		for i, bit := range []int{cpu.PROT_READ, cpu.PROT_WRITE, cpu.PROT_EXEC} {
			if i < len(fields[1]) && fields[1][i] != '-' {
				prot |= bit
			}
		}
		pg := &cpu.Page{Addr: start, Size: end - start, Prot: prot}
		if len(fields) > 5 {
			pg.Desc = strings.Join(fields[5:], " ")
		}
		pages = append(pages, pg)
	}
	return pages, errors.WithStack(scanner.Err())
}

func regions() (cpu.Pages, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	return parseMaps(f)
}

// module spans every mapping backed by the named file.
func module(p *Process, name string) (models.Image, error) {
	pages, err := p.MemRegions()
	if err != nil {
		return models.Image{}, err
	}
	img := models.Image{Name: name}
	for _, pg := range pages {
		if pg.Desc == "" || filepath.Base(pg.Desc) != name {
			continue
		}
		if img.Size == 0 {
			img.Base = pg.Addr
		}
		img.Size = pg.Addr + pg.Size - img.Base
	}
	if img.Size == 0 {
		return img, errors.Errorf("module %q is not loaded", name)
	}
	return img, nil
}
