package cpu

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

type Page struct {
	Addr uint64
	Size uint64
	Prot int
	Data []byte

	Desc string
}

func (p *Page) String() string {
	desc := fmt.Sprintf("0x%x-0x%x %s", p.Addr, p.Addr+p.Size, ProtString(p.Prot))
	if p.Desc != "" {
		desc += fmt.Sprintf(" [%s]", p.Desc)
	}
	return desc
}

func (p *Page) Contains(addr uint64) bool {
	return addr >= p.Addr && addr < p.Addr+p.Size
}

// start = max(s1, s2), end = min(e1, e2), ok = end > start
func (p *Page) Intersect(addr, size uint64) (uint64, uint64, bool) {
	start := p.Addr
	end := p.Addr + p.Size
	e2 := addr + size
	if end > e2 {
		end = e2
	}
	if start < addr {
		start = addr
	}
	return start, end - start, end > start
}

func (p *Page) Overlaps(addr, size uint64) bool {
	_, _, ok := p.Intersect(addr, size)
	return ok
}

func (p *Page) slice(addr, size uint64) *Page {
	o := addr - p.Addr
	var data []byte
	if p.Data != nil {
		data = p.Data[o : o+size]
	}
	return &Page{Addr: addr, Size: size, Prot: p.Prot, Data: data, Desc: p.Desc}
}

/*
how to split a page:

	laddr                      rsize
	|      lsize       raddr   |
	[------|----page---|-------]
	[-left-][---mid---][-right-]
	        |         |
	        addr      size

p is shrunk to the middle. If addr/size reach past the page, the middle is zero padded.
*/
func (p *Page) Split(addr, size uint64) (left, right *Page) {
	if addr+size < p.Addr+p.Size {
		ra := addr + size
		rs := (p.Addr + p.Size) - ra
		right = p.slice(ra, rs)
		if p.Data != nil {
			p.Data = p.Data[:ra-p.Addr]
		}
	}
	if addr > p.Addr {
		ls := addr - p.Addr
		left = p.slice(p.Addr, ls)
		if p.Data != nil {
			p.Data = p.Data[ls:]
		}
	}
	if p.Data != nil {
		if addr < p.Addr {
			extra := bytes.Repeat([]byte{0}, int(p.Addr-addr))
			p.Data = append(extra, p.Data...)
		}
		raddr, nraddr := p.Addr+p.Size, addr+size
		if nraddr > raddr {
			extra := bytes.Repeat([]byte{0}, int(nraddr-raddr))
			p.Data = append(p.Data, extra...)
		}
	}
	p.Addr, p.Size = addr, size
	return left, right
}

type Pages []*Page

func (p Pages) Len() int           { return len(p) }
func (p Pages) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p Pages) Less(i, j int) bool { return p[i].Addr < p[j].Addr }

func (p Pages) String() string {
	s := make([]string, len(p))
	for i, v := range p {
		s[i] = v.String()
	}
	return strings.Join(s, "\n")
}

// bsearch returns the insertion position for addr and the index of the page containing it, or -1.
func (p Pages) bsearch(addr uint64) (int, int) {
	pos := sort.Search(len(p), func(i int) bool { return p[i].Addr+p[i].Size > addr })
	if pos < len(p) && p[pos].Contains(addr) {
		return pos, pos
	}
	return pos, -1
}

func (p Pages) Find(addr uint64) *Page {
	if _, i := p.bsearch(addr); i >= 0 {
		return p[i]
	}
	return nil
}

// FindRange returns the pages overlapping addr:addr+size.
func (p Pages) FindRange(addr, size uint64) Pages {
	pos, _ := p.bsearch(addr)
	var ret Pages
	for _, pg := range p[pos:] {
		if pg.Addr >= addr+size {
			break
		}
		if pg.Overlaps(addr, size) {
			ret = append(ret, pg)
		}
	}
	return ret
}
