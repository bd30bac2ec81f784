package cpu

import (
	"bytes"
	"testing"
)

func fill(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

type span struct {
	addr, size uint64
	prot       int
}

func spans(m *MemSim) []span {
	out := make([]span, len(m.Mem))
	for i, p := range m.Mem {
		out[i] = span{p.Addr, p.Size, p.Prot}
	}
	return out
}

func sameSpans(a, b []span) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Prot and Unmap both carve the pages they touch into left, middle and right pieces
func TestMemSimCarve(t *testing.T) {
	tests := []struct {
		name string
		op   func(m *MemSim)
		want []span
	}{
		{"prot middle", func(m *MemSim) { m.Prot(0x2000, 0x1000, PROT_RW) },
			[]span{{0x1000, 0x1000, PROT_RX}, {0x2000, 0x1000, PROT_RW}, {0x3000, 0x1000, PROT_RX}}},
		{"prot head", func(m *MemSim) { m.Prot(0x1000, 0x800, PROT_ALL) },
			[]span{{0x1000, 0x800, PROT_ALL}, {0x1800, 0x2800, PROT_RX}}},
		{"prot all", func(m *MemSim) { m.Prot(0x1000, 0x3000, PROT_READ) },
			[]span{{0x1000, 0x3000, PROT_READ}}},
		{"unmap middle", func(m *MemSim) { m.Unmap(0x2000, 0x1000) },
			[]span{{0x1000, 0x1000, PROT_RX}, {0x3000, 0x1000, PROT_RX}}},
		{"unmap tail past end", func(m *MemSim) { m.Unmap(0x3800, 0x1000) },
			[]span{{0x1000, 0x2800, PROT_RX}}},
		{"untouched", func(m *MemSim) { m.Prot(0x8000, 0x1000, PROT_RW) },
			[]span{{0x1000, 0x3000, PROT_RX}}},
	}
	for _, test := range tests {
		m := &MemSim{}
		m.Map(0x1000, 0x3000, PROT_RX, true)
		m.Write(0x1000, fill(0x3000, 0xcc), 0)
		test.op(m)
		if got := spans(m); !sameSpans(got, test.want) {
			t.Errorf("%s: pages %v, expecting %v", test.name, got, test.want)
			continue
		}
		// whatever is still mapped keeps its bytes
		for _, p := range m.Mem {
			buf := make([]byte, p.Size)
			if err := m.Read(p.Addr, buf, 0); err != nil || !bytes.Equal(buf, fill(int(p.Size), 0xcc)) {
				t.Errorf("%s: data lost at %#x: %v", test.name, p.Addr, err)
			}
		}
	}
}

func TestMemSimRangeValid(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x1000, PROT_RX, true)
	m.Map(0x2000, 0x1000, PROT_RW, true)
	m.Map(0x4000, 0x1000, PROT_ALL, true)
	tests := []struct {
		addr, size     uint64
		prot           int
		mapped, protOK bool
	}{
		{0x1000, 0x2000, PROT_READ, true, true},
		{0x1800, 0x1000, PROT_EXEC, true, false},
		{0x2000, 0x1000, PROT_WRITE, true, true},
		{0x2800, 0x2000, PROT_READ, false, true},
		{0x3000, 0x10, 0, false, false},
		{0x4ff0, 0x10, PROT_ALL, true, true},
	}
	for _, test := range tests {
		mapped, protOK := m.RangeValid(test.addr, test.size, test.prot)
		if mapped != test.mapped || (mapped && protOK != test.protOK) {
			t.Errorf("RangeValid(%#x, %#x, %d) = %v, %v", test.addr, test.size, test.prot, mapped, protOK)
		}
	}
}

func TestMemSimErrors(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x1000, PROT_RX, true)
	tests := []struct {
		err  error
		enum int
	}{
		{m.Write(0x1000, []byte{1}, PROT_WRITE), MEM_WRITE_PROT},
		{m.Write(0x1ff0, fill(0x20, 1), 0), MEM_WRITE_UNMAPPED},
		{m.Read(0x3000, make([]byte, 4), PROT_READ), MEM_READ_UNMAPPED},
		{m.Read(0x3000, make([]byte, 4), PROT_EXEC), MEM_FETCH_UNMAPPED},
	}
	for _, test := range tests {
		if merr, ok := test.err.(*MemError); !ok || merr.Enum != test.enum {
			t.Errorf("expected enum %d, got %v", test.enum, test.err)
		}
	}
	m.Prot(0x1000, 0x1000, PROT_WRITE)
	err := m.Read(0x1000, make([]byte, 4), PROT_EXEC)
	if merr, ok := err.(*MemError); !ok || merr.Enum != MEM_FETCH_PROT {
		t.Fatalf("expected a protected fetch, got %v", err)
	}
}

// remapping without zero keeps the bytes that were there
func TestMemSimRemap(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x2000, PROT_RW, true)
	m.Write(0x1000, fill(0x2000, 0x5a), 0)
	m.Map(0x1800, 0x1000, PROT_RX, false)
	buf := make([]byte, 0x1000)
	if err := m.Read(0x1800, buf, PROT_EXEC); err != nil || !bytes.Equal(buf, fill(0x1000, 0x5a)) {
		t.Fatalf("remap lost data: %v", err)
	}
	m.Map(0x1800, 0x1000, PROT_RX, true)
	if err := m.Read(0x1800, buf, 0); err != nil || !bytes.Equal(buf, make([]byte, 0x1000)) {
		t.Fatalf("zeroing remap kept data: %v", err)
	}
	if len(m.Mem) != 3 {
		t.Fatalf("expected 3 pages, got %v", spans(m))
	}
}

func BenchmarkMemSimWrite(b *testing.B) {
	m := &MemSim{}
	m.Map(0x1000, 0x100000, 0, true)
	p := make([]byte, 4)
	for i := 0; i < b.N; i++ {
		m.Write(uint64(i*4)&0xfffff, p, 0)
	}
}
