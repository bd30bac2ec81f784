package cpu

import (
	"testing"
)

func makeRegs(bits uint) ([]int, *Regs) {
	enums := make([]int, 100)
	for i := range enums {
		enums[i] = 100 - i
	}
	return enums, NewRegs(bits, enums)
}

func BenchmarkRegsRead(b *testing.B) {
	enums, regs := makeRegs(64)
	for i := 0; i < b.N; i++ {
		regs.RegRead(enums[i%len(enums)])
	}
}

func BenchmarkRegsWrite(b *testing.B) {
	enums, regs := makeRegs(64)
	for i := 0; i < b.N; i++ {
		regs.RegWrite(enums[i%len(enums)], uint64(i))
	}
}

func TestRegs(t *testing.T) {
	enums, regs := makeRegs(64)
	before := regs.Snapshot()

	// set all regs to pos * 2
	for i, e := range enums {
		if err := regs.RegWrite(e, uint64(i*2)); err != nil {
			t.Fatal(err, "initial RegWrite() failed")
		}
	}
	for i, e := range enums {
		if val, err := regs.RegRead(e); err != nil {
			t.Fatal(err, "initial RegRead() failed")
		} else if val != uint64(i*2) {
			t.Fatalf("RegRead() returned %d, expecting %d", val, i*2)
		}
	}
	// the snapshot is a copy
	for _, e := range enums {
		if before[e] != 0 {
			t.Fatalf("snapshot changed after RegWrite(): %d = %d", e, before[e])
		}
	}
	if _, err := regs.RegRead(1000); err == nil {
		t.Fatal("RegRead() accepted an invalid enum")
	}
	if err := regs.RegWrite(1000, 1); err == nil {
		t.Fatal("RegWrite() accepted an invalid enum")
	}
}

func TestRegsEnums(t *testing.T) {
	_, regs := makeRegs(64)
	enums := regs.Enums()
	if len(enums) != 100 {
		t.Fatalf("Enums() returned %d registers, expecting 100", len(enums))
	}
	for i := 1; i < len(enums); i++ {
		if enums[i-1] >= enums[i] {
			t.Fatal("Enums() is not sorted")
		}
	}
}

func TestRegs8(t *testing.T) {
	enums, regs := makeRegs(8)
	if err := regs.RegWrite(enums[0], 0xffff); err != nil {
		t.Fatal("RegWrite() failed")
	}
	if val, err := regs.RegRead(enums[0]); err != nil {
		t.Fatal("RegRead() failed")
	} else if val != 0xffff&0xff {
		t.Fatalf("RegRead() returned %d, expecting 255", val)
	}
}
