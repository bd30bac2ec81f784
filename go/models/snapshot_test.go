package models

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/models/cpu"
)

type memCpu struct {
	*cpu.Mem
	*cpu.Regs
}

func newMemCpu() *memCpu {
	return &memCpu{cpu.NewMem(64, binary.LittleEndian), cpu.NewRegs(64, []int{1, 2, 3})}
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := newMemCpu()
	src.MemMapProt(0x1000, 0x1000, cpu.PROT_RX)
	src.MemMapProt(0x4000, 0x2000, cpu.PROT_RW)
	src.MemMapProt(0x8000, 0x1000, cpu.PROT_NONE)
	src.MemWrite(0x1000, []byte{0x90, 0xc3})
	src.MemWrite(0x5ff0, []byte("snapshot"))
	src.RegWrite(1, 0x1122334455667788)
	src.RegWrite(3, 7)

	img := Image{Name: "game.exe", Base: 0x1000, Size: 0x6000, Timestamp: 0x5f000000}
	snap, err := TakeSnapshot(src, src, []int{1, 2, 3}, img)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Regions) != 2 {
		t.Fatalf("expected unreadable region to be skipped, got %d regions", len(snap.Regions))
	}
	data, err := snap.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Image != img {
		t.Fatalf("image mismatch: %v", loaded.Image)
	}
	if val, err := loaded.RegRead(3); err != nil || val != 7 {
		t.Fatalf("RegRead(3) = %d, %v", val, err)
	}
	if loaded.Regs[1] != 0x1122334455667788 || loaded.Regs[3] != 7 || len(loaded.Regs) != 3 {
		t.Fatalf("register mismatch: %v", loaded.Regs)
	}

	dst := newMemCpu()
	if err := loaded.Restore(dst); err != nil {
		t.Fatal(err)
	}
	for _, addr := range []uint64{0x1000, 0x5ff0} {
		want, _ := src.MemRead(addr, 8)
		got, err := dst.MemRead(addr, 8)
		if err != nil || !bytes.Equal(got, want) {
			t.Fatalf("restored memory at %#x: %x, %v", addr, got, err)
		}
	}
	regions, _ := dst.MemRegions()
	if pg := regions.Find(0x1000); pg == nil || pg.Prot != cpu.PROT_RX {
		t.Fatalf("protection not restored: %v", pg)
	}
	if val, _ := dst.RegRead(1); val != 0x1122334455667788 {
		t.Fatalf("register not restored: %#x", val)
	}
}

func TestSnapshotCorrupt(t *testing.T) {
	src := newMemCpu()
	src.MemMapProt(0x1000, 0x1000, cpu.PROT_RW)
	snap, _ := TakeSnapshot(src, nil, nil, Image{Name: "x"})
	data, err := snap.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if !IsSnapshot(data) || IsSnapshot([]byte("MZ")) {
		t.Fatal("IsSnapshot() misidentified input")
	}
	data[len(data)-1] ^= 0xff
	if _, err := LoadSnapshot(data); errors.Cause(err) != ErrSnapshot {
		t.Fatalf("expected ErrSnapshot, got %v", err)
	}
	if _, err := LoadSnapshot([]byte("nope")); errors.Cause(err) != ErrSnapshot {
		t.Fatalf("expected ErrSnapshot, got %v", err)
	}
}
