package unicorn

import (
	"testing"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

func TestRegMap(t *testing.T) {
	for _, enum := range x86_64.AllRegs() {
		if _, ok := regMap[enum]; !ok {
			t.Errorf("register %d has no unicorn mapping", enum)
		}
	}
}

func TestRun(t *testing.T) {
	u, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer u.Close()
	code := []byte{
		0x48, 0x83, 0xc0, 0x05, // add rax, 5
		0x90,
	}
	if err := u.MemMapProt(0x1000, 0x1000, cpu.PROT_ALL); err != nil {
		t.Fatal(err)
	}
	u.MemWrite(0x1000, code)
	u.MemProt(0x1000, 0x1000, cpu.PROT_RX)
	regions, err := u.MemRegions()
	if err != nil || len(regions) != 1 || regions[0].Size != 0x1000 || regions[0].Prot != cpu.PROT_RX {
		t.Fatalf("MemRegions() = %v, %v", regions, err)
	}
	hits := 0
	if _, err := u.HookAdd(cpu.HOOK_CODE, func(c cpu.Cpu, addr uint64, size uint32) {
		hits++
	}, 0x1004, 0x1004); err != nil {
		t.Fatal(err)
	}
	u.RegWrite(x86_64.RAX, 1)
	if err := u.Start(0x1000, 0x1005); err != nil {
		t.Fatal(err)
	}
	if rax, _ := u.RegRead(x86_64.RAX); rax != 6 {
		t.Fatalf("rax = %d", rax)
	}
	if hits != 1 {
		t.Fatalf("code hook ran %d times", hits)
	}
}
