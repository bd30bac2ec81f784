package hook

import (
	"testing"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

func TestFindArena(t *testing.T) {
	img := models.Image{Base: 0x140000000, Size: 0x2000}
	regions := cpu.Pages{{Addr: img.Base, Size: img.Size}}
	addr, ok := findArena(regions, img, 0x10000)
	if !ok || addr != 0x140010000 {
		t.Fatalf("findArena() = %#x, %v", addr, ok)
	}

	// skip a mapping right after the image
	regions = append(regions, &cpu.Page{Addr: 0x140010000, Size: 0x8000})
	addr, ok = findArena(regions, img, 0x10000)
	if !ok || addr != 0x140020000 {
		t.Fatalf("findArena() = %#x, %v", addr, ok)
	}

	// nothing free above: search below the base
	regions = append(regions, &cpu.Page{Addr: 0x140018000, Size: reach})
	addr, ok = findArena(regions, img, 0x10000)
	if !ok || addr != 0x13fff0000 {
		t.Fatalf("findArena() = %#x, %v", addr, ok)
	}
	if img.End()-addr > reach {
		t.Fatal("arena out of reach")
	}
}

func TestFindArenaLowImage(t *testing.T) {
	img := models.Image{Base: 0x10000, Size: 0x1000}
	regions := cpu.Pages{{Addr: img.Base, Size: img.Size}, {Addr: 0x20000, Size: reach}}
	if addr, ok := findArena(regions, img, 0x10000); ok {
		t.Fatalf("findArena() = %#x, expecting failure", addr)
	}
}

func TestArenaEmit(t *testing.T) {
	_, m := makeTarget(t, []byte{0x90})
	arena, err := NewArena(m.mem, m.img, 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	pc, err := arena.Emit(func(pc uint64) ([]byte, error) {
		return []byte{0xc3}, nil
	})
	if err != nil || pc != arena.Base {
		t.Fatalf("Emit() = %#x, %v", pc, err)
	}
	if arena.Used() != 16 {
		t.Fatalf("used %d bytes, expecting 16", arena.Used())
	}
	_, err = arena.Emit(func(pc uint64) ([]byte, error) {
		return make([]byte, 0x1000), nil
	})
	if err == nil {
		t.Fatal("oversized emit should fail")
	}
	if arena.Used() != 16 {
		t.Fatal("failed emit consumed space")
	}
}

func TestContextXMM(t *testing.T) {
	var x XMM
	x.SetF32(3, 1.5)
	x.SetF64(0, -2)
	if x.F32(3) != 1.5 || x.F64(0) != -2 {
		t.Fatal("lane round trip failed")
	}
	if x.U32(3) != 0x3fc00000 {
		t.Fatalf("U32(3) = %#x", x.U32(3))
	}
	ctx := &Context{}
	ctx.SetFlag(CF)
	ctx.SetFlag(OF)
	ctx.ClearFlag(CF)
	if ctx.Flag(CF) || !ctx.Flag(OF) || ctx.Rflags != 1<<OF {
		t.Fatalf("rflags = %#x", ctx.Rflags)
	}
	*ctx.Reg(x86_64.R8) = 3
	if val, _ := ctx.RegRead(x86_64.R8); val != 3 || ctx.R8 != 3 {
		t.Fatal("Reg() and RegRead() disagree")
	}
}
