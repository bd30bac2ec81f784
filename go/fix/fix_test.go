package fix

import (
	"encoding/binary"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	patchcorn "github.com/patchcorn/patchcorn/go"
	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/cpu/walker"
	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

const (
	imgBase  = 0x140000000
	codeAddr = imgBase + 0x1000
	listAddr = imgBase + 0x2000
	idxAddr  = imgBase + 0x2100

	// offsets into the code page
	indexHit = 0x46
	indexMov = indexHit + 6
	compat   = 0x80
	compatJe = 0xc0
)

var gameCode = map[int][]byte{
	// lea r8, [rip+0xff9] -> listAddr, then the rest of the list setup
	0x00: {
		0x4c, 0x8d, 0x05, 0xf9, 0x0f, 0x00, 0x00,
		0x41, 0x8b, 0xc0,
		0x41, 0x8b, 0xc1,
		0x45, 0x89, 0x44, 0x24, 0x10,
		0xc7, 0x44, 0x24, 0x20, 0x00, 0x00, 0x00, 0x00,
	},
	// mov ecx, [rip+0x10ba] -> idxAddr
	0x40: {0x8b, 0x0d, 0xba, 0x10, 0x00, 0x00},
	// cmp ecx, 0xf; cmovg ecx, eax; mov [rip+0x10ae], ecx; ret
	indexHit: {0x83, 0xf9, 0x0f, 0x0f, 0x4f, 0xc8, 0x89, 0x0d, 0xae, 0x10, 0x00, 0x00, 0xc3},
	// test eax, eax; je compatJe; cmp dword [rip], 0; jne +0; lea rcx, [rip]; xor ecx, ecx
	compat: {
		0x85, 0xc0,
		0x0f, 0x84, 0x38, 0x00, 0x00, 0x00,
		0x83, 0x3d, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x75, 0x00,
		0x48, 0x8d, 0x0d, 0x00, 0x00, 0x00, 0x00,
		0x33, 0xc9,
	},
	compatJe: {0x90},
}

var resolutions = []int16{1280, 720, 1920, 1080, 2560, 1440, 3840, 2160}

// makeImage maps code into the code page of a game image whose data page is writable.
func makeImage(t *testing.T, code map[int][]byte) *walker.WalkerCpu {
	w := walker.New()
	if err := w.MemMapProt(imgBase, 0x3000, cpu.PROT_RW); err != nil {
		t.Fatal(err)
	}
	for off, b := range code {
		if err := w.MemWrite(codeAddr+uint64(off), b); err != nil {
			t.Fatal(err)
		}
	}
	w.MemProt(codeAddr, 0x1000, cpu.PROT_RX)
	if _, err := patchcorn.MapStack(w); err != nil {
		t.Fatal(err)
	}
	w.Budget = 10000
	return w
}

func makeGame(t *testing.T) *walker.WalkerCpu {
	w := makeImage(t, gameCode)
	list := make([]byte, len(resolutions)*2)
	for i, v := range resolutions {
		binary.LittleEndian.PutUint16(list[i*2:], uint16(v))
	}
	if err := w.MemWrite(listAddr, list); err != nil {
		t.Fatal(err)
	}
	return w
}

func runFix(mem cpu.Memory, cfg Config) (*Fix, *test.Hook) {
	log, logs := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	p := patchcorn.New(mem, models.Image{Name: "game.exe", Base: imgBase, Size: 0x3000}, log)
	return Run(p, cfg), logs
}

func errorsFor(logs *test.Hook, feature string) int {
	n := 0
	for _, e := range logs.AllEntries() {
		if e.Level <= logrus.ErrorLevel && e.Data["feature"] == feature {
			n++
		}
	}
	return n
}

func readU32(t *testing.T, w *walker.WalkerCpu, addr uint64) uint32 {
	b, err := w.MemRead(addr, 4)
	if err != nil {
		t.Fatal(err)
	}
	return binary.LittleEndian.Uint32(b)
}

func TestResolution(t *testing.T) {
	w := makeGame(t)
	f, logs := runFix(w, Config{CustomRes: true, Width: 3440, Height: 1440})
	if n := errorsFor(logs, "Resolution"); n != 0 {
		t.Fatalf("%d errors logged", n)
	}

	b, _ := w.MemRead(listAddr, uint64(len(resolutions)*2))
	want := []int16{1280, 720, 1920, 1080, 3440, 1440, 3840, 2160}
	for i, v := range want {
		if got := int16(binary.LittleEndian.Uint16(b[i*2:])); got != v {
			t.Fatalf("list[%d] = %d, expecting %d", i, got, v)
		}
	}
	if idx := readU32(t, w, idxAddr); idx != replaceIndex {
		t.Fatalf("index = %#x", idx)
	}

	// the game picks another slot; the hook puts it back
	w.MemWrite(idxAddr, []byte{3, 0, 0, 0})
	w.RegWrite(x86_64.RCX, 3)
	if err := w.Start(codeAddr+indexMov, codeAddr+indexMov+6); err != nil {
		t.Fatal(err)
	}
	if idx := readU32(t, w, idxAddr); idx != replaceIndex {
		t.Fatalf("index after change = %#x", idx)
	}
	hooks, err := f.Hooks()
	if err != nil || len(hooks.Hooks()) != 1 {
		t.Fatalf("expected one hook, got %v", err)
	}
}

type countingMem struct {
	cpu.Memory
	reads int
}

func (c *countingMem) MemRead(addr, size uint64) ([]byte, error) {
	c.reads++
	return c.Memory.MemRead(addr, size)
}

func (c *countingMem) MemReadInto(p []byte, addr uint64) error {
	c.reads++
	return c.Memory.MemReadInto(p, addr)
}

func TestDisabledFeatures(t *testing.T) {
	mem := &countingMem{Memory: makeGame(t)}
	f, logs := runFix(mem, Config{Width: 3440, Height: 1440})
	if mem.reads != 0 {
		t.Fatalf("disabled features read memory %d times", mem.reads)
	}
	if len(f.Patcher.Journal()) != 0 {
		t.Fatal("disabled features patched memory")
	}
	for _, e := range logs.AllEntries() {
		if _, ok := e.Data["feature"]; ok {
			t.Fatalf("feature logged: %s", e.Message)
		}
	}
}

func TestFeatureIndependence(t *testing.T) {
	w := makeGame(t)
	// the image has no HUD or aspect code; those features fail on their own
	_, logs := runFix(w, Config{CustomRes: true, Width: 3440, Height: 1440, FixAspect: true, FixHUD: true})
	if errorsFor(logs, "HUD Size") == 0 || errorsFor(logs, "Aspect Ratio") == 0 {
		t.Fatal("expected scan failures for missing features")
	}
	if errorsFor(logs, "Resolution") != 0 {
		t.Fatal("resolution failed alongside unrelated features")
	}
	if idx := readU32(t, w, idxAddr); idx != replaceIndex {
		t.Fatalf("index = %#x", idx)
	}
}

func TestWindowsMessage(t *testing.T) {
	w := makeGame(t)
	_, logs := runFix(w, Config{SkipWindowsMessage: true})
	if n := errorsFor(logs, "Windows Compatibility Message"); n != 0 {
		t.Fatalf("%d errors logged", n)
	}
	w.RegWrite(x86_64.RAX, 1)
	w.RegWrite(x86_64.RCX, 7)
	if err := w.Start(codeAddr+compat, codeAddr+compatJe); err != nil {
		t.Fatal(err)
	}
	if rax, _ := w.RegRead(x86_64.RAX); rax != 0 {
		t.Fatalf("rax = %#x", rax)
	}
	// the message path clobbers rcx
	if rcx, _ := w.RegRead(x86_64.RCX); rcx != 7 {
		t.Fatal("version check was not skipped")
	}
}
