package patchcorn

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/cpu/walker"
	"github.com/patchcorn/patchcorn/go/hook"
	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

const (
	imgBase  = 0x140000000
	codeAddr = imgBase + 0x1000
	dataAddr = imgBase + 0x2000
)

func makeTask(t *testing.T, code []byte) (*walker.WalkerCpu, *Task, *test.Hook) {
	w := walker.New()
	img := models.Image{Name: "game.exe", Base: imgBase, Size: 0x3000}
	if err := w.MemMapProt(img.Base, img.Size, cpu.PROT_RW); err != nil {
		t.Fatal(err)
	}
	if err := w.MemWrite(codeAddr, code); err != nil {
		t.Fatal(err)
	}
	w.MemProt(codeAddr, 0x1000, cpu.PROT_RX)
	if _, err := MapStack(w); err != nil {
		t.Fatal(err)
	}
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.TraceLevel)
	return w, New(w, img, log).Task("Resolution"), hook
}

func errorsLogged(h *test.Hook) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range h.AllEntries() {
		if e.Level <= logrus.ErrorLevel {
			out = append(out, e)
		}
	}
	return out
}

func TestScanResolvePatch(t *testing.T) {
	code := []byte{
		0x4c, 0x8d, 0x05, 0xf9, 0x0f, 0x00, 0x00, // lea r8, [rip+0xff9] -> dataAddr
		0x41, 0x8b, 0xc0, // mov eax, r8d
		0xc3,
	}
	_, task, logs := makeTask(t, code)
	hit := task.Scan("list", "4C ?? ?? ?? ?? ?? ?? 41 ?? ??")
	if hit != codeAddr {
		t.Fatalf("Scan() = %#x", hit)
	}
	entry := logs.LastEntry()
	if entry.Data["feature"] != "Resolution" || entry.Data["target"] != "list" || entry.Data["addr"] != "game.exe+0x1000" {
		t.Fatalf("unexpected log fields %v", entry.Data)
	}
	list := task.RIP("list", hit, 3)
	if list != dataAddr {
		t.Fatalf("RIP() = %#x, expecting %#x", list, uint64(dataAddr))
	}
	if !Write(task, "list", list, int16(2560)) {
		t.Fatal("Write() failed")
	}
	if v, ok := Read[int16](task, "list", list); !ok || v != 2560 {
		t.Fatalf("Read() = %d, %v", v, ok)
	}
	if !task.Patch("ret", codeAddr+10, []byte{0xcc}) {
		t.Fatal("Patch() failed")
	}
	journal := task.Patcher.Journal()
	if len(journal) != 2 || journal[1].Old[0] != 0xc3 {
		t.Fatalf("unexpected journal %v", journal)
	}
	if errs := errorsLogged(logs); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs[0].Message)
	}
}

func TestScanMiss(t *testing.T) {
	_, task, logs := makeTask(t, []byte{0x90, 0xc3})
	hit := task.Scan("index", "83 ?? 0F 0F ?? ?? 89")
	if hit != 0 {
		t.Fatalf("Scan() = %#x", hit)
	}
	errs := errorsLogged(logs)
	if len(errs) != 1 || errs[0].Message != "pattern scan failed" || errs[0].Data["target"] != "index" {
		t.Fatalf("expected one scan failure, got %d", len(errs))
	}
	logs.Reset()
	// everything downstream of the miss is skipped without further errors
	if task.RIP("index", hit, -4) != 0 || task.Displace("index", hit, 6) != 0 {
		t.Fatal("null match resolved")
	}
	if task.Patch("index", hit, []byte{0xeb}) || Write(task, "index", hit, int32(0xc)) {
		t.Fatal("null address patched")
	}
	if task.Mid("index", hit, func(*hook.Context) {}) {
		t.Fatal("null address hooked")
	}
	if errs := errorsLogged(logs); len(errs) != 0 {
		t.Fatalf("unexpected errors after a miss: %v", errs[0].Message)
	}
	if task.Scan("bad", "4C ZZ") != 0 {
		t.Fatal("bad pattern matched")
	}
}

func TestMid(t *testing.T) {
	code := []byte{
		0x48, 0x89, 0xc8, // mov rax, rcx
		0x48, 0x83, 0xc0, 0x01, // add rax, 1
		0x90,
	}
	w, task, logs := makeTask(t, code)
	task.Trace = true
	w.RegWrite(x86_64.RCX, 0x10)
	ok := task.Mid("force", codeAddr, func(ctx *hook.Context) {
		ctx.Rcx = 0xc
	})
	if !ok {
		t.Fatalf("Mid() failed: %v", logs.LastEntry().Message)
	}
	task.Seal()
	w.Budget = 10000
	if err := w.Start(codeAddr, codeAddr+uint64(len(code))); err != nil {
		t.Fatal(err)
	}
	if rax, _ := w.RegRead(x86_64.RAX); rax != 0xd {
		t.Fatalf("rax = %#x, expecting 0xd", rax)
	}
	traced := false
	for _, e := range logs.AllEntries() {
		if e.Level == logrus.TraceLevel && strings.Contains(e.Message, "rcx") {
			traced = true
		}
	}
	if !traced {
		t.Fatal("register change was not traced")
	}
	if task.Mid("late", codeAddr+7, func(*hook.Context) {}) {
		t.Fatal("hook installed after Seal")
	}
}

func TestHooksUnsupported(t *testing.T) {
	mem := cpu.NewMem(64, binary.LittleEndian)
	mem.MemMapProt(imgBase, 0x1000, cpu.PROT_RX)
	log, logs := test.NewNullLogger()
	p := New(mem, models.Image{Name: "game.exe", Base: imgBase, Size: 0x1000}, log)
	if p.Task("Misc").Mid("compat", imgBase, func(*hook.Context) {}) {
		t.Fatal("hooked a target without code hooks")
	}
	entry := logs.LastEntry()
	if entry.Level != logrus.ErrorLevel || errors.Cause(entry.Data[logrus.ErrorKey].(error)) != hook.ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", entry.Data)
	}
}

func TestDisplaceLogged(t *testing.T) {
	_, task, logs := makeTask(t, []byte{0x90, 0xc3})
	if addr := task.Displace("offset", codeAddr, 0xd); addr != codeAddr+0xd {
		t.Fatalf("Displace() = %#x", addr)
	}
	entry := logs.LastEntry()
	if entry.Message != "address resolved" || entry.Data["target"] != "offset" || entry.Data["addr"] != "game.exe+0x100d" {
		t.Fatalf("resolved target was not logged: %s %v", entry.Message, entry.Data)
	}
}
