package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/cpu/walker"
	"github.com/patchcorn/patchcorn/go/fix"
	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

func TestOpenSession(t *testing.T) {
	dir := t.TempDir()
	ini := "[Custom Resolution]\nEnabled = 1\nWidth = 0\nHeight = 0\n"
	if err := os.WriteFile(filepath.Join(dir, "cmdtest.ini"), []byte(ini), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := OpenSession("cmdtest", dir, logrus.InfoLevel, 3440, 1440)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Config.CustomRes || s.Config.Width != 3440 || s.Config.Height != 1440 {
		t.Fatalf("config %+v", s.Config)
	}
	s.Close()
	log, err := os.ReadFile(filepath.Join(dir, "cmdtest.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(log), "config loaded") {
		t.Fatalf("log missing config line:\n%s", log)
	}
}

func TestOpenSessionMissingConfig(t *testing.T) {
	_, err := OpenSession("cmdtest-missing", t.TempDir(), logrus.InfoLevel, 0, 0)
	if errors.Cause(err) != fix.ErrConfigMissing {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}

func TestOpenSessionBadLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	_, err := OpenSession("cmdtest", dir, logrus.InfoLevel, 0, 0)
	if errors.Cause(err) != models.ErrLogInit {
		t.Fatalf("expected ErrLogInit, got %v", err)
	}
}

func TestOpenTargetSnapshot(t *testing.T) {
	w := walker.New()
	img := models.Image{Name: "game.exe", Base: 0x140000000, Size: 0x1000}
	w.MemMapProt(img.Base, img.Size, cpu.PROT_RW)
	w.MemWrite(img.Base, []byte{0x90, 0xc3})
	w.MemProt(img.Base, img.Size, cpu.PROT_RX)
	w.RegWrite(x86_64.RIP, img.Base)
	snap, err := models.TakeSnapshot(w, w, x86_64.AllRegs(), img)
	if err != nil {
		t.Fatal(err)
	}
	data, err := snap.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "game.snap")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	c, got, err := OpenTarget("walker", path)
	if err != nil {
		t.Fatal(err)
	}
	if got != img {
		t.Fatalf("image %v", got)
	}
	if b, err := c.MemRead(img.Base, 2); err != nil || b[1] != 0xc3 {
		t.Fatalf("restored memory %x, %v", b, err)
	}
	if rip, _ := c.RegRead(x86_64.RIP); rip != img.Base {
		t.Fatalf("rip = %#x", rip)
	}
	if _, _, err := OpenTarget("bochs", path); err == nil {
		t.Fatal("unknown target accepted")
	}
}

func TestAttachMissingConfig(t *testing.T) {
	err := attach("cmdtest-missing", t.TempDir(), "")
	if errors.Cause(err) != fix.ErrConfigMissing {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}

func TestAttachMissingModule(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cmdtest.ini"), []byte("[Custom Resolution]\nEnabled = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := attach("cmdtest", dir, "no-such-module.exe"); err == nil {
		t.Fatal("attached to a module that isn't loaded")
	}
	log, err := os.ReadFile(filepath.Join(dir, "cmdtest.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(log), "failed to find module") {
		t.Fatalf("module lookup failure was not logged:\n%s", log)
	}
}
