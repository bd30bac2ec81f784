package run

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	patchcorn "github.com/patchcorn/patchcorn/go"
	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/cmd"
	"github.com/patchcorn/patchcorn/go/cpu"
	"github.com/patchcorn/patchcorn/go/cpu/native"
	"github.com/patchcorn/patchcorn/go/fix"
	"github.com/patchcorn/patchcorn/go/models"
	mcpu "github.com/patchcorn/patchcorn/go/models/cpu"
)

func Main(args []string) {
	fs := cmd.NewFlags("run", "<game.exe|snapshot|module>")
	target := fs.String("target", "walker", "walker, unicorn, or native (patch a module of this process)")
	name := fs.String("name", "patchcorn", "fix name, used for <name>.log and <name>.ini")
	dir := fs.String("dir", "", "directory holding the config and log (default: next to the image)")
	verbose := fs.Bool("v", false, "debug logging")
	trace := fs.Bool("trace", false, "log patched instructions and registers changed by hooks")
	capstone := fs.Bool("capstone", false, "disassemble patches with capstone instead of x86asm")
	desktop := fs.String("desktop", "", "desktop size for 0x0 configs, as WxH")
	snapshot := fs.String("snapshot", "", "write the patched target to a snapshot file")
	fs.Parse(args[1:])

	if *target != "native" && fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	path := fs.Arg(0)
	if *dir == "" {
		*dir = filepath.Dir(path)
		if *target == "native" {
			exe, err := os.Executable()
			if err != nil {
				cmd.Exit(err)
			}
			*dir = filepath.Dir(exe)
		}
	}
	var deskW, deskH int
	if *desktop != "" {
		if _, err := fmt.Sscanf(*desktop, "%dx%d", &deskW, &deskH); err != nil {
			cmd.Exit(fmt.Errorf("bad -desktop %q: %v", *desktop, err))
		}
	}
	level := logrus.InfoLevel
	if *verbose {
		level = logrus.DebugLevel
	}
	if *trace {
		level = logrus.TraceLevel
	}

	sess, err := cmd.OpenSession(*name, *dir, level, deskW, deskH)
	if err != nil {
		cmd.Exit(err)
	}
	defer sess.Close()

	var mem mcpu.Memory
	var emu mcpu.Cpu
	var img models.Image
	if *target == "native" {
		proc := native.New()
		img, err = proc.Image(path)
		mem = proc
	} else {
		emu, img, err = cmd.OpenTarget(*target, path)
		mem = emu
	}
	if err != nil {
		sess.Log.WithError(err).Error("failed to open target")
		sess.Close()
		cmd.Exit(err)
	}

	p := patchcorn.New(mem, img, sess.Log)
	p.Trace = *trace
	if *capstone {
		dis := cpu.NewCapstrX64()
		if err := dis.Open(); err != nil {
			sess.Log.WithError(err).Warn("capstone unavailable")
		} else {
			p.Dis = dis
		}
	}
	p.LogImage()
	fix.Run(p, sess.Config)
	p.Summary()

	if *snapshot != "" {
		if emu == nil {
			sess.Log.Warn("snapshots need an emulated target")
			return
		}
		if err := writeSnapshot(*snapshot, emu, img); err != nil {
			sess.Log.WithError(err).Error("snapshot failed")
			sess.Close()
			cmd.Exit(err)
		}
		sess.Log.WithField("path", *snapshot).Info("snapshot written")
	}
}

func writeSnapshot(path string, c mcpu.Cpu, img models.Image) error {
	snap, err := models.TakeSnapshot(c, c, x86_64.AllRegs(), img)
	if err != nil {
		return err
	}
	data, err := snap.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func init() { cmd.Register("run", "apply the fix to a game image", Main) }

