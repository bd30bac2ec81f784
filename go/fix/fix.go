// Package fix applies the resolution, aspect ratio and HUD fixes to a game image.
package fix

import (
	"encoding/binary"
	"math"
	"runtime"

	patchcorn "github.com/patchcorn/patchcorn/go"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

type Fix struct {
	*patchcorn.Patchcorn
	Config  Config
	Display *Display
}

// Feature is one independently toggled fix. Apply is never called when Enabled is false.
type Feature struct {
	Name    string
	Enabled func(Config) bool
	Apply   func(f *Fix, t *patchcorn.Task)
}

var Features = []Feature{
	{"Resolution", func(c Config) bool { return c.CustomRes }, (*Fix).resolution},
	{"Aspect Ratio", func(c Config) bool { return c.FixAspect }, (*Fix).aspect},
	{"Menu Aspect Ratio", func(c Config) bool { return c.FixAspect }, (*Fix).menuAspect},
	{"HUD Size", func(c Config) bool { return c.FixHUD }, (*Fix).hudSize},
	{"HUD Offset", func(c Config) bool { return c.FixHUD }, (*Fix).hudOffset},
	{"Movies", func(c Config) bool { return c.FixHUD }, (*Fix).movies},
	{"Fades", func(c Config) bool { return c.FixHUD }, (*Fix).fades},
	{"Windows Compatibility Message", func(c Config) bool { return c.SkipWindowsMessage }, (*Fix).windowsMessage},
}

// Run applies every enabled feature, then seals the hook table. Setup runs on
// one locked OS thread and is finished by the time Run returns.
func Run(p *patchcorn.Patchcorn, cfg Config) *Fix {
	f := &Fix{Patchcorn: p, Config: cfg, Display: NewDisplay(cfg.Width, cfg.Height)}
	done := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(done)

		p.Log.WithFields(f.Display.Geometry().Fields()).Info("current resolution")
		for _, feat := range Features {
			if feat.Enabled(cfg) {
				feat.Apply(f, p.Task(feat.Name))
			}
		}
		p.Seal()
	}()
	<-done
	return f
}

// storeF32 writes game memory from inside a hook callback.
func storeF32(mem cpu.Memory, addr uint64, v float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return mem.MemWrite(addr, buf[:])
}
