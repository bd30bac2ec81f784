package fix

import (
	patchcorn "github.com/patchcorn/patchcorn/go"
	"github.com/patchcorn/patchcorn/go/hook"
)

const (
	aspectPattern     = "F3 0F ?? ?? ?? ?? ?? ?? F3 0F ?? ?? ?? ?? ?? ?? 89 ?? ?? ?? ?? ?? 0F ?? ?? ?? ?? ?? ?? 74 ??"
	menuAspectPattern = "F3 0F ?? ?? ?? ?? ?? ?? 48 ?? ?? ?? ?? ?? ?? 4C ?? ?? ?? ?? ?? ?? 48 ?? ?? ?? ?? ?? ?? F3 0F ?? ?? ?? ?? ?? ??"

	// camera aspect ratio field, relative to rbx
	cameraAspect = 0x1B0
)

func (f *Fix) aspect(t *patchcorn.Task) {
	hit := t.Scan("aspect ratio", aspectPattern)
	t.Mid("aspect ratio", hit, func(ctx *hook.Context) {
		// no camera yet
		if ctx.Rbx == 0 {
			return
		}
		if err := storeF32(f.Mem, ctx.Rbx+cameraAspect, f.Display.Geometry().Aspect); err != nil {
			t.Log.WithError(err).WithField("feature", t.Feature).Debug("aspect ratio write failed")
		}
	})
}

func menuAspect(g *Geometry, ctx *hook.Context) {
	ctx.Xmm[0].SetF32(0, g.Aspect)
}

func (f *Fix) menuAspect(t *patchcorn.Task) {
	hit := t.Scan("menu aspect ratio", menuAspectPattern)
	t.Mid("menu aspect ratio", hit, func(ctx *hook.Context) {
		menuAspect(f.Display.Geometry(), ctx)
	})
}
