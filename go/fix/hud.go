package fix

import (
	patchcorn "github.com/patchcorn/patchcorn/go"
	"github.com/patchcorn/patchcorn/go/hook"
)

const (
	hudSizePattern       = "F3 0F ?? ?? ?? ?? ?? ?? F3 0F ?? ?? ?? ?? F3 0F ?? ?? ?? ?? 8B ?? ?? ?? 89 ?? ??"
	hudOffsetPathPattern = "7A ?? 75 ?? F3 0F ?? ?? ?? ?? ?? ?? 0F ?? ?? 7A ?? 74 ?? 48 ?? ?? ?? ?? ?? ?? 00 74 ??"
	hudOffsetPattern     = "F3 0F ?? ?? ?? F3 0F ?? ?? ?? ?? ?? ?? F3 0F ?? ?? ?? ?? F3 0F ?? ?? ?? ?? F3 0F ?? ?? ?? ?? 0F ?? ?? ?? 42 ?? ?? ?? ??"
	moviesPattern        = "F3 0F ?? ?? ?? F3 0F ?? ?? ?? ?? ?? ?? 48 ?? ?? ?? 00 00 00 00 0F ?? ??"
	fadesPattern         = "66 0F ?? ?? ?? F3 0F ?? ?? ?? F3 0F ?? ?? ?? 0F ?? ?? F3 0F ?? ?? ?? F3 0F ?? ?? ??"
)

const (
	fadeWidth  = 1920
	fadeHeight = 1080
	jmpShort   = 0xEB
)

// the hooked instruction loads xmm0 with the width and xmm1 with the height
func hudWidth(g *Geometry, ctx *hook.Context) {
	if g.Wider() {
		ctx.Xmm[0].SetF32(0, g.HUDWidth)
	}
}

func hudHeight(g *Geometry, ctx *hook.Context) {
	if g.Narrower() {
		ctx.Xmm[1].SetF32(0, g.HUDHeight)
	}
}

func hudWidthOffset(g *Geometry, ctx *hook.Context) {
	if g.Wider() {
		ctx.Xmm[0].SetF32(0, -(NativeAspect / g.Aspect))
	}
}

func hudHeightOffset(g *Geometry, ctx *hook.Context) {
	if g.Narrower() {
		ctx.Xmm[1].SetF32(0, g.Multiplier)
	}
}

// fades are drawn at 1920x1080 and identified by that width in xmm2
func fadeSize(g *Geometry, ctx *hook.Context) {
	if ctx.Xmm[2].F32(0) != fadeWidth {
		return
	}
	switch {
	case g.Wider():
		ctx.Xmm[0].SetF32(0, -((fadeHeight*g.Aspect - fadeWidth) / 2))
		ctx.Xmm[2].SetF32(0, fadeHeight*g.Aspect)
	case g.Narrower():
		ctx.Xmm[1].SetF32(0, -((fadeWidth/g.Aspect - fadeHeight) / 2))
	}
}

func fadeHeightScale(g *Geometry, ctx *hook.Context) {
	if ctx.Xmm[2].F32(0) == fadeWidth && g.Narrower() {
		ctx.Xmm[3].SetF32(0, fadeWidth/g.Aspect)
	}
}

// geo adapts a geometry callback to a hook callback reading the current geometry.
func (f *Fix) geo(fn func(*Geometry, *hook.Context)) func(*hook.Context) {
	return func(ctx *hook.Context) {
		fn(f.Display.Geometry(), ctx)
	}
}

func (f *Fix) hudSize(t *patchcorn.Task) {
	hit := t.Scan("hud size", hudSizePattern)
	if hit == 0 {
		return
	}
	t.Mid("hud width", hit, f.geo(hudWidth))
	t.Mid("hud height", t.Displace("hud height", hit, -0x23), f.geo(hudHeight))
}

func (f *Fix) hudOffset(t *patchcorn.Task) {
	path := t.Scan("hud offset codepath", hudOffsetPathPattern)
	hit := t.Scan("hud offset", hudOffsetPattern)
	if path == 0 || hit == 0 {
		return
	}
	// jp -> jmp, always take the offset path
	t.Patch("hud offset codepath", path, []byte{jmpShort})
	t.Mid("hud width offset", hit, f.geo(hudWidthOffset))
	t.Mid("hud height offset", t.Displace("hud height offset", hit, 0xD), f.geo(hudHeightOffset))
}

func (f *Fix) movies(t *patchcorn.Task) {
	hit := t.Scan("movies", moviesPattern)
	if hit == 0 {
		return
	}
	t.Mid("movie width", hit, f.geo(hudWidth))
	t.Mid("movie height", t.Displace("movie height", hit, 0x18), f.geo(hudHeight))
}

func (f *Fix) fades(t *patchcorn.Task) {
	hit := t.Scan("fades", fadesPattern)
	if hit == 0 {
		return
	}
	t.Mid("fade size", t.Displace("fade size", hit, 5), f.geo(fadeSize))
	t.Mid("fade height", t.Displace("fade height", hit, 0x12), f.geo(fadeHeightScale))
}
