package fix

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// NativeAspect is the aspect ratio the game's UI is laid out for.
const NativeAspect = float32(16) / 9

// Geometry is everything derived from the output resolution. It is never
// modified once built; Display swaps in a new one instead.
type Geometry struct {
	Width, Height int

	Aspect     float32
	Multiplier float32

	// the 16:9 HUD area, pillarboxed or letterboxed inside the screen
	HUDWidth        float32
	HUDHeight       float32
	HUDWidthOffset  float32
	HUDHeightOffset float32
}

func NewGeometry(width, height int) *Geometry {
	g := &Geometry{Width: width, Height: height}
	g.Aspect = float32(width) / float32(height)
	g.Multiplier = g.Aspect / NativeAspect

	g.HUDWidth = float32(height) * NativeAspect
	g.HUDHeight = float32(height)
	g.HUDWidthOffset = (float32(width) - g.HUDWidth) / 2
	if g.Aspect < NativeAspect {
		g.HUDWidth = float32(width)
		g.HUDHeight = float32(width) / NativeAspect
		g.HUDWidthOffset = 0
		g.HUDHeightOffset = (float32(height) - g.HUDHeight) / 2
	}
	return g
}

// Wider is true for ultrawide output.
func (g *Geometry) Wider() bool {
	return g.Aspect > NativeAspect
}

// Narrower is true for 16:10, 4:3 and similar.
func (g *Geometry) Narrower() bool {
	return g.Aspect < NativeAspect
}

func (g *Geometry) Fields() logrus.Fields {
	return logrus.Fields{
		"width":           g.Width,
		"height":          g.Height,
		"aspect":          g.Aspect,
		"multiplier":      g.Multiplier,
		"hudWidth":        g.HUDWidth,
		"hudHeight":       g.HUDHeight,
		"hudWidthOffset":  g.HUDWidthOffset,
		"hudHeightOffset": g.HUDHeightOffset,
	}
}

// Display publishes the current Geometry. Setup writes it, hook callbacks read it from any thread.
type Display struct {
	g atomic.Pointer[Geometry]
}

func NewDisplay(width, height int) *Display {
	d := &Display{}
	d.Update(width, height)
	return d
}

func (d *Display) Update(width, height int) *Geometry {
	g := NewGeometry(width, height)
	d.g.Store(g)
	return g
}

func (d *Display) Geometry() *Geometry {
	return d.g.Load()
}
