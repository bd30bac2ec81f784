// Package patchcorn ties signature scanning, address resolution, patching
// and hooking together for one loaded image, logging every step.
//
// Feature code never sees errors: each Task method logs the failure with the
// feature and target it belongs to and returns a zero value or false.
package patchcorn

import (
	"github.com/sirupsen/logrus"

	"github.com/patchcorn/patchcorn/go/cpu/walker"
	"github.com/patchcorn/patchcorn/go/hook"
	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
	"github.com/patchcorn/patchcorn/go/patch"
)

type Patchcorn struct {
	Log     *logrus.Logger
	Image   models.Image
	Mem     cpu.Memory
	Patcher *patch.Patcher
	// Dis renders patched bytes at trace level.
	Dis models.Disassembler
	// Trace logs the registers each hook callback changed.
	Trace bool

	hooks   *hook.Manager
	hookErr error
}

type pageSizer interface {
	PageSize() uint64
}

func New(mem cpu.Memory, img models.Image, log *logrus.Logger) *Patchcorn {
	if log == nil {
		log = logrus.StandardLogger()
	}
	pageSize := uint64(patch.DefaultPageSize)
	if ps, ok := mem.(pageSizer); ok {
		pageSize = ps.PageSize()
	}
	return &Patchcorn{
		Log:     log,
		Image:   img,
		Mem:     mem,
		Patcher: patch.New(mem, pageSize),
		Dis:     &walker.Dis{},
	}
}

// Hooks creates the hook manager on first use. Targets that can neither
// trap code nor run callbacks natively return hook.ErrUnsupported every time.
func (p *Patchcorn) Hooks() (*hook.Manager, error) {
	if p.hooks == nil && p.hookErr == nil {
		p.hooks, p.hookErr = hook.NewManager(p.Mem, p.Image, p.Patcher)
		if p.hooks != nil {
			p.hooks.OnError = func(h *hook.Hook, err error) {
				p.Log.WithFields(logrus.Fields{
					"addr": p.Image.Sym(h.Target),
					"kind": h.Kind,
				}).WithError(err).Error("hook callback failed")
			}
		}
	}
	return p.hooks, p.hookErr
}

// Seal freezes the hook table. Nothing can be installed afterwards.
func (p *Patchcorn) Seal() {
	if p.hooks != nil {
		p.hooks.Seal()
	}
}

// LogImage writes the module details at the top of a run.
func (p *Patchcorn) LogImage() {
	p.Log.WithFields(logrus.Fields{
		"module":    p.Image.Name,
		"base":      hexAddr(p.Image.Base),
		"size":      hexAddr(p.Image.Size),
		"timestamp": p.Image.Timestamp,
	}).Info("module loaded")
}

// Summary logs every patch and hook applied so far.
func (p *Patchcorn) Summary() {
	for _, rec := range p.Patcher.Journal() {
		p.Log.WithField("addr", p.Image.Sym(rec.Addr)).Debugf("patch %s -> %s", models.HexSpaced(rec.Old), models.HexSpaced(rec.New))
	}
	if p.hooks != nil {
		for _, h := range p.hooks.Hooks() {
			p.Log.WithField("addr", p.Image.Sym(h.Target)).Debugf("%s", h)
		}
	}
}
