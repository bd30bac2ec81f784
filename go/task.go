package patchcorn

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/hook"
	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/patch"
	"github.com/patchcorn/patchcorn/go/resolve"
	"github.com/patchcorn/patchcorn/go/scan"
)

// Task is one feature's view of a Patchcorn. Everything it logs carries the feature name.
type Task struct {
	*Patchcorn
	Feature string

	log *logrus.Entry
}

func (p *Patchcorn) Task(feature string) *Task {
	return &Task{Patchcorn: p, Feature: feature, log: p.Log.WithField("feature", feature)}
}

func (t *Task) entry(target string, addr uint64) *logrus.Entry {
	return t.log.WithFields(logrus.Fields{"target": target, "addr": t.Image.Sym(addr)})
}

func (t *Task) fail(target string, err error, msg string) {
	e := t.log.WithField("target", target).WithError(err)
	// a null match was already reported by the scan that produced it
	switch errors.Cause(err) {
	case resolve.ErrNullMatch, resolve.ErrUnusable:
		e.Debug(msg)
	default:
		e.Error(msg)
	}
}

// Scan returns the first match of pattern in the image, or 0.
func (t *Task) Scan(target, pattern string) uint64 {
	p, err := scan.Parse(pattern)
	if err != nil {
		t.fail(target, err, "bad pattern")
		return 0
	}
	addr, err := scan.Find(t.Mem, t.Image, p)
	if err != nil {
		t.fail(target, err, "pattern scan failed")
		return 0
	}
	t.entry(target, addr).Info("pattern found")
	return addr
}

func (t *Task) resolved(target string, addr uint64, err error) uint64 {
	if err != nil {
		t.fail(target, err, "address resolution failed")
		return 0
	}
	t.entry(target, addr).Info("address resolved")
	return addr
}

// Displace returns match+off, or 0 when match is 0.
func (t *Task) Displace(target string, match uint64, off int64) uint64 {
	addr, err := resolve.Displace(match, off)
	return t.resolved(target, addr, err)
}

// RIP resolves the rel32 displacement stored at match+off.
func (t *Task) RIP(target string, match uint64, off int64) uint64 {
	addr, err := resolve.RIPRelative(t.Mem, match, off)
	return t.resolved(target, addr, err)
}

// Instruction resolves a RIP-relative operand of the insnLen-byte instruction at match+off
// whose displacement sits dispOff bytes in.
func (t *Task) Instruction(target string, match uint64, off, insnLen, dispOff int64) uint64 {
	addr, err := resolve.Instruction(t.Mem, match, off, insnLen, dispOff)
	return t.resolved(target, addr, err)
}

func (t *Task) Pointer(target string, base uint64, offsets ...int64) uint64 {
	addr, err := resolve.PointerChain(t.Mem, base, offsets...)
	return t.resolved(target, addr, err)
}

func (t *Task) logRecord(target string, rec *patch.Record) {
	e := t.entry(target, rec.Addr)
	e.Infof("patched %s -> %s", models.HexSpaced(rec.Old), models.HexSpaced(rec.New))
	t.traceDis(e, rec.Addr, rec.Old, rec.New)
}

// Patch overwrites bytes at addr. An unusable address is skipped.
func (t *Task) Patch(target string, addr uint64, p []byte) bool {
	if !resolve.Usable(addr) {
		t.fail(target, resolve.ErrUnusable, "patch skipped")
		return false
	}
	rec, err := t.Patcher.Bytes(addr, p)
	if err != nil {
		t.entry(target, addr).WithError(err).Error("patch failed")
		return false
	}
	t.logRecord(target, rec)
	return true
}

// Write stores a scalar at addr.
func Write[T patch.Scalar](t *Task, target string, addr uint64, v T) bool {
	if !resolve.Usable(addr) {
		t.fail(target, resolve.ErrUnusable, "write skipped")
		return false
	}
	rec, err := patch.Write(t.Patcher, addr, v)
	if err != nil {
		t.entry(target, addr).WithError(err).Error("write failed")
		return false
	}
	t.entry(target, addr).WithField("bytes", models.HexSpaced(rec.New)).Infof("wrote %v", v)
	return true
}

// Read loads a scalar from addr.
func Read[T patch.Scalar](t *Task, target string, addr uint64) (T, bool) {
	v, err := patch.Read[T](t.Patcher, addr)
	if err != nil {
		t.entry(target, addr).WithError(err).Error("read failed")
		return v, false
	}
	return v, true
}

func (t *Task) traced(target string, fn func(*hook.Context)) func(*hook.Context) {
	if !t.Trace {
		return fn
	}
	return func(ctx *hook.Context) {
		diff := &models.StatusDiff{Arch: x86_64.Arch}
		diff.Changes(ctx, false)
		fn(ctx)
		if cs, err := diff.Changes(ctx, true); err == nil && cs.Count() > 0 {
			t.entry(target, ctx.Addr()).Tracef("changed registers\n%s", cs.String(false))
		}
	}
}

func (t *Task) manager(target string, addr uint64) *hook.Manager {
	if !resolve.Usable(addr) {
		t.fail(target, resolve.ErrUnusable, "hook skipped")
		return nil
	}
	m, err := t.Hooks()
	if err != nil {
		t.entry(target, addr).WithError(err).Error("target can't be hooked")
		return nil
	}
	return m
}

// Mid installs a mid-point hook at addr.
func (t *Task) Mid(target string, addr uint64, fn func(*hook.Context)) bool {
	m := t.manager(target, addr)
	if m == nil {
		return false
	}
	handle, err := m.Mid(addr, t.traced(target, fn))
	if err != nil {
		t.entry(target, addr).WithError(err).Error("hook install failed")
		return false
	}
	t.entry(target, addr).WithField("handle", handle).Info("mid hook installed")
	return true
}

// Inline intercepts the function starting at addr.
func (t *Task) Inline(target string, addr uint64, fn func(*hook.Call)) bool {
	m := t.manager(target, addr)
	if m == nil {
		return false
	}
	handle, err := m.Inline(addr, fn)
	if err != nil {
		t.entry(target, addr).WithError(err).Error("hook install failed")
		return false
	}
	t.entry(target, addr).WithField("handle", handle).Info("inline hook installed")
	return true
}

// InlineFunc intercepts the function at addr with a typed Go function.
func (t *Task) InlineFunc(target string, addr uint64, fn interface{}) bool {
	m := t.manager(target, addr)
	if m == nil {
		return false
	}
	handle, err := m.InlineFunc(addr, fn)
	if err != nil {
		t.entry(target, addr).WithError(err).Error("hook install failed")
		return false
	}
	t.entry(target, addr).WithField("handle", handle).Info("inline hook installed")
	return true
}
