package patchcorn

import (
	"github.com/sirupsen/logrus"

	"github.com/patchcorn/patchcorn/go/models"
)

// traceDis logs the disassembly of old and new bytes when trace logging is on.
func (t *Task) traceDis(e *logrus.Entry, addr uint64, old, new []byte) {
	if t.Dis == nil || !t.Log.IsLevelEnabled(logrus.TraceLevel) {
		return
	}
	pad := len(old)
	if len(new) > pad {
		pad = len(new)
	}
	before, err := models.Disas(t.Dis, old, addr, pad)
	if err != nil {
		return
	}
	after, err := models.Disas(t.Dis, new, addr, pad)
	if err != nil {
		return
	}
	e.Tracef("before:\n%s\nafter:\n%s", before, after)
}
