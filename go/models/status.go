package models

import (
	"fmt"
	"strings"

	"github.com/mgutz/ansi"
)

// StatusDiff tracks register values between two points (e.g. either side of a hook callback)
// and renders what changed.
type StatusDiff struct {
	Arch    *Arch
	oldRegs map[int]uint64
}

var chSame = ansi.ColorCode("default:default")
var chNew = ansi.ColorCode("default+bu:default")

type Change struct {
	Old, New uint64
	Enum     int
	Name     string
}

func (c *Change) Changed() bool {
	return c.Old != c.New
}

// highlight colors only the hex digits that differ from the old value
func (c *Change) highlight(width int) string {
	hexFmt := fmt.Sprintf("%%0%dx", width)
	s1, s2 := fmt.Sprintf(hexFmt, c.New), fmt.Sprintf(hexFmt, c.Old)
	var out strings.Builder
	changed := false
	for i := range s1 {
		diff := s1[i] != s2[i]
		if i == 0 || diff != changed {
			if diff {
				out.WriteString(chNew)
			} else {
				out.WriteString(chSame)
			}
			changed = diff
		}
		out.WriteByte(s1[i])
	}
	out.WriteString(ansi.Reset)
	return out.String()
}

func (c *Change) String(width int, color bool) string {
	hexFmt := fmt.Sprintf("%%0%dx", width)
	switch {
	case !c.Changed():
		return fmt.Sprintf(" %6s 0x"+hexFmt, c.Name, c.New)
	case color:
		return fmt.Sprintf(" %s%6s%s 0x%s", chNew, c.Name, ansi.Reset, c.highlight(width))
	default:
		return fmt.Sprintf("+%6s 0x"+hexFmt, c.Name, c.New)
	}
}

type Changes struct {
	Width   int
	Changes []*Change
}

// String lays the registers out in columns, filled top to bottom.
func (cs *Changes) String(color bool) string {
	const cols = 4
	rows := (len(cs.Changes) + cols - 1) / cols
	var out []string
	for i := 0; i < rows; i++ {
		var line []string
		for j := 0; j < cols; j++ {
			if k := j*rows + i; k < len(cs.Changes) {
				line = append(line, cs.Changes[k].String(cs.Width, color))
			}
		}
		out = append(out, strings.Join(line, " "))
	}
	return strings.Join(out, "\n")
}

func (cs *Changes) Changed() []*Change {
	var ret []*Change
	for _, c := range cs.Changes {
		if c.Changed() {
			ret = append(ret, c)
		}
	}
	return ret
}

func (cs *Changes) Count() int {
	return len(cs.Changed())
}

func (cs *Changes) Find(enum int) *Change {
	for _, c := range cs.Changes {
		if c.Enum == enum {
			return c
		}
	}
	return nil
}

// Changes diffs the current registers against the previous call.
// The first call compares against zero.
func (s *StatusDiff) Changes(r RegReader, onlyChanged bool) (*Changes, error) {
	regs, err := s.Arch.RegDump(r)
	if err != nil {
		return nil, err
	}
	cs := make([]*Change, 0, len(regs))
	for _, reg := range regs {
		change := &Change{Old: s.oldRegs[reg.Enum], New: reg.Val, Enum: reg.Enum, Name: reg.Name}
		if !onlyChanged || change.Changed() {
			cs = append(cs, change)
		}
	}
	s.oldRegs = make(map[int]uint64, len(regs))
	for _, r := range regs {
		s.oldRegs[r.Enum] = r.Val
	}
	return &Changes{Width: s.Arch.Bits / 4, Changes: cs}, nil
}
