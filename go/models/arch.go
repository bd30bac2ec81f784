package models

import (
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"
)

type Reg struct {
	Enum int
	Name string
}

type RegVal struct {
	Reg
	Val uint64
}

type regList []Reg

func (r regList) Len() int           { return len(r) }
func (r regList) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r regList) Less(i, j int) bool { return sortorder.NaturalLess(r[i].Name, r[j].Name) }

type regMap map[int]string

func (r regMap) Items() regList {
	ret := make(regList, 0, len(r))
	for e, n := range r {
		ret = append(ret, Reg{e, n})
	}
	return ret
}

// RegReader is anything with a register file, usually a cpu.Cpu.
type RegReader interface {
	RegRead(reg int) (uint64, error)
}

type Arch struct {
	Name  string
	Bits  int
	SP    int
	PC    int
	Flags int
	Regs  regMap

	// sorted for RegDump
	regList regList
}

// RegNames returns the registers in natural order (r8 before r10).
func (a *Arch) RegNames() []Reg {
	if a.regList == nil {
		rl := a.Regs.Items()
		sort.Sort(rl)
		a.regList = rl
	}
	return a.regList
}

func (a *Arch) RegDump(u RegReader) ([]RegVal, error) {
	regs := a.RegNames()
	ret := make([]RegVal, len(regs))
	for i, r := range regs {
		val, err := u.RegRead(r.Enum)
		if err != nil {
			return nil, err
		}
		ret[i] = RegVal{r, val}
	}
	return ret, nil
}

// RegEnum looks up a register by name.
func (a *Arch) RegEnum(name string) (int, bool) {
	for e, n := range a.Regs {
		if n == name {
			return e, true
		}
	}
	return 0, false
}
