package cpu

import (
	"sort"

	"github.com/pkg/errors"
)

// Regs implements the register methods of cpu.Cpu for simulated targets.
// TODO: maps are slow, switch to a dense []uint64 once enums are guaranteed small.
type Regs struct {
	mask uint64
	vals map[int]uint64
}

func NewRegs(bits uint, enums []int) *Regs {
	r := &Regs{
		mask: ^uint64(0) >> (64 - bits),
		vals: make(map[int]uint64, len(enums)),
	}
	for _, e := range enums {
		r.vals[e] = 0
	}
	return r
}

func (r *Regs) RegRead(enum int) (uint64, error) {
	val, ok := r.vals[enum]
	if !ok {
		return 0, errors.Errorf("invalid register: %d", enum)
	}
	return val, nil
}

func (r *Regs) RegWrite(enum int, val uint64) error {
	if _, ok := r.vals[enum]; !ok {
		return errors.Errorf("invalid register: %d", enum)
	}
	r.vals[enum] = val & r.mask
	return nil
}

// Enums returns every valid register enum in ascending order.
func (r *Regs) Enums() []int {
	enums := make([]int, 0, len(r.vals))
	for e := range r.vals {
		enums = append(enums, e)
	}
	sort.Ints(enums)
	return enums
}

// Snapshot copies the register file.
func (r *Regs) Snapshot() map[int]uint64 {
	m := make(map[int]uint64, len(r.vals))
	for k, v := range r.vals {
		m[k] = v
	}
	return m
}
