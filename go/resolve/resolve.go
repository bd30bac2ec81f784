// Package resolve turns scan hits into the addresses they refer to.
package resolve

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/models/cpu"
)

var (
	ErrNullMatch   = errors.New("resolving a null match")
	ErrNullPointer = errors.New("null pointer in chain")
	ErrUnusable    = errors.New("resolved to an unusable address")
)

// Usable gates writes through a resolved address.
func Usable(addr uint64) bool {
	return addr != 0
}

// Displace returns match+off.
func Displace(match uint64, off int64) (uint64, error) {
	if match == 0 {
		return 0, ErrNullMatch
	}
	addr := match + uint64(off)
	if !Usable(addr) {
		return 0, errors.Wrapf(ErrUnusable, "%#x%+d", match, off)
	}
	return addr, nil
}

// RIPRelative reads the int32 displacement at match+off and returns the
// address it points to, relative to the end of the displacement.
func RIPRelative(mem cpu.Memory, match uint64, off int64) (uint64, error) {
	return Instruction(mem, match, off, 4, 0)
}

// Instruction resolves a RIP-relative operand of the instruction at
// match+off, where the instruction is insnLen bytes long and its
// displacement starts dispOff bytes in.
func Instruction(mem cpu.Memory, match uint64, off, insnLen, dispOff int64) (uint64, error) {
	if match == 0 {
		return 0, ErrNullMatch
	}
	insn := match + uint64(off)
	disp, err := readInt32(mem, insn+uint64(dispOff))
	if err != nil {
		return 0, err
	}
	addr := insn + uint64(insnLen) + uint64(int64(disp))
	if !Usable(addr) {
		return 0, errors.Wrapf(ErrUnusable, "rip-relative operand at %#x", insn)
	}
	return addr, nil
}

// PointerChain dereferences base+offsets[0], then adds each following offset
// and dereferences again. The last offset is added without a dereference.
func PointerChain(mem cpu.Memory, base uint64, offsets ...int64) (uint64, error) {
	if base == 0 {
		return 0, ErrNullMatch
	}
	cur := base
	if len(offsets) == 0 {
		return cur, nil
	}
	for i, off := range offsets[:len(offsets)-1] {
		addr := cur + uint64(off)
		buf, err := mem.MemRead(addr, 8)
		if err != nil {
			return 0, errors.Wrapf(err, "pointer chain step %d", i)
		}
		ptr := binary.LittleEndian.Uint64(buf)
		if ptr == 0 {
			return 0, errors.Wrapf(ErrNullPointer, "step %d (%#x%+d)", i, cur, off)
		}
		cur = ptr
	}
	return cur + uint64(offsets[len(offsets)-1]), nil
}

func readInt32(mem cpu.Memory, addr uint64) (int32, error) {
	buf, err := mem.MemRead(addr, 4)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read displacement at %#x", addr)
	}
	return int32(binary.LittleEndian.Uint32(buf)), nil
}
