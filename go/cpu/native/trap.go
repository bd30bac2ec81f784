package native

import (
	"sync"

	"github.com/pkg/errors"
)

// callbacks registered with Trap, indexed by the id their stub passes
var traps struct {
	sync.RWMutex
	fns []func(uint64)
}

func register(fn func(uint64)) uint64 {
	traps.Lock()
	defer traps.Unlock()
	traps.fns = append(traps.fns, fn)
	return uint64(len(traps.fns) - 1)
}

// dispatch runs on whichever game thread reached the hook.
func dispatch(frame, id uint64) {
	traps.RLock()
	var fn func(uint64)
	if id < uint64(len(traps.fns)) {
		fn = traps.fns[id]
	}
	traps.RUnlock()
	if fn != nil {
		fn(frame)
	}
}

// Trap registers fn as a hook callback and returns the native function
// hook stubs call to reach it.
func (p *Process) Trap(fn func(frame uint64)) (uint64, uint64, error) {
	entry, err := trapEntry()
	if err != nil {
		return 0, 0, errors.Wrap(err, "no native callback entry")
	}
	return entry, register(fn), nil
}
