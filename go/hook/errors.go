package hook

import (
	"github.com/pkg/errors"
)

var (
	ErrOverlap     = errors.New("target overlaps an installed hook")
	ErrDoubleHook  = errors.New("address is already hooked")
	ErrArenaFull   = errors.New("insufficient trampoline space")
	ErrRelocation  = errors.New("can't relocate instruction")
	ErrTooShort    = errors.New("not enough code at target")
	ErrUnsupported = errors.New("target does not support hooks")
	ErrSealed      = errors.New("hook table is sealed")
)
