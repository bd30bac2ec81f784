package cpu

import (
	ks "github.com/keystone-engine/keystone/bindings/go/keystone"
	"github.com/pkg/errors"
)

// Keystone assembles patch bytes. Syntax defaults to Intel.
type Keystone struct {
	Arch ks.Architecture
	Mode ks.Mode
	ATT  bool
	ks   *ks.Keystone
}

func NewKeystoneX64() *Keystone {
	return &Keystone{Arch: ks.ARCH_X86, Mode: ks.MODE_64}
}

func (k *Keystone) Open() (err error) {
	k.ks, err = ks.New(k.Arch, k.Mode)
	if err != nil {
		return errors.Wrap(err, "ks.New() failed")
	}
	if k.ATT {
		if err := k.ks.Option(ks.OPT_SYNTAX, ks.OPT_SYNTAX_ATT); err != nil {
			return errors.Wrap(err, "setting AT&T syntax")
		}
	}
	return nil
}

func (k *Keystone) Asm(asm string, addr uint64) ([]byte, error) {
	if k.ks == nil {
		if err := k.Open(); err != nil {
			return nil, err
		}
	}
	out, _, ok := k.ks.Assemble(asm, addr)
	if !ok {
		return nil, errors.Wrap(k.ks.LastError(), "ks.Assemble() failed")
	}
	return out, nil
}

func (k *Keystone) Close() error {
	if k.ks == nil {
		return nil
	}
	err := k.ks.Close()
	k.ks = nil
	return errors.WithStack(err)
}
