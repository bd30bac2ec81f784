package native

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

func mapAt(addr, size uint64, prot int) error {
	r, err := windows.VirtualAlloc(uintptr(addr), uintptr(size), windows.MEM_RESERVE|windows.MEM_COMMIT, toWin(prot))
	if err != nil {
		return errors.WithStack(err)
	}
	if uint64(r) != addr {
		windows.VirtualFree(r, 0, windows.MEM_RELEASE)
		return errors.Errorf("allocation landed at %#x", r)
	}
	return nil
}
