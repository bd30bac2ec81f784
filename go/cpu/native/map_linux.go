package native

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// mapAt maps anonymous memory at exactly addr, failing rather than moving it.
func mapAt(addr, size uint64, prot int) error {
	r, _, errno := unix.Syscall6(unix.SYS_MMAP, uintptr(addr), uintptr(size), uintptr(prot),
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_FIXED_NOREPLACE, ^uintptr(0), 0)
	if errno != 0 {
		return errors.WithStack(errno)
	}
	// kernels before 4.17 treat the address as a hint
	if uint64(r) != addr {
		unix.Syscall(unix.SYS_MUNMAP, r, uintptr(size), 0)
		return errors.Errorf("mapping landed at %#x", r)
	}
	return nil
}
