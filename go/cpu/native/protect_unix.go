//go:build unix

package native

import "golang.org/x/sys/unix"

func protect(addr, size uint64, prot int) error {
	// unix.PROT_* and cpu.PROT_* share their bit values
	return unix.Mprotect(view(addr, size), prot)
}
