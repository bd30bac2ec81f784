//go:build cgo && !windows

package native

/*
#include <stdint.h>

extern void patchcornTrap(uintptr_t, uintptr_t);

static uintptr_t trap_entry(void) {
	return (uintptr_t)&patchcornTrap;
}
*/
import "C"

func trapEntry() (uint64, error) {
	return uint64(C.trap_entry()), nil
}
