//go:build cgo && !windows

package native

/*
#include <stdint.h>
*/
import "C"

//export patchcornTrap
func patchcornTrap(frame, id C.uintptr_t) {
	dispatch(uint64(frame), uint64(id))
}
