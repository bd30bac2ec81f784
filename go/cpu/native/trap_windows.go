package native

import (
	"sync"

	"golang.org/x/sys/windows"
)

var callback struct {
	sync.Once
	entry uintptr
}

func trapEntry() (uint64, error) {
	callback.Do(func() {
		callback.entry = windows.NewCallback(func(frame, id uintptr) uintptr {
			dispatch(uint64(frame), uint64(id))
			return 0
		})
	})
	return uint64(callback.entry), nil
}
