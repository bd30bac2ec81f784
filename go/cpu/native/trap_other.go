//go:build !cgo && !windows

package native

import "github.com/pkg/errors"

func trapEntry() (uint64, error) {
	return 0, errors.New("hooking a live process needs cgo on this platform")
}
