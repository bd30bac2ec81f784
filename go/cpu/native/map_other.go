//go:build !linux && !windows

package native

import "github.com/pkg/errors"

func mapAt(addr, size uint64, prot int) error {
	return errors.New("fixed mappings are not available on this platform")
}
