//go:build !unix && !windows

package native

import "github.com/pkg/errors"

func protect(addr, size uint64, prot int) error {
	return errors.New("page protection is not available on this platform")
}
