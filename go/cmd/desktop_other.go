//go:build !windows

package cmd

// no desktop to query; 0x0 configs stay at 0x0 unless -desktop is given
func desktopSize() (int, int, bool) {
	return 0, 0, false
}
