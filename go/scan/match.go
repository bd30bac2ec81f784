package scan

import (
	"bytes"
)

// Match returns the index of the first match of p in data, or -1.
func Match(data []byte, p Pattern) int {
	return matchFrom(data, p, 0)
}

func matchFrom(data []byte, p Pattern, start int) int {
	if len(p) == 0 || len(data) < len(p) {
		return -1
	}
	anchor := p.anchor()
	last := len(data) - len(p)
	for i := start; i <= last; i++ {
		if anchor >= 0 {
			j := bytes.IndexByte(data[i+anchor:last+anchor+1], p[anchor].Value)
			if j < 0 {
				return -1
			}
			i += j
		}
		if p.matchAt(data[i:]) {
			return i
		}
	}
	return -1
}
