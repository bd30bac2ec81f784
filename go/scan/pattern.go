package scan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrPattern = errors.New("invalid pattern")

// Token is one byte of a pattern. Wild tokens match any byte.
type Token struct {
	Value byte
	Wild  bool
}

type Pattern []Token

// Parse reads whitespace-separated tokens: two hex digits for a literal
// byte, "??" or "?" for a wildcard.
func Parse(s string) (Pattern, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, errors.Wrap(ErrPattern, "empty pattern")
	}
	p := make(Pattern, len(fields))
	for i, f := range fields {
		if f == "??" || f == "?" {
			p[i].Wild = true
			continue
		}
		if len(f) != 2 {
			return nil, errors.Wrapf(ErrPattern, "token %d: %q", i, f)
		}
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, errors.Wrapf(ErrPattern, "token %d: %q", i, f)
		}
		p[i].Value = byte(v)
	}
	return p, nil
}

// MustParse is Parse for pattern tables known at compile time.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) String() string {
	out := make([]string, len(p))
	for i, t := range p {
		if t.Wild {
			out[i] = "??"
		} else {
			out[i] = fmt.Sprintf("%02X", t.Value)
		}
	}
	return strings.Join(out, " ")
}

// first literal token, used to skip ahead with IndexByte
func (p Pattern) anchor() int {
	for i, t := range p {
		if !t.Wild {
			return i
		}
	}
	return -1
}

func (p Pattern) matchAt(data []byte) bool {
	for i, t := range p {
		if !t.Wild && data[i] != t.Value {
			return false
		}
	}
	return true
}
