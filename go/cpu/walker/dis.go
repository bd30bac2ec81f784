package walker

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/patchcorn/patchcorn/go/models"
)

type ins struct {
	addr  uint64
	bytes []byte
	text  string
}

func (i *ins) String() string {
	return i.text
}

func (i *ins) Addr() uint64 {
	return i.addr
}

func (i *ins) Bytes() []byte {
	return i.bytes
}

func (i *ins) Mnemonic() string {
	if n := strings.IndexByte(i.text, ' '); n > 0 {
		return i.text[:n]
	}
	return i.text
}

func (i *ins) OpStr() string {
	if n := strings.IndexByte(i.text, ' '); n > 0 {
		return i.text[n+1:]
	}
	return ""
}

// Dis is a pure Go disassembler, used where capstone isn't available.
type Dis struct{}

func (d *Dis) Dis(mem []byte, addr uint64) ([]models.Ins, error) {
	var out []models.Ins
	for len(mem) > 0 {
		inst, err := x86asm.Decode(mem, 64)
		if err != nil {
			// emit the undecodable byte and resync
			out = append(out, &ins{addr: addr, bytes: mem[:1], text: "(bad)"})
			mem, addr = mem[1:], addr+1
			continue
		}
		text := strings.ToLower(x86asm.IntelSyntax(inst, addr, nil))
		out = append(out, &ins{addr: addr, bytes: mem[:inst.Len], text: text})
		mem, addr = mem[inst.Len:], addr+uint64(inst.Len)
	}
	return out, nil
}
