package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

type Disassembler interface {
	Dis(mem []byte, addr uint64) ([]Ins, error)
}

// Disas renders one instruction per line as "0xaddr: bytes mnemonic operands".
func Disas(d Disassembler, mem []byte, addr uint64, pad ...int) (string, error) {
	if len(mem) == 0 {
		return "", nil
	}
	dis, err := d.Dis(mem, addr)
	if err != nil {
		return "", err
	}
	width := 0
	if len(pad) > 0 {
		width = pad[0]
	}
	for _, ins := range dis {
		if len(ins.Bytes()) > width {
			width = len(ins.Bytes())
		}
	}
	out := make([]string, 0, len(dis))
	for _, ins := range dis {
		data := strings.Repeat("  ", width-len(ins.Bytes())) + hex.EncodeToString(ins.Bytes())
		line := fmt.Sprintf("0x%x: %s %s %s", ins.Addr(), data, ins.Mnemonic(), ins.OpStr())
		out = append(out, strings.TrimRight(line, " "))
	}
	return strings.Join(out, "\n"), nil
}

// HexSpaced formats bytes the way patterns are written: "48 8b 05".
func HexSpaced(p []byte) string {
	out := make([]string, len(p))
	for i, b := range p {
		out[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(out, " ")
}

func HexDump(base uint64, mem []byte, bits int) []string {
	var clean = func(p []byte) string {
		o := make([]byte, len(p))
		for i, c := range p {
			if c >= 0x20 && c <= 0x7e {
				o[i] = c
			} else {
				o[i] = '.'
			}
		}
		return string(o)
	}
	bsz := bits / 8
	hexFmt := fmt.Sprintf("0x%%0%dx:", bsz*2)
	// 16 bytes per line, grouped by word size
	lineSize := 16
	var out []string
	for i := 0; i < len(mem); i += lineSize {
		end := i + lineSize
		if end > len(mem) {
			end = len(mem)
		}
		line := mem[i:end]
		var blocks []string
		for j := 0; j < lineSize; j += bsz {
			if j >= len(line) {
				blocks = append(blocks, strings.Repeat(" ", bsz*2))
				continue
			}
			k := j + bsz
			if k > len(line) {
				k = len(line)
			}
			blocks = append(blocks, hex.EncodeToString(line[j:k])+strings.Repeat("  ", j+bsz-k))
		}
		out = append(out, fmt.Sprintf("%s %s [%s]", fmt.Sprintf(hexFmt, base+uint64(i)), strings.Join(blocks, " "), clean(line)))
	}
	return out
}
