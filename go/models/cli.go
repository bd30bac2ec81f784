package models

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// wrap splits s into lines of at most width columns, breaking on spaces.
func wrap(s string, width int) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			if line != "" && len(line)+1+len(word) > width {
				lines = append(lines, line)
				line = ""
			}
			if line != "" {
				line += " "
			}
			line += word
		}
		lines = append(lines, line)
	}
	return lines
}

// FprintFlags writes one aligned, wrapped entry per flag: "  -name (default) usage".
func FprintFlags(w io.Writer, flags []*flag.Flag) {
	wname, wdef := 0, 0
	for _, f := range flags {
		if len(f.Name) > wname {
			wname = len(f.Name)
		}
		if len(f.DefValue)+2 > wdef {
			wdef = len(f.DefValue) + 2
		}
	}
	indent := wname + wdef + 5
	width := 80 - indent
	if width < 20 {
		width = 20
	}
	for _, f := range flags {
		def := ""
		if f.DefValue != "" && f.DefValue != "[]" {
			def = "(" + f.DefValue + ")"
		}
		for i, line := range wrap(f.Usage, width) {
			if i == 0 {
				fmt.Fprintf(w, "  -%-*s %-*s %s\n", wname, f.Name, wdef, def, line)
			} else {
				fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", indent), line)
			}
		}
	}
}

func PrintFlags(flags []*flag.Flag) {
	FprintFlags(os.Stderr, flags)
}
