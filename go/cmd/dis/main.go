package dis

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/cmd"
	"github.com/patchcorn/patchcorn/go/cpu"
	"github.com/patchcorn/patchcorn/go/cpu/walker"
	"github.com/patchcorn/patchcorn/go/models"
)

// parseAddr accepts an absolute address or +off from the image base.
func parseAddr(s string, img models.Image) (uint64, error) {
	rel := strings.HasPrefix(s, "+")
	val, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 0, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bad address %q", s)
	}
	if rel {
		val += img.Base
	}
	return val, nil
}

func Main(args []string) {
	fs := cmd.NewFlags("dis", "<game.exe|snapshot> <addr|+offset>")
	target := fs.String("target", "walker", "target to load the image into")
	size := fs.Uint64("n", 32, "bytes to disassemble")
	capstone := fs.Bool("capstone", false, "use capstone instead of x86asm")
	fs.Parse(args[1:])
	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(1)
	}
	c, img, err := cmd.OpenTarget(*target, fs.Arg(0))
	if err != nil {
		cmd.Exit(err)
	}
	addr, err := parseAddr(fs.Arg(1), img)
	if err != nil {
		cmd.Exit(err)
	}
	code, err := c.MemRead(addr, *size)
	if err != nil {
		cmd.Exit(err)
	}
	var d models.Disassembler = &walker.Dis{}
	if *capstone {
		cs := cpu.NewCapstrX64()
		if err := cs.Open(); err != nil {
			cmd.Exit(err)
		}
		d = cs
	}
	out, err := models.Disas(d, code, addr)
	if err != nil {
		cmd.Exit(err)
	}
	fmt.Println(out)
}

func init() { cmd.Register("dis", "disassemble part of a game image", Main) }
