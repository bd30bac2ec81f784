package asm

import (
	"fmt"
	"os"
	"strings"

	"github.com/patchcorn/patchcorn/go/cmd"
	"github.com/patchcorn/patchcorn/go/cpu"
	"github.com/patchcorn/patchcorn/go/models"
)

func Main(args []string) {
	fs := cmd.NewFlags("asm", "<instruction>...")
	addr := fs.Uint64("addr", 0, "address the code will run at (for relative branches)")
	att := fs.Bool("att", false, "use AT&T syntax")
	fs.Parse(args[1:])
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}
	ks := cpu.NewKeystoneX64()
	ks.ATT = *att
	if err := ks.Open(); err != nil {
		cmd.Exit(err)
	}
	defer ks.Close()
	code, err := ks.Asm(strings.Join(fs.Args(), "; "), *addr)
	if err != nil {
		cmd.Exit(err)
	}
	fmt.Println(models.HexSpaced(code))
}

func init() { cmd.Register("asm", "assemble patch bytes", Main) }
