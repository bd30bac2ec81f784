package dump

import (
	"fmt"
	"os"
	"strings"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/cmd"
	"github.com/patchcorn/patchcorn/go/models"
)

func Main(args []string) {
	fs := cmd.NewFlags("dump", "<snapshot>")
	hex := fs.Bool("hex", false, "hexdump every region")
	fs.Parse(args[1:])
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	p, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		cmd.Exit(err)
	}
	snap, err := models.LoadSnapshot(p)
	if err != nil {
		cmd.Exit(err)
	}
	fmt.Printf("%s timestamp=%#x\n\n", snap.Image, snap.Image.Timestamp)

	var regs []string
	for _, r := range x86_64.Arch.RegNames() {
		if val, ok := snap.Regs[r.Enum]; ok {
			regs = append(regs, fmt.Sprintf("%6s 0x%016x", r.Name, val))
		}
	}
	for i := 0; i < len(regs); i += 4 {
		end := i + 4
		if end > len(regs) {
			end = len(regs)
		}
		fmt.Println(strings.Join(regs[i:end], " "))
	}
	fmt.Println()
	for _, pg := range snap.Regions {
		fmt.Println(pg)
		if *hex {
			for _, line := range models.HexDump(pg.Addr, pg.Data, 64) {
				fmt.Println(line)
			}
		}
	}
}

func init() { cmd.Register("dump", "print a snapshot", Main) }
