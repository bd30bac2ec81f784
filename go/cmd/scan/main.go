package scan

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/patchcorn/patchcorn/go/cmd"
	"github.com/patchcorn/patchcorn/go/cpu/walker"
	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
	"github.com/patchcorn/patchcorn/go/scan"
)

// search prints every hit of one pattern with its disassembly
func search(w io.Writer, c cpu.Memory, img models.Image, s string) bool {
	p, err := scan.Parse(s)
	if err != nil {
		fmt.Fprintf(w, "%q: %v\n", s, err)
		return false
	}
	hits, err := scan.FindAll(c, img, p)
	if err != nil {
		fmt.Fprintf(w, "%s: %v\n", p, err)
		return false
	}
	if len(hits) > 1 {
		fmt.Fprintf(w, "warning: %s matched %d times, the first match is used\n", p, len(hits))
	}
	for _, addr := range hits {
		code, err := c.MemRead(addr, uint64(len(p)))
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", img.Sym(addr), err)
			return false
		}
		dis, _ := models.Disas(&walker.Dis{}, code, addr)
		fmt.Fprintf(w, "%s:\n%s\n", img.Sym(addr), dis)
	}
	return true
}

func interactive(c cpu.Memory, img models.Image) error {
	rl, err := readline.NewEx(&readline.Config{Prompt: "scan> "})
	if err != nil {
		return err
	}
	defer rl.Close()
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if line = strings.TrimSpace(line); line != "" {
			search(rl.Stdout(), c, img, line)
		}
	}
}

func Main(args []string) {
	fs := cmd.NewFlags("scan", "<game.exe|snapshot> [pattern...]")
	target := fs.String("target", "walker", "target to load the image into")
	shell := fs.Bool("i", false, "read patterns from a prompt")
	fs.Parse(args[1:])
	if fs.NArg() < 1 || (fs.NArg() < 2 && !*shell) {
		fs.Usage()
		os.Exit(1)
	}
	c, img, err := cmd.OpenTarget(*target, fs.Arg(0))
	if err != nil {
		cmd.Exit(err)
	}
	fmt.Println(img)
	status := 0
	for _, s := range fs.Args()[1:] {
		if !search(os.Stdout, c, img, s) {
			status = 1
		}
	}
	if *shell {
		if err := interactive(c, img); err != nil {
			cmd.Exit(err)
		}
	}
	os.Exit(status)
}

func init() { cmd.Register("scan", "find byte patterns in a game image", Main) }
