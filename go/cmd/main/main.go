package main

import (
	"github.com/patchcorn/patchcorn/go/cmd"

	_ "github.com/patchcorn/patchcorn/go/cmd/run"

	_ "github.com/patchcorn/patchcorn/go/cmd/asm"
	_ "github.com/patchcorn/patchcorn/go/cmd/dis"
	_ "github.com/patchcorn/patchcorn/go/cmd/dump"
	_ "github.com/patchcorn/patchcorn/go/cmd/scan"
)

func main() { cmd.Main() }
