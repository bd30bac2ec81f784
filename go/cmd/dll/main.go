//go:build windows && cgo

// Command dll is the fix as a library for the game to load:
//
//	go build -buildmode=c-shared -o patchcorn.asi ./go/cmd/dll
//
// The fix is applied to the game's executable on load.
package main

import "C"

import (
	"github.com/patchcorn/patchcorn/go/cmd"
)

func init() {
	go cmd.Load("patchcorn", "")
}

func main() {}
