package cmd

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	patchcorn "github.com/patchcorn/patchcorn/go"
	"github.com/patchcorn/patchcorn/go/cpu/native"
	"github.com/patchcorn/patchcorn/go/fix"
)

// Attach applies the fix to module (the main executable when empty) inside
// the current process. The config and log live next to the executable.
// The log stays open afterwards for hook callbacks.
func Attach(name, module string) error {
	exe, err := os.Executable()
	if err != nil {
		return errors.WithStack(err)
	}
	return attach(name, filepath.Dir(exe), module)
}

// Load is Attach for a library inside the game. A failure stops the fix
// and is reported, but the game keeps running.
func Load(name, module string) {
	if err := Attach(name, module); err != nil {
		PrintError(err)
	}
}

func attach(name, dir, module string) error {
	sess, err := OpenSession(name, dir, logrus.InfoLevel, 0, 0)
	if err != nil {
		return err
	}
	proc := native.New()
	img, err := proc.Image(module)
	if err != nil {
		sess.Log.WithError(err).Error("failed to find module")
		sess.Close()
		return err
	}
	p := patchcorn.New(proc, img, sess.Log)
	p.LogImage()
	fix.Run(p, sess.Config)
	p.Summary()
	return nil
}
