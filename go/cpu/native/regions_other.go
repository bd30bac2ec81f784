//go:build !linux && !windows

package native

import (
	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

var errNoRegions = errors.New("memory regions are not available on this platform")

func regions() (cpu.Pages, error) {
	return nil, errNoRegions
}

func module(p *Process, name string) (models.Image, error) {
	return models.Image{}, errNoRegions
}
