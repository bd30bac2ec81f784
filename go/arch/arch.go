package arch

import (
	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/models"
)

var archMap = map[string]*models.Arch{
	"x86_64": x86_64.Arch,
	"amd64":  x86_64.Arch,
}

func GetArch(name string) (*models.Arch, error) {
	a, ok := archMap[name]
	if !ok {
		return nil, errors.Errorf("arch '%s' not found", name)
	}
	return a, nil
}
