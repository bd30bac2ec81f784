package fix

import (
	patchcorn "github.com/patchcorn/patchcorn/go"
	"github.com/patchcorn/patchcorn/go/hook"
)

const windowsMessagePattern = "85 ?? 0F 84 ?? ?? ?? ?? 83 3D ?? ?? ?? ?? 00 75 ?? 48 ?? ?? ?? ?? ?? ?? 33 ??"

// the OS version check result is tested right after the hook; zero skips the message box
func skipCheck(ctx *hook.Context) {
	ctx.Rax = 0
}

func (f *Fix) windowsMessage(t *patchcorn.Task) {
	hit := t.Scan("windows compatibility message", windowsMessagePattern)
	t.Mid("windows compatibility message", hit, skipCheck)
}
