package fix

import (
	patchcorn "github.com/patchcorn/patchcorn/go"
	"github.com/patchcorn/patchcorn/go/hook"
)

const (
	resListPattern  = "4C ?? ?? ?? ?? ?? ?? 41 ?? ?? 41 ?? ?? 45 ?? ?? ?? ?? C7 ?? ?? ?? ?? ?? ??"
	resIndexPattern = "83 ?? 0F 0F ?? ?? 89 ?? ?? ?? ?? ?? C3"

	// entries are probed on a 2-byte stride
	resListEntries = 44
	// the slot the custom resolution replaces
	replaceWidth  = 2560
	replaceHeight = 1440
	replaceIndex  = 0xC
)

func forceIndex(ctx *hook.Context) {
	ctx.Rcx = replaceIndex
}

func (f *Fix) resolution(t *patchcorn.Task) {
	listHit := t.Scan("resolution list", resListPattern)
	indexHit := t.Scan("resolution index", resIndexPattern)
	if listHit == 0 || indexHit == 0 {
		return
	}
	if list := t.RIP("resolution list", listHit, 3); list != 0 {
		for i := 0; i < resListEntries; i++ {
			addr := list + uint64(i)*2
			w, ok := patchcorn.Read[int16](t, "resolution list", addr)
			if !ok {
				break
			}
			h, ok := patchcorn.Read[int16](t, "resolution list", addr+2)
			if !ok {
				break
			}
			if w == replaceWidth && h == replaceHeight {
				patchcorn.Write(t, "resolution list", addr, int16(f.Config.Width))
				patchcorn.Write(t, "resolution list", addr+2, int16(f.Config.Height))
			}
		}
	}
	// select the replaced slot on startup and on every resolution change
	if index := t.RIP("resolution index", indexHit, -4); index != 0 {
		patchcorn.Write(t, "resolution index", index, int32(replaceIndex))
	}
	t.Mid("resolution change", t.Displace("resolution change", indexHit, 6), forceIndex)
}
