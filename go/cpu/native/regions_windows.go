package native

import (
	"encoding/binary"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

var winProt = map[uint32]int{
	windows.PAGE_NOACCESS:          cpu.PROT_NONE,
	windows.PAGE_READONLY:          cpu.PROT_READ,
	windows.PAGE_READWRITE:         cpu.PROT_RW,
	windows.PAGE_WRITECOPY:         cpu.PROT_RW,
	windows.PAGE_EXECUTE:           cpu.PROT_EXEC,
	windows.PAGE_EXECUTE_READ:      cpu.PROT_RX,
	windows.PAGE_EXECUTE_READWRITE: cpu.PROT_ALL,
	windows.PAGE_EXECUTE_WRITECOPY: cpu.PROT_ALL,
}

func toWin(prot int) uint32 {
	switch prot {
	case cpu.PROT_READ:
		return windows.PAGE_READONLY
	case cpu.PROT_RW, cpu.PROT_WRITE:
		return windows.PAGE_READWRITE
	case cpu.PROT_EXEC:
		return windows.PAGE_EXECUTE
	case cpu.PROT_RX:
		return windows.PAGE_EXECUTE_READ
	case cpu.PROT_ALL, cpu.PROT_WRITE | cpu.PROT_EXEC:
		return windows.PAGE_EXECUTE_READWRITE
	}
	return windows.PAGE_NOACCESS
}

func protect(addr, size uint64, prot int) error {
	var old uint32
	return windows.VirtualProtect(uintptr(addr), uintptr(size), toWin(prot), &old)
}

func regions() (cpu.Pages, error) {
	var pages cpu.Pages
	var mbi windows.MemoryBasicInformation
	addr := uintptr(0)
	for {
		if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			break
		}
		if mbi.State == windows.MEM_COMMIT && mbi.Protect&windows.PAGE_GUARD == 0 {
			pages = append(pages, &cpu.Page{
				Addr: uint64(mbi.BaseAddress),
				Size: uint64(mbi.RegionSize),
				Prot: winProt[mbi.Protect&0xff],
			})
		}
		next := mbi.BaseAddress + mbi.RegionSize
		if next <= addr {
			break
		}
		addr = next
	}
	if len(pages) == 0 {
		return nil, errors.New("VirtualQuery returned no committed regions")
	}
	return pages, nil
}

func module(p *Process, name string) (models.Image, error) {
	wname, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return models.Image{}, errors.WithStack(err)
	}
	var handle windows.Handle
	if err := windows.GetModuleHandleEx(0, wname, &handle); err != nil {
		return models.Image{}, errors.Wrapf(err, "module %q is not loaded", name)
	}
	var info windows.ModuleInfo
	if err := windows.GetModuleInformation(windows.CurrentProcess(), handle, &info, uint32(unsafe.Sizeof(info))); err != nil {
		return models.Image{}, errors.WithStack(err)
	}
	img := models.Image{Name: name, Base: uint64(info.BaseOfDll), Size: uint64(info.SizeOfImage)}
	// IMAGE_NT_HEADERS.FileHeader.TimeDateStamp
	if hdr, err := p.MemRead(img.Base+0x3c, 4); err == nil {
		lfanew := uint64(binary.LittleEndian.Uint32(hdr))
		if ts, err := p.MemRead(img.Base+lfanew+8, 4); err == nil {
			img.Timestamp = binary.LittleEndian.Uint32(ts)
		}
	}
	return img, nil
}
