package cpu

// Memory is the part of a target needed to scan and patch it.
type Memory interface {
	MemRead(addr, size uint64) ([]byte, error)
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error
	MemProt(addr, size uint64, prot int) error
	// sorted by address
	MemRegions() (Pages, error)
}

// This interface abstracts the minimum functionality Patchcorn requires to install hooks in a target.
type Cpu interface {
	Memory

	// memory mapping
	MemMapProt(addr, size uint64, prot int) error
	MemUnmap(addr, size uint64) error

	// register IO
	RegRead(reg int) (uint64, error)
	RegWrite(reg int, val uint64) error

	// execution
	Start(begin, until uint64) error
	Stop() error

	// hooks
	HookAdd(htype int, cb interface{}, begin, end uint64, extra ...int) (Hook, error)
	HookDel(hook Hook) error

	// cleanup
	Close() error
}
