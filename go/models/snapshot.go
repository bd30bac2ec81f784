package models

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"sort"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/patchcorn/patchcorn/go/models/cpu"
)

// snapshot format
//
// header (struc, little endian)
//   [4]byte magic "PCSN"
//   uint32  version
//   uint32  image timestamp
//   uint64  image base
//   uint64  image size
//   uint16  name length, name
//   uint32  crc32 of the compressed body
//   uint32  compressed body length
//
// body (snappy block)
//   uint32 register count
//   1..n: uint32 enum, uint64 value
//   uint32 region count
//   1..n: uint64 addr, uint64 size, uint32 prot, uint16 desc length, desc, <size bytes>

var snapMagic = [4]byte{'P', 'C', 'S', 'N'}

const snapVersion = 1

var ErrSnapshot = errors.New("invalid snapshot")

type snapHeader struct {
	Magic     [4]byte
	Version   uint32
	Timestamp uint32
	Base      uint64
	Size      uint64
	NameLen   int `struc:"uint16,sizeof=Name"`
	Name      string
	Crc       uint32
	BodyLen   int `struc:"uint32"`
}

type snapReg struct {
	Enum uint32
	Val  uint64
}

type snapRegion struct {
	Addr    uint64
	Size    uint64
	Prot    uint32
	DescLen int `struc:"uint16,sizeof=Desc"`
	Desc    string
}

// Snapshot is a target's registers and memory at a point in time.
type Snapshot struct {
	Image   Image
	Regs    map[int]uint64
	Regions cpu.Pages
}

var snapOrder = &struc.Options{Order: binary.LittleEndian}

// TakeSnapshot reads every readable region of mem. regs may be nil for targets without registers.
func TakeSnapshot(mem cpu.Memory, regs RegReader, enums []int, img Image) (*Snapshot, error) {
	s := &Snapshot{Image: img, Regs: make(map[int]uint64)}
	if regs != nil {
		for _, e := range enums {
			val, err := regs.RegRead(e)
			if err != nil {
				return nil, err
			}
			s.Regs[e] = val
		}
	}
	pages, err := mem.MemRegions()
	if err != nil {
		return nil, err
	}
	for _, pg := range pages {
		if pg.Prot&cpu.PROT_READ == 0 {
			continue
		}
		data, err := mem.MemRead(pg.Addr, pg.Size)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %v", pg)
		}
		s.Regions = append(s.Regions, &cpu.Page{Addr: pg.Addr, Size: pg.Size, Prot: pg.Prot, Desc: pg.Desc, Data: data})
	}
	return s, nil
}

func (s *Snapshot) Marshal() ([]byte, error) {
	var body bytes.Buffer
	bs := StrucStream{&body, binary.LittleEndian}
	enums := make([]int, 0, len(s.Regs))
	for e := range s.Regs {
		enums = append(enums, e)
	}
	sort.Ints(enums)
	if err := bs.Pack(uint32(len(enums))); err != nil {
		return nil, err
	}
	for _, e := range enums {
		if err := bs.Pack(&snapReg{uint32(e), s.Regs[e]}); err != nil {
			return nil, err
		}
	}
	if err := bs.Pack(uint32(len(s.Regions))); err != nil {
		return nil, err
	}
	for _, pg := range s.Regions {
		if err := bs.Pack(&snapRegion{Addr: pg.Addr, Size: pg.Size, Prot: uint32(pg.Prot), Desc: pg.Desc}); err != nil {
			return nil, err
		}
		body.Write(pg.Data)
	}
	data := snappy.Encode(nil, body.Bytes())

	var out bytes.Buffer
	hdr := &snapHeader{
		Magic:     snapMagic,
		Version:   snapVersion,
		Timestamp: s.Image.Timestamp,
		Base:      s.Image.Base,
		Size:      s.Image.Size,
		Name:      s.Image.Name,
		Crc:       crc32.ChecksumIEEE(data),
		BodyLen:   len(data),
	}
	if err := struc.PackWithOptions(&out, hdr, snapOrder); err != nil {
		return nil, errors.WithStack(err)
	}
	out.Write(data)
	return out.Bytes(), nil
}

func LoadSnapshot(p []byte) (*Snapshot, error) {
	r := bytes.NewReader(p)
	var hdr snapHeader
	if err := struc.UnpackWithOptions(r, &hdr, snapOrder); err != nil {
		return nil, errors.Wrap(ErrSnapshot, err.Error())
	}
	if hdr.Magic != snapMagic || hdr.Version != snapVersion {
		return nil, errors.Wrapf(ErrSnapshot, "bad magic %q or version %d", hdr.Magic[:], hdr.Version)
	}
	data := p[len(p)-r.Len():]
	if len(data) != hdr.BodyLen || crc32.ChecksumIEEE(data) != hdr.Crc {
		return nil, errors.Wrap(ErrSnapshot, "body is truncated or corrupt")
	}
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(ErrSnapshot, err.Error())
	}
	s := &Snapshot{
		Image: Image{Name: hdr.Name, Base: hdr.Base, Size: hdr.Size, Timestamp: hdr.Timestamp},
		Regs:  make(map[int]uint64),
	}
	body := bytes.NewBuffer(raw)
	bs := StrucStream{body, binary.LittleEndian}
	var count uint32
	if err := bs.Unpack(&count); err != nil {
		return nil, errors.Wrap(ErrSnapshot, err.Error())
	}
	for i := uint32(0); i < count; i++ {
		var reg snapReg
		if err := bs.Unpack(&reg); err != nil {
			return nil, errors.Wrap(ErrSnapshot, err.Error())
		}
		s.Regs[int(reg.Enum)] = reg.Val
	}
	if err := bs.Unpack(&count); err != nil {
		return nil, errors.Wrap(ErrSnapshot, err.Error())
	}
	for i := uint32(0); i < count; i++ {
		var region snapRegion
		if err := bs.Unpack(&region); err != nil {
			return nil, errors.Wrap(ErrSnapshot, err.Error())
		}
		if uint64(body.Len()) < region.Size {
			return nil, errors.Wrapf(ErrSnapshot, "region %#x is truncated", region.Addr)
		}
		s.Regions = append(s.Regions, &cpu.Page{
			Addr: region.Addr,
			Size: region.Size,
			Prot: int(region.Prot),
			Desc: region.Desc,
			Data: body.Next(int(region.Size)),
		})
	}
	return s, nil
}

// Mapper is the part of a cpu.Cpu needed to restore a snapshot.
type Mapper interface {
	MemMapProt(addr, size uint64, prot int) error
	MemProt(addr, size uint64, prot int) error
	MemWrite(addr uint64, p []byte) error
	RegWrite(reg int, val uint64) error
}

// Restore maps the snapshot into c and loads its registers. Regions are
// written before their protection is applied.
func (s *Snapshot) Restore(c Mapper) error {
	for _, pg := range s.Regions {
		if err := c.MemMapProt(pg.Addr, pg.Size, cpu.PROT_RW); err != nil {
			return errors.Wrapf(err, "mapping %v", pg)
		}
		if err := c.MemWrite(pg.Addr, pg.Data); err != nil {
			return err
		}
		if err := c.MemProt(pg.Addr, pg.Size, pg.Prot); err != nil {
			return err
		}
	}
	for e, val := range s.Regs {
		if err := c.RegWrite(e, val); err != nil {
			return err
		}
	}
	return nil
}

// IsSnapshot reports whether p starts with a snapshot header.
func IsSnapshot(p []byte) bool {
	return len(p) >= len(snapMagic) && bytes.Equal(p[:len(snapMagic)], snapMagic[:])
}

// RegRead makes a snapshot usable wherever a RegReader is.
func (s *Snapshot) RegRead(enum int) (uint64, error) {
	val, ok := s.Regs[enum]
	if !ok {
		return 0, errors.Errorf("register %d not in snapshot", enum)
	}
	return val, nil
}
