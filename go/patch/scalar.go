package patch

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Scalar values must also be fixed size: int, uint and uintptr are rejected at runtime.
type Scalar interface {
	constraints.Integer | constraints.Float
}

func encode[T Scalar](v T) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, errors.Wrapf(err, "can't encode %T", v)
	}
	return buf.Bytes(), nil
}

// Write stores v little-endian at addr.
func Write[T Scalar](p *Patcher, addr uint64, v T) (*Record, error) {
	data, err := encode(v)
	if err != nil {
		return nil, err
	}
	return p.Bytes(addr, data)
}

// WriteKeepWritable is Write for locations written more than once.
func WriteKeepWritable[T Scalar](p *Patcher, addr uint64, v T) (*Record, error) {
	data, err := encode(v)
	if err != nil {
		return nil, err
	}
	return p.BytesKeepWritable(addr, data)
}

// Read loads a little-endian T from addr.
func Read[T Scalar](p *Patcher, addr uint64) (T, error) {
	var v T
	size := binary.Size(v)
	if size < 0 {
		return v, errors.Errorf("can't decode %T", v)
	}
	data, err := p.mem.MemRead(addr, uint64(size))
	if err != nil {
		return v, err
	}
	err = binary.Read(bytes.NewReader(data), binary.LittleEndian, &v)
	return v, errors.WithStack(err)
}
