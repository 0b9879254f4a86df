package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/danmuck/emberctl/internal/protocol/glow"
)

var (
	ErrInvalidDescriptor = errors.New("stream: invalid stream descriptor")
	ErrShortBuffer       = errors.New("stream: buffer shorter than descriptor")
)

func width(f glow.StreamFormat) (int, error) {
	switch f {
	case glow.StreamUint8, glow.StreamInt8:
		return 1, nil
	case glow.StreamUint16BE, glow.StreamUint16LE, glow.StreamInt16BE, glow.StreamInt16LE:
		return 2, nil
	case glow.StreamUint32BE, glow.StreamUint32LE, glow.StreamInt32BE, glow.StreamInt32LE,
		glow.StreamFloat32BE, glow.StreamFloat32LE:
		return 4, nil
	case glow.StreamUint64BE, glow.StreamUint64LE, glow.StreamInt64BE, glow.StreamInt64LE,
		glow.StreamFloat64BE, glow.StreamFloat64LE:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: format %d", ErrInvalidDescriptor, f)
	}
}

func order(f glow.StreamFormat) binary.ByteOrder {
	switch f {
	case glow.StreamUint16LE, glow.StreamUint32LE, glow.StreamUint64LE,
		glow.StreamInt16LE, glow.StreamInt32LE, glow.StreamInt64LE,
		glow.StreamFloat32LE, glow.StreamFloat64LE:
		return binary.LittleEndian
	default:
		return binary.BigEndian
	}
}

func isFloat(f glow.StreamFormat) bool {
	switch f {
	case glow.StreamFloat32BE, glow.StreamFloat32LE, glow.StreamFloat64BE, glow.StreamFloat64LE:
		return true
	default:
		return false
	}
}

// Pack writes v into buf at desc.Offset, growing buf as needed.
func Pack(buf []byte, desc glow.StreamDescriptor, v glow.Value) ([]byte, error) {
	w, err := width(desc.Format)
	if err != nil {
		return buf, err
	}
	if desc.Offset < 0 {
		return buf, fmt.Errorf("%w: negative offset", ErrInvalidDescriptor)
	}
	var i int64
	var f float64
	switch v.Type {
	case glow.ValueInteger:
		i, f = v.Int, float64(v.Int)
	case glow.ValueReal:
		i, f = int64(v.Real), v.Real
	case glow.ValueBoolean:
		if v.Bool {
			i, f = 1, 1
		}
	default:
		return buf, fmt.Errorf("%w: %s values cannot be packed", ErrInvalidDescriptor, v.Type)
	}
	end := int(desc.Offset) + w
	if len(buf) < end {
		buf = append(buf, make([]byte, end-len(buf))...)
	}
	dst := buf[desc.Offset:end]
	bo := order(desc.Format)
	switch {
	case isFloat(desc.Format) && w == 4:
		bo.PutUint32(dst, math.Float32bits(float32(f)))
	case isFloat(desc.Format):
		bo.PutUint64(dst, math.Float64bits(f))
	case w == 1:
		dst[0] = byte(i)
	case w == 2:
		bo.PutUint16(dst, uint16(i))
	case w == 4:
		bo.PutUint32(dst, uint32(i))
	default:
		bo.PutUint64(dst, uint64(i))
	}
	return buf, nil
}

// Unpack reads the value at desc from buf.
func Unpack(buf []byte, desc glow.StreamDescriptor) (glow.Value, error) {
	w, err := width(desc.Format)
	if err != nil {
		return glow.Value{}, err
	}
	end := int(desc.Offset) + w
	if desc.Offset < 0 || len(buf) < end {
		return glow.Value{}, ErrShortBuffer
	}
	src := buf[desc.Offset:end]
	bo := order(desc.Format)
	if isFloat(desc.Format) {
		if w == 4 {
			return glow.RealValue(float64(math.Float32frombits(bo.Uint32(src)))), nil
		}
		return glow.RealValue(math.Float64frombits(bo.Uint64(src))), nil
	}
	signed := desc.Format >= glow.StreamInt8
	switch w {
	case 1:
		if signed {
			return glow.IntValue(int64(int8(src[0]))), nil
		}
		return glow.IntValue(int64(src[0])), nil
	case 2:
		if signed {
			return glow.IntValue(int64(int16(bo.Uint16(src)))), nil
		}
		return glow.IntValue(int64(bo.Uint16(src))), nil
	case 4:
		if signed {
			return glow.IntValue(int64(int32(bo.Uint32(src)))), nil
		}
		return glow.IntValue(int64(bo.Uint32(src))), nil
	default:
		return glow.IntValue(int64(bo.Uint64(src))), nil
	}
}
