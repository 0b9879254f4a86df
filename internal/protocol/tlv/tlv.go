package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// HeaderLen is tag(2) + type(1) + length(4).
const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrTypeMismatch     = errors.New("tlv: field type mismatch")
	ErrInvalidLength    = errors.New("tlv: invalid value length")
)

// Type IDs. TypeSet carries a nested field list.
const (
	TypeInt    uint8 = 1
	TypeReal   uint8 = 2
	TypeBool   uint8 = 3
	TypeString uint8 = 4
	TypeOctets uint8 = 5
	TypeSet    uint8 = 6
	TypeOID    uint8 = 7
	TypeNull   uint8 = 8
)

// Field is one decoded TLV field.
type Field struct {
	Tag   uint16
	Type  uint8
	Value []byte
}

func EncodeField(f Field) []byte {
	buf := make([]byte, HeaderLen+len(f.Value))
	binary.BigEndian.PutUint16(buf[0:2], f.Tag)
	buf[2] = f.Type
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(f.Value)))
	copy(buf[7:], f.Value)
	return buf
}

func EncodeFields(fields []Field) []byte {
	n := 0
	for _, f := range fields {
		n += HeaderLen + len(f.Value)
	}
	out := make([]byte, 0, n)
	for _, f := range fields {
		out = append(out, EncodeField(f)...)
	}
	return out
}

// DecodeFields decodes one level; nested sets are decoded through Children.
func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		tag := binary.BigEndian.Uint16(payload[i : i+2])
		typeID := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += HeaderLen
		if uint32(len(payload)-i) < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, Field{Tag: tag, Type: typeID, Value: val})
	}
	return fields, nil
}

func GetField(fields []Field, tag uint16) (Field, bool) {
	for _, f := range fields {
		if f.Tag == tag {
			return f, true
		}
	}
	return Field{}, false
}

func MustType(f Field, expected uint8) error {
	if f.Type != expected {
		return fmt.Errorf("%w: tag %d got %d want %d", ErrTypeMismatch, f.Tag, f.Type, expected)
	}
	return nil
}

func Int(tag uint16, v int64) Field {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return Field{Tag: tag, Type: TypeInt, Value: buf}
}

func Real(tag uint16, v float64) Field {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return Field{Tag: tag, Type: TypeReal, Value: buf}
}

func Bool(tag uint16, v bool) Field {
	b := byte(0)
	if v {
		b = 1
	}
	return Field{Tag: tag, Type: TypeBool, Value: []byte{b}}
}

func String(tag uint16, v string) Field {
	return Field{Tag: tag, Type: TypeString, Value: []byte(v)}
}

func Octets(tag uint16, v []byte) Field {
	buf := make([]byte, len(v))
	copy(buf, v)
	return Field{Tag: tag, Type: TypeOctets, Value: buf}
}

func Null(tag uint16) Field {
	return Field{Tag: tag, Type: TypeNull}
}

func Set(tag uint16, children ...Field) Field {
	return Field{Tag: tag, Type: TypeSet, Value: EncodeFields(children)}
}

func OID(tag uint16, oid []int32) Field {
	buf := make([]byte, 4*len(oid))
	for i, n := range oid {
		binary.BigEndian.PutUint32(buf[4*i:], uint32(n))
	}
	return Field{Tag: tag, Type: TypeOID, Value: buf}
}

func (f Field) Int() (int64, error) {
	if err := MustType(f, TypeInt); err != nil {
		return 0, err
	}
	if len(f.Value) != 8 {
		return 0, ErrInvalidLength
	}
	return int64(binary.BigEndian.Uint64(f.Value)), nil
}

func (f Field) Real() (float64, error) {
	if err := MustType(f, TypeReal); err != nil {
		return 0, err
	}
	if len(f.Value) != 8 {
		return 0, ErrInvalidLength
	}
	return math.Float64frombits(binary.BigEndian.Uint64(f.Value)), nil
}

func (f Field) Bool() (bool, error) {
	if err := MustType(f, TypeBool); err != nil {
		return false, err
	}
	if len(f.Value) != 1 {
		return false, ErrInvalidLength
	}
	switch f.Value[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool byte 0x%02x", ErrInvalidLength, f.Value[0])
	}
}

func (f Field) Str() (string, error) {
	if err := MustType(f, TypeString); err != nil {
		return "", err
	}
	return string(f.Value), nil
}

func (f Field) Bytes() ([]byte, error) {
	if err := MustType(f, TypeOctets); err != nil {
		return nil, err
	}
	buf := make([]byte, len(f.Value))
	copy(buf, f.Value)
	return buf, nil
}

func (f Field) Children() ([]Field, error) {
	if err := MustType(f, TypeSet); err != nil {
		return nil, err
	}
	return DecodeFields(f.Value)
}

func (f Field) OID() ([]int32, error) {
	if err := MustType(f, TypeOID); err != nil {
		return nil, err
	}
	if len(f.Value)%4 != 0 {
		return nil, ErrInvalidLength
	}
	out := make([]int32, len(f.Value)/4)
	for i := range out {
		out[i] = int32(binary.BigEndian.Uint32(f.Value[4*i:]))
	}
	return out, nil
}
