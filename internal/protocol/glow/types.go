package glow

import (
	"bytes"
	"strconv"
	"strings"
)

// OID addresses one element by the numbers from the root down.
type OID []int32

func (o OID) String() string {
	parts := make([]string, len(o))
	for i, n := range o {
		parts[i] = strconv.FormatInt(int64(n), 10)
	}
	return strings.Join(parts, ".")
}

func (o OID) Equal(other OID) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix addresses o or one of its ancestors.
func (o OID) HasPrefix(prefix OID) bool {
	return len(prefix) <= len(o) && o[:len(prefix)].Equal(prefix)
}

// Append returns a new OID; o is never aliased.
func (o OID) Append(n ...int32) OID {
	out := make(OID, 0, len(o)+len(n))
	out = append(out, o...)
	return append(out, n...)
}

func (o OID) Clone() OID {
	if o == nil {
		return nil
	}
	return append(OID{}, o...)
}

// ParseOID parses the dotted form produced by String.
func ParseOID(s string) (OID, error) {
	s = strings.Trim(strings.TrimSpace(s), ".")
	if s == "" {
		return OID{}, nil
	}
	parts := strings.Split(s, ".")
	out := make(OID, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return nil, err
		}
		out[i] = int32(n)
	}
	return out, nil
}

type ValueType uint8

const (
	ValueNone ValueType = iota
	ValueInteger
	ValueReal
	ValueString
	ValueBoolean
	ValueOctets
)

func (t ValueType) String() string {
	switch t {
	case ValueInteger:
		return "integer"
	case ValueReal:
		return "real"
	case ValueString:
		return "string"
	case ValueBoolean:
		return "boolean"
	case ValueOctets:
		return "octets"
	default:
		return "none"
	}
}

// Value is a tagged union over the Glow value kinds.
type Value struct {
	Type   ValueType
	Int    int64
	Real   float64
	Str    string
	Bool   bool
	Octets []byte
}

func IntValue(v int64) Value     { return Value{Type: ValueInteger, Int: v} }
func RealValue(v float64) Value  { return Value{Type: ValueReal, Real: v} }
func StringValue(v string) Value { return Value{Type: ValueString, Str: v} }
func BoolValue(v bool) Value     { return Value{Type: ValueBoolean, Bool: v} }
func OctetsValue(v []byte) Value { return Value{Type: ValueOctets, Octets: append([]byte(nil), v...)} }

func (v Value) IsZero() bool {
	return v.Type == ValueNone
}

func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case ValueInteger:
		return v.Int == o.Int
	case ValueReal:
		return v.Real == o.Real
	case ValueString:
		return v.Str == o.Str
	case ValueBoolean:
		return v.Bool == o.Bool
	case ValueOctets:
		return bytes.Equal(v.Octets, o.Octets)
	default:
		return true
	}
}

// Any returns the payload as a plain Go value for structured logs and JSON.
func (v Value) Any() any {
	switch v.Type {
	case ValueInteger:
		return v.Int
	case ValueReal:
		return v.Real
	case ValueString:
		return v.Str
	case ValueBoolean:
		return v.Bool
	case ValueOctets:
		return v.Octets
	default:
		return nil
	}
}

// ParameterType follows the Ember+ ParameterType enumeration.
type ParameterType int32

const (
	ParameterNull    ParameterType = 0
	ParameterInteger ParameterType = 1
	ParameterReal    ParameterType = 2
	ParameterString  ParameterType = 3
	ParameterBoolean ParameterType = 4
	ParameterTrigger ParameterType = 5
	ParameterEnum    ParameterType = 6
	ParameterOctets  ParameterType = 7
)

func (t ParameterType) String() string {
	switch t {
	case ParameterInteger:
		return "integer"
	case ParameterReal:
		return "real"
	case ParameterString:
		return "string"
	case ParameterBoolean:
		return "boolean"
	case ParameterTrigger:
		return "trigger"
	case ParameterEnum:
		return "enum"
	case ParameterOctets:
		return "octets"
	default:
		return "null"
	}
}

type Access int32

const (
	AccessNone      Access = 0
	AccessRead      Access = 1
	AccessWrite     Access = 2
	AccessReadWrite Access = 3
)

func (a Access) CanRead() bool  { return a&AccessRead != 0 }
func (a Access) CanWrite() bool { return a&AccessWrite != 0 }

// FieldFlags selects which properties a GetDirectory response carries.
type FieldFlags int32

const (
	FieldSparse      FieldFlags = -2
	FieldAll         FieldFlags = -1
	FieldDefault     FieldFlags = 0
	FieldIdentifier  FieldFlags = 1
	FieldDescription FieldFlags = 2
	FieldTree        FieldFlags = 3
	FieldValue       FieldFlags = 4
	FieldConnections FieldFlags = 5
)

type CommandType int32

const (
	CommandSubscribe    CommandType = 30
	CommandUnsubscribe  CommandType = 31
	CommandGetDirectory CommandType = 32
	CommandInvoke       CommandType = 33
)

func (c CommandType) String() string {
	switch c {
	case CommandSubscribe:
		return "subscribe"
	case CommandUnsubscribe:
		return "unsubscribe"
	case CommandGetDirectory:
		return "getDirectory"
	case CommandInvoke:
		return "invoke"
	default:
		return "command(" + strconv.Itoa(int(c)) + ")"
	}
}

type MatrixType int32

const (
	MatrixOneToN   MatrixType = 0
	MatrixOneToOne MatrixType = 1
	MatrixNToN     MatrixType = 2
)

type AddressingMode int32

const (
	AddressingLinear    AddressingMode = 0
	AddressingNonLinear AddressingMode = 1
)

type ConnectionOperation int32

const (
	OperationAbsolute   ConnectionOperation = 0
	OperationConnect    ConnectionOperation = 1
	OperationDisconnect ConnectionOperation = 2
)

type ConnectionDisposition int32

const (
	DispositionTally    ConnectionDisposition = 0
	DispositionModified ConnectionDisposition = 1
	DispositionPending  ConnectionDisposition = 2
	DispositionLocked   ConnectionDisposition = 3
)

// StreamFormat describes how a value is packed into a shared stream buffer.
type StreamFormat int32

const (
	StreamUint8     StreamFormat = 0
	StreamUint16BE  StreamFormat = 2
	StreamUint16LE  StreamFormat = 3
	StreamUint32BE  StreamFormat = 4
	StreamUint32LE  StreamFormat = 5
	StreamUint64BE  StreamFormat = 6
	StreamUint64LE  StreamFormat = 7
	StreamInt8      StreamFormat = 8
	StreamInt16BE   StreamFormat = 10
	StreamInt16LE   StreamFormat = 11
	StreamInt32BE   StreamFormat = 12
	StreamInt32LE   StreamFormat = 13
	StreamInt64BE   StreamFormat = 14
	StreamInt64LE   StreamFormat = 15
	StreamFloat32BE StreamFormat = 20
	StreamFloat32LE StreamFormat = 21
	StreamFloat64BE StreamFormat = 22
	StreamFloat64LE StreamFormat = 23
)

type StreamDescriptor struct {
	Format StreamFormat
	Offset int32
}

// TupleItem is one argument or result slot of a Function signature.
type TupleItem struct {
	Type ParameterType
	Name string
}

// Ptr is a helper for filling optional contents fields.
func Ptr[T any](v T) *T {
	return &v
}
