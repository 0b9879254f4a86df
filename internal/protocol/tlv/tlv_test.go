package tlv

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestEncodeDecodeFieldsRoundTripPreservesUnknown(t *testing.T) {
	in := []Field{
		String(1, "gain"),
		{Tag: 9999, Type: TypeOctets, Value: []byte{0xAA, 0xBB}}, // unknown tag
	}
	b := EncodeFields(in)
	out, err := DecodeFields(b)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(out))
	}
	if out[1].Tag != 9999 || out[1].Type != TypeOctets || !bytes.Equal(out[1].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("unknown field not preserved: %+v", out[1])
	}
}

func TestScalarAccessors(t *testing.T) {
	if v, err := Int(1, -42).Int(); err != nil || v != -42 {
		t.Fatalf("int: %v %v", v, err)
	}
	if v, err := Real(1, math.Pi).Real(); err != nil || v != math.Pi {
		t.Fatalf("real: %v %v", v, err)
	}
	if v, err := Bool(1, true).Bool(); err != nil || !v {
		t.Fatalf("bool: %v %v", v, err)
	}
	if v, err := String(1, "x").Str(); err != nil || v != "x" {
		t.Fatalf("string: %v %v", v, err)
	}
	if v, err := OID(1, []int32{1, 2, 300}).OID(); err != nil || len(v) != 3 || v[2] != 300 {
		t.Fatalf("oid: %v %v", v, err)
	}
	if _, err := String(1, "x").Int(); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestNestedSetRoundTrip(t *testing.T) {
	outer := Set(10, Int(1, 5), Set(2, String(3, "inner")))
	fields, err := DecodeFields(EncodeField(outer))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	children, err := fields[0].Children()
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	inner, ok := GetField(children, 2)
	if !ok {
		t.Fatalf("missing inner set")
	}
	grand, err := inner.Children()
	if err != nil || len(grand) != 1 {
		t.Fatalf("grandchildren: %v %v", grand, err)
	}
	if s, _ := grand[0].Str(); s != "inner" {
		t.Fatalf("unexpected inner value %q", s)
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := DecodeFields([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	// tag=1, type=string, len=5, value only 2 bytes
	payload := []byte{0, 1, TypeString, 0, 0, 0, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}
