package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/emberctl/internal/protocol/glow"
)

func TestPackLayouts(t *testing.T) {
	cases := []struct {
		name   string
		format glow.StreamFormat
		offset int32
		in     glow.Value
		want   []byte
	}{
		{"uint8", glow.StreamUint8, 0, glow.IntValue(200), []byte{200}},
		{"int8 negative", glow.StreamInt8, 1, glow.IntValue(-1), []byte{0, 0xFF}},
		{"uint16 big endian", glow.StreamUint16BE, 0, glow.IntValue(0x0102), []byte{1, 2}},
		{"uint16 little endian", glow.StreamUint16LE, 0, glow.IntValue(0x0102), []byte{2, 1}},
		{"int32 little endian", glow.StreamInt32LE, 0, glow.IntValue(-2), []byte{0xFE, 0xFF, 0xFF, 0xFF}},
		{"float32 big endian", glow.StreamFloat32BE, 0, glow.RealValue(1), []byte{0x3F, 0x80, 0, 0}},
		{"boolean", glow.StreamUint8, 0, glow.BoolValue(true), []byte{1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			desc := glow.StreamDescriptor{Format: tc.format, Offset: tc.offset}
			got, err := Pack(nil, desc, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPackRoundTripsThroughUnpack(t *testing.T) {
	descs := []glow.StreamDescriptor{
		{Format: glow.StreamInt64BE, Offset: 0},
		{Format: glow.StreamFloat64LE, Offset: 8},
		{Format: glow.StreamUint32BE, Offset: 16},
	}
	values := []glow.Value{glow.IntValue(-1 << 40), glow.RealValue(-0.25), glow.IntValue(1 << 31)}
	var buf []byte
	var err error
	for i, d := range descs {
		buf, err = Pack(buf, d, values[i])
		require.NoError(t, err)
	}
	require.Len(t, buf, 20)
	for i, d := range descs {
		got, err := Unpack(buf, d)
		require.NoError(t, err)
		assert.Equal(t, values[i], got)
	}
}

func TestPackRejectsInvalid(t *testing.T) {
	_, err := Pack(nil, glow.StreamDescriptor{Format: 1}, glow.IntValue(1))
	require.ErrorIs(t, err, ErrInvalidDescriptor)
	_, err = Pack(nil, glow.StreamDescriptor{Format: glow.StreamUint8, Offset: -1}, glow.IntValue(1))
	require.ErrorIs(t, err, ErrInvalidDescriptor)
	_, err = Pack(nil, glow.StreamDescriptor{Format: glow.StreamUint8}, glow.StringValue("x"))
	require.ErrorIs(t, err, ErrInvalidDescriptor)
	_, err = Unpack([]byte{1}, glow.StreamDescriptor{Format: glow.StreamUint16BE})
	require.ErrorIs(t, err, ErrShortBuffer)
}
