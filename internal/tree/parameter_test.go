package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/emberctl/internal/protocol/glow"
)

func paramAt(t *testing.T, tr *Tree, oid glow.OID) *Parameter {
	t.Helper()
	h, ok := tr.Lookup(oid)
	require.True(t, ok)
	p, ok := h.Element().(*Parameter)
	require.True(t, ok)
	return p
}

func TestParameterCoercion(t *testing.T) {
	tr := New(nil)
	add := func(n int32, cfg ParameterConfig) *Parameter {
		p, err := tr.AddParameter(tr.Root(), n, "p", cfg)
		require.NoError(t, err)
		return p
	}
	integer := add(1, ParameterConfig{Type: glow.ParameterInteger})
	fraction := add(2, ParameterConfig{Type: glow.ParameterReal, Maximum: glow.Ptr(glow.IntValue(10))})
	enum := add(3, ParameterConfig{Type: glow.ParameterEnum, Enumeration: []string{"a", "b"}})
	octets := add(4, ParameterConfig{Type: glow.ParameterOctets})
	trigger := add(5, ParameterConfig{Type: glow.ParameterTrigger})
	boolean := add(6, ParameterConfig{Type: glow.ParameterBoolean})

	cases := []struct {
		name string
		p    *Parameter
		in   glow.Value
		want glow.Value
		err  error
	}{
		{"integer", integer, glow.IntValue(5), glow.IntValue(5), nil},
		{"integer from real", integer, glow.RealValue(5), glow.Value{}, ErrTypeMismatch},
		{"real from integer", fraction, glow.IntValue(3), glow.RealValue(3), nil},
		{"real above maximum", fraction, glow.RealValue(10.5), glow.Value{}, ErrOutOfRange},
		{"enum index", enum, glow.IntValue(1), glow.IntValue(1), nil},
		{"enum out of range", enum, glow.IntValue(2), glow.Value{}, ErrOutOfRange},
		{"octets", octets, glow.OctetsValue([]byte{1}), glow.OctetsValue([]byte{1}), nil},
		{"trigger", trigger, glow.Value{}, glow.Value{}, nil},
		{"boolean from string", boolean, glow.StringValue("true"), glow.Value{}, ErrTypeMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.p.Coerce(tc.in)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %+v", got)
		})
	}
}

func TestParameterDefaults(t *testing.T) {
	tr := New(nil)
	p, err := tr.AddParameter(tr.Root(), 1, "level", ParameterConfig{
		Type:    glow.ParameterInteger,
		Minimum: glow.Ptr(glow.IntValue(3)),
	})
	require.NoError(t, err)
	assert.Equal(t, glow.IntValue(3), p.Value())
	assert.True(t, p.Online())
	assert.False(t, p.Writable())

	_, err = tr.AddParameter(tr.Root(), 2, "bad", ParameterConfig{Type: glow.ParameterEnum})
	require.ErrorIs(t, err, ErrInvalidParameter)
	_, err = tr.AddParameter(tr.Root(), 3, "bad", ParameterConfig{
		Type:    glow.ParameterInteger,
		Minimum: glow.Ptr(glow.IntValue(5)),
		Maximum: glow.Ptr(glow.IntValue(1)),
	})
	require.ErrorIs(t, err, ErrInvalidParameter)
	_, err = tr.AddParameter(tr.Root(), 4, "bad", ParameterConfig{Type: glow.ParameterString, Value: glow.IntValue(1)})
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestStreamDescriptorNeedsPackableType(t *testing.T) {
	tr := New(nil)
	desc := &glow.StreamDescriptor{Format: glow.StreamInt8}
	for i, typ := range []glow.ParameterType{glow.ParameterString, glow.ParameterOctets} {
		_, err := tr.AddParameter(tr.Root(), int32(i+1), "meter", ParameterConfig{
			Type:             typ,
			StreamIdentifier: glow.Ptr(int32(9)),
			StreamDescriptor: desc,
		})
		require.ErrorIs(t, err, ErrInvalidParameter, "%s", typ)
	}
	_, err := tr.AddParameter(tr.Root(), 3, "meter", ParameterConfig{
		Type:             glow.ParameterInteger,
		StreamIdentifier: glow.Ptr(int32(9)),
		StreamDescriptor: &glow.StreamDescriptor{Format: glow.StreamInt8, Offset: -1},
	})
	require.ErrorIs(t, err, ErrInvalidParameter)
	_, err = tr.AddParameter(tr.Root(), 4, "meter", ParameterConfig{
		Type:             glow.ParameterBoolean,
		StreamIdentifier: glow.Ptr(int32(9)),
		StreamDescriptor: desc,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, len(tr.Children(tr.Root())))
}

func TestSetValueNotifiesAndMarksDirty(t *testing.T) {
	sink := &recordingSink{}
	tr := buildSample(t, sink)
	p := paramAt(t, tr, glow.OID{1, 1})

	changed, err := p.SetValue(glow.IntValue(-12), false)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, DirtyValue, p.Dirty())

	changed, err = p.SetValue(glow.IntValue(-12), false)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = p.SetValue(glow.IntValue(-12), true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, sink.values, 2)
	assert.Equal(t, glow.OID{1, 1}, sink.values[1].path)

	_, err = p.SetValue(glow.StringValue("x"), true)
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.Equal(t, glow.IntValue(-12), p.Value())
	assert.Len(t, sink.values, 2)
}

func TestSetOnlineMarksProperties(t *testing.T) {
	tr := buildSample(t, nil)
	p := paramAt(t, tr, glow.OID{2, 7})
	p.SetOnline(false)
	assert.Equal(t, DirtyProperties, p.Dirty())
	assert.True(t, tr.IsDirty())
}

func TestFunctionInvoke(t *testing.T) {
	tr := buildSample(t, nil)
	var fn *Function
	tr.With(glow.OID{1, 5}, func(e Element) { fn = e.(*Function) })
	require.NotNil(t, fn)

	out, err := fn.Invoke([]glow.Value{glow.IntValue(2), glow.IntValue(3)})
	require.NoError(t, err)
	assert.Equal(t, []glow.Value{glow.IntValue(5)}, out)

	_, err = fn.Invoke([]glow.Value{glow.IntValue(2)})
	require.ErrorIs(t, err, ErrArgumentMismatch)
	_, err = fn.Invoke([]glow.Value{glow.IntValue(2), glow.StringValue("3")})
	require.ErrorIs(t, err, ErrArgumentMismatch)
}

func TestFunctionResultAndInvokerChecks(t *testing.T) {
	tr := New(nil)
	bad, err := tr.AddFunction(tr.Root(), 1, "bad", FunctionConfig{
		Result: []glow.TupleItem{{Type: glow.ParameterBoolean, Name: "ok"}},
		Invoke: func([]glow.Value) ([]glow.Value, error) {
			return []glow.Value{glow.IntValue(1)}, nil
		},
	})
	require.NoError(t, err)
	_, err = bad.Invoke(nil)
	require.ErrorIs(t, err, ErrResultMismatch)

	empty, err := tr.AddFunction(tr.Root(), 2, "empty", FunctionConfig{})
	require.NoError(t, err)
	_, err = empty.Invoke(nil)
	require.ErrorIs(t, err, ErrNoInvoker)
}
