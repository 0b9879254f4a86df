package stream

import (
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/emberctl/internal/protocol/glow"
	"github.com/danmuck/emberctl/internal/tree"
)

type fixture struct {
	tree   *tree.Tree
	level  *tree.Parameter
	left   *tree.Parameter
	right  *tree.Parameter
	static *tree.Parameter
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	tr := tree.New(nil)
	meters, err := tr.AddNode(tr.Root(), 1, "meters", "")
	require.NoError(t, err)
	add := func(n int32, id string, cfg tree.ParameterConfig) *tree.Parameter {
		p, err := tr.AddParameter(meters, n, id, cfg)
		require.NoError(t, err)
		return p
	}
	f := fixture{tree: tr}
	f.level = add(1, "level", tree.ParameterConfig{
		Type:             glow.ParameterInteger,
		Value:            glow.IntValue(-20),
		Minimum:          glow.Ptr(glow.IntValue(-128)),
		StreamIdentifier: glow.Ptr(int32(1)),
	})
	f.left = add(2, "left", tree.ParameterConfig{
		Type:             glow.ParameterReal,
		Value:            glow.RealValue(0.5),
		StreamIdentifier: glow.Ptr(int32(2)),
		StreamDescriptor: &glow.StreamDescriptor{Format: glow.StreamFloat32LE, Offset: 0},
	})
	f.right = add(3, "right", tree.ParameterConfig{
		Type:             glow.ParameterInteger,
		Value:            glow.IntValue(-3),
		Minimum:          glow.Ptr(glow.IntValue(-128)),
		StreamIdentifier: glow.Ptr(int32(2)),
		StreamDescriptor: &glow.StreamDescriptor{Format: glow.StreamInt16BE, Offset: 4},
	})
	f.static = add(4, "static", tree.ParameterConfig{Type: glow.ParameterInteger})
	return f
}

func TestRegisterRequiresStreamIdentifier(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry()

	_, err := r.Register(f.static)
	require.ErrorIs(t, err, ErrNotStreamed)

	h, err := r.Register(f.level)
	require.NoError(t, err)
	_, err = r.Register(f.level)
	require.ErrorIs(t, err, ErrRegistered)

	h.Unregister()
	h.Unregister()
	assert.False(t, r.Registered(f.level))
	_, err = r.Subscribe(f.level, 1)
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegisterTree(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry()
	hs, err := r.RegisterTree(f.tree)
	require.NoError(t, err)
	assert.Len(t, hs, 3)
	assert.Equal(t, 3, r.Len())
	assert.False(t, r.Registered(f.static))
}

func TestSubscribeUnsubscribeDrop(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry()
	_, err := r.RegisterTree(f.tree)
	require.NoError(t, err)

	added, err := r.Subscribe(f.level, 7)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = r.Subscribe(f.level, 7)
	require.NoError(t, err)
	assert.False(t, added)
	_, err = r.Subscribe(f.left, 7)
	require.NoError(t, err)
	_, err = r.Subscribe(f.left, 9)
	require.NoError(t, err)

	removed, err := r.Unsubscribe(f.left, 9)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = r.Unsubscribe(f.left, 9)
	require.NoError(t, err)
	assert.False(t, removed)

	r.Drop(7)
	assert.Empty(t, r.Subscribers(f.level))
	assert.Empty(t, r.Subscribers(f.left))
}

func TestCollectPacksSharedStreams(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry()
	_, err := r.RegisterTree(f.tree)
	require.NoError(t, err)

	_, err = r.Subscribe(f.level, 1)
	require.NoError(t, err)
	_, err = r.Subscribe(f.left, 1)
	require.NoError(t, err)
	_, err = r.Subscribe(f.right, 2)
	require.NoError(t, err)

	out, err := r.Collect()
	require.NoError(t, err)
	require.Len(t, out, 2)

	first := out[1]
	require.Len(t, first, 2)
	assert.Equal(t, int32(1), first[0].Identifier)
	assert.Equal(t, glow.IntValue(-20), first[0].Value)
	assert.Equal(t, int32(2), first[1].Identifier)
	assert.Equal(t, glow.ValueOctets, first[1].Value.Type)
	assert.Len(t, first[1].Value.Octets, 6)

	second := out[2]
	require.Len(t, second, 1)
	assert.Equal(t, first[1].Value.Octets, second[0].Value.Octets)

	left, err := Unpack(second[0].Value.Octets, glow.StreamDescriptor{Format: glow.StreamFloat32LE})
	require.NoError(t, err)
	assert.Equal(t, glow.RealValue(0.5), left)
	right, err := Unpack(second[0].Value.Octets, glow.StreamDescriptor{Format: glow.StreamInt16BE, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, glow.IntValue(-3), right)
}

func TestCollectSkipsUnsubscribed(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry()
	_, err := r.RegisterTree(f.tree)
	require.NoError(t, err)
	out, err := r.Collect()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRegisterRejectsUnpackableStreams(t *testing.T) {
	tr := tree.New(nil)
	add := func(n int32, cfg tree.ParameterConfig) *tree.Parameter {
		p, err := tr.AddParameter(tr.Root(), n, "p", cfg)
		require.NoError(t, err)
		return p
	}
	plain := add(1, tree.ParameterConfig{Type: glow.ParameterInteger, StreamIdentifier: glow.Ptr(int32(5))})
	packed := add(2, tree.ParameterConfig{
		Type:             glow.ParameterInteger,
		StreamIdentifier: glow.Ptr(int32(5)),
		StreamDescriptor: &glow.StreamDescriptor{Format: glow.StreamInt8},
	})
	badFormat := add(3, tree.ParameterConfig{
		Type:             glow.ParameterReal,
		StreamIdentifier: glow.Ptr(int32(6)),
		StreamDescriptor: &glow.StreamDescriptor{Format: glow.StreamFormat(99)},
	})

	r := NewRegistry()
	_, err := r.Register(plain)
	require.NoError(t, err)
	_, err = r.Register(packed)
	require.ErrorIs(t, err, ErrInvalidDescriptor)
	_, err = r.Register(badFormat)
	require.ErrorIs(t, err, ErrInvalidDescriptor)
	assert.Equal(t, 1, r.Len())

	_, err = NewRegistry().RegisterTree(tr)
	require.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestCollectSkipsBrokenStreamAndDeliversRest(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry()
	_, err := r.RegisterTree(f.tree)
	require.NoError(t, err)

	broken, err := f.tree.AddParameter(f.tree.Root(), 9, "broken", tree.ParameterConfig{
		Type:             glow.ParameterInteger,
		StreamIdentifier: glow.Ptr(int32(9)),
		StreamDescriptor: &glow.StreamDescriptor{Format: glow.StreamFormat(99)},
	})
	require.NoError(t, err)
	r.entries[broken.ID()] = &entry{param: broken, streamID: 9, subscribers: roaring.New()}

	_, err = r.Subscribe(f.level, 1)
	require.NoError(t, err)
	_, err = r.Subscribe(broken, 1)
	require.NoError(t, err)
	_, err = r.Subscribe(broken, 2)
	require.NoError(t, err)

	out, err := r.Collect()
	require.ErrorIs(t, err, ErrInvalidDescriptor)
	assert.Contains(t, err.Error(), "stream 9")
	assert.Equal(t, []glow.StreamEntry{{Identifier: 1, Value: glow.IntValue(-20)}}, out[1])
	assert.NotContains(t, out, uint32(2))
}
