package daemon

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/emberctl/internal/protocol/glow"
	"github.com/danmuck/emberctl/internal/protocol/s101"
	"github.com/danmuck/emberctl/internal/testutil/testlog"
	"github.com/danmuck/emberctl/internal/tree"
)

// consumer is a minimal Ember+ consumer speaking S101 over TCP.
type consumer struct {
	t   *testing.T
	nc  net.Conn
	dec *s101.Decoder
	asm *s101.Reassembler
	buf []*glow.Root
}

func dialConsumer(t *testing.T, addr string) *consumer {
	t.Helper()
	nc, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nc.Close() })
	return &consumer{t: t, nc: nc, dec: s101.NewDecoder(s101.DefaultLimits()), asm: s101.NewReassembler(0)}
}

func (c *consumer) send(elements ...glow.Container) {
	c.t.Helper()
	body, err := glow.Encode(&glow.Root{Elements: elements})
	require.NoError(c.t, err)
	_, err = c.nc.Write(s101.EncodeFrames(body, s101.DefaultMaxPacket))
	require.NoError(c.t, err)
}

// next returns the next Glow root, skipping keep-alives.
func (c *consumer) next() *glow.Root {
	c.t.Helper()
	require.NoError(c.t, c.nc.SetReadDeadline(time.Now().Add(3*time.Second)))
	buf := make([]byte, 4096)
	for len(c.buf) == 0 {
		n, err := c.nc.Read(buf)
		require.NoError(c.t, err)
		c.dec.Decode(buf[:n], func(payload []byte) {
			msg, err := s101.DecodeMessage(payload)
			require.NoError(c.t, err)
			if msg.Command != s101.CommandEmBER {
				return
			}
			if body, ok := c.asm.Push(msg); ok {
				root, err := glow.Decode(body)
				require.NoError(c.t, err)
				c.buf = append(c.buf, root)
			}
		})
	}
	root := c.buf[0]
	c.buf = c.buf[1:]
	return root
}

func startService(t *testing.T) (*Service, context.CancelFunc, <-chan error) {
	t.Helper()
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Transport.ListenAddr = "127.0.0.1:0"
	cfg.Admin.ListenAddr = ""
	svc, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	select {
	case <-svc.Server().Ready():
	case err := <-done:
		t.Fatalf("service exited early: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("service not ready")
	}
	t.Cleanup(cancel)
	return svc, cancel, done
}

func waitConns(t *testing.T, svc *Service, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		n := 0
		err := svc.Server().Do(context.Background(), func() { n = svc.Server().Len() })
		return err == nil && n == want
	}, 3*time.Second, 10*time.Millisecond)
}

func TestServiceEndToEnd(t *testing.T) {
	svc, cancel, done := startService(t)
	addr := svc.Server().Addr().String()
	a := dialConsumer(t, addr)
	b := dialConsumer(t, addr)
	waitConns(t, svc, 2)

	a.send(&glow.Command{Number: glow.CommandGetDirectory, FieldMask: glow.FieldAll})
	root := a.next()
	require.Len(t, root.Elements, 2)
	device := root.Elements[0].(*glow.Node)
	assert.Equal(t, "device", *device.Contents.Identifier)

	a.send(&glow.Parameter{Path: glow.OID{1, 1}, Contents: &glow.ParameterContents{Value: glow.Ptr(glow.IntValue(4))}})
	for _, c := range []*consumer{a, b} {
		got := c.next().Elements[0].(*glow.Parameter)
		assert.Equal(t, glow.OID{1, 1}, got.Path)
		assert.Equal(t, glow.IntValue(4), *got.Contents.Value)
	}

	require.NoError(t, svc.Update(context.Background(), func(tr *tree.Tree) {
		tr.With(glow.OID{1, 2}, func(e tree.Element) { e.(*tree.Parameter).SetDescription("main output") })
	}))
	got := b.next().Elements[0].(*glow.Parameter)
	assert.Equal(t, glow.OID{1, 2}, got.Path)
	assert.Equal(t, "main output", *got.Contents.Description)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.Zero(t, svc.Provider().Streams().Len(), "stream registrations released on stop")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Provider.ResponseStyle = "flat"
	_, err := New(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.TreeFile = "does-not-exist.toml"
	_, err = New(cfg)
	require.Error(t, err)
}
