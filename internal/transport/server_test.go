package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/emberctl/internal/protocol/s101"
	"github.com/danmuck/emberctl/internal/testutil/testlog"
)

// echoHandler answers keep-alive requests and rebroadcasts EmBER payloads to
// every other peer.
type echoHandler struct {
	srv          *Server
	connected    chan string
	disconnected chan string
	frames       chan []byte
}

func newEchoHandler() *echoHandler {
	return &echoHandler{
		connected:    make(chan string, 8),
		disconnected: make(chan string, 8),
		frames:       make(chan []byte, 8),
	}
}

func (h *echoHandler) Connected(c *Conn) { h.connected <- c.ID() }

func (h *echoHandler) Disconnected(c *Conn) { h.disconnected <- c.ID() }

func (h *echoHandler) Tick(time.Time) {}

func (h *echoHandler) Frame(c *Conn, payload []byte) {
	h.frames <- payload
	msg, err := s101.DecodeMessage(payload)
	if err != nil {
		return
	}
	switch msg.Command {
	case s101.CommandKeepAliveRequest:
		h.srv.Send(c, s101.EncodeFrame(s101.KeepAliveResponse()))
	case s101.CommandEmBER:
		h.srv.Broadcast(s101.EncodeFrame(msg), c)
	}
}

func startServer(t *testing.T, cfg Config) (*Server, *echoHandler, func()) {
	t.Helper()
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(cfg)
	h := newEchoHandler()
	h.srv = srv
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, ln, h) }()
	<-srv.Ready()
	return srv, h, func() {
		cancel()
		select {
		case err := <-errc:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatalf("server did not stop")
		}
	}
}

func dial(t *testing.T, srv *Server, h *echoHandler) (net.Conn, string) {
	t.Helper()
	nc, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = nc.Close() })
	select {
	case id := <-h.connected:
		return nc, id
	case <-time.After(2 * time.Second):
		t.Fatalf("connection not registered")
		return nil, ""
	}
}

func readMessage(t *testing.T, nc net.Conn) s101.Message {
	t.Helper()
	dec := s101.NewDecoder(s101.DefaultLimits())
	buf := make([]byte, 1024)
	var got []byte
	require.NoError(t, nc.SetReadDeadline(time.Now().Add(2*time.Second)))
	for got == nil {
		n, err := nc.Read(buf)
		require.NoError(t, err)
		dec.Decode(buf[:n], func(p []byte) {
			if got == nil {
				got = p
			}
		})
	}
	msg, err := s101.DecodeMessage(got)
	require.NoError(t, err)
	return msg
}

func TestKeepAliveOverTCP(t *testing.T) {
	srv, h, stop := startServer(t, Config{})
	defer stop()
	nc, _ := dial(t, srv, h)

	_, err := nc.Write(s101.EncodeFrame(s101.KeepAliveRequest()))
	require.NoError(t, err)
	msg := readMessage(t, nc)
	assert.Equal(t, s101.CommandKeepAliveResponse, msg.Command)
}

func TestBroadcastExcludesOrigin(t *testing.T) {
	srv, h, stop := startServer(t, Config{})
	defer stop()
	a, _ := dial(t, srv, h)
	b, _ := dial(t, srv, h)
	c, _ := dial(t, srv, h)

	sent := s101.EmBER(s101.FlagSingle, []byte{1, 2, 0xFE})
	_, err := a.Write(s101.EncodeFrame(sent))
	require.NoError(t, err)

	for _, nc := range []net.Conn{b, c} {
		got := readMessage(t, nc)
		assert.Equal(t, sent.Payload, got.Payload)
	}
	require.NoError(t, a.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, err = a.Read(make([]byte, 16))
	require.Error(t, err)
}

func TestCorruptFrameDroppedAndCounted(t *testing.T) {
	srv, h, stop := startServer(t, Config{})
	defer stop()
	nc, id := dial(t, srv, h)

	bad := s101.EncodeFrame(s101.KeepAliveRequest())
	bad[2] ^= 0x01
	_, err := nc.Write(append(bad, s101.EncodeFrame(s101.KeepAliveRequest())...))
	require.NoError(t, err)
	assert.Equal(t, s101.CommandKeepAliveResponse, readMessage(t, nc).Command)

	var infos []ConnInfo
	require.NoError(t, srv.Do(context.Background(), func() { infos = srv.Conns() }))
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)
	assert.Equal(t, uint64(1), infos[0].Dropped)
	assert.Equal(t, uint64(1), infos[0].FramesIn)
}

func TestDisconnectRemovesPeer(t *testing.T) {
	srv, h, stop := startServer(t, Config{})
	defer stop()
	nc, id := dial(t, srv, h)
	require.NoError(t, nc.Close())

	select {
	case got := <-h.disconnected:
		assert.Equal(t, id, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("disconnect not observed")
	}
	var n int
	require.NoError(t, srv.Do(context.Background(), func() { n = srv.Len() }))
	assert.Zero(t, n)
}

func TestDoAfterShutdown(t *testing.T) {
	srv, h, stop := startServer(t, Config{})
	_, id := dial(t, srv, h)
	stop()
	assert.Equal(t, id, <-h.disconnected)
	require.ErrorIs(t, srv.Do(context.Background(), func() {}), ErrClosed)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.ErrorIs(t, srv.Serve(context.Background(), ln, h), ErrStarted)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{ReadTimeout: time.Second}.WithDefaults()
	def := DefaultConfig()
	assert.Equal(t, def.OutboundQueue, cfg.OutboundQueue)
	assert.Equal(t, def.TickInterval, cfg.TickInterval)
	assert.Equal(t, time.Second, cfg.ReadTimeout)
	assert.Equal(t, def.Limits, cfg.Limits)
}
