// Package transport accepts consumer connections and runs the reactor that
// owns every connection's protocol state.
//
// Ownership boundary:
// - TCP accept loop and per-connection reader/writer goroutines
// - the single reactor goroutine that decodes S101 frames and calls Handler
// - bounded outbound queues; peers that fall behind are disconnected
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/danmuck/emberctl/internal/logging"
	"github.com/danmuck/emberctl/internal/observability"
	"github.com/danmuck/emberctl/internal/protocol/s101"
)

var (
	ErrClosed  = errors.New("transport: server closed")
	ErrStarted = errors.New("transport: server already started")
)

// Handler receives reactor events. Every method runs on the reactor
// goroutine, so implementations may use Server.Send and Server.Broadcast
// directly but must not call Server.Do.
type Handler interface {
	Connected(c *Conn)
	Frame(c *Conn, payload []byte)
	Disconnected(c *Conn)
	Tick(now time.Time)
}

const (
	reasonClosed   = "closed"
	reasonError    = "error"
	reasonSlow     = "slow"
	reasonShutdown = "shutdown"
)

type eventKind uint8

const (
	eventOpen eventKind = iota + 1
	eventData
	eventClose
	eventCall
)

type event struct {
	kind eventKind
	nc   net.Conn
	conn *Conn
	data []byte
	err  error
	fn   func()
	done chan struct{}
}

// Server owns the connection table. All methods other than Serve,
// ListenAndServe, Do, Ready and Addr must be called from the reactor.
type Server struct {
	cfg Config
	log zerolog.Logger

	events  chan event
	done    chan struct{}
	ready   chan struct{}
	started atomic.Bool
	addr    atomic.Value

	handler    Handler
	conns      map[string]*Conn
	nextSerial uint32
	wg         sync.WaitGroup
}

func NewServer(cfg Config) *Server {
	return &Server{
		cfg:    cfg.WithDefaults(),
		log:    logging.Component("transport"),
		events: make(chan event, 64),
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
		conns:  make(map[string]*Conn),
	}
}

// Ready is closed once the server is accepting connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

func (s *Server) Addr() net.Addr {
	addr, _ := s.addr.Load().(net.Addr)
	return addr
}

// ListenAndServe listens on cfg.ListenAddr, over TLS when configured, and
// calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, h Handler) error {
	tlsCfg, err := s.cfg.TLS.ServerConfig()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}
	return s.Serve(ctx, ln, h)
}

// Serve runs the reactor on ln until ctx is cancelled or accepting fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener, h Handler) error {
	if !s.started.CompareAndSwap(false, true) {
		_ = ln.Close()
		return ErrStarted
	}
	s.handler = h
	s.addr.Store(ln.Addr())
	s.log.Info().Str("addr", ln.Addr().String()).Bool("tls", s.cfg.TLS.Enabled).Msg("transport.Serve listening")

	acceptErr := make(chan error, 1)
	s.wg.Add(1)
	go s.acceptLoop(ctx, ln, acceptErr)
	close(s.ready)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err = <-acceptErr:
			break loop
		case now := <-ticker.C:
			s.handler.Tick(now)
		case ev := <-s.events:
			s.handle(ev)
		}
	}
	s.shutdown(ln)
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, errc chan<- error) {
	defer s.wg.Done()
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			errc <- err
			return
		}
		if !s.post(event{kind: eventOpen, nc: nc}) {
			_ = nc.Close()
			return
		}
	}
}

func (s *Server) shutdown(ln net.Listener) {
	_ = ln.Close()
	for _, c := range s.sorted() {
		s.remove(c, reasonShutdown)
	}
	close(s.done)
	s.wg.Wait()
drain:
	for {
		select {
		case ev := <-s.events:
			if ev.kind == eventOpen {
				_ = ev.nc.Close()
			}
		default:
			break drain
		}
	}
	s.log.Info().Msg("transport.Serve stopped")
}

// post hands ev to the reactor unless the reactor has stopped.
func (s *Server) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) handle(ev event) {
	switch ev.kind {
	case eventOpen:
		s.open(ev.nc)
	case eventData:
		s.receive(ev.conn, ev.data)
	case eventClose:
		reason := reasonClosed
		if ev.err != nil && !isEOF(ev.err) {
			reason = reasonError
			s.log.Debug().Err(ev.err).Str("conn", ev.conn.id).Msg("transport.conn io error")
		}
		s.remove(ev.conn, reason)
	case eventCall:
		ev.fn()
		close(ev.done)
	}
}

func (s *Server) open(nc net.Conn) {
	s.nextSerial++
	c := &Conn{
		id:      ulid.Make().String(),
		serial:  s.nextSerial,
		remote:  nc.RemoteAddr().String(),
		opened:  time.Now(),
		nc:      nc,
		out:     make(chan []byte, s.cfg.OutboundQueue),
		decoder: s101.NewDecoder(s.cfg.Limits),
	}
	s.conns[c.id] = c
	s.wg.Add(2)
	go s.readLoop(c)
	go s.writeLoop(c)
	observability.RecordConnected()
	s.log.Info().Str("conn", c.id).Str("remote", c.remote).Int("active", len(s.conns)).Msg("transport.conn connected")
	s.handler.Connected(c)
}

func (s *Server) receive(c *Conn, data []byte) {
	if c.closed {
		return
	}
	before := c.framesIn
	c.decoder.Decode(data, func(payload []byte) {
		c.framesIn++
		s.handler.Frame(c, payload)
	})
	observability.RecordFrames("in", int(c.framesIn-before), len(data))
	if dropped := c.decoder.Dropped(); dropped > c.reported {
		observability.RecordFrameDrops(dropped - c.reported)
		s.log.Debug().Str("conn", c.id).Uint64("dropped", dropped).Msg("transport.conn frames dropped")
		c.reported = dropped
	}
}

func (s *Server) remove(c *Conn, reason string) {
	if c.closed {
		return
	}
	c.closed = true
	delete(s.conns, c.id)
	close(c.out)
	if reason == reasonSlow || reason == reasonShutdown {
		_ = c.nc.Close()
	}
	observability.RecordDisconnected(reason)
	s.log.Info().Str("conn", c.id).Str("reason", reason).Int("active", len(s.conns)).Msg("transport.conn disconnected")
	s.handler.Disconnected(c)
}

func (s *Server) readLoop(c *Conn) {
	defer s.wg.Done()
	buf := make([]byte, s.cfg.ReadBuffer)
	for {
		if s.cfg.ReadTimeout > 0 {
			_ = c.nc.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		n, err := c.nc.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			if !s.post(event{kind: eventData, conn: c, data: data}) {
				return
			}
		}
		if err != nil {
			s.post(event{kind: eventClose, conn: c, err: err})
			return
		}
	}
}

func (s *Server) writeLoop(c *Conn) {
	defer s.wg.Done()
	defer c.nc.Close()
	for b := range c.out {
		_ = c.nc.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if _, err := c.nc.Write(b); err != nil {
			s.post(event{kind: eventClose, conn: c, err: err})
			return
		}
	}
}

// Send queues wire bytes for c. A peer whose queue is full is disconnected.
func (s *Server) Send(c *Conn, wire []byte) bool {
	if c == nil || c.closed {
		return false
	}
	select {
	case c.out <- wire:
		frames := bytes.Count(wire, []byte{s101.BOF})
		c.framesOut += uint64(frames)
		observability.RecordFrames("out", frames, len(wire))
		return true
	default:
		s.log.Warn().Str("conn", c.id).Int("queued", len(c.out)).Msg("transport.Send outbound queue full")
		s.remove(c, reasonSlow)
		return false
	}
}

// Broadcast sends wire to every connection except except and reports how
// many peers accepted it.
func (s *Server) Broadcast(wire []byte, except *Conn) int {
	sent := 0
	for _, c := range s.sorted() {
		if c == except {
			continue
		}
		if s.Send(c, wire) {
			sent++
		}
	}
	return sent
}

func (s *Server) Len() int {
	return len(s.conns)
}

// Conns reports connection state ordered by serial.
func (s *Server) Conns() []ConnInfo {
	conns := s.sorted()
	out := make([]ConnInfo, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.info())
	}
	return out
}

func (s *Server) sorted() []*Conn {
	out := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].serial < out[j].serial })
	return out
}

// Do runs fn on the reactor and waits for it to finish.
func (s *Server) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case s.events <- event{kind: eventCall, fn: fn, done: done}:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isEOF(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
