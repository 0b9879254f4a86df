// Package provider answers consumer requests against the element tree and
// pushes tree changes back out.
//
// Ownership boundary:
// - per-connection sessions with their packet reassembly state
// - request dispatch (directory, parameter writes, matrix connects, invoke)
// - change collection and fan-out after every reactor event
// - keep-alive and stream delivery ticks
//
// Every method runs on the transport reactor.
package provider

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/emberctl/internal/logging"
	"github.com/danmuck/emberctl/internal/protocol/s101"
	"github.com/danmuck/emberctl/internal/stream"
	"github.com/danmuck/emberctl/internal/transport"
	"github.com/danmuck/emberctl/internal/tree"
)

const (
	StyleNested    = "nested"
	StyleQualified = "qualified"
)

var ErrInvalidConfig = errors.New("provider: invalid config")

// Config controls response shape and periodic work.
type Config struct {
	ResponseStyle     string
	EchoChanges       bool
	KeepAliveInterval time.Duration
	StreamInterval    time.Duration
	MaxPacket         int
	MaxMessageBytes   int
}

func DefaultConfig() Config {
	return Config{
		ResponseStyle:     StyleNested,
		EchoChanges:       true,
		KeepAliveInterval: 10 * time.Second,
		StreamInterval:    100 * time.Millisecond,
		MaxPacket:         s101.DefaultMaxPacket,
		MaxMessageBytes:   4 * 1024 * 1024,
	}
}

func (c Config) Validate() error {
	switch strings.TrimSpace(c.ResponseStyle) {
	case StyleNested, StyleQualified:
	default:
		return fmt.Errorf("%w: response_style %q", ErrInvalidConfig, c.ResponseStyle)
	}
	if c.KeepAliveInterval < 0 || c.StreamInterval < 0 {
		return fmt.Errorf("%w: negative interval", ErrInvalidConfig)
	}
	if c.MaxPacket < 0 || c.MaxMessageBytes < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidConfig)
	}
	return nil
}

// Sender is the transport surface the provider writes through.
type Sender interface {
	Send(c *transport.Conn, wire []byte) bool
	Broadcast(wire []byte, except *transport.Conn) int
}

// Provider implements transport.Handler and tree.NotificationSink.
type Provider struct {
	cfg     Config
	tree    *tree.Tree
	streams *stream.Registry
	out     Sender
	log     zerolog.Logger

	// held until Close
	registrations []*stream.Registration

	sessions map[string]*session
	bySerial map[uint32]*session

	// changes the tree cannot mark dirty, drained by flush
	connections []connectionChange
	crosspoints []crosspointChange
	current     *session

	lastKeepAlive time.Time
	lastStream    time.Time
}

// New wires the provider as t's sink and registers every streamed parameter.
func New(cfg Config, t *tree.Tree, out Sender) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Provider{
		cfg:      cfg,
		tree:     t,
		streams:  stream.NewRegistry(),
		out:      out,
		log:      logging.Component("provider"),
		sessions: make(map[string]*session),
		bySerial: make(map[uint32]*session),
	}
	regs, err := p.streams.RegisterTree(t)
	if err != nil {
		return nil, err
	}
	p.registrations = regs
	t.SetSink(p)
	return p, nil
}

// Close unregisters every streamed parameter, drops remaining sessions and
// detaches from the tree. Call it once the transport has stopped.
func (p *Provider) Close() {
	for _, h := range p.registrations {
		h.Unregister()
	}
	p.registrations = nil
	for id := range p.sessions {
		p.close(id)
	}
	p.tree.SetSink(nil)
}

func (p *Provider) Tree() *tree.Tree          { return p.tree }
func (p *Provider) Streams() *stream.Registry { return p.streams }
func (p *Provider) Sessions() int             { return len(p.sessions) }
func (p *Provider) qualifiedResponses() bool  { return p.cfg.ResponseStyle == StyleQualified }
func (p *Provider) encode(body []byte) []byte { return s101.EncodeFrames(body, p.cfg.MaxPacket) }

func (p *Provider) Connected(c *transport.Conn) {
	p.open(c, c.ID(), c.Serial())
}

func (p *Provider) Frame(c *transport.Conn, payload []byte) {
	sess := p.sessions[c.ID()]
	if sess == nil {
		return
	}
	p.receive(sess, payload)
}

func (p *Provider) Disconnected(c *transport.Conn) {
	p.close(c.ID())
}

// Tick sends keep-alive requests and stream collections when due, and
// flushes changes made outside a request.
func (p *Provider) Tick(now time.Time) {
	if p.cfg.KeepAliveInterval > 0 && now.Sub(p.lastKeepAlive) >= p.cfg.KeepAliveInterval {
		p.lastKeepAlive = now
		p.broadcast(s101.EncodeFrame(s101.KeepAliveRequest()), nil, "keepalive")
	}
	if p.cfg.StreamInterval > 0 && now.Sub(p.lastStream) >= p.cfg.StreamInterval {
		p.lastStream = now
		p.deliverStreams()
	}
	p.flush(nil)
}

// Update runs fn against the tree and broadcasts whatever it changed. It is
// the entry point for local changes marshalled onto the reactor.
func (p *Provider) Update(fn func(t *tree.Tree)) {
	fn(p.tree)
	p.flush(nil)
}

func (p *Provider) open(c *transport.Conn, id string, serial uint32) *session {
	sess := &session{
		conn:        c,
		id:          id,
		serial:      serial,
		reassembler: s101.NewReassembler(p.cfg.MaxMessageBytes),
		opened:      time.Now(),
	}
	p.sessions[id] = sess
	p.bySerial[serial] = sess
	p.log.Debug().Str("session", id).Uint32("serial", serial).Msg("provider.session opened")
	return sess
}

func (p *Provider) close(id string) {
	sess := p.sessions[id]
	if sess == nil {
		return
	}
	delete(p.sessions, id)
	delete(p.bySerial, sess.serial)
	p.streams.Drop(sess.serial)
	sess.reassembler.Reset()
	p.log.Debug().
		Str("session", id).
		Uint64("requests", sess.requests).
		Uint64("discarded", sess.reassembler.Discarded()).
		Msg("provider.session closed")
}
