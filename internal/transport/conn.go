package transport

import (
	"net"
	"time"

	"github.com/danmuck/emberctl/internal/protocol/s101"
)

// Conn is one connected consumer. Its fields are owned by the reactor; only
// the reader and writer goroutines touch the underlying net.Conn.
type Conn struct {
	id      string
	serial  uint32
	remote  string
	opened  time.Time
	nc      net.Conn
	out     chan []byte
	decoder *s101.Decoder

	reported  uint64
	framesIn  uint64
	framesOut uint64
	closed    bool
}

// ID is the connection's ULID.
func (c *Conn) ID() string { return c.id }

// Serial is a small per-server number suitable for bitmap membership.
func (c *Conn) Serial() uint32 { return c.serial }

func (c *Conn) Remote() string { return c.remote }
func (c *Conn) Closed() bool   { return c.closed }

// ConnInfo is a copy of connection state for reporting.
type ConnInfo struct {
	ID        string    `json:"id"`
	Serial    uint32    `json:"serial"`
	Remote    string    `json:"remote"`
	Opened    time.Time `json:"opened"`
	FramesIn  uint64    `json:"frames_in"`
	FramesOut uint64    `json:"frames_out"`
	Dropped   uint64    `json:"dropped"`
	Queued    int       `json:"queued"`
}

func (c *Conn) info() ConnInfo {
	return ConnInfo{
		ID:        c.id,
		Serial:    c.serial,
		Remote:    c.remote,
		Opened:    c.opened,
		FramesIn:  c.framesIn,
		FramesOut: c.framesOut,
		Dropped:   c.decoder.Dropped(),
		Queued:    len(c.out),
	}
}
