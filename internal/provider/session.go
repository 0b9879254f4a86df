package provider

import (
	"time"

	"github.com/danmuck/emberctl/internal/protocol/s101"
	"github.com/danmuck/emberctl/internal/transport"
)

// session is the provider's protocol state for one transport connection.
// The transport owns the connection set; sessions only carry reassembly and
// request bookkeeping.
type session struct {
	conn        *transport.Conn
	id          string
	serial      uint32
	reassembler *s101.Reassembler
	opened      time.Time
	requests    uint64
	keepAlives  uint64
}
