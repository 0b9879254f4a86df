package transport

import (
	"time"

	"github.com/danmuck/emberctl/internal/protocol/s101"
)

// Config defines listener and per-connection defaults.
type Config struct {
	ListenAddr    string
	OutboundQueue int
	TickInterval  time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	ReadBuffer    int
	Limits        s101.Limits
	TLS           TLSConfig
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:    ":9000",
		OutboundQueue: 256,
		TickInterval:  100 * time.Millisecond,
		ReadTimeout:   0,
		WriteTimeout:  5 * time.Second,
		ReadBuffer:    4096,
		Limits:        s101.DefaultLimits(),
	}
}

// WithDefaults fills zero fields from DefaultConfig. A zero ReadTimeout
// stays zero and disables read deadlines.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.OutboundQueue <= 0 {
		c.OutboundQueue = def.OutboundQueue
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = def.ReadBuffer
	}
	if c.Limits.MaxFrameBytes <= 0 {
		c.Limits = def.Limits
	}
	return c
}
