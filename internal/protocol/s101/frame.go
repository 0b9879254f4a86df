package s101

const (
	BOF     byte = 0xFE
	EOF     byte = 0xFF
	CE      byte = 0xFD
	XOR     byte = 0x20
	Invalid byte = 0xF8
)

// Limits constrains decoder memory use.
type Limits struct {
	MaxFrameBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: 64 * 1024}
}

// Encode wraps payload in one escaped, CRC-protected frame.
func Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+len(payload)/8+6)
	out = append(out, BOF)
	crc := crcInitial
	for _, b := range payload {
		crc = crcUpdate(crc, b)
		out = appendEscaped(out, b)
	}
	crc = ^crc
	out = appendEscaped(out, byte(crc))
	out = appendEscaped(out, byte(crc>>8))
	return append(out, EOF)
}

func appendEscaped(out []byte, b byte) []byte {
	if b >= Invalid {
		return append(out, CE, b^XOR)
	}
	return append(out, b)
}

// Decoder is a resettable byte-at-a-time frame state machine.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	limits  Limits
	buf     []byte
	crc     uint16
	framing bool
	escape  bool
	dropped uint64
	decoded uint64
}

func NewDecoder(limits Limits) *Decoder {
	if limits.MaxFrameBytes <= 0 {
		limits = DefaultLimits()
	}
	return &Decoder{limits: limits}
}

// Decode consumes p and invokes fn once per valid frame with the payload
// minus its trailing CRC bytes. fn receives a copy it may retain.
func (d *Decoder) Decode(p []byte, fn func(payload []byte)) {
	for _, b := range p {
		d.step(b, fn)
	}
}

func (d *Decoder) step(b byte, fn func([]byte)) {
	if b == BOF {
		if d.framing && len(d.buf) > 0 {
			d.dropped++
		}
		d.begin()
		return
	}
	if !d.framing {
		return
	}
	switch {
	case b == EOF:
		d.finish(fn)
	case b == CE:
		d.escape = true
	default:
		if d.escape {
			b ^= XOR
			d.escape = false
		}
		if len(d.buf) >= d.limits.MaxFrameBytes {
			d.dropped++
			d.Reset()
			return
		}
		d.buf = append(d.buf, b)
		d.crc = crcUpdate(d.crc, b)
	}
}

func (d *Decoder) begin() {
	d.buf = d.buf[:0]
	d.crc = crcInitial
	d.framing = true
	d.escape = false
}

func (d *Decoder) finish(fn func([]byte)) {
	defer d.Reset()
	if len(d.buf) < 2 || d.crc != crcGood {
		d.dropped++
		return
	}
	d.decoded++
	payload := make([]byte, len(d.buf)-2)
	copy(payload, d.buf)
	if fn != nil {
		fn(payload)
	}
}

// Reset discards any partial frame.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.crc = crcInitial
	d.framing = false
	d.escape = false
}

// Dropped reports frames discarded for CRC mismatch, truncation, or size.
func (d *Decoder) Dropped() uint64 {
	return d.dropped
}

// Decoded reports frames delivered to the callback.
func (d *Decoder) Decoded() uint64 {
	return d.decoded
}
