package s101

// DefaultMaxPacket bounds the Glow body carried by a single EmBER packet.
const DefaultMaxPacket = 1024

// Segment splits body into EmBER messages of at most maxPacket body bytes.
// An empty body yields one single-packet message flagged empty.
func Segment(body []byte, maxPacket int) []Message {
	if maxPacket <= 0 {
		maxPacket = DefaultMaxPacket
	}
	if len(body) == 0 {
		return []Message{EmBER(FlagSingle|FlagEmpty, nil)}
	}
	out := make([]Message, 0, (len(body)+maxPacket-1)/maxPacket)
	for off := 0; off < len(body); off += maxPacket {
		end := off + maxPacket
		if end > len(body) {
			end = len(body)
		}
		var flags Flags
		if off == 0 {
			flags |= FlagFirst
		}
		if end == len(body) {
			flags |= FlagLast
		}
		out = append(out, EmBER(flags, body[off:end]))
	}
	return out
}

// EncodeFrames segments body and returns the concatenated wire frames.
func EncodeFrames(body []byte, maxPacket int) []byte {
	var out []byte
	for _, m := range Segment(body, maxPacket) {
		out = append(out, EncodeFrame(m)...)
	}
	return out
}

// Reassembler joins EmBER packets into complete Glow bodies.
// A packet flagged first resets any partial message.
type Reassembler struct {
	maxBytes  int
	buf       []byte
	started   bool
	discarded uint64
}

func NewReassembler(maxBytes int) *Reassembler {
	if maxBytes <= 0 {
		maxBytes = 4 * 1024 * 1024
	}
	return &Reassembler{maxBytes: maxBytes}
}

// Push adds one packet and returns the complete body once the last packet
// has been seen.
func (r *Reassembler) Push(m Message) ([]byte, bool) {
	if m.Command != CommandEmBER {
		return nil, false
	}
	if m.Flags&FlagFirst != 0 {
		if r.started && len(r.buf) > 0 {
			r.discarded++
		}
		r.buf = r.buf[:0]
		r.started = true
	}
	if !r.started {
		r.discarded++
		return nil, false
	}
	if m.Flags&FlagEmpty == 0 {
		if len(r.buf)+len(m.Payload) > r.maxBytes {
			r.discarded++
			r.Reset()
			return nil, false
		}
		r.buf = append(r.buf, m.Payload...)
	}
	if m.Flags&FlagLast == 0 {
		return nil, false
	}
	r.started = false
	if len(r.buf) == 0 {
		return nil, false
	}
	out := make([]byte, len(r.buf))
	copy(out, r.buf)
	r.buf = r.buf[:0]
	return out, true
}

func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
	r.started = false
}

// Discarded reports partial messages thrown away.
func (r *Reassembler) Discarded() uint64 {
	return r.discarded
}
