package s101

import (
	"errors"
	"fmt"
)

const (
	MessageTypeEmBER byte = 0x0E
	Version          byte = 0x01
	DTDGlow          byte = 0x01

	// Glow DTD version 2.31 carried as app bytes (minor, major).
	GlowDTDMinor byte = 0x1F
	GlowDTDMajor byte = 0x02
)

// Command is the S101 message command byte.
type Command byte

const (
	CommandEmBER             Command = 0x00
	CommandKeepAliveRequest  Command = 0x01
	CommandKeepAliveResponse Command = 0x02
	CommandProviderState     Command = 0x03
)

func (c Command) String() string {
	switch c {
	case CommandEmBER:
		return "ember"
	case CommandKeepAliveRequest:
		return "keepalive.request"
	case CommandKeepAliveResponse:
		return "keepalive.response"
	case CommandProviderState:
		return "provider.state"
	default:
		return fmt.Sprintf("command(0x%02x)", byte(c))
	}
}

// Flags mark the position of an EmBER packet within a multi-packet message.
type Flags byte

const (
	FlagFirst  Flags = 0x80
	FlagLast   Flags = 0x40
	FlagEmpty  Flags = 0x20
	FlagSingle       = FlagFirst | FlagLast
)

var (
	ErrShortMessage       = errors.New("s101: short message header")
	ErrUnknownMessageType = errors.New("s101: unknown message type")
	ErrUnsupportedVersion = errors.New("s101: unsupported version")
	ErrShortAppBytes      = errors.New("s101: app bytes truncated")
)

// Message is one decoded frame payload: header plus the remaining body.
type Message struct {
	Slot     byte
	Type     byte
	Command  Command
	Version  byte
	Flags    Flags
	DTD      byte
	AppBytes []byte
	Payload  []byte
}

// EmBER builds an EmBER-payload message with the Glow DTD header.
func EmBER(flags Flags, payload []byte) Message {
	return Message{
		Type:     MessageTypeEmBER,
		Command:  CommandEmBER,
		Version:  Version,
		Flags:    flags,
		DTD:      DTDGlow,
		AppBytes: []byte{GlowDTDMinor, GlowDTDMajor},
		Payload:  payload,
	}
}

func KeepAliveRequest() Message {
	return Message{Type: MessageTypeEmBER, Command: CommandKeepAliveRequest, Version: Version}
}

func KeepAliveResponse() Message {
	return Message{Type: MessageTypeEmBER, Command: CommandKeepAliveResponse, Version: Version}
}

// EncodeMessage serializes the header and body. Flags, DTD and app bytes
// are only written for the EmBER command.
func EncodeMessage(m Message) []byte {
	out := make([]byte, 0, 8+len(m.AppBytes)+len(m.Payload))
	out = append(out, m.Slot, m.Type, byte(m.Command), m.Version)
	if m.Command == CommandEmBER {
		out = append(out, byte(m.Flags), m.DTD, byte(len(m.AppBytes)))
		out = append(out, m.AppBytes...)
	}
	return append(out, m.Payload...)
}

func DecodeMessage(b []byte) (Message, error) {
	if len(b) < 4 {
		return Message{}, ErrShortMessage
	}
	m := Message{
		Slot:    b[0],
		Type:    b[1],
		Command: Command(b[2]),
		Version: b[3],
	}
	if m.Type != MessageTypeEmBER {
		return Message{}, fmt.Errorf("%w: 0x%02x", ErrUnknownMessageType, m.Type)
	}
	if m.Version != Version {
		return Message{}, fmt.Errorf("%w: 0x%02x", ErrUnsupportedVersion, m.Version)
	}
	rest := b[4:]
	if m.Command == CommandEmBER {
		if len(rest) < 3 {
			return Message{}, ErrShortMessage
		}
		m.Flags = Flags(rest[0])
		m.DTD = rest[1]
		n := int(rest[2])
		rest = rest[3:]
		if len(rest) < n {
			return Message{}, ErrShortAppBytes
		}
		if n > 0 {
			m.AppBytes = append([]byte(nil), rest[:n]...)
		}
		rest = rest[n:]
	}
	if len(rest) > 0 {
		m.Payload = append([]byte(nil), rest...)
	}
	return m, nil
}

// EncodeFrame is EncodeMessage followed by frame encoding.
func EncodeFrame(m Message) []byte {
	return Encode(EncodeMessage(m))
}
