package provider

import (
	"github.com/danmuck/emberctl/internal/observability"
	"github.com/danmuck/emberctl/internal/protocol/glow"
	"github.com/danmuck/emberctl/internal/protocol/s101"
	"github.com/danmuck/emberctl/internal/tree"
)

// receive handles one decoded S101 frame from sess.
func (p *Provider) receive(sess *session, payload []byte) {
	msg, err := s101.DecodeMessage(payload)
	if err != nil {
		observability.RecordDecodeError("s101")
		p.log.Debug().Err(err).Str("session", sess.id).Msg("provider.receive bad message header")
		return
	}
	switch msg.Command {
	case s101.CommandKeepAliveRequest:
		p.deliver(sess, s101.EncodeFrame(s101.KeepAliveResponse()))
	case s101.CommandKeepAliveResponse:
		sess.keepAlives++
	case s101.CommandProviderState:
	case s101.CommandEmBER:
		body, complete := sess.reassembler.Push(msg)
		if !complete || len(body) == 0 {
			return
		}
		root, err := glow.Decode(body)
		if err != nil {
			observability.RecordDecodeError("glow")
			p.log.Warn().Err(err).Str("session", sess.id).Int("bytes", len(body)).Msg("provider.receive undecodable message")
			return
		}
		sess.requests++
		p.dispatch(sess, root)
	default:
		p.log.Debug().Str("session", sess.id).Stringer("command", msg.Command).Msg("provider.receive unknown command")
	}
}

// dispatch walks root on behalf of sess, replies to sess, then broadcasts
// the resulting changes.
func (p *Provider) dispatch(sess *session, root *glow.Root) {
	d := &dispatcher{p: p, sess: sess}
	p.current = sess
	glow.NewWalker(d).Walk(root)
	p.current = nil
	if len(d.replies) > 0 {
		p.reply(sess, &glow.Root{Elements: d.replies})
	}
	p.flush(sess)
}

func (p *Provider) reply(sess *session, root *glow.Root) {
	body, err := glow.Encode(root)
	if err != nil {
		p.log.Error().Err(err).Str("session", sess.id).Msg("provider.reply encode")
		return
	}
	p.deliver(sess, p.encode(body))
}

// dispatcher is the walker handler for one request message.
type dispatcher struct {
	glow.NopHandler
	p       *Provider
	sess    *session
	replies []glow.Container
}

func (d *dispatcher) HandleCommand(cmd *glow.Command, loc glow.Location) {
	observability.RecordRequest(cmd.Number.String())
	ok := d.p.tree.With(loc.Path, func(e tree.Element) {
		switch cmd.Number {
		case glow.CommandGetDirectory:
			d.replies = append(d.replies, d.p.directory(e, cmd.FieldMask, loc.Qualified)...)
		case glow.CommandSubscribe, glow.CommandUnsubscribe:
			d.subscription(e, cmd.Number == glow.CommandSubscribe)
		case glow.CommandInvoke:
			if fn, ok := e.(*tree.Function); ok {
				if res := d.p.invoke(fn, cmd.Invocation); res != nil {
					d.replies = append(d.replies, res)
				}
			}
		}
	})
	if !ok {
		d.p.log.Debug().Str("path", loc.Path.String()).Stringer("command", cmd.Number).Msg("provider.dispatch unresolved path")
	}
}

func (d *dispatcher) subscription(e tree.Element, subscribe bool) {
	param, ok := e.(*tree.Parameter)
	if !ok || !d.p.streams.Registered(param) {
		return
	}
	var err error
	if subscribe {
		_, err = d.p.streams.Subscribe(param, d.sess.serial)
	} else {
		_, err = d.p.streams.Unsubscribe(param, d.sess.serial)
	}
	if err != nil {
		d.p.log.Debug().Err(err).Str("session", d.sess.id).Msg("provider.dispatch subscription")
	}
}

// HandleParameter applies a value write. Read-only parameters and values that
// do not coerce to the parameter type are ignored.
func (d *dispatcher) HandleParameter(gp *glow.Parameter, loc glow.Location) {
	if gp.Contents == nil || gp.Contents.Value == nil {
		return
	}
	observability.RecordRequest("setValue")
	value := *gp.Contents.Value
	ok := d.p.tree.With(loc.Path, func(e tree.Element) {
		param, ok := e.(*tree.Parameter)
		if !ok || !param.Writable() {
			return
		}
		if _, err := param.SetValue(value, true); err != nil {
			d.p.log.Debug().Err(err).Str("path", loc.Path.String()).Msg("provider.dispatch rejected value")
		}
	})
	if !ok {
		d.p.log.Debug().Str("path", loc.Path.String()).Msg("provider.dispatch unresolved parameter")
	}
}

// HandleMatrix applies each requested connection.
func (d *dispatcher) HandleMatrix(gm *glow.Matrix, loc glow.Location) {
	if len(gm.Connections) == 0 {
		return
	}
	observability.RecordRequest("connect")
	ok := d.p.tree.With(loc.Path, func(e tree.Element) {
		m, ok := e.(*tree.Matrix)
		if !ok {
			return
		}
		for _, conn := range gm.Connections {
			if _, err := d.p.tree.Connect(m, conn.Target, conn.Sources, conn.Operation, d.sess); err != nil {
				d.p.log.Debug().Err(err).Int32("target", conn.Target).Msg("provider.dispatch rejected connect")
			}
		}
	})
	if !ok {
		d.p.log.Debug().Str("path", loc.Path.String()).Msg("provider.dispatch unresolved matrix")
	}
}

// invoke runs fn and returns the result to send, or nil when the caller
// asked for none.
func (p *Provider) invoke(fn *tree.Function, inv *glow.Invocation) *glow.InvocationResult {
	id := glow.InvocationNone
	var args []glow.Value
	if inv != nil {
		id = inv.ID
		args = inv.Arguments
	}
	result, err := fn.Invoke(args)
	if err != nil {
		p.log.Debug().Err(err).Int32("invocation", id).Msg("provider.invoke failed")
	}
	if id < 0 {
		return nil
	}
	return &glow.InvocationResult{InvocationID: id, Success: err == nil, Result: result}
}
