package provider

import (
	"sort"

	"github.com/danmuck/emberctl/internal/observability"
	"github.com/danmuck/emberctl/internal/protocol/glow"
	"github.com/danmuck/emberctl/internal/transport"
	"github.com/danmuck/emberctl/internal/tree"
)

type connectionChange struct {
	matrix *tree.Matrix
	target int32
	origin *session
}

type crosspointChange struct {
	path   glow.OID
	value  glow.Value
	origin *session
}

// MatrixConnectionChanged queues target for the next flush. callerState is
// the requesting session, or nil for local changes.
func (p *Provider) MatrixConnectionChanged(m *tree.Matrix, target int32, callerState any) {
	origin, _ := callerState.(*session)
	p.connections = append(p.connections, connectionChange{matrix: m, target: target, origin: origin})
}

// ParameterValueChanged queues crosspoint gains, which the tree cannot mark
// dirty. Stored parameters are picked up by dirty collection.
func (p *Provider) ParameterValueChanged(path glow.OID, v glow.Value) {
	if p.tree.Stored(path) {
		return
	}
	p.crosspoints = append(p.crosspoints, crosspointChange{path: path.Clone(), value: v, origin: p.current})
}

// flush encodes every pending change as qualified containers and sends them
// to all sessions. With echo disabled, changes are grouped by the session
// that caused them and withheld from it.
func (p *Provider) flush(origin *session) {
	if !p.tree.IsDirty() && len(p.connections) == 0 && len(p.crosspoints) == 0 {
		return
	}
	groups := make(map[*session][]glow.Container)
	add := func(o *session, c glow.Container) {
		if p.cfg.EchoChanges {
			o = nil
		}
		groups[o] = append(groups[o], c)
	}

	for _, e := range p.tree.CollectDirty() {
		if c := p.container(e, dirtyFields(e.Dirty()), true); c != nil {
			add(origin, c)
		}
	}
	p.tree.ClearDirty()

	for _, x := range p.crosspoints {
		v := x.value
		add(x.origin, &glow.Parameter{Path: x.path, Contents: &glow.ParameterContents{Value: &v}})
	}
	p.crosspoints = p.crosspoints[:0]

	for _, c := range p.connectionContainers() {
		add(c.origin, c.container)
	}
	p.connections = p.connections[:0]

	origins := make([]*session, 0, len(groups))
	for o := range groups {
		origins = append(origins, o)
	}
	sort.Slice(origins, func(i, j int) bool { return serialOf(origins[i]) < serialOf(origins[j]) })
	for _, o := range origins {
		body, err := glow.Encode(&glow.Root{Elements: groups[o]})
		if err != nil {
			p.log.Error().Err(err).Msg("provider.flush encode")
			continue
		}
		p.broadcast(p.encode(body), o, "change")
	}
}

type originContainer struct {
	origin    *session
	container glow.Container
}

// connectionContainers builds one qualified matrix per matrix and origin
// carrying the current sources of each changed target.
func (p *Provider) connectionContainers() []originContainer {
	type key struct {
		matrix tree.ID
		origin *session
	}
	var order []key
	byKey := make(map[key]*glow.Matrix)
	seen := make(map[key]map[int32]bool)
	for _, ch := range p.connections {
		origin := ch.origin
		if p.cfg.EchoChanges {
			origin = nil
		}
		k := key{matrix: ch.matrix.ID(), origin: origin}
		gm, ok := byKey[k]
		if !ok {
			gm = &glow.Matrix{Path: ch.matrix.Path()}
			byKey[k] = gm
			seen[k] = make(map[int32]bool)
			order = append(order, k)
		}
		if seen[k][ch.target] {
			continue
		}
		seen[k][ch.target] = true
		sig := ch.matrix.Target(ch.target)
		if sig == nil {
			continue
		}
		gm.Connections = append(gm.Connections, glow.Connection{
			Target:      ch.target,
			Sources:     sig.Connected(),
			Operation:   glow.OperationAbsolute,
			Disposition: glow.DispositionTally,
		})
	}
	out := make([]originContainer, 0, len(order))
	for _, k := range order {
		out = append(out, originContainer{origin: k.origin, container: byKey[k]})
	}
	return out
}

// broadcast fans wire out through the transport to every connection except
// the one behind except.
func (p *Provider) broadcast(wire []byte, except *session, kind string) {
	var skip *transport.Conn
	if except != nil {
		skip = except.conn
	}
	observability.RecordBroadcast(kind, p.out.Broadcast(wire, skip))
}

// deliver sends wire to sess alone.
func (p *Provider) deliver(sess *session, wire []byte) bool {
	if sess == nil {
		return false
	}
	return p.out.Send(sess.conn, wire)
}

// deliverStreams sends each subscriber its current stream entries.
func (p *Provider) deliverStreams() {
	entries, err := p.streams.Collect()
	if err != nil {
		p.log.Warn().Err(err).Msg("provider.deliverStreams skipped streams")
	}
	for serial, list := range entries {
		sess := p.bySerial[serial]
		if sess == nil {
			continue
		}
		body, err := glow.Encode(&glow.Root{Elements: []glow.Container{&glow.StreamCollection{Entries: list}}})
		if err != nil {
			p.log.Error().Err(err).Msg("provider.deliverStreams encode")
			continue
		}
		if p.deliver(sess, p.encode(body)) {
			observability.RecordBroadcast("stream", 1)
		}
	}
}

func serialOf(s *session) uint32 {
	if s == nil {
		return 0
	}
	return s.serial
}
