// Package stream tracks streamed parameters and the consumers subscribed to
// them.
//
// Ownership boundary:
// - registration of parameters that carry a stream identifier
// - per-parameter subscriber sets keyed by session serial
// - packing of values that share a stream identifier into one octet buffer
package stream

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/danmuck/emberctl/internal/protocol/glow"
	"github.com/danmuck/emberctl/internal/tree"
)

var (
	ErrNotStreamed   = errors.New("stream: parameter has no stream identifier")
	ErrNotStored     = errors.New("stream: synthesized parameters cannot be streamed")
	ErrRegistered    = errors.New("stream: parameter already registered")
	ErrNotRegistered = errors.New("stream: parameter not registered")
)

type entry struct {
	param       *tree.Parameter
	streamID    int32
	subscribers *roaring.Bitmap
}

// Registry is owned by one provider and used only from its reactor.
type Registry struct {
	entries map[tree.ID]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[tree.ID]*entry)}
}

// Registration removes its parameter from the registry on Unregister.
type Registration struct {
	r  *Registry
	id tree.ID
}

func (h *Registration) Unregister() {
	if h == nil || h.r == nil {
		return
	}
	delete(h.r.entries, h.id)
	h.r = nil
}

func (r *Registry) Register(p *tree.Parameter) (*Registration, error) {
	if p.Synthesized() {
		return nil, ErrNotStored
	}
	sid, ok := p.StreamIdentifier()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotStreamed, p.Path())
	}
	if _, dup := r.entries[p.ID()]; dup {
		return nil, fmt.Errorf("%w: %s", ErrRegistered, p.Path())
	}
	if err := r.checkDescriptor(p, sid); err != nil {
		return nil, err
	}
	r.entries[p.ID()] = &entry{param: p, streamID: sid, subscribers: roaring.New()}
	return &Registration{r: r, id: p.ID()}, nil
}

// checkDescriptor rejects descriptors that cannot be packed and streams
// shared with a member that has no descriptor.
func (r *Registry) checkDescriptor(p *tree.Parameter, sid int32) error {
	desc, packed := p.StreamDescriptor()
	if packed {
		if _, err := Pack(nil, desc, p.Value()); err != nil {
			return fmt.Errorf("%s: %w", p.Path(), err)
		}
	}
	for _, e := range r.entries {
		if e.streamID != sid {
			continue
		}
		if _, other := e.param.StreamDescriptor(); !packed || !other {
			return fmt.Errorf("%w: stream %d shared by %s and %s needs a descriptor on each",
				ErrInvalidDescriptor, sid, e.param.Path(), p.Path())
		}
	}
	return nil
}

// RegisterTree registers every stored parameter with a stream identifier.
func (r *Registry) RegisterTree(t *tree.Tree) ([]*Registration, error) {
	var out []*Registration
	var err error
	t.Walk(func(e tree.Element) bool {
		p, ok := e.(*tree.Parameter)
		if !ok || err != nil {
			return err == nil
		}
		if _, streamed := p.StreamIdentifier(); !streamed {
			return true
		}
		var h *Registration
		if h, err = r.Register(p); err != nil {
			return false
		}
		out = append(out, h)
		return true
	})
	return out, err
}

func (r *Registry) Registered(p *tree.Parameter) bool {
	_, ok := r.entries[p.ID()]
	return ok && !p.Synthesized()
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Subscribe adds sub to p's subscribers and reports whether it was new.
func (r *Registry) Subscribe(p *tree.Parameter, sub uint32) (bool, error) {
	e, err := r.lookup(p)
	if err != nil {
		return false, err
	}
	return e.subscribers.CheckedAdd(sub), nil
}

func (r *Registry) Unsubscribe(p *tree.Parameter, sub uint32) (bool, error) {
	e, err := r.lookup(p)
	if err != nil {
		return false, err
	}
	return e.subscribers.CheckedRemove(sub), nil
}

// Drop removes sub from every subscriber set.
func (r *Registry) Drop(sub uint32) {
	for _, e := range r.entries {
		e.subscribers.Remove(sub)
	}
}

func (r *Registry) Subscribers(p *tree.Parameter) []uint32 {
	e, err := r.lookup(p)
	if err != nil {
		return nil
	}
	return e.subscribers.ToArray()
}

func (r *Registry) lookup(p *tree.Parameter) (*entry, error) {
	if p.Synthesized() {
		return nil, ErrNotStored
	}
	e, ok := r.entries[p.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, p.Path())
	}
	return e, nil
}

// Collect builds the stream entries each subscriber should receive, ordered
// by stream identifier. Parameters sharing a stream identifier with a stream
// descriptor are packed into one octets entry delivered to the union of their
// subscribers. A stream that cannot be packed is left out and reported in
// err; out always holds every other stream.
func (r *Registry) Collect() (out map[uint32][]glow.StreamEntry, err error) {
	byStream := make(map[int32][]*entry)
	for _, e := range r.entries {
		if e.subscribers.IsEmpty() {
			continue
		}
		byStream[e.streamID] = append(byStream[e.streamID], e)
	}
	ids := make([]int32, 0, len(byStream))
	for id := range byStream {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out = make(map[uint32][]glow.StreamEntry)
	var skipped []error
	for _, id := range ids {
		group := byStream[id]
		sort.Slice(group, func(i, j int) bool { return group[i].param.ID() < group[j].param.ID() })
		value, err := streamValue(group)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("stream %d: %w", id, err))
			continue
		}
		subs := roaring.New()
		for _, e := range group {
			subs.Or(e.subscribers)
		}
		it := subs.Iterator()
		for it.HasNext() {
			sub := it.Next()
			out[sub] = append(out[sub], glow.StreamEntry{Identifier: id, Value: value})
		}
	}
	return out, errors.Join(skipped...)
}

func streamValue(group []*entry) (glow.Value, error) {
	if len(group) == 1 {
		if _, packed := group[0].param.StreamDescriptor(); !packed {
			return group[0].param.Value(), nil
		}
	}
	var buf []byte
	for _, e := range group {
		desc, ok := e.param.StreamDescriptor()
		if !ok {
			return glow.Value{}, fmt.Errorf("%w: %s shares a stream without a descriptor", ErrInvalidDescriptor, e.param.Path())
		}
		var err error
		if buf, err = Pack(buf, desc, e.param.Value()); err != nil {
			return glow.Value{}, err
		}
	}
	return glow.OctetsValue(buf), nil
}
