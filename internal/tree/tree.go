package tree

import (
	"fmt"

	"github.com/danmuck/emberctl/internal/protocol/glow"
)

// RootID is the arena index of the root node.
const RootID ID = 0

// Tree is an arena of stored elements. The root node has an empty path and
// is never sent on the wire as an element of its own.
type Tree struct {
	slab []Element
	sink NotificationSink

	// synthesized elements handed out and not yet released
	live int
}

func New(sink NotificationSink) *Tree {
	if sink == nil {
		sink = NopSink{}
	}
	t := &Tree{sink: sink}
	root := &Node{online: true}
	root.base = base{id: RootID, identifier: "root", parent: NoID, tree: t, path: glow.OID{}}
	t.slab = append(t.slab, root)
	return t
}

// SetSink replaces the notification sink. A nil sink disables notifications.
func (t *Tree) SetSink(sink NotificationSink) {
	if sink == nil {
		sink = NopSink{}
	}
	t.sink = sink
}

func (t *Tree) Root() *Node {
	return t.slab[RootID].(*Node)
}

// Get returns the stored element for id, or nil.
func (t *Tree) Get(id ID) Element {
	if int(id) >= len(t.slab) {
		return nil
	}
	return t.slab[id]
}

// Len is the number of stored elements, root included.
func (t *Tree) Len() int {
	return len(t.slab)
}

// Live is the number of synthesized elements not yet released.
func (t *Tree) Live() int {
	return t.live
}

// Children returns the stored children of e in insertion order.
func (t *Tree) Children(e Element) []Element {
	b := e.element()
	out := make([]Element, 0, len(b.children))
	for _, id := range b.children {
		out = append(out, t.slab[id])
	}
	return out
}

// Child returns the stored child of e numbered n.
func (t *Tree) Child(e Element, n int32) Element {
	for _, id := range e.element().children {
		if c := t.slab[id]; c.Number() == n {
			return c
		}
	}
	return nil
}

// EachChild calls fn for every child of e, including children a dynamic
// matrix synthesizes. Synthesized children are released after fn returns.
func (t *Tree) EachChild(e Element, fn func(Element)) {
	for _, id := range e.element().children {
		fn(t.slab[id])
	}
	m, rest := synthesisOwner(e)
	if m == nil {
		return
	}
	for _, n := range m.syntheticChildren(rest) {
		child := m.synthesize(append(rest.Clone(), n))
		if child == nil {
			continue
		}
		h := t.own(child)
		fn(child)
		h.Release()
	}
}

// HasChildren reports whether e has stored or synthesizable children.
func (t *Tree) HasChildren(e Element) bool {
	if len(e.element().children) > 0 {
		return true
	}
	m, rest := synthesisOwner(e)
	return m != nil && len(m.syntheticChildren(rest)) > 0
}

func synthesisOwner(e Element) (*Matrix, glow.OID) {
	b := e.element()
	if b.owner != nil {
		return b.owner, b.path[len(b.owner.path):]
	}
	if m, ok := e.(*Matrix); ok && m.dynamic {
		return m, glow.OID{}
	}
	return nil, nil
}

// Walk visits stored elements depth first, root first. Returning false from
// fn skips the element's children.
func (t *Tree) Walk(fn func(Element) bool) {
	t.walk(t.slab[RootID], fn)
}

func (t *Tree) walk(e Element, fn func(Element) bool) {
	if !fn(e) {
		return
	}
	for _, id := range e.element().children {
		t.walk(t.slab[id], fn)
	}
}

// AddNode attaches a node below parent.
func (t *Tree) AddNode(parent *Node, number int32, identifier, description string) (*Node, error) {
	n := &Node{online: true}
	if err := t.attach(parent, &n.base, number, identifier, description, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (t *Tree) attach(parent *Node, b *base, number int32, identifier, description string, e Element) error {
	if parent == nil || parent.tree != t || parent.owner != nil {
		return fmt.Errorf("%w: %q", ErrInvalidParent, identifier)
	}
	path := parent.path.Append(number)
	if number < 0 {
		return pathError(path, ErrNegativeNumber)
	}
	if t.Child(parent, number) != nil {
		return pathError(path, ErrDuplicateNumber)
	}
	*b = base{
		id:          ID(len(t.slab)),
		number:      number,
		identifier:  identifier,
		description: description,
		parent:      parent.id,
		tree:        t,
		path:        path,
	}
	t.slab = append(t.slab, e)
	parent.children = append(parent.children, b.id)
	return nil
}

// Stored reports whether oid addresses a stored (not synthesized) element.
func (t *Tree) Stored(oid glow.OID) bool {
	_, ok := t.resolveStored(oid)
	return ok
}

func (t *Tree) resolveStored(oid glow.OID) (Element, bool) {
	cur := t.slab[RootID]
	for _, n := range oid {
		next := t.Child(cur, n)
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}
