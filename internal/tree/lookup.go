package tree

import "github.com/danmuck/emberctl/internal/protocol/glow"

// Handle is the result of a lookup. A synthesized element belongs to the
// handle and must not be used after Release; stored elements are borrowed
// from the tree and Release is a no-op for them.
type Handle struct {
	tree        *Tree
	elem        Element
	synthesized bool
	released    bool
}

func (t *Tree) own(e Element) *Handle {
	t.live++
	return &Handle{tree: t, elem: e, synthesized: true}
}

// Element returns the looked-up element, or nil once released.
func (h *Handle) Element() Element {
	if h == nil || h.released {
		return nil
	}
	return h.elem
}

func (h *Handle) Synthesized() bool {
	return h != nil && h.synthesized
}

func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	if h.synthesized {
		h.elem.element().released = true
		h.tree.live--
	}
}

// Lookup resolves oid. Stored children win; when a component is missing
// below a dynamic matrix, the matrix synthesizes the rest of the path.
func (t *Tree) Lookup(oid glow.OID) (*Handle, bool) {
	cur := t.slab[RootID]
	for i, n := range oid {
		next := t.Child(cur, n)
		if next != nil {
			cur = next
			continue
		}
		m, ok := cur.(*Matrix)
		if !ok || !m.dynamic {
			return nil, false
		}
		e := m.synthesize(oid[i:].Clone())
		if e == nil {
			return nil, false
		}
		return t.own(e), true
	}
	return &Handle{tree: t, elem: cur}, true
}

// With looks up oid and calls fn with the element, releasing any synthesized
// element afterwards. It reports whether oid resolved.
func (t *Tree) With(oid glow.OID, fn func(Element)) bool {
	h, ok := t.Lookup(oid)
	if !ok {
		return false
	}
	defer h.Release()
	fn(h.Element())
	return true
}
