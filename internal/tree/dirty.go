package tree

func (t *Tree) markDirty(id ID, d Dirty) {
	e := t.Get(id)
	if e == nil {
		return
	}
	e.element().dirty |= d
	for p := e.Parent(); p != NoID; {
		b := t.slab[p].element()
		if b.dirty&DirtyChildren != 0 {
			break
		}
		b.dirty |= DirtyChildren
		p = b.parent
	}
}

// CollectDirty returns the elements with changed properties in depth-first
// order. Subtrees without DirtyChildren are skipped. It does not mutate.
func (t *Tree) CollectDirty() []Element {
	var out []Element
	t.Walk(func(e Element) bool {
		d := e.Dirty()
		if d == 0 {
			return false
		}
		if d&^DirtyChildren != 0 {
			out = append(out, e)
		}
		return d&DirtyChildren != 0
	})
	return out
}

// ClearDirty resets dirty state below and including the root.
func (t *Tree) ClearDirty() {
	t.Walk(func(e Element) bool {
		b := e.element()
		had := b.dirty
		b.dirty = 0
		return had&DirtyChildren != 0
	})
}

// IsDirty reports whether anything changed since the last ClearDirty.
func (t *Tree) IsDirty() bool {
	return t.slab[RootID].Dirty() != 0
}
