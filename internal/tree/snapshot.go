package tree

// View is a JSON friendly copy of a stored subtree.
type View struct {
	Path        string            `json:"path"`
	Number      int32             `json:"number"`
	Kind        string            `json:"kind"`
	Identifier  string            `json:"identifier"`
	Description string            `json:"description,omitempty"`
	Value       any               `json:"value,omitempty"`
	Connections map[int32][]int32 `json:"connections,omitempty"`
	Children    []View            `json:"children,omitempty"`
}

// Snapshot copies the stored tree. Synthesized crosspoints are not included.
func (t *Tree) Snapshot() View {
	return t.view(t.slab[RootID])
}

func (t *Tree) view(e Element) View {
	v := View{
		Path:        e.Path().String(),
		Number:      e.Number(),
		Kind:        e.Kind().String(),
		Identifier:  e.Identifier(),
		Description: e.Description(),
	}
	switch el := e.(type) {
	case *Parameter:
		v.Value = el.Value().Any()
	case *Matrix:
		v.Connections = make(map[int32][]int32)
		for _, sig := range el.targets {
			if sig.Len() > 0 {
				v.Connections[sig.number] = sig.Connected()
			}
		}
	}
	for _, id := range e.element().children {
		v.Children = append(v.Children, t.view(t.slab[id]))
	}
	return v
}
