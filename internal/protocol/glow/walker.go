package glow

// Location is the address a handler call applies to. Qualified is true when
// the path came from a qualified container rather than from nesting.
type Location struct {
	Path      OID
	Qualified bool
}

// Handler receives decoded containers from a Walker. Providers must implement
// the Command, Parameter and Matrix hooks; NopHandler covers the rest.
type Handler interface {
	HandleCommand(cmd *Command, loc Location)
	HandleParameter(p *Parameter, loc Location)
	HandleMatrix(m *Matrix, loc Location)
	HandleNode(n *Node, loc Location)
	HandleFunction(f *Function, loc Location)
	HandleStreamEntry(e StreamEntry)
	HandleInvocationResult(r *InvocationResult)
}

// NopHandler is embedded by handlers that ignore the optional hooks.
type NopHandler struct{}

func (NopHandler) HandleNode(*Node, Location)               {}
func (NopHandler) HandleFunction(*Function, Location)       {}
func (NopHandler) HandleStreamEntry(StreamEntry)            {}
func (NopHandler) HandleInvocationResult(*InvocationResult) {}

// Walker dispatches a container tree depth first while tracking the path of
// the element being visited. Handlers receive their own copy of the path.
type Walker struct {
	h         Handler
	path      OID
	qualified bool
}

func NewWalker(h Handler) *Walker {
	return &Walker{h: h, path: make(OID, 0, 16)}
}

// Walk visits every element of root. The path stack is empty at each root
// element.
func (w *Walker) Walk(root *Root) {
	if root == nil {
		return
	}
	w.path = w.path[:0]
	w.qualified = false
	for _, c := range root.Elements {
		w.visit(c)
	}
}

func (w *Walker) visit(c Container) {
	switch v := c.(type) {
	case *Command:
		w.h.HandleCommand(v, w.location())
	case *Node:
		w.enter(v.Number, v.Path, func(loc Location) { w.h.HandleNode(v, loc) }, v.Children)
	case *Parameter:
		w.enter(v.Number, v.Path, func(loc Location) { w.h.HandleParameter(v, loc) }, v.Children)
	case *Matrix:
		w.enter(v.Number, v.Path, func(loc Location) { w.h.HandleMatrix(v, loc) }, v.Children)
	case *Function:
		w.enter(v.Number, v.Path, func(loc Location) { w.h.HandleFunction(v, loc) }, v.Children)
	case *StreamCollection:
		for _, e := range v.Entries {
			w.h.HandleStreamEntry(e)
		}
	case *InvocationResult:
		w.h.HandleInvocationResult(v)
	}
}

// enter pushes a relative number or swaps in a qualified path for the
// duration of the element's handler and its children.
func (w *Walker) enter(number int32, qualifiedPath OID, handle func(Location), children []Container) {
	if qualifiedPath != nil {
		savedPath, savedQualified := w.path, w.qualified
		w.path = qualifiedPath.Clone()
		w.qualified = true
		handle(w.location())
		for _, child := range children {
			w.visit(child)
		}
		w.path, w.qualified = savedPath, savedQualified
		return
	}
	w.path = append(w.path, number)
	handle(w.location())
	for _, child := range children {
		w.visit(child)
	}
	w.path = w.path[:len(w.path)-1]
}

func (w *Walker) location() Location {
	return Location{Path: append(OID{}, w.path...), Qualified: w.qualified}
}
