package tree

import "github.com/danmuck/emberctl/internal/protocol/glow"

// ID is the arena index of a stored element. Synthesized elements use NoID.
type ID uint32

const NoID ID = ^ID(0)

type Kind uint8

const (
	KindNode Kind = iota + 1
	KindParameter
	KindFunction
	KindMatrix
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindParameter:
		return "parameter"
	case KindFunction:
		return "function"
	case KindMatrix:
		return "matrix"
	default:
		return "unknown"
	}
}

// Dirty is the set of properties changed since the last ClearDirty.
type Dirty uint16

const (
	DirtyIdentifier Dirty = 1 << iota
	DirtyDescription
	DirtyValue
	DirtyProperties
	// DirtyChildren is set on every ancestor of a dirty element.
	DirtyChildren
)

// Element is the closed set of tree element kinds: *Node, *Parameter,
// *Function and *Matrix.
type Element interface {
	ID() ID
	Number() int32
	Identifier() string
	Description() string
	Parent() ID
	Path() glow.OID
	Kind() Kind
	Dirty() Dirty
	Synthesized() bool
	element() *base
}

type base struct {
	id          ID
	number      int32
	identifier  string
	description string
	parent      ID
	children    []ID
	tree        *Tree
	path        glow.OID
	dirty       Dirty

	// set only on elements synthesized below a dynamic matrix
	owner    *Matrix
	released bool
}

func (b *base) ID() ID              { return b.id }
func (b *base) Number() int32       { return b.number }
func (b *base) Identifier() string  { return b.identifier }
func (b *base) Description() string { return b.description }
func (b *base) Parent() ID          { return b.parent }
func (b *base) Dirty() Dirty        { return b.dirty }
func (b *base) Synthesized() bool   { return b.owner != nil }
func (b *base) element() *base      { return b }

// Path returns a copy of the element's OID.
func (b *base) Path() glow.OID {
	return b.path.Clone()
}

// SetIdentifier renames a stored element and marks it dirty.
func (b *base) SetIdentifier(identifier string) {
	if b.identifier == identifier {
		return
	}
	b.identifier = identifier
	b.markDirty(DirtyIdentifier)
}

func (b *base) SetDescription(description string) {
	if b.description == description {
		return
	}
	b.description = description
	b.markDirty(DirtyDescription)
}

func (b *base) markDirty(d Dirty) {
	if b.owner != nil || b.tree == nil {
		return
	}
	b.tree.markDirty(b.id, d)
}

// Node groups other elements.
type Node struct {
	base
	online bool
}

func (*Node) Kind() Kind { return KindNode }

func (n *Node) Online() bool { return n.online }

// IsRoot reports whether n is the tree's root node.
func (n *Node) IsRoot() bool { return n.owner == nil && n.id == 0 }

func (n *Node) SetOnline(online bool) {
	if n.online == online {
		return
	}
	n.online = online
	n.markDirty(DirtyProperties)
}
