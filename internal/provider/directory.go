package provider

import (
	"strings"

	"github.com/danmuck/emberctl/internal/protocol/glow"
	"github.com/danmuck/emberctl/internal/tree"
)

// fieldSet selects element properties to encode.
type fieldSet uint8

const (
	fieldIdentifier fieldSet = 1 << iota
	fieldDescription
	fieldValue
	fieldProperties
	fieldConnections

	fieldAll = fieldIdentifier | fieldDescription | fieldValue | fieldProperties | fieldConnections
)

func maskFields(mask glow.FieldFlags) fieldSet {
	switch mask {
	case glow.FieldIdentifier:
		return fieldIdentifier
	case glow.FieldDescription:
		return fieldDescription
	case glow.FieldValue:
		return fieldValue
	case glow.FieldConnections:
		return fieldConnections
	case glow.FieldSparse:
		return fieldIdentifier | fieldValue
	default:
		return fieldAll
	}
}

func dirtyFields(d tree.Dirty) fieldSet {
	var fs fieldSet
	if d&tree.DirtyIdentifier != 0 {
		fs |= fieldIdentifier
	}
	if d&tree.DirtyDescription != 0 {
		fs |= fieldDescription
	}
	if d&tree.DirtyValue != 0 {
		fs |= fieldValue
	}
	if d&tree.DirtyProperties != 0 {
		fs |= fieldProperties
	}
	return fs
}

// directory answers GetDirectory on e. Parameters, functions and childless
// nodes answer with their own properties; nodes list their children; a
// matrix answers with itself, its connections and any synthesized children.
func (p *Provider) directory(e tree.Element, mask glow.FieldFlags, requestQualified bool) []glow.Container {
	fs := maskFields(mask)
	qualified := requestQualified || p.qualifiedResponses()

	_, isMatrix := e.(*tree.Matrix)
	node, isNode := e.(*tree.Node)
	listing := (isNode || isMatrix) && p.tree.HasChildren(e)

	// children of a qualified matrix stay relative to it
	var kids []glow.Container
	if listing {
		childQualified := qualified && !isMatrix
		p.tree.EachChild(e, func(child tree.Element) {
			kids = append(kids, p.container(child, fs, childQualified))
		})
	}

	switch {
	case isNode && node.IsRoot():
		return kids
	case isNode && listing:
		if qualified {
			return kids
		}
		return []glow.Container{p.nest(e, withChildren(p.container(e, 0, false), kids))}
	case isMatrix && listing:
		self := withChildren(p.container(e, fs, qualified), kids)
		if qualified {
			return []glow.Container{self}
		}
		return []glow.Container{p.nest(e, self)}
	case qualified:
		return []glow.Container{p.container(e, fs, true)}
	default:
		return []glow.Container{p.nest(e, p.container(e, fs, false))}
	}
}

// nest wraps leaf, the relative container for e, in an addressing-only
// container for each of e's ancestors below the root.
func (p *Provider) nest(e tree.Element, leaf glow.Container) glow.Container {
	path := e.Path()
	out := leaf
	for i := len(path) - 1; i > 0; i-- {
		inner := out
		p.tree.With(path[:i], func(a tree.Element) {
			out = withChildren(p.container(a, 0, false), []glow.Container{inner})
		})
	}
	return out
}

func withChildren(c glow.Container, children []glow.Container) glow.Container {
	switch v := c.(type) {
	case *glow.Node:
		v.Children = children
	case *glow.Matrix:
		v.Children = children
	case *glow.Parameter:
		v.Children = children
	case *glow.Function:
		v.Children = children
	}
	return c
}

// container encodes e with the properties in fs. A zero fs yields an
// addressing-only container.
func (p *Provider) container(e tree.Element, fs fieldSet, qualified bool) glow.Container {
	var number int32
	var path glow.OID
	if qualified {
		path = e.Path()
	} else {
		number = e.Number()
	}
	switch v := e.(type) {
	case *tree.Node:
		return &glow.Node{Number: number, Path: path, Contents: nodeContents(v, fs)}
	case *tree.Parameter:
		return &glow.Parameter{Number: number, Path: path, Contents: parameterContents(v, fs)}
	case *tree.Matrix:
		gm := &glow.Matrix{Number: number, Path: path, Contents: matrixContents(v, fs)}
		if fs&fieldProperties != 0 && v.Addressing() == glow.AddressingNonLinear {
			gm.Targets = v.Targets()
			gm.Sources = v.Sources()
		}
		if fs&fieldConnections != 0 {
			gm.Connections = connections(v)
		}
		return gm
	case *tree.Function:
		return &glow.Function{Number: number, Path: path, Contents: functionContents(v, fs)}
	default:
		return nil
	}
}

func optString(fs, want fieldSet, s string) *string {
	if fs&want == 0 || s == "" {
		return nil
	}
	return &s
}

func nodeContents(n *tree.Node, fs fieldSet) *glow.NodeContents {
	if fs == 0 {
		return nil
	}
	c := &glow.NodeContents{
		Identifier:  optString(fs, fieldIdentifier, n.Identifier()),
		Description: optString(fs, fieldDescription, n.Description()),
	}
	if fs&fieldProperties != 0 {
		c.IsOnline = glow.Ptr(n.Online())
	}
	return c
}

func parameterContents(prm *tree.Parameter, fs fieldSet) *glow.ParameterContents {
	if fs == 0 {
		return nil
	}
	c := &glow.ParameterContents{
		Identifier:  optString(fs, fieldIdentifier, prm.Identifier()),
		Description: optString(fs, fieldDescription, prm.Description()),
	}
	if fs&fieldValue != 0 && prm.Type() != glow.ParameterTrigger {
		c.Value = glow.Ptr(prm.Value())
	}
	if fs&fieldProperties == 0 {
		return c
	}
	c.Type = glow.Ptr(prm.Type())
	c.Access = glow.Ptr(prm.Access())
	c.IsOnline = glow.Ptr(prm.Online())
	c.Minimum = prm.Minimum()
	c.Maximum = prm.Maximum()
	c.Default = prm.Default()
	c.Format = optString(fs, fieldProperties, prm.Format())
	if enum := prm.Enumeration(); len(enum) > 0 {
		c.Enumeration = glow.Ptr(strings.Join(enum, "\n"))
	}
	if f := prm.Factor(); f != 0 {
		c.Factor = glow.Ptr(f)
	}
	if s := prm.Step(); s != 0 {
		c.Step = glow.Ptr(s)
	}
	if id, ok := prm.StreamIdentifier(); ok {
		c.StreamIdentifier = glow.Ptr(id)
	}
	if desc, ok := prm.StreamDescriptor(); ok {
		c.StreamDescriptor = glow.Ptr(desc)
	}
	return c
}

func matrixContents(m *tree.Matrix, fs fieldSet) *glow.MatrixContents {
	if fs&^fieldConnections == 0 {
		return nil
	}
	c := &glow.MatrixContents{
		Identifier:  optString(fs, fieldIdentifier, m.Identifier()),
		Description: optString(fs, fieldDescription, m.Description()),
	}
	if fs&fieldProperties == 0 {
		return c
	}
	c.Type = glow.Ptr(m.Type())
	c.AddressingMode = glow.Ptr(m.Addressing())
	c.TargetCount = glow.Ptr(m.TargetCount())
	c.SourceCount = glow.Ptr(m.SourceCount())
	if n := m.MaximumTotalConnects(); n > 0 {
		c.MaximumTotalConnects = glow.Ptr(n)
	}
	if n := m.MaximumConnectsPerTarget(); n > 0 {
		c.MaximumConnectsPerTarget = glow.Ptr(n)
	}
	c.ParametersLocation = m.ParametersLocation()
	return c
}

func functionContents(f *tree.Function, fs fieldSet) *glow.FunctionContents {
	if fs == 0 {
		return nil
	}
	c := &glow.FunctionContents{
		Identifier:  optString(fs, fieldIdentifier, f.Identifier()),
		Description: optString(fs, fieldDescription, f.Description()),
	}
	if fs&fieldProperties != 0 {
		c.Arguments = f.Arguments()
		c.Result = f.Result()
	}
	return c
}

// connections lists every target that has at least one connected source.
func connections(m *tree.Matrix) []glow.Connection {
	var out []glow.Connection
	for _, sig := range m.TargetSignals() {
		if sig.Len() == 0 {
			continue
		}
		out = append(out, glow.Connection{Target: sig.Number(), Sources: sig.Connected()})
	}
	return out
}
