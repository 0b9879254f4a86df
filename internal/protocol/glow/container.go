package glow

// Container is the sealed set of Glow elements that can appear in a Root or
// in a child list.
type Container interface {
	container()
}

type NodeContents struct {
	Identifier  *string
	Description *string
	IsRoot      *bool
	IsOnline    *bool
}

type ParameterContents struct {
	Identifier       *string
	Description      *string
	Value            *Value
	Minimum          *Value
	Maximum          *Value
	Access           *Access
	Format           *string
	Enumeration      *string
	Factor           *int32
	IsOnline         *bool
	Step             *int32
	Default          *Value
	Type             *ParameterType
	StreamIdentifier *int32
	StreamDescriptor *StreamDescriptor
}

type MatrixContents struct {
	Identifier               *string
	Description              *string
	Type                     *MatrixType
	AddressingMode           *AddressingMode
	TargetCount              *int32
	SourceCount              *int32
	MaximumTotalConnects     *int32
	MaximumConnectsPerTarget *int32
	ParametersLocation       OID
}

type FunctionContents struct {
	Identifier  *string
	Description *string
	Arguments   []TupleItem
	Result      []TupleItem
}

// Node, Parameter, Matrix and Function are relative when Path is nil and
// qualified otherwise. A qualified container's Path is its full OID.
type Node struct {
	Number   int32
	Path     OID
	Contents *NodeContents
	Children []Container
}

type Parameter struct {
	Number   int32
	Path     OID
	Contents *ParameterContents
	Children []Container
}

type Matrix struct {
	Number      int32
	Path        OID
	Contents    *MatrixContents
	Children    []Container
	Targets     []int32
	Sources     []int32
	Connections []Connection
}

type Function struct {
	Number   int32
	Path     OID
	Contents *FunctionContents
	Children []Container
}

type Connection struct {
	Target      int32
	Sources     []int32
	Operation   ConnectionOperation
	Disposition ConnectionDisposition
}

// InvocationNone marks an invocation whose caller does not want a result.
const InvocationNone int32 = -1

type Invocation struct {
	ID        int32
	Arguments []Value
}

type Command struct {
	Number     CommandType
	FieldMask  FieldFlags
	Invocation *Invocation
}

type StreamEntry struct {
	Identifier int32
	Value      Value
}

type StreamCollection struct {
	Entries []StreamEntry
}

type InvocationResult struct {
	InvocationID int32
	Success      bool
	Result       []Value
}

// Root is the top of every Glow payload.
type Root struct {
	Elements []Container
}

func (*Node) container()             {}
func (*Parameter) container()        {}
func (*Matrix) container()           {}
func (*Function) container()         {}
func (*Command) container()          {}
func (*StreamCollection) container() {}
func (*InvocationResult) container() {}

func (n *Node) Qualified() bool      { return n.Path != nil }
func (p *Parameter) Qualified() bool { return p.Path != nil }
func (m *Matrix) Qualified() bool    { return m.Path != nil }
func (f *Function) Qualified() bool  { return f.Path != nil }

// Num returns the last number of the element's address.
func (n *Node) Num() int32      { return num(n.Number, n.Path) }
func (p *Parameter) Num() int32 { return num(p.Number, p.Path) }
func (m *Matrix) Num() int32    { return num(m.Number, m.Path) }
func (f *Function) Num() int32  { return num(f.Number, f.Path) }

func num(n int32, path OID) int32 {
	if len(path) > 0 {
		return path[len(path)-1]
	}
	return n
}

// Children returns the child list of an element container, or nil for
// non-element containers.
func Children(c Container) []Container {
	switch v := c.(type) {
	case *Node:
		return v.Children
	case *Parameter:
		return v.Children
	case *Matrix:
		return v.Children
	case *Function:
		return v.Children
	default:
		return nil
	}
}
