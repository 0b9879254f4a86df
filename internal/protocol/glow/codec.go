package glow

import (
	"errors"
	"fmt"

	"github.com/danmuck/emberctl/internal/protocol/tlv"
)

// MaxDepth bounds container nesting accepted by Decode.
const MaxDepth = 64

var (
	ErrTooDeep      = errors.New("glow: container nesting too deep")
	ErrNilContainer = errors.New("glow: nil container")
	ErrMalformed    = errors.New("glow: malformed container")
	ErrUnknownValue = errors.New("glow: unknown value type")
)

// Container tags at Root and child-list level.
const (
	tagNode             uint16 = 1
	tagParameter        uint16 = 2
	tagMatrix           uint16 = 3
	tagFunction         uint16 = 4
	tagCommand          uint16 = 5
	tagStreamCollection uint16 = 6
	tagInvocationResult uint16 = 7
	tagQualifiedNode    uint16 = 11
	tagQualifiedParam   uint16 = 12
	tagQualifiedMatrix  uint16 = 13
	tagQualifiedFunc    uint16 = 14
)

// Element fields.
const (
	fieldNumber      uint16 = 1
	fieldPath        uint16 = 2
	fieldContents    uint16 = 3
	fieldChildren    uint16 = 4
	fieldTargets     uint16 = 5
	fieldSources     uint16 = 6
	fieldConnections uint16 = 7
)

// Contents fields shared by every element kind.
const (
	contentIdentifier  uint16 = 1
	contentDescription uint16 = 2
)

const (
	nodeIsRoot   uint16 = 3
	nodeIsOnline uint16 = 4
)

const (
	paramValue            uint16 = 3
	paramMinimum          uint16 = 4
	paramMaximum          uint16 = 5
	paramAccess           uint16 = 6
	paramFormat           uint16 = 7
	paramEnumeration      uint16 = 8
	paramFactor           uint16 = 9
	paramIsOnline         uint16 = 10
	paramStep             uint16 = 12
	paramDefault          uint16 = 13
	paramType             uint16 = 14
	paramStreamIdentifier uint16 = 15
	paramStreamDescriptor uint16 = 17
)

const (
	matrixType               uint16 = 3
	matrixAddressing         uint16 = 4
	matrixTargetCount        uint16 = 5
	matrixSourceCount        uint16 = 6
	matrixMaxTotalConnects   uint16 = 7
	matrixMaxConnectsPerTgt  uint16 = 8
	matrixParametersLocation uint16 = 9
)

const (
	functionArguments uint16 = 3
	functionResult    uint16 = 4
)

// Fields inside the smaller records.
const (
	itemFirst  uint16 = 1
	itemSecond uint16 = 2
	itemThird  uint16 = 3
	itemFourth uint16 = 4
)

// Encode serializes a Root into a Glow payload.
func Encode(root *Root) ([]byte, error) {
	if root == nil {
		return nil, ErrNilContainer
	}
	fields, err := encodeList(root.Elements)
	if err != nil {
		return nil, err
	}
	return tlv.EncodeFields(fields), nil
}

// Decode parses a Glow payload. Unknown container tags are skipped.
func Decode(payload []byte) (*Root, error) {
	fields, err := tlv.DecodeFields(payload)
	if err != nil {
		return nil, fmt.Errorf("glow: decode root: %w", err)
	}
	elements, err := decodeList(fields, 0)
	if err != nil {
		return nil, err
	}
	return &Root{Elements: elements}, nil
}

func encodeList(list []Container) ([]tlv.Field, error) {
	out := make([]tlv.Field, 0, len(list))
	for _, c := range list {
		f, err := encodeContainer(c)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func encodeContainer(c Container) (tlv.Field, error) {
	switch v := c.(type) {
	case *Node:
		if v == nil {
			return tlv.Field{}, ErrNilContainer
		}
		fields := elementHeader(v.Number, v.Path)
		if v.Contents != nil {
			fields = append(fields, tlv.Set(fieldContents, encodeNodeContents(v.Contents)...))
		}
		fields, err := appendChildren(fields, v.Children)
		if err != nil {
			return tlv.Field{}, err
		}
		return tlv.Set(pick(v.Path, tagNode, tagQualifiedNode), fields...), nil
	case *Parameter:
		if v == nil {
			return tlv.Field{}, ErrNilContainer
		}
		fields := elementHeader(v.Number, v.Path)
		if v.Contents != nil {
			fields = append(fields, tlv.Set(fieldContents, encodeParameterContents(v.Contents)...))
		}
		fields, err := appendChildren(fields, v.Children)
		if err != nil {
			return tlv.Field{}, err
		}
		return tlv.Set(pick(v.Path, tagParameter, tagQualifiedParam), fields...), nil
	case *Matrix:
		if v == nil {
			return tlv.Field{}, ErrNilContainer
		}
		fields := elementHeader(v.Number, v.Path)
		if v.Contents != nil {
			fields = append(fields, tlv.Set(fieldContents, encodeMatrixContents(v.Contents)...))
		}
		fields, err := appendChildren(fields, v.Children)
		if err != nil {
			return tlv.Field{}, err
		}
		if v.Targets != nil {
			fields = append(fields, tlv.OID(fieldTargets, v.Targets))
		}
		if v.Sources != nil {
			fields = append(fields, tlv.OID(fieldSources, v.Sources))
		}
		if v.Connections != nil {
			conns := make([]tlv.Field, 0, len(v.Connections))
			for _, c := range v.Connections {
				conns = append(conns, tlv.Set(itemFirst,
					tlv.Int(itemFirst, int64(c.Target)),
					tlv.OID(itemSecond, c.Sources),
					tlv.Int(itemThird, int64(c.Operation)),
					tlv.Int(itemFourth, int64(c.Disposition)),
				))
			}
			fields = append(fields, tlv.Set(fieldConnections, conns...))
		}
		return tlv.Set(pick(v.Path, tagMatrix, tagQualifiedMatrix), fields...), nil
	case *Function:
		if v == nil {
			return tlv.Field{}, ErrNilContainer
		}
		fields := elementHeader(v.Number, v.Path)
		if v.Contents != nil {
			fields = append(fields, tlv.Set(fieldContents, encodeFunctionContents(v.Contents)...))
		}
		fields, err := appendChildren(fields, v.Children)
		if err != nil {
			return tlv.Field{}, err
		}
		return tlv.Set(pick(v.Path, tagFunction, tagQualifiedFunc), fields...), nil
	case *Command:
		if v == nil {
			return tlv.Field{}, ErrNilContainer
		}
		fields := []tlv.Field{tlv.Int(itemFirst, int64(v.Number))}
		if v.Number == CommandGetDirectory {
			fields = append(fields, tlv.Int(itemSecond, int64(v.FieldMask)))
		}
		if v.Invocation != nil {
			fields = append(fields, tlv.Set(itemThird,
				tlv.Int(itemFirst, int64(v.Invocation.ID)),
				tlv.Set(itemSecond, encodeValues(v.Invocation.Arguments)...),
			))
		}
		return tlv.Set(tagCommand, fields...), nil
	case *StreamCollection:
		if v == nil {
			return tlv.Field{}, ErrNilContainer
		}
		entries := make([]tlv.Field, 0, len(v.Entries))
		for _, e := range v.Entries {
			entries = append(entries, tlv.Set(itemFirst,
				tlv.Int(itemFirst, int64(e.Identifier)),
				encodeValue(itemSecond, e.Value),
			))
		}
		return tlv.Set(tagStreamCollection, entries...), nil
	case *InvocationResult:
		if v == nil {
			return tlv.Field{}, ErrNilContainer
		}
		return tlv.Set(tagInvocationResult,
			tlv.Int(itemFirst, int64(v.InvocationID)),
			tlv.Bool(itemSecond, v.Success),
			tlv.Set(itemThird, encodeValues(v.Result)...),
		), nil
	default:
		return tlv.Field{}, ErrNilContainer
	}
}

func pick(path OID, relative, qualified uint16) uint16 {
	if path != nil {
		return qualified
	}
	return relative
}

func elementHeader(number int32, path OID) []tlv.Field {
	if path != nil {
		return []tlv.Field{tlv.OID(fieldPath, path)}
	}
	return []tlv.Field{tlv.Int(fieldNumber, int64(number))}
}

func appendChildren(fields []tlv.Field, children []Container) ([]tlv.Field, error) {
	if children == nil {
		return fields, nil
	}
	list, err := encodeList(children)
	if err != nil {
		return nil, err
	}
	return append(fields, tlv.Set(fieldChildren, list...)), nil
}

func encodeNodeContents(c *NodeContents) []tlv.Field {
	var out []tlv.Field
	out = appendString(out, contentIdentifier, c.Identifier)
	out = appendString(out, contentDescription, c.Description)
	out = appendBool(out, nodeIsRoot, c.IsRoot)
	out = appendBool(out, nodeIsOnline, c.IsOnline)
	return out
}

func encodeParameterContents(c *ParameterContents) []tlv.Field {
	var out []tlv.Field
	out = appendString(out, contentIdentifier, c.Identifier)
	out = appendString(out, contentDescription, c.Description)
	out = appendValue(out, paramValue, c.Value)
	out = appendValue(out, paramMinimum, c.Minimum)
	out = appendValue(out, paramMaximum, c.Maximum)
	if c.Access != nil {
		out = append(out, tlv.Int(paramAccess, int64(*c.Access)))
	}
	out = appendString(out, paramFormat, c.Format)
	out = appendString(out, paramEnumeration, c.Enumeration)
	out = appendInt(out, paramFactor, c.Factor)
	out = appendBool(out, paramIsOnline, c.IsOnline)
	out = appendInt(out, paramStep, c.Step)
	out = appendValue(out, paramDefault, c.Default)
	if c.Type != nil {
		out = append(out, tlv.Int(paramType, int64(*c.Type)))
	}
	out = appendInt(out, paramStreamIdentifier, c.StreamIdentifier)
	if c.StreamDescriptor != nil {
		out = append(out, tlv.Set(paramStreamDescriptor,
			tlv.Int(itemFirst, int64(c.StreamDescriptor.Format)),
			tlv.Int(itemSecond, int64(c.StreamDescriptor.Offset)),
		))
	}
	return out
}

func encodeMatrixContents(c *MatrixContents) []tlv.Field {
	var out []tlv.Field
	out = appendString(out, contentIdentifier, c.Identifier)
	out = appendString(out, contentDescription, c.Description)
	if c.Type != nil {
		out = append(out, tlv.Int(matrixType, int64(*c.Type)))
	}
	if c.AddressingMode != nil {
		out = append(out, tlv.Int(matrixAddressing, int64(*c.AddressingMode)))
	}
	out = appendInt(out, matrixTargetCount, c.TargetCount)
	out = appendInt(out, matrixSourceCount, c.SourceCount)
	out = appendInt(out, matrixMaxTotalConnects, c.MaximumTotalConnects)
	out = appendInt(out, matrixMaxConnectsPerTgt, c.MaximumConnectsPerTarget)
	if c.ParametersLocation != nil {
		out = append(out, tlv.OID(matrixParametersLocation, c.ParametersLocation))
	}
	return out
}

func encodeFunctionContents(c *FunctionContents) []tlv.Field {
	var out []tlv.Field
	out = appendString(out, contentIdentifier, c.Identifier)
	out = appendString(out, contentDescription, c.Description)
	if c.Arguments != nil {
		out = append(out, tlv.Set(functionArguments, encodeTuple(c.Arguments)...))
	}
	if c.Result != nil {
		out = append(out, tlv.Set(functionResult, encodeTuple(c.Result)...))
	}
	return out
}

func encodeTuple(items []TupleItem) []tlv.Field {
	out := make([]tlv.Field, 0, len(items))
	for _, it := range items {
		out = append(out, tlv.Set(itemFirst,
			tlv.Int(itemFirst, int64(it.Type)),
			tlv.String(itemSecond, it.Name),
		))
	}
	return out
}

func encodeValues(values []Value) []tlv.Field {
	out := make([]tlv.Field, 0, len(values))
	for _, v := range values {
		out = append(out, encodeValue(itemFirst, v))
	}
	return out
}

func encodeValue(tag uint16, v Value) tlv.Field {
	switch v.Type {
	case ValueInteger:
		return tlv.Int(tag, v.Int)
	case ValueReal:
		return tlv.Real(tag, v.Real)
	case ValueString:
		return tlv.String(tag, v.Str)
	case ValueBoolean:
		return tlv.Bool(tag, v.Bool)
	case ValueOctets:
		return tlv.Octets(tag, v.Octets)
	default:
		return tlv.Null(tag)
	}
}

func appendString(out []tlv.Field, tag uint16, v *string) []tlv.Field {
	if v == nil {
		return out
	}
	return append(out, tlv.String(tag, *v))
}

func appendBool(out []tlv.Field, tag uint16, v *bool) []tlv.Field {
	if v == nil {
		return out
	}
	return append(out, tlv.Bool(tag, *v))
}

func appendInt(out []tlv.Field, tag uint16, v *int32) []tlv.Field {
	if v == nil {
		return out
	}
	return append(out, tlv.Int(tag, int64(*v)))
}

func appendValue(out []tlv.Field, tag uint16, v *Value) []tlv.Field {
	if v == nil {
		return out
	}
	return append(out, encodeValue(tag, *v))
}

func decodeList(fields []tlv.Field, depth int) ([]Container, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}
	out := make([]Container, 0, len(fields))
	for _, f := range fields {
		c, err := decodeContainer(f, depth)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func decodeContainer(f tlv.Field, depth int) (Container, error) {
	switch f.Tag {
	case tagNode, tagParameter, tagMatrix, tagFunction,
		tagQualifiedNode, tagQualifiedParam, tagQualifiedMatrix, tagQualifiedFunc,
		tagCommand, tagStreamCollection, tagInvocationResult:
	default:
		return nil, nil
	}
	fields, err := f.Children()
	if err != nil {
		return nil, fmt.Errorf("glow: decode container tag %d: %w", f.Tag, err)
	}
	switch f.Tag {
	case tagCommand:
		return decodeCommand(fields)
	case tagStreamCollection:
		return decodeStreamCollection(fields)
	case tagInvocationResult:
		return decodeInvocationResult(fields)
	}

	number, path, err := decodeAddress(f.Tag, fields)
	if err != nil {
		return nil, err
	}
	var children []Container
	if cf, ok := tlv.GetField(fields, fieldChildren); ok {
		list, err := cf.Children()
		if err != nil {
			return nil, fmt.Errorf("glow: decode children: %w", err)
		}
		if children, err = decodeList(list, depth+1); err != nil {
			return nil, err
		}
	}
	contents, hasContents := tlv.GetField(fields, fieldContents)
	var cfields []tlv.Field
	if hasContents {
		if cfields, err = contents.Children(); err != nil {
			return nil, fmt.Errorf("glow: decode contents: %w", err)
		}
	}

	switch f.Tag {
	case tagNode, tagQualifiedNode:
		n := &Node{Number: number, Path: path, Children: children}
		if hasContents {
			if n.Contents, err = decodeNodeContents(cfields); err != nil {
				return nil, err
			}
		}
		return n, nil
	case tagParameter, tagQualifiedParam:
		p := &Parameter{Number: number, Path: path, Children: children}
		if hasContents {
			if p.Contents, err = decodeParameterContents(cfields); err != nil {
				return nil, err
			}
		}
		return p, nil
	case tagMatrix, tagQualifiedMatrix:
		m := &Matrix{Number: number, Path: path, Children: children}
		if hasContents {
			if m.Contents, err = decodeMatrixContents(cfields); err != nil {
				return nil, err
			}
		}
		if tf, ok := tlv.GetField(fields, fieldTargets); ok {
			if m.Targets, err = tf.OID(); err != nil {
				return nil, err
			}
		}
		if sf, ok := tlv.GetField(fields, fieldSources); ok {
			if m.Sources, err = sf.OID(); err != nil {
				return nil, err
			}
		}
		if cf, ok := tlv.GetField(fields, fieldConnections); ok {
			if m.Connections, err = decodeConnections(cf); err != nil {
				return nil, err
			}
		}
		return m, nil
	default:
		fn := &Function{Number: number, Path: path, Children: children}
		if hasContents {
			if fn.Contents, err = decodeFunctionContents(cfields); err != nil {
				return nil, err
			}
		}
		return fn, nil
	}
}

func decodeAddress(tag uint16, fields []tlv.Field) (int32, OID, error) {
	if tag >= tagQualifiedNode {
		pf, ok := tlv.GetField(fields, fieldPath)
		if !ok {
			return 0, nil, fmt.Errorf("%w: qualified container without path", ErrMalformed)
		}
		raw, err := pf.OID()
		if err != nil {
			return 0, nil, err
		}
		path := OID(raw)
		if len(path) == 0 {
			path = OID{}
		}
		return 0, path, nil
	}
	nf, ok := tlv.GetField(fields, fieldNumber)
	if !ok {
		return 0, nil, fmt.Errorf("%w: container without number", ErrMalformed)
	}
	n, err := nf.Int()
	if err != nil {
		return 0, nil, err
	}
	return int32(n), nil, nil
}

func decodeCommand(fields []tlv.Field) (*Command, error) {
	nf, ok := tlv.GetField(fields, itemFirst)
	if !ok {
		return nil, fmt.Errorf("%w: command without number", ErrMalformed)
	}
	n, err := nf.Int()
	if err != nil {
		return nil, err
	}
	cmd := &Command{Number: CommandType(n)}
	if mf, ok := tlv.GetField(fields, itemSecond); ok {
		mask, err := mf.Int()
		if err != nil {
			return nil, err
		}
		cmd.FieldMask = FieldFlags(mask)
	}
	if inf, ok := tlv.GetField(fields, itemThird); ok {
		inv, err := inf.Children()
		if err != nil {
			return nil, err
		}
		cmd.Invocation = &Invocation{ID: InvocationNone}
		if idf, ok := tlv.GetField(inv, itemFirst); ok {
			id, err := idf.Int()
			if err != nil {
				return nil, err
			}
			cmd.Invocation.ID = int32(id)
		}
		if af, ok := tlv.GetField(inv, itemSecond); ok {
			if cmd.Invocation.Arguments, err = decodeValues(af); err != nil {
				return nil, err
			}
		}
	}
	return cmd, nil
}

func decodeStreamCollection(fields []tlv.Field) (*StreamCollection, error) {
	sc := &StreamCollection{Entries: make([]StreamEntry, 0, len(fields))}
	for _, f := range fields {
		entry, err := f.Children()
		if err != nil {
			return nil, err
		}
		var e StreamEntry
		if idf, ok := tlv.GetField(entry, itemFirst); ok {
			id, err := idf.Int()
			if err != nil {
				return nil, err
			}
			e.Identifier = int32(id)
		}
		if vf, ok := tlv.GetField(entry, itemSecond); ok {
			if e.Value, err = decodeValue(vf); err != nil {
				return nil, err
			}
		}
		sc.Entries = append(sc.Entries, e)
	}
	return sc, nil
}

func decodeInvocationResult(fields []tlv.Field) (*InvocationResult, error) {
	res := &InvocationResult{InvocationID: InvocationNone}
	var err error
	if idf, ok := tlv.GetField(fields, itemFirst); ok {
		id, err := idf.Int()
		if err != nil {
			return nil, err
		}
		res.InvocationID = int32(id)
	}
	if sf, ok := tlv.GetField(fields, itemSecond); ok {
		if res.Success, err = sf.Bool(); err != nil {
			return nil, err
		}
	}
	if rf, ok := tlv.GetField(fields, itemThird); ok {
		if res.Result, err = decodeValues(rf); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func decodeConnections(f tlv.Field) ([]Connection, error) {
	list, err := f.Children()
	if err != nil {
		return nil, err
	}
	out := make([]Connection, 0, len(list))
	for _, item := range list {
		fields, err := item.Children()
		if err != nil {
			return nil, err
		}
		c := Connection{Operation: OperationAbsolute}
		if tf, ok := tlv.GetField(fields, itemFirst); ok {
			v, err := tf.Int()
			if err != nil {
				return nil, err
			}
			c.Target = int32(v)
		}
		if sf, ok := tlv.GetField(fields, itemSecond); ok {
			if c.Sources, err = sf.OID(); err != nil {
				return nil, err
			}
		}
		if of, ok := tlv.GetField(fields, itemThird); ok {
			v, err := of.Int()
			if err != nil {
				return nil, err
			}
			c.Operation = ConnectionOperation(v)
		}
		if df, ok := tlv.GetField(fields, itemFourth); ok {
			v, err := df.Int()
			if err != nil {
				return nil, err
			}
			c.Disposition = ConnectionDisposition(v)
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeNodeContents(fields []tlv.Field) (*NodeContents, error) {
	c := &NodeContents{}
	var err error
	if c.Identifier, err = optString(fields, contentIdentifier); err != nil {
		return nil, err
	}
	if c.Description, err = optString(fields, contentDescription); err != nil {
		return nil, err
	}
	if c.IsRoot, err = optBool(fields, nodeIsRoot); err != nil {
		return nil, err
	}
	if c.IsOnline, err = optBool(fields, nodeIsOnline); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeParameterContents(fields []tlv.Field) (*ParameterContents, error) {
	c := &ParameterContents{}
	var err error
	if c.Identifier, err = optString(fields, contentIdentifier); err != nil {
		return nil, err
	}
	if c.Description, err = optString(fields, contentDescription); err != nil {
		return nil, err
	}
	if c.Value, err = optValue(fields, paramValue); err != nil {
		return nil, err
	}
	if c.Minimum, err = optValue(fields, paramMinimum); err != nil {
		return nil, err
	}
	if c.Maximum, err = optValue(fields, paramMaximum); err != nil {
		return nil, err
	}
	access, err := optInt(fields, paramAccess)
	if err != nil {
		return nil, err
	}
	if access != nil {
		c.Access = Ptr(Access(*access))
	}
	if c.Format, err = optString(fields, paramFormat); err != nil {
		return nil, err
	}
	if c.Enumeration, err = optString(fields, paramEnumeration); err != nil {
		return nil, err
	}
	if c.Factor, err = optInt(fields, paramFactor); err != nil {
		return nil, err
	}
	if c.IsOnline, err = optBool(fields, paramIsOnline); err != nil {
		return nil, err
	}
	if c.Step, err = optInt(fields, paramStep); err != nil {
		return nil, err
	}
	if c.Default, err = optValue(fields, paramDefault); err != nil {
		return nil, err
	}
	typ, err := optInt(fields, paramType)
	if err != nil {
		return nil, err
	}
	if typ != nil {
		c.Type = Ptr(ParameterType(*typ))
	}
	if c.StreamIdentifier, err = optInt(fields, paramStreamIdentifier); err != nil {
		return nil, err
	}
	if df, ok := tlv.GetField(fields, paramStreamDescriptor); ok {
		desc, err := df.Children()
		if err != nil {
			return nil, err
		}
		format, err := optInt(desc, itemFirst)
		if err != nil {
			return nil, err
		}
		offset, err := optInt(desc, itemSecond)
		if err != nil {
			return nil, err
		}
		sd := &StreamDescriptor{}
		if format != nil {
			sd.Format = StreamFormat(*format)
		}
		if offset != nil {
			sd.Offset = *offset
		}
		c.StreamDescriptor = sd
	}
	return c, nil
}

func decodeMatrixContents(fields []tlv.Field) (*MatrixContents, error) {
	c := &MatrixContents{}
	var err error
	if c.Identifier, err = optString(fields, contentIdentifier); err != nil {
		return nil, err
	}
	if c.Description, err = optString(fields, contentDescription); err != nil {
		return nil, err
	}
	typ, err := optInt(fields, matrixType)
	if err != nil {
		return nil, err
	}
	if typ != nil {
		c.Type = Ptr(MatrixType(*typ))
	}
	mode, err := optInt(fields, matrixAddressing)
	if err != nil {
		return nil, err
	}
	if mode != nil {
		c.AddressingMode = Ptr(AddressingMode(*mode))
	}
	if c.TargetCount, err = optInt(fields, matrixTargetCount); err != nil {
		return nil, err
	}
	if c.SourceCount, err = optInt(fields, matrixSourceCount); err != nil {
		return nil, err
	}
	if c.MaximumTotalConnects, err = optInt(fields, matrixMaxTotalConnects); err != nil {
		return nil, err
	}
	if c.MaximumConnectsPerTarget, err = optInt(fields, matrixMaxConnectsPerTgt); err != nil {
		return nil, err
	}
	if lf, ok := tlv.GetField(fields, matrixParametersLocation); ok {
		raw, err := lf.OID()
		if err != nil {
			return nil, err
		}
		c.ParametersLocation = OID(raw)
	}
	return c, nil
}

func decodeFunctionContents(fields []tlv.Field) (*FunctionContents, error) {
	c := &FunctionContents{}
	var err error
	if c.Identifier, err = optString(fields, contentIdentifier); err != nil {
		return nil, err
	}
	if c.Description, err = optString(fields, contentDescription); err != nil {
		return nil, err
	}
	if af, ok := tlv.GetField(fields, functionArguments); ok {
		if c.Arguments, err = decodeTuple(af); err != nil {
			return nil, err
		}
	}
	if rf, ok := tlv.GetField(fields, functionResult); ok {
		if c.Result, err = decodeTuple(rf); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func decodeTuple(f tlv.Field) ([]TupleItem, error) {
	list, err := f.Children()
	if err != nil {
		return nil, err
	}
	out := make([]TupleItem, 0, len(list))
	for _, item := range list {
		fields, err := item.Children()
		if err != nil {
			return nil, err
		}
		var it TupleItem
		typ, err := optInt(fields, itemFirst)
		if err != nil {
			return nil, err
		}
		if typ != nil {
			it.Type = ParameterType(*typ)
		}
		name, err := optString(fields, itemSecond)
		if err != nil {
			return nil, err
		}
		if name != nil {
			it.Name = *name
		}
		out = append(out, it)
	}
	return out, nil
}

func decodeValues(f tlv.Field) ([]Value, error) {
	list, err := f.Children()
	if err != nil {
		return nil, err
	}
	out := make([]Value, 0, len(list))
	for _, item := range list {
		v, err := decodeValue(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeValue(f tlv.Field) (Value, error) {
	switch f.Type {
	case tlv.TypeInt:
		v, err := f.Int()
		return IntValue(v), err
	case tlv.TypeReal:
		v, err := f.Real()
		return RealValue(v), err
	case tlv.TypeString:
		v, err := f.Str()
		return StringValue(v), err
	case tlv.TypeBool:
		v, err := f.Bool()
		return BoolValue(v), err
	case tlv.TypeOctets:
		v, err := f.Bytes()
		return Value{Type: ValueOctets, Octets: v}, err
	case tlv.TypeNull:
		return Value{}, nil
	default:
		return Value{}, fmt.Errorf("%w: tlv type %d", ErrUnknownValue, f.Type)
	}
}

func optString(fields []tlv.Field, tag uint16) (*string, error) {
	f, ok := tlv.GetField(fields, tag)
	if !ok {
		return nil, nil
	}
	v, err := f.Str()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optBool(fields []tlv.Field, tag uint16) (*bool, error) {
	f, ok := tlv.GetField(fields, tag)
	if !ok {
		return nil, nil
	}
	v, err := f.Bool()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optInt(fields []tlv.Field, tag uint16) (*int32, error) {
	f, ok := tlv.GetField(fields, tag)
	if !ok {
		return nil, nil
	}
	v, err := f.Int()
	if err != nil {
		return nil, err
	}
	n := int32(v)
	return &n, nil
}

func optValue(fields []tlv.Field, tag uint16) (*Value, error) {
	f, ok := tlv.GetField(fields, tag)
	if !ok {
		return nil, nil
	}
	v, err := decodeValue(f)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
