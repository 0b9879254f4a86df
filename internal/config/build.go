package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/danmuck/emberctl/internal/protocol/glow"
	"github.com/danmuck/emberctl/internal/stream"
	"github.com/danmuck/emberctl/internal/tree"
)

// Build constructs a tree from tmpl. The returned tree has no sink and no
// pending changes.
func Build(tmpl TreeTemplate) (*tree.Tree, error) {
	if err := ValidateTreeTemplate(tmpl); err != nil {
		return nil, err
	}
	t := tree.New(nil)
	for _, n := range tmpl.Nodes {
		if err := buildNode(t, t.Root(), n); err != nil {
			return nil, err
		}
	}
	if _, err := stream.NewRegistry().RegisterTree(t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	t.ClearDirty()
	return t, nil
}

// LoadTree reads and builds the template at path.
func LoadTree(path string) (*tree.Tree, error) {
	tmpl, err := LoadTreeTemplate(path)
	if err != nil {
		return nil, err
	}
	t, err := Build(tmpl)
	if err != nil {
		return nil, fmt.Errorf("config build failed (%s): %w", path, err)
	}
	return t, nil
}

func buildNode(t *tree.Tree, parent *tree.Node, tmpl NodeTemplate) error {
	n, err := t.AddNode(parent, tmpl.Number, tmpl.Identifier, tmpl.Description)
	if err != nil {
		return err
	}
	if tmpl.Offline {
		n.SetOnline(false)
	}
	for _, p := range tmpl.Parameters {
		cfg, err := parameterConfig(p)
		if err != nil {
			return fmt.Errorf("%w: %s/%s: %v", ErrInvalidTemplate, tmpl.Identifier, p.Identifier, err)
		}
		if _, err := t.AddParameter(n, p.Number, p.Identifier, cfg); err != nil {
			return err
		}
	}
	for _, m := range tmpl.Matrices {
		if err := buildMatrix(t, n, m); err != nil {
			return err
		}
	}
	for _, f := range tmpl.Functions {
		cfg, err := functionConfig(f)
		if err != nil {
			return fmt.Errorf("%w: %s/%s: %v", ErrInvalidTemplate, tmpl.Identifier, f.Identifier, err)
		}
		if _, err := t.AddFunction(n, f.Number, f.Identifier, cfg); err != nil {
			return err
		}
	}
	for _, child := range tmpl.Nodes {
		if err := buildNode(t, n, child); err != nil {
			return err
		}
	}
	return nil
}

func parameterConfig(p ParameterTemplate) (tree.ParameterConfig, error) {
	typ, err := parseParameterType(p.Type)
	if err != nil {
		return tree.ParameterConfig{}, err
	}
	access, err := parseAccess(p.Access)
	if err != nil {
		return tree.ParameterConfig{}, err
	}
	cfg := tree.ParameterConfig{
		Description: p.Description,
		Type:        typ,
		Access:      access,
		Format:      p.Format,
		Enumeration: p.Enumeration,
		Factor:      p.Factor,
		Step:        p.Step,
		Offline:     p.Offline,
	}
	if cfg.Value, err = templateValue(typ, p.Enumeration, p.Value); err != nil {
		return tree.ParameterConfig{}, fmt.Errorf("value: %w", err)
	}
	if cfg.Minimum, err = optionalValue(typ, p.Enumeration, p.Minimum); err != nil {
		return tree.ParameterConfig{}, fmt.Errorf("minimum: %w", err)
	}
	if cfg.Maximum, err = optionalValue(typ, p.Enumeration, p.Maximum); err != nil {
		return tree.ParameterConfig{}, fmt.Errorf("maximum: %w", err)
	}
	if cfg.Default, err = optionalValue(typ, p.Enumeration, p.Default); err != nil {
		return tree.ParameterConfig{}, fmt.Errorf("default: %w", err)
	}
	if p.StreamIdentifier != nil {
		cfg.StreamIdentifier = glow.Ptr(*p.StreamIdentifier)
	}
	if strings.TrimSpace(p.StreamFormat) != "" {
		format, err := parseStreamFormat(p.StreamFormat)
		if err != nil {
			return tree.ParameterConfig{}, err
		}
		cfg.StreamDescriptor = &glow.StreamDescriptor{Format: format, Offset: p.StreamOffset}
	}
	return cfg, nil
}

func buildMatrix(t *tree.Tree, parent *tree.Node, tmpl MatrixTemplate) error {
	typ, err := parseMatrixType(tmpl.Type)
	if err != nil {
		return fmt.Errorf("%w: matrix %s: %v", ErrInvalidTemplate, tmpl.Identifier, err)
	}
	addressing, err := parseAddressing(tmpl.Addressing)
	if err != nil {
		return fmt.Errorf("%w: matrix %s: %v", ErrInvalidTemplate, tmpl.Identifier, err)
	}
	m, err := t.AddMatrix(parent, tmpl.Number, tmpl.Identifier, tree.MatrixConfig{
		Description:              tmpl.Description,
		Type:                     typ,
		Addressing:               addressing,
		Dynamic:                  tmpl.Dynamic,
		TargetCount:              tmpl.TargetCount,
		SourceCount:              tmpl.SourceCount,
		Targets:                  tmpl.Targets,
		Sources:                  tmpl.Sources,
		MaximumTotalConnects:     tmpl.MaximumTotalConnects,
		MaximumConnectsPerTarget: tmpl.MaximumConnectsPerTarget,
	})
	if err != nil {
		return err
	}
	for _, c := range tmpl.Connections {
		if _, err := m.Connect(c.Target, c.Sources, glow.OperationAbsolute); err != nil {
			return err
		}
	}
	return nil
}

func functionConfig(f FunctionTemplate) (tree.FunctionConfig, error) {
	args, err := tuple(f.Arguments)
	if err != nil {
		return tree.FunctionConfig{}, fmt.Errorf("argument %w", err)
	}
	result, err := tuple(f.Result)
	if err != nil {
		return tree.FunctionConfig{}, fmt.Errorf("result %w", err)
	}
	delegate, ok := delegates[strings.TrimSpace(f.Delegate)]
	if !ok {
		return tree.FunctionConfig{}, fmt.Errorf("unknown delegate %q", f.Delegate)
	}
	return tree.FunctionConfig{
		Description: f.Description,
		Arguments:   args,
		Result:      result,
		Invoke:      delegate(result),
	}, nil
}

func tuple(items []TupleTemplate) ([]glow.TupleItem, error) {
	out := make([]glow.TupleItem, 0, len(items))
	for _, item := range items {
		typ, err := parseParameterType(item.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", item.Name, err)
		}
		out = append(out, glow.TupleItem{Type: typ, Name: item.Name})
	}
	return out, nil
}

// delegates is the catalogue of behaviours a template function can bind to.
// Each constructor receives the declared result signature.
var delegates = map[string]func(result []glow.TupleItem) tree.Invoker{
	"sum":  sumDelegate,
	"echo": echoDelegate,
}

// sumDelegate adds every numeric argument. The result is real when the first
// result slot is real and integer otherwise.
func sumDelegate(result []glow.TupleItem) tree.Invoker {
	asReal := len(result) > 0 && result[0].Type == glow.ParameterReal
	return func(args []glow.Value) ([]glow.Value, error) {
		var isum int64
		var fsum float64
		fractional := false
		for i, a := range args {
			switch a.Type {
			case glow.ValueInteger:
				isum += a.Int
				fsum += float64(a.Int)
			case glow.ValueReal:
				fsum += a.Real
				fractional = true
			default:
				return nil, fmt.Errorf("argument %d is %s", i, a.Type)
			}
		}
		switch {
		case len(result) == 0:
			return nil, nil
		case asReal:
			return []glow.Value{glow.RealValue(fsum)}, nil
		case fractional:
			return []glow.Value{glow.IntValue(int64(math.Round(fsum)))}, nil
		default:
			return []glow.Value{glow.IntValue(isum)}, nil
		}
	}
}

// echoDelegate returns the first len(result) arguments unchanged.
func echoDelegate(result []glow.TupleItem) tree.Invoker {
	return func(args []glow.Value) ([]glow.Value, error) {
		if len(args) < len(result) {
			return nil, fmt.Errorf("echo needs %d arguments, got %d", len(result), len(args))
		}
		return append([]glow.Value(nil), args[:len(result)]...), nil
	}
}

func parseParameterType(s string) (glow.ParameterType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t := glow.ParameterInteger; t <= glow.ParameterOctets; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return glow.ParameterNull, fmt.Errorf("unknown parameter type %q", s)
}

func parseAccess(s string) (glow.Access, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "read":
		return glow.AccessRead, nil
	case "write":
		return glow.AccessWrite, nil
	case "readwrite", "read_write":
		return glow.AccessReadWrite, nil
	case "none":
		return glow.AccessNone, nil
	default:
		return glow.AccessNone, fmt.Errorf("unknown access %q", s)
	}
}

func parseMatrixType(s string) (glow.MatrixType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "oneton", "1:n":
		return glow.MatrixOneToN, nil
	case "onetoone", "1:1":
		return glow.MatrixOneToOne, nil
	case "nton", "n:n":
		return glow.MatrixNToN, nil
	default:
		return glow.MatrixOneToN, fmt.Errorf("unknown matrix type %q", s)
	}
}

func parseAddressing(s string) (glow.AddressingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return glow.AddressingLinear, nil
	case "nonlinear", "non-linear":
		return glow.AddressingNonLinear, nil
	default:
		return glow.AddressingLinear, fmt.Errorf("unknown addressing %q", s)
	}
}

var streamFormats = map[string]glow.StreamFormat{
	"uint8":     glow.StreamUint8,
	"uint16be":  glow.StreamUint16BE,
	"uint16le":  glow.StreamUint16LE,
	"uint32be":  glow.StreamUint32BE,
	"uint32le":  glow.StreamUint32LE,
	"uint64be":  glow.StreamUint64BE,
	"uint64le":  glow.StreamUint64LE,
	"int8":      glow.StreamInt8,
	"int16be":   glow.StreamInt16BE,
	"int16le":   glow.StreamInt16LE,
	"int32be":   glow.StreamInt32BE,
	"int32le":   glow.StreamInt32LE,
	"int64be":   glow.StreamInt64BE,
	"int64le":   glow.StreamInt64LE,
	"float32be": glow.StreamFloat32BE,
	"float32le": glow.StreamFloat32LE,
	"float64be": glow.StreamFloat64BE,
	"float64le": glow.StreamFloat64LE,
}

func parseStreamFormat(s string) (glow.StreamFormat, error) {
	f, ok := streamFormats[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown stream format %q", s)
	}
	return f, nil
}

// templateValue converts a decoded TOML value for a parameter of type typ.
// Enum values may be given by index or by entry name. A nil raw value yields
// the zero Value, which the tree replaces with the type's default.
func templateValue(typ glow.ParameterType, enum []string, raw any) (glow.Value, error) {
	switch v := raw.(type) {
	case nil:
		return glow.Value{}, nil
	case int64:
		if typ == glow.ParameterReal {
			return glow.RealValue(float64(v)), nil
		}
		return glow.IntValue(v), nil
	case float64:
		if typ == glow.ParameterInteger && v == math.Trunc(v) {
			return glow.IntValue(int64(v)), nil
		}
		return glow.RealValue(v), nil
	case bool:
		return glow.BoolValue(v), nil
	case string:
		switch typ {
		case glow.ParameterEnum:
			for i, name := range enum {
				if name == v {
					return glow.IntValue(int64(i)), nil
				}
			}
			return glow.Value{}, fmt.Errorf("%q is not an enumeration entry", v)
		case glow.ParameterOctets:
			return glow.OctetsValue([]byte(v)), nil
		}
		return glow.StringValue(v), nil
	default:
		return glow.Value{}, fmt.Errorf("unsupported value %v (%T)", raw, raw)
	}
}

func optionalValue(typ glow.ParameterType, enum []string, raw any) (*glow.Value, error) {
	if raw == nil {
		return nil, nil
	}
	v, err := templateValue(typ, enum, raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
