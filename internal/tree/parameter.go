package tree

import (
	"fmt"

	"github.com/danmuck/emberctl/internal/protocol/glow"
)

// ParameterConfig describes a parameter at build time. A zero Value is
// replaced by the zero value of Type.
type ParameterConfig struct {
	Description      string
	Type             glow.ParameterType
	Value            glow.Value
	Minimum          *glow.Value
	Maximum          *glow.Value
	Access           glow.Access
	Format           string
	Enumeration      []string
	Factor           int32
	Step             int32
	Default          *glow.Value
	StreamIdentifier *int32
	StreamDescriptor *glow.StreamDescriptor
	Offline          bool
}

type Parameter struct {
	base
	typ         glow.ParameterType
	value       glow.Value
	min         *glow.Value
	max         *glow.Value
	access      glow.Access
	format      string
	enumeration []string
	factor      int32
	step        int32
	def         *glow.Value
	streamID    *int32
	streamDesc  *glow.StreamDescriptor
	online      bool
}

// AddParameter attaches a parameter below parent.
func (t *Tree) AddParameter(parent *Node, number int32, identifier string, cfg ParameterConfig) (*Parameter, error) {
	p := newParameter(cfg)
	if err := p.validate(); err != nil {
		path := glow.OID{number}
		if parent != nil {
			path = parent.path.Append(number)
		}
		return nil, pathError(path, err)
	}
	if err := t.attach(parent, &p.base, number, identifier, cfg.Description, p); err != nil {
		return nil, err
	}
	return p, nil
}

func newParameter(cfg ParameterConfig) *Parameter {
	p := &Parameter{
		typ:         cfg.Type,
		value:       cfg.Value,
		min:         cloneValue(cfg.Minimum),
		max:         cloneValue(cfg.Maximum),
		access:      cfg.Access,
		format:      cfg.Format,
		enumeration: append([]string(nil), cfg.Enumeration...),
		factor:      cfg.Factor,
		step:        cfg.Step,
		def:         cloneValue(cfg.Default),
		streamDesc:  cfg.StreamDescriptor,
		online:      !cfg.Offline,
	}
	if cfg.StreamIdentifier != nil {
		p.streamID = glow.Ptr(*cfg.StreamIdentifier)
	}
	if p.value.IsZero() {
		p.value = zeroValue(p.typ)
		numericType := p.typ == glow.ParameterInteger || p.typ == glow.ParameterReal
		if numericType && p.min != nil && numeric(p.value) < numeric(*p.min) {
			p.value = *p.min
		}
	}
	return p
}

func (p *Parameter) validate() error {
	if p.typ < glow.ParameterNull || p.typ > glow.ParameterOctets {
		return fmt.Errorf("%w: unknown type %d", ErrInvalidParameter, p.typ)
	}
	if p.typ == glow.ParameterEnum && len(p.enumeration) == 0 {
		return fmt.Errorf("%w: enum without entries", ErrInvalidParameter)
	}
	if p.min != nil && p.max != nil && numeric(*p.min) > numeric(*p.max) {
		return fmt.Errorf("%w: minimum above maximum", ErrInvalidParameter)
	}
	if p.streamDesc != nil {
		switch p.typ {
		case glow.ParameterInteger, glow.ParameterReal, glow.ParameterBoolean, glow.ParameterEnum, glow.ParameterTrigger:
		default:
			return fmt.Errorf("%w: %s values cannot carry a stream descriptor", ErrInvalidParameter, p.typ)
		}
		if p.streamDesc.Offset < 0 {
			return fmt.Errorf("%w: negative stream offset", ErrInvalidParameter)
		}
	}
	v, err := p.Coerce(p.value)
	if err != nil {
		return err
	}
	p.value = v
	return nil
}

func (*Parameter) Kind() Kind { return KindParameter }

func (p *Parameter) Type() glow.ParameterType { return p.typ }
func (p *Parameter) Value() glow.Value        { return p.value }
func (p *Parameter) Access() glow.Access      { return p.access }
func (p *Parameter) Format() string           { return p.format }
func (p *Parameter) Factor() int32            { return p.factor }
func (p *Parameter) Step() int32              { return p.step }
func (p *Parameter) Online() bool             { return p.online }

func (p *Parameter) Minimum() *glow.Value { return cloneValue(p.min) }
func (p *Parameter) Maximum() *glow.Value { return cloneValue(p.max) }
func (p *Parameter) Default() *glow.Value { return cloneValue(p.def) }

func (p *Parameter) Enumeration() []string {
	return append([]string(nil), p.enumeration...)
}

func (p *Parameter) StreamIdentifier() (int32, bool) {
	if p.streamID == nil {
		return 0, false
	}
	return *p.streamID, true
}

func (p *Parameter) StreamDescriptor() (glow.StreamDescriptor, bool) {
	if p.streamDesc == nil {
		return glow.StreamDescriptor{}, false
	}
	return *p.streamDesc, true
}

// Writable reports whether consumers may set the value.
func (p *Parameter) Writable() bool {
	return p.access.CanWrite()
}

func (p *Parameter) SetOnline(online bool) {
	if p.online == online {
		return
	}
	p.online = online
	p.markDirty(DirtyProperties)
}

// Coerce converts v to the parameter's type without applying it.
func (p *Parameter) Coerce(v glow.Value) (glow.Value, error) {
	var out glow.Value
	switch p.typ {
	case glow.ParameterInteger:
		if v.Type != glow.ValueInteger {
			return out, mismatch(p.typ, v)
		}
		out = v
	case glow.ParameterEnum:
		if v.Type != glow.ValueInteger {
			return out, mismatch(p.typ, v)
		}
		if v.Int < 0 || v.Int >= int64(len(p.enumeration)) {
			return out, fmt.Errorf("%w: enum index %d", ErrOutOfRange, v.Int)
		}
		out = v
	case glow.ParameterReal:
		switch v.Type {
		case glow.ValueReal:
			out = v
		case glow.ValueInteger:
			out = glow.RealValue(float64(v.Int))
		default:
			return out, mismatch(p.typ, v)
		}
	case glow.ParameterString:
		if v.Type != glow.ValueString {
			return out, mismatch(p.typ, v)
		}
		out = v
	case glow.ParameterBoolean:
		if v.Type != glow.ValueBoolean {
			return out, mismatch(p.typ, v)
		}
		out = v
	case glow.ParameterOctets:
		if v.Type != glow.ValueOctets {
			return out, mismatch(p.typ, v)
		}
		out = glow.OctetsValue(v.Octets)
	case glow.ParameterTrigger:
		if v.Type != glow.ValueInteger && v.Type != glow.ValueNone {
			return out, mismatch(p.typ, v)
		}
		out = v
	default:
		return out, mismatch(p.typ, v)
	}
	if err := p.checkRange(out); err != nil {
		return glow.Value{}, err
	}
	return out, nil
}

func (p *Parameter) checkRange(v glow.Value) error {
	if v.Type != glow.ValueInteger && v.Type != glow.ValueReal {
		return nil
	}
	if p.typ == glow.ParameterTrigger {
		return nil
	}
	n := numeric(v)
	if p.min != nil && n < numeric(*p.min) {
		return fmt.Errorf("%w: %v below minimum %v", ErrOutOfRange, v.Any(), p.min.Any())
	}
	if p.max != nil && n > numeric(*p.max) {
		return fmt.Errorf("%w: %v above maximum %v", ErrOutOfRange, v.Any(), p.max.Any())
	}
	return nil
}

// SetValue coerces and applies v. With force the change is reported even
// when the value is unchanged. Crosspoint gains are written through their
// owning matrix.
func (p *Parameter) SetValue(v glow.Value, force bool) (bool, error) {
	if p.released {
		return false, ErrReleased
	}
	coerced, err := p.Coerce(v)
	if err != nil {
		return false, pathError(p.path, err)
	}
	if !force && coerced.Equal(p.value) {
		return false, nil
	}
	if p.owner != nil {
		if err := p.owner.crosspointChanged(p.path, coerced); err != nil {
			return false, err
		}
		p.value = coerced
		return true, nil
	}
	p.value = coerced
	p.markDirty(DirtyValue)
	if p.tree != nil {
		p.tree.sink.ParameterValueChanged(p.Path(), coerced)
	}
	return true, nil
}

func mismatch(t glow.ParameterType, v glow.Value) error {
	return fmt.Errorf("%w: %s parameter given %s", ErrTypeMismatch, t, v.Type)
}

// fits reports whether v is acceptable for a slot of type t without range
// checks. Used for function signatures.
func fits(t glow.ParameterType, v glow.Value) bool {
	switch t {
	case glow.ParameterInteger, glow.ParameterEnum:
		return v.Type == glow.ValueInteger
	case glow.ParameterReal:
		return v.Type == glow.ValueReal || v.Type == glow.ValueInteger
	case glow.ParameterString:
		return v.Type == glow.ValueString
	case glow.ParameterBoolean:
		return v.Type == glow.ValueBoolean
	case glow.ParameterOctets:
		return v.Type == glow.ValueOctets
	case glow.ParameterTrigger:
		return true
	default:
		return v.Type == glow.ValueNone
	}
}

func zeroValue(t glow.ParameterType) glow.Value {
	switch t {
	case glow.ParameterInteger, glow.ParameterEnum, glow.ParameterTrigger:
		return glow.IntValue(0)
	case glow.ParameterReal:
		return glow.RealValue(0)
	case glow.ParameterString:
		return glow.StringValue("")
	case glow.ParameterBoolean:
		return glow.BoolValue(false)
	case glow.ParameterOctets:
		return glow.OctetsValue(nil)
	default:
		return glow.Value{}
	}
}

func numeric(v glow.Value) float64 {
	if v.Type == glow.ValueReal {
		return v.Real
	}
	return float64(v.Int)
}

func cloneValue(v *glow.Value) *glow.Value {
	if v == nil {
		return nil
	}
	c := *v
	if v.Octets != nil {
		c.Octets = append([]byte(nil), v.Octets...)
	}
	return &c
}
