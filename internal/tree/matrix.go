package tree

import (
	"fmt"
	"strconv"

	"github.com/RoaringBitmap/roaring"

	"github.com/danmuck/emberctl/internal/protocol/glow"
)

// Crosspoint gain parameters of a dynamic matrix live at
// matrix/ParametersNumber/<target>/<source>/GainNumber.
const (
	ParametersNumber int32 = 1
	GainNumber       int32 = 1

	GainMinimum int64 = -128
	GainMaximum int64 = 15

	// MaxSignals bounds targets and sources per matrix.
	MaxSignals = 1 << 16
	// MaxCrosspoints bounds targets*sources of a dynamic matrix, one gain each.
	MaxCrosspoints = 1 << 20
)

type MatrixConfig struct {
	Description string
	Type        glow.MatrixType
	Addressing  glow.AddressingMode
	// Dynamic matrices synthesize a gain parameter per crosspoint.
	Dynamic     bool

	// Linear addressing numbers signals 0..count-1.
	TargetCount int32
	SourceCount int32
	// Non-linear addressing lists signal numbers explicitly.
	Targets     []int32
	Sources     []int32

	// Zero means unlimited.
	MaximumTotalConnects     int32
	MaximumConnectsPerTarget int32
}

// Signal is one matrix target or source. Targets track their connected
// sources; sources leave the set empty.
type Signal struct {
	number    int32
	connected *roaring.Bitmap
}

func newSignal(n int32) *Signal {
	return &Signal{number: n, connected: roaring.New()}
}

func (s *Signal) Number() int32 { return s.number }

// Connected returns the connected source numbers in ascending order.
func (s *Signal) Connected() []int32 {
	raw := s.connected.ToArray()
	out := make([]int32, len(raw))
	for i, n := range raw {
		out[i] = int32(n)
	}
	return out
}

func (s *Signal) IsConnected(source int32) bool {
	return source >= 0 && s.connected.Contains(uint32(source))
}

func (s *Signal) Len() int {
	return int(s.connected.GetCardinality())
}

type Matrix struct {
	base
	typ          glow.MatrixType
	addressing   glow.AddressingMode
	dynamic      bool
	targets      []*Signal
	sources      []*Signal
	targetIndex  map[int32]int
	sourceIndex  map[int32]int
	maxTotal     int32
	maxPerTarget int32

	// dynamic only: gains[targetIndex*len(sources)+sourceIndex]
	gains []int64
}

// AddMatrix attaches a matrix below parent.
func (t *Tree) AddMatrix(parent *Node, number int32, identifier string, cfg MatrixConfig) (*Matrix, error) {
	m, err := newMatrix(cfg)
	if err != nil {
		path := glow.OID{number}
		if parent != nil {
			path = parent.path.Append(number)
		}
		return nil, pathError(path, err)
	}
	if err := t.attach(parent, &m.base, number, identifier, cfg.Description, m); err != nil {
		return nil, err
	}
	return m, nil
}

func newMatrix(cfg MatrixConfig) (*Matrix, error) {
	switch cfg.Type {
	case glow.MatrixOneToN, glow.MatrixOneToOne, glow.MatrixNToN:
	default:
		return nil, fmt.Errorf("%w: unknown matrix type %d", ErrInvalidMatrix, cfg.Type)
	}
	if cfg.Dynamic && cfg.Type != glow.MatrixNToN {
		return nil, fmt.Errorf("%w: dynamic matrices must be n-to-n", ErrInvalidMatrix)
	}
	if cfg.MaximumTotalConnects < 0 || cfg.MaximumConnectsPerTarget < 0 {
		return nil, fmt.Errorf("%w: negative connect limit", ErrInvalidMatrix)
	}
	var targets, sources []int32
	switch cfg.Addressing {
	case glow.AddressingLinear:
		if len(cfg.Targets) > 0 || len(cfg.Sources) > 0 {
			return nil, fmt.Errorf("%w: linear addressing takes counts, not signal lists", ErrInvalidMatrix)
		}
		if cfg.TargetCount < 0 || cfg.SourceCount < 0 {
			return nil, fmt.Errorf("%w: negative signal count", ErrInvalidMatrix)
		}
		if cfg.TargetCount > MaxSignals || cfg.SourceCount > MaxSignals {
			return nil, fmt.Errorf("%w: more than %d targets or sources", ErrInvalidMatrix, MaxSignals)
		}
		targets = linear(cfg.TargetCount)
		sources = linear(cfg.SourceCount)
	case glow.AddressingNonLinear:
		if cfg.TargetCount != 0 && int(cfg.TargetCount) != len(cfg.Targets) {
			return nil, fmt.Errorf("%w: target count %d does not match %d targets", ErrInvalidMatrix, cfg.TargetCount, len(cfg.Targets))
		}
		if cfg.SourceCount != 0 && int(cfg.SourceCount) != len(cfg.Sources) {
			return nil, fmt.Errorf("%w: source count %d does not match %d sources", ErrInvalidMatrix, cfg.SourceCount, len(cfg.Sources))
		}
		targets, sources = cfg.Targets, cfg.Sources
	default:
		return nil, fmt.Errorf("%w: unknown addressing mode %d", ErrInvalidMatrix, cfg.Addressing)
	}
	if len(targets) > MaxSignals || len(sources) > MaxSignals {
		return nil, fmt.Errorf("%w: more than %d targets or sources", ErrInvalidMatrix, MaxSignals)
	}
	if cfg.Dynamic && len(targets)*len(sources) > MaxCrosspoints {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d dynamic crosspoints", ErrInvalidMatrix, len(targets), len(sources), MaxCrosspoints)
	}

	m := &Matrix{
		typ:          cfg.Type,
		addressing:   cfg.Addressing,
		dynamic:      cfg.Dynamic,
		targetIndex:  make(map[int32]int, len(targets)),
		sourceIndex:  make(map[int32]int, len(sources)),
		maxTotal:     cfg.MaximumTotalConnects,
		maxPerTarget: cfg.MaximumConnectsPerTarget,
	}
	for _, n := range targets {
		if err := addSignal(&m.targets, m.targetIndex, n); err != nil {
			return nil, fmt.Errorf("target %d: %w", n, err)
		}
	}
	for _, n := range sources {
		if err := addSignal(&m.sources, m.sourceIndex, n); err != nil {
			return nil, fmt.Errorf("source %d: %w", n, err)
		}
	}
	if m.dynamic {
		m.gains = make([]int64, len(m.targets)*len(m.sources))
		for i := range m.gains {
			m.gains[i] = GainMinimum
		}
	}
	return m, nil
}

func linear(n int32) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(i)
	}
	return out
}

func addSignal(list *[]*Signal, index map[int32]int, n int32) error {
	if n < 0 {
		return ErrNegativeNumber
	}
	if _, dup := index[n]; dup {
		return ErrDuplicateNumber
	}
	index[n] = len(*list)
	*list = append(*list, newSignal(n))
	return nil
}

func (*Matrix) Kind() Kind { return KindMatrix }

func (m *Matrix) Type() glow.MatrixType           { return m.typ }
func (m *Matrix) Addressing() glow.AddressingMode { return m.addressing }
func (m *Matrix) Dynamic() bool                   { return m.dynamic }
func (m *Matrix) TargetCount() int32              { return int32(len(m.targets)) }
func (m *Matrix) SourceCount() int32              { return int32(len(m.sources)) }
func (m *Matrix) MaximumTotalConnects() int32     { return m.maxTotal }
func (m *Matrix) MaximumConnectsPerTarget() int32 { return m.maxPerTarget }
func (m *Matrix) Targets() []int32                { return numbers(m.targets) }
func (m *Matrix) Sources() []int32                { return numbers(m.sources) }
func (m *Matrix) TargetSignals() []*Signal        { return append([]*Signal(nil), m.targets...) }

func numbers(list []*Signal) []int32 {
	out := make([]int32, len(list))
	for i, s := range list {
		out[i] = s.number
	}
	return out
}

func (m *Matrix) Target(n int32) *Signal {
	i, ok := m.targetIndex[n]
	if !ok {
		return nil
	}
	return m.targets[i]
}

func (m *Matrix) Source(n int32) *Signal {
	i, ok := m.sourceIndex[n]
	if !ok {
		return nil
	}
	return m.sources[i]
}

// TotalConnects counts connected crosspoints over all targets.
func (m *Matrix) TotalConnects() int {
	total := 0
	for _, t := range m.targets {
		total += t.Len()
	}
	return total
}

// ParametersLocation is the path of the synthesized crosspoint parameters,
// or nil for a static matrix.
func (m *Matrix) ParametersLocation() glow.OID {
	if !m.dynamic {
		return nil
	}
	return m.path.Append(ParametersNumber)
}

// Gain returns the gain stored for a crosspoint of a dynamic matrix.
func (m *Matrix) Gain(target, source int32) (int64, bool) {
	ti, tok := m.targetIndex[target]
	si, sok := m.sourceIndex[source]
	if !m.dynamic || !tok || !sok {
		return 0, false
	}
	return m.gains[ti*len(m.sources)+si], true
}

// SetGain writes a crosspoint gain from local code, notifying the sink the
// same way a consumer write through the crosspoint parameter does.
func (m *Matrix) SetGain(target, source int32, gain int64) error {
	path := m.path.Append(ParametersNumber, target, source, GainNumber)
	if gain < GainMinimum || gain > GainMaximum {
		return pathError(path, fmt.Errorf("%w: gain %d", ErrOutOfRange, gain))
	}
	return m.crosspointChanged(path, glow.IntValue(gain))
}

// crosspointChanged is the write path of every synthesized gain parameter.
// The path is re-validated because the parameter object does not persist.
func (m *Matrix) crosspointChanged(path glow.OID, v glow.Value) error {
	ti, si, ok := m.crosspointIndex(path)
	if !ok || v.Type != glow.ValueInteger {
		return pathError(path, ErrInvalidRequest)
	}
	m.gains[ti*len(m.sources)+si] = v.Int
	if m.tree != nil {
		m.tree.sink.ParameterValueChanged(path.Clone(), v)
	}
	return nil
}

func (m *Matrix) crosspointIndex(path glow.OID) (int, int, bool) {
	if !m.dynamic || len(path) != len(m.path)+4 || !path.HasPrefix(m.path) {
		return 0, 0, false
	}
	rest := path[len(m.path):]
	if rest[0] != ParametersNumber || rest[3] != GainNumber {
		return 0, 0, false
	}
	ti, tok := m.targetIndex[rest[1]]
	si, sok := m.sourceIndex[rest[2]]
	return ti, si, tok && sok
}

// synthesize builds the element at rest below the matrix:
// [P] parameters node, [P t] target node, [P t s] crosspoint node,
// [P t s G] gain parameter.
func (m *Matrix) synthesize(rest glow.OID) Element {
	if !m.dynamic || len(rest) == 0 || len(rest) > 4 || rest[0] != ParametersNumber {
		return nil
	}
	if len(rest) >= 2 {
		if _, ok := m.targetIndex[rest[1]]; !ok {
			return nil
		}
	}
	if len(rest) >= 3 {
		if _, ok := m.sourceIndex[rest[2]]; !ok {
			return nil
		}
	}
	if len(rest) == 4 && rest[3] != GainNumber {
		return nil
	}
	b := base{
		id:     NoID,
		number: rest[len(rest)-1],
		parent: NoID,
		tree:   m.tree,
		path:   m.path.Append(rest...),
		owner:  m,
	}
	switch len(rest) {
	case 1:
		b.parent = m.id
		b.identifier = "parameters"
		return &Node{base: b, online: true}
	case 2:
		b.identifier = "target-" + strconv.Itoa(int(rest[1]))
		return &Node{base: b, online: true}
	case 3:
		b.identifier = "source-" + strconv.Itoa(int(rest[2]))
		return &Node{base: b, online: true}
	default:
		b.identifier = "gain"
		gain, _ := m.Gain(rest[1], rest[2])
		return &Parameter{
			base:   b,
			typ:    glow.ParameterInteger,
			value:  glow.IntValue(gain),
			min:    glow.Ptr(glow.IntValue(GainMinimum)),
			max:    glow.Ptr(glow.IntValue(GainMaximum)),
			access: glow.AccessReadWrite,
			online: true,
		}
	}
}

// syntheticChildren lists the child numbers below rest.
func (m *Matrix) syntheticChildren(rest glow.OID) []int32 {
	if !m.dynamic {
		return nil
	}
	switch len(rest) {
	case 0:
		return []int32{ParametersNumber}
	case 1:
		return m.Targets()
	case 2:
		return m.Sources()
	case 3:
		return []int32{GainNumber}
	default:
		return nil
	}
}
