package tree

import (
	"fmt"

	"github.com/danmuck/emberctl/internal/protocol/glow"
)

// Connect applies a connection request to target and reports whether the
// connection set changed. Every target and source is checked before anything
// is applied.
//
// One-to-N ignores op and connects sources[0] exclusively; an empty request
// changes nothing. One-to-one does the same and also takes sources[0] away
// from any other target. N-to-N applies op and always reports a change.
func (m *Matrix) Connect(target int32, sources []int32, op glow.ConnectionOperation) (bool, error) {
	affected, err := m.connect(target, sources, op)
	return len(affected) > 0, err
}

// connect returns the targets whose connected set was touched.
func (m *Matrix) connect(target int32, sources []int32, op glow.ConnectionOperation) ([]int32, error) {
	tgt := m.Target(target)
	if tgt == nil {
		return nil, pathError(m.path, fmt.Errorf("%w: unknown target %d", ErrInvalidRequest, target))
	}
	for _, s := range sources {
		if m.Source(s) == nil {
			return nil, pathError(m.path, fmt.Errorf("%w: unknown source %d", ErrInvalidRequest, s))
		}
	}

	switch m.typ {
	case glow.MatrixOneToN:
		if len(sources) == 0 {
			return nil, nil
		}
		tgt.connected.Clear()
		tgt.connected.Add(uint32(sources[0]))
		return []int32{target}, nil
	case glow.MatrixOneToOne:
		if len(sources) == 0 {
			return nil, nil
		}
		src := uint32(sources[0])
		affected := []int32{target}
		for _, other := range m.targets {
			if other != tgt && other.connected.Contains(src) {
				other.connected.Remove(src)
				affected = append(affected, other.number)
			}
		}
		tgt.connected.Clear()
		tgt.connected.Add(src)
		return affected, nil
	}

	next := tgt.connected.Clone()
	switch op {
	case glow.OperationDisconnect:
		for _, s := range sources {
			next.Remove(uint32(s))
		}
	case glow.OperationAbsolute:
		next.Clear()
		for _, s := range sources {
			next.Add(uint32(s))
		}
	default:
		for _, s := range sources {
			next.Add(uint32(s))
		}
	}
	if m.maxPerTarget > 0 && next.GetCardinality() > uint64(m.maxPerTarget) {
		return nil, pathError(m.path, fmt.Errorf("%w: target %d exceeds %d connects", ErrInvalidRequest, target, m.maxPerTarget))
	}
	if m.maxTotal > 0 {
		total := m.TotalConnects() - tgt.Len() + int(next.GetCardinality())
		if total > int(m.maxTotal) {
			return nil, pathError(m.path, fmt.Errorf("%w: matrix exceeds %d connects", ErrInvalidRequest, m.maxTotal))
		}
	}
	tgt.connected = next
	return []int32{target}, nil
}

// Connect runs the connection engine on m and notifies the sink once per
// affected target with callerState.
func (t *Tree) Connect(m *Matrix, target int32, sources []int32, op glow.ConnectionOperation, callerState any) (bool, error) {
	if m == nil || m.tree != t {
		return false, fmt.Errorf("%w: matrix not in tree", ErrInvalidRequest)
	}
	affected, err := m.connect(target, sources, op)
	if err != nil {
		return false, err
	}
	for _, n := range affected {
		t.sink.MatrixConnectionChanged(m, n, callerState)
	}
	return len(affected) > 0, nil
}
