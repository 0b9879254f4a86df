package tree

import "github.com/danmuck/emberctl/internal/protocol/glow"

// NotificationSink observes model changes. The tree shares the sink and never
// owns it.
type NotificationSink interface {
	// MatrixConnectionChanged reports a new connected-source set for target.
	// callerState is the token passed to Tree.Connect.
	MatrixConnectionChanged(m *Matrix, target int32, callerState any)
	ParameterValueChanged(path glow.OID, v glow.Value)
}

type NopSink struct{}

func (NopSink) MatrixConnectionChanged(*Matrix, int32, any) {}
func (NopSink) ParameterValueChanged(glow.OID, glow.Value)  {}
