package tree

import (
	"fmt"

	"github.com/danmuck/emberctl/internal/protocol/glow"
)

// Invoker runs a function with arguments already checked against the
// signature.
type Invoker func(args []glow.Value) ([]glow.Value, error)

type FunctionConfig struct {
	Description string
	Arguments   []glow.TupleItem
	Result      []glow.TupleItem
	Invoke      Invoker
}

type Function struct {
	base
	args   []glow.TupleItem
	result []glow.TupleItem
	invoke Invoker
}

// AddFunction attaches a function below parent.
func (t *Tree) AddFunction(parent *Node, number int32, identifier string, cfg FunctionConfig) (*Function, error) {
	f := &Function{
		args:   append([]glow.TupleItem(nil), cfg.Arguments...),
		result: append([]glow.TupleItem(nil), cfg.Result...),
		invoke: cfg.Invoke,
	}
	if err := t.attach(parent, &f.base, number, identifier, cfg.Description, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (*Function) Kind() Kind { return KindFunction }

func (f *Function) Arguments() []glow.TupleItem {
	return append([]glow.TupleItem(nil), f.args...)
}

func (f *Function) Result() []glow.TupleItem {
	return append([]glow.TupleItem(nil), f.result...)
}

// Invoke checks args against the signature, runs the invoker and checks what
// it returned. Nothing runs when the arguments do not match.
func (f *Function) Invoke(args []glow.Value) ([]glow.Value, error) {
	if f.invoke == nil {
		return nil, pathError(f.path, ErrNoInvoker)
	}
	if err := matchTuple(f.args, args); err != nil {
		return nil, pathError(f.path, fmt.Errorf("%w: %v", ErrArgumentMismatch, err))
	}
	out, err := f.invoke(args)
	if err != nil {
		return nil, pathError(f.path, err)
	}
	if err := matchTuple(f.result, out); err != nil {
		return nil, pathError(f.path, fmt.Errorf("%w: %v", ErrResultMismatch, err))
	}
	return out, nil
}

func matchTuple(sig []glow.TupleItem, values []glow.Value) error {
	if len(sig) != len(values) {
		return fmt.Errorf("want %d values, got %d", len(sig), len(values))
	}
	for i, item := range sig {
		if !fits(item.Type, values[i]) {
			return fmt.Errorf("%s (#%d) wants %s, got %s", item.Name, i, item.Type, values[i].Type)
		}
	}
	return nil
}
