package glow

import (
	"fmt"
	"reflect"
	"testing"
)

type recordingHandler struct {
	NopHandler
	calls []string
}

func (r *recordingHandler) HandleCommand(cmd *Command, loc Location) {
	r.calls = append(r.calls, fmt.Sprintf("command %s @%s q=%v", cmd.Number, loc.Path, loc.Qualified))
}

func (r *recordingHandler) HandleParameter(p *Parameter, loc Location) {
	r.calls = append(r.calls, fmt.Sprintf("parameter @%s q=%v", loc.Path, loc.Qualified))
}

func (r *recordingHandler) HandleMatrix(m *Matrix, loc Location) {
	r.calls = append(r.calls, fmt.Sprintf("matrix @%s q=%v", loc.Path, loc.Qualified))
}

type fullHandler struct {
	recordingHandler
}

func (f *fullHandler) HandleNode(n *Node, loc Location) {
	f.calls = append(f.calls, fmt.Sprintf("node @%s", loc.Path))
}

func (f *fullHandler) HandleStreamEntry(e StreamEntry) {
	f.calls = append(f.calls, fmt.Sprintf("stream %d", e.Identifier))
}

func (f *fullHandler) HandleInvocationResult(r *InvocationResult) {
	f.calls = append(f.calls, fmt.Sprintf("result %d", r.InvocationID))
}

func TestWalkerRelativePaths(t *testing.T) {
	h := &recordingHandler{}
	NewWalker(h).Walk(&Root{Elements: []Container{
		&Node{Number: 1, Children: []Container{
			&Node{Number: 2, Children: []Container{
				&Parameter{Number: 3, Children: []Container{&Command{Number: CommandSubscribe}}},
				&Matrix{Number: 4},
			}},
			&Parameter{Number: 5},
		}},
		&Command{Number: CommandGetDirectory},
	}})
	want := []string{
		"parameter @1.2.3 q=false",
		"command subscribe @1.2.3 q=false",
		"matrix @1.2.4 q=false",
		"parameter @1.5 q=false",
		"command getDirectory @ q=false",
	}
	if !reflect.DeepEqual(h.calls, want) {
		t.Fatalf("unexpected calls\n got: %q\nwant: %q", h.calls, want)
	}
}

func TestWalkerQualifiedPathsReplaceStack(t *testing.T) {
	h := &recordingHandler{}
	NewWalker(h).Walk(&Root{Elements: []Container{
		&Node{Path: OID{1, 2}, Children: []Container{
			&Command{Number: CommandGetDirectory},
			&Parameter{Number: 7},
		}},
		&Matrix{Path: OID{3, 1}, Children: []Container{
			&Parameter{Path: OID{9}},
		}},
		&Parameter{Number: 6},
	}})
	want := []string{
		"command getDirectory @1.2 q=true",
		"parameter @1.2.7 q=true",
		"matrix @3.1 q=true",
		"parameter @9 q=true",
		"parameter @6 q=false",
	}
	if !reflect.DeepEqual(h.calls, want) {
		t.Fatalf("unexpected calls\n got: %q\nwant: %q", h.calls, want)
	}
}

func TestWalkerStreamAndInvocationHooks(t *testing.T) {
	h := &fullHandler{}
	NewWalker(h).Walk(&Root{Elements: []Container{
		&Node{Number: 4},
		&StreamCollection{Entries: []StreamEntry{{Identifier: 1}, {Identifier: 2}}},
		&InvocationResult{InvocationID: 5},
	}})
	want := []string{"node @4", "stream 1", "stream 2", "result 5"}
	if !reflect.DeepEqual(h.calls, want) {
		t.Fatalf("unexpected calls\n got: %q\nwant: %q", h.calls, want)
	}
}

func TestWalkerLocationIsCopied(t *testing.T) {
	var seen []Location
	h := &capturingHandler{seen: &seen}
	NewWalker(h).Walk(&Root{Elements: []Container{
		&Node{Number: 1, Children: []Container{&Parameter{Number: 2}, &Parameter{Number: 3}}},
	}})
	if len(seen) != 2 || !seen[0].Path.Equal(OID{1, 2}) || !seen[1].Path.Equal(OID{1, 3}) {
		t.Fatalf("locations were aliased: %+v", seen)
	}
}

type capturingHandler struct {
	NopHandler
	seen *[]Location
}

func (c *capturingHandler) HandleCommand(*Command, Location) {}
func (c *capturingHandler) HandleMatrix(*Matrix, Location)   {}

func (c *capturingHandler) HandleParameter(_ *Parameter, loc Location) {
	*c.seen = append(*c.seen, loc)
}
