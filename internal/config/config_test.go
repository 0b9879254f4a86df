package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/emberctl/internal/protocol/glow"
	"github.com/danmuck/emberctl/internal/testutil/testlog"
	"github.com/danmuck/emberctl/internal/tree"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestSampleTreeTemplateBuilds(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "tree.toml", treeTemplate)

	tr, err := LoadTree(path)
	if err != nil {
		t.Fatalf("load tree: %v", err)
	}
	if tr.IsDirty() {
		t.Fatalf("freshly built tree should be clean")
	}

	h, ok := tr.Lookup(glow.OID{1, 1})
	if !ok {
		t.Fatalf("gain missing")
	}
	gain := h.Element().(*tree.Parameter)
	if !gain.Value().Equal(glow.IntValue(-20)) || !gain.Writable() {
		t.Fatalf("unexpected gain: %+v access=%v", gain.Value(), gain.Access())
	}
	h.Release()

	h, _ = tr.Lookup(glow.OID{1, 3})
	if mode := h.Element().(*tree.Parameter); !mode.Value().Equal(glow.IntValue(2)) {
		t.Fatalf("enum by name should resolve to index 2, got %+v", mode.Value())
	}
	h.Release()

	h, _ = tr.Lookup(glow.OID{1, 4})
	level := h.Element().(*tree.Parameter)
	if id, ok := level.StreamIdentifier(); !ok || id != 1 {
		t.Fatalf("level stream identifier = %d,%v", id, ok)
	}
	if desc, ok := level.StreamDescriptor(); !ok || desc.Format != glow.StreamFloat32LE {
		t.Fatalf("level stream descriptor = %+v,%v", desc, ok)
	}
	h.Release()

	h, _ = tr.Lookup(glow.OID{1, 5})
	router := h.Element().(*tree.Matrix)
	if got := router.Target(0).Connected(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("initial router connection = %v", got)
	}
	h.Release()

	h, _ = tr.Lookup(glow.OID{2, 1})
	if spare := h.Element().(*tree.Node); spare.Online() {
		t.Fatalf("spare node should be offline")
	}
	h.Release()
}

func TestTemplateFunctionDelegates(t *testing.T) {
	tmpl, err := ParseTreeTemplate([]byte(`
[[node]]
number = 1
identifier = "fx"

  [[node.function]]
  number = 1
  identifier = "sum"
  delegate = "sum"
  argument = [{ name = "a", type = "real" }, { name = "b", type = "integer" }]
  result = [{ name = "total", type = "real" }]

  [[node.function]]
  number = 2
  identifier = "echo"
  delegate = "echo"
  argument = [{ name = "text", type = "string" }]
  result = [{ name = "text", type = "string" }]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tr, err := Build(tmpl)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	invoke := func(oid glow.OID, args ...glow.Value) []glow.Value {
		t.Helper()
		var out []glow.Value
		tr.With(oid, func(e tree.Element) {
			out, err = e.(*tree.Function).Invoke(args)
		})
		if err != nil {
			t.Fatalf("invoke %s: %v", oid, err)
		}
		return out
	}
	if got := invoke(glow.OID{1, 1}, glow.RealValue(1.5), glow.IntValue(2)); !got[0].Equal(glow.RealValue(3.5)) {
		t.Fatalf("sum = %+v", got)
	}
	if got := invoke(glow.OID{1, 2}, glow.StringValue("hi")); !got[0].Equal(glow.StringValue("hi")) {
		t.Fatalf("echo = %+v", got)
	}
}

func TestTreeTemplateValidation(t *testing.T) {
	cases := map[string]string{
		"empty": ``,
		"missing identifier": `
[[node]]
number = 1
`,
		"unknown type": `
[[node]]
number = 1
identifier = "n"
  [[node.parameter]]
  number = 1
  identifier = "p"
  type = "decimal"
`,
		"unknown delegate": `
[[node]]
number = 1
identifier = "n"
  [[node.function]]
  number = 1
  identifier = "f"
  delegate = "launch"
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseTreeTemplate([]byte(content)); !errors.Is(err, ErrInvalidTemplate) {
				t.Fatalf("expected ErrInvalidTemplate, got %v", err)
			}
		})
	}
}

func TestBuildRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"out of range": `
[[node]]
number = 1
identifier = "n"
  [[node.parameter]]
  number = 1
  identifier = "p"
  type = "integer"
  minimum = 0
  maximum = 10
  value = 11
`,
		"enum entry": `
[[node]]
number = 1
identifier = "n"
  [[node.parameter]]
  number = 1
  identifier = "p"
  type = "enum"
  enumeration = ["a"]
  value = "b"
`,
		"duplicate number": `
[[node]]
number = 1
identifier = "a"
[[node]]
number = 1
identifier = "b"
`,
		"bad connection": `
[[node]]
number = 1
identifier = "n"
  [[node.matrix]]
  number = 1
  identifier = "m"
  target_count = 2
  source_count = 2
    [[node.matrix.connection]]
    target = 5
    sources = [0]
`,
		"string stream descriptor": `
[[node]]
number = 1
identifier = "n"
  [[node.parameter]]
  number = 1
  identifier = "name"
  type = "string"
  stream_identifier = 9
  stream_format = "int8"
`,
		"shared stream without descriptor": `
[[node]]
number = 1
identifier = "n"
  [[node.parameter]]
  number = 1
  identifier = "left"
  type = "integer"
  stream_identifier = 1
  [[node.parameter]]
  number = 2
  identifier = "right"
  type = "integer"
  stream_identifier = 1
  stream_format = "int8"
`,
		"oversized dynamic matrix": `
[[node]]
number = 1
identifier = "n"
  [[node.matrix]]
  number = 1
  identifier = "mixer"
  type = "nToN"
  dynamic = true
  target_count = 100000
  source_count = 100000
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			tmpl, err := ParseTreeTemplate([]byte(content))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if _, err := Build(tmpl); err == nil {
				t.Fatalf("expected build error")
			}
		})
	}
}

func TestTemplateKinds(t *testing.T) {
	for _, kind := range []string{KindProvider, KindTree, " Tree "} {
		if _, err := Template(kind); err != nil {
			t.Fatalf("template %q: %v", kind, err)
		}
	}
	if _, err := Template("mixer"); err == nil {
		t.Fatalf("expected unknown kind error")
	}

	path := filepath.Join(t.TempDir(), "tree.toml")
	if err := WriteTemplate(path, KindTree, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, KindTree, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, KindTree, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}
}
