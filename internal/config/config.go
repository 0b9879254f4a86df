// Package config loads the declarative tree template and renders sample
// configuration files.
//
// Ownership boundary:
// - tree template schema, loading and validation
// - building a tree.Tree from a template, including function delegates
// - sample provider and tree files for configgen
//
// Templates are read-only; the running tree is never written back.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidTemplate = errors.New("config: invalid tree template")

// TreeTemplate is the top of a tree file. Each [[node]] is a root child.
type TreeTemplate struct {
	Nodes []NodeTemplate `toml:"node"`
}

type NodeTemplate struct {
	Number      int32  `toml:"number"`
	Identifier  string `toml:"identifier"`
	Description string `toml:"description"`
	Offline     bool   `toml:"offline"`

	Nodes      []NodeTemplate      `toml:"node"`
	Parameters []ParameterTemplate `toml:"parameter"`
	Matrices   []MatrixTemplate    `toml:"matrix"`
	Functions  []FunctionTemplate  `toml:"function"`
}

// ParameterTemplate values are decoded loosely and coerced to Type at build
// time, so `value = 3` is valid for a real parameter.
type ParameterTemplate struct {
	Number           int32    `toml:"number"`
	Identifier       string   `toml:"identifier"`
	Description      string   `toml:"description"`
	Type             string   `toml:"type"`
	Access           string   `toml:"access"`
	Value            any      `toml:"value"`
	Minimum          any      `toml:"minimum"`
	Maximum          any      `toml:"maximum"`
	Default          any      `toml:"default"`
	Format           string   `toml:"format"`
	Enumeration      []string `toml:"enumeration"`
	Factor           int32    `toml:"factor"`
	Step             int32    `toml:"step"`
	StreamIdentifier *int32   `toml:"stream_identifier"`
	StreamFormat     string   `toml:"stream_format"`
	StreamOffset     int32    `toml:"stream_offset"`
	Offline          bool     `toml:"offline"`
}

type MatrixTemplate struct {
	Number                   int32                `toml:"number"`
	Identifier               string               `toml:"identifier"`
	Description              string               `toml:"description"`
	Type                     string               `toml:"type"`
	Addressing               string               `toml:"addressing"`
	Dynamic                  bool                 `toml:"dynamic"`
	TargetCount              int32                `toml:"target_count"`
	SourceCount              int32                `toml:"source_count"`
	Targets                  []int32              `toml:"targets"`
	Sources                  []int32              `toml:"sources"`
	MaximumTotalConnects     int32                `toml:"max_total_connects"`
	MaximumConnectsPerTarget int32                `toml:"max_connects_per_target"`
	Connections              []ConnectionTemplate `toml:"connection"`
}

// ConnectionTemplate is an initial crosspoint set applied after the matrix
// is built.
type ConnectionTemplate struct {
	Target  int32   `toml:"target"`
	Sources []int32 `toml:"sources"`
}

type FunctionTemplate struct {
	Number      int32           `toml:"number"`
	Identifier  string          `toml:"identifier"`
	Description string          `toml:"description"`
	Delegate    string          `toml:"delegate"`
	Arguments   []TupleTemplate `toml:"argument"`
	Result      []TupleTemplate `toml:"result"`
}

type TupleTemplate struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

func LoadTreeTemplate(path string) (TreeTemplate, error) {
	var tmpl TreeTemplate
	if err := loadToml(path, &tmpl); err != nil {
		return TreeTemplate{}, err
	}
	if err := ValidateTreeTemplate(tmpl); err != nil {
		return TreeTemplate{}, fmt.Errorf("config validate failed (%s): %w", path, err)
	}
	return tmpl, nil
}

// ParseTreeTemplate decodes a template from memory.
func ParseTreeTemplate(data []byte) (TreeTemplate, error) {
	var tmpl TreeTemplate
	if err := toml.Unmarshal(data, &tmpl); err != nil {
		return TreeTemplate{}, fmt.Errorf("config parse failed: %w", err)
	}
	if err := ValidateTreeTemplate(tmpl); err != nil {
		return TreeTemplate{}, err
	}
	return tmpl, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// ValidateTreeTemplate checks what the schema can check on its own. Value
// ranges and matrix shapes are checked by the tree builder.
func ValidateTreeTemplate(tmpl TreeTemplate) error {
	if len(tmpl.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrInvalidTemplate)
	}
	return validateNodes("", tmpl.Nodes)
}

func validateNodes(prefix string, nodes []NodeTemplate) error {
	for i, n := range nodes {
		where := fmt.Sprintf("%snode[%d]", prefix, i)
		if strings.TrimSpace(n.Identifier) == "" {
			return fmt.Errorf("%w: %s missing identifier", ErrInvalidTemplate, where)
		}
		for j, p := range n.Parameters {
			if strings.TrimSpace(p.Identifier) == "" {
				return fmt.Errorf("%w: %s.parameter[%d] missing identifier", ErrInvalidTemplate, where, j)
			}
			if _, err := parseParameterType(p.Type); err != nil {
				return fmt.Errorf("%w: %s.parameter[%d]: %v", ErrInvalidTemplate, where, j, err)
			}
		}
		for j, m := range n.Matrices {
			if strings.TrimSpace(m.Identifier) == "" {
				return fmt.Errorf("%w: %s.matrix[%d] missing identifier", ErrInvalidTemplate, where, j)
			}
		}
		for j, f := range n.Functions {
			if strings.TrimSpace(f.Identifier) == "" {
				return fmt.Errorf("%w: %s.function[%d] missing identifier", ErrInvalidTemplate, where, j)
			}
			if _, ok := delegates[strings.TrimSpace(f.Delegate)]; !ok {
				return fmt.Errorf("%w: %s.function[%d] unknown delegate %q", ErrInvalidTemplate, where, j, f.Delegate)
			}
		}
		if err := validateNodes(where+".", n.Nodes); err != nil {
			return err
		}
	}
	return nil
}
