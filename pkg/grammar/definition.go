package grammar

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition describes a comment dialect as a set of patterns and the rules
// promoted from them. Definitions are usually loaded from YAML:
//
//	name: lua
//	version: 1.0.0
//	patterns:
//	  string: '.*?'
//	  eol: '\s*'
//	  h2: '\s*---\s*%{string:doc}%{eol}'
//	  ...
//	rules: [h2, h3, blank, doc]
type Definition struct {
	Name        string     `yaml:"name" json:"name"`
	Version     string     `yaml:"version" json:"version"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Patterns    PatternSet `yaml:"patterns" json:"patterns"`
	Rules       []string   `yaml:"rules" json:"rules"`

	// Builtin marks the dialects shipped with the package.
	Builtin bool `yaml:"-" json:"builtin,omitempty"`

	// Source is the file the definition was loaded from.
	Source string `yaml:"-" json:"source,omitempty"`

	// Compiled grammar (populated by Compile)
	compiled *Grammar
}

// Validate checks that the definition has all required fields.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("grammar name is required")
	}
	if d.Version == "" {
		return fmt.Errorf("grammar version is required")
	}
	if len(d.Patterns) == 0 {
		return fmt.Errorf("grammar %q defines no patterns", d.Name)
	}
	if len(d.Rules) == 0 {
		return fmt.Errorf("grammar %q defines no rules", d.Name)
	}
	return nil
}

// Compile compiles the definition's patterns. It is a no-op once compiled.
func (d *Definition) Compile() error {
	if d.compiled != nil {
		return nil
	}
	g, err := Compile(d.Patterns, d.Rules)
	if err != nil {
		return fmt.Errorf("compiling grammar %q: %w", d.Name, err)
	}
	d.compiled = g
	return nil
}

// IsCompiled returns true if the definition has been compiled.
func (d *Definition) IsCompiled() bool {
	return d.compiled != nil
}

// Origin describes where the definition comes from: "builtin", its source
// file, or "inline" for definitions registered from code.
func (d *Definition) Origin() string {
	switch {
	case d.Builtin:
		return "builtin"
	case d.Source != "":
		return d.Source
	default:
		return "inline"
	}
}

// Grammar returns the compiled grammar, or nil if Compile has not succeeded.
func (d *Definition) Grammar() *Grammar {
	return d.compiled
}

// ParseDefinition decodes, validates and compiles a YAML definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grammar: %w", err)
	}
	if err := def.Compile(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads a YAML definition from path.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.Source = path
	return def, nil
}
