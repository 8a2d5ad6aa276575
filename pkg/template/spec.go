// Package template loads transformation template definitions, compiles
// them once into executable form, and renders them against per-event
// contexts inside a closed sandbox: only context variables and
// registered filters are reachable from a template.
package template

import (
	"bytes"
	"fmt"
	texttemplate "text/template"

	"gopkg.in/yaml.v3"

	"github.com/shiftsec/eventshift/pkg/filters"
)

// FilterDecls preserves the YAML declaration order of custom filters,
// so a later filter may call an earlier one by name.
type FilterDecls []filters.Declaration

// UnmarshalYAML decodes the filters mapping while keeping key order.
func (d *FilterDecls) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("filters must be a mapping of name to source")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("filter %q: source must be a string", key)
		}
		*d = append(*d, filters.Declaration{Key: key, Source: value.Value})
	}
	return nil
}

// Get returns the declaration for a filter name.
func (d FilterDecls) Get(key string) (filters.Declaration, bool) {
	for _, decl := range d {
		if decl.Key == key {
			return decl, true
		}
	}
	return filters.Declaration{}, false
}

// Spec is one transformation template definition as authored in YAML.
type Spec struct {
	Name         string            `yaml:"name"`
	InputSchema  string            `yaml:"input_schema"`
	OutputSchema string            `yaml:"output_schema"`
	Extractors   map[string]string `yaml:"extractors"`
	Template     string            `yaml:"template"`
	Filters      FilterDecls       `yaml:"filters"`
	Conditionals map[string]any    `yaml:"conditionals"`
}

// ParseSpec decodes a YAML template definition.
func ParseSpec(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse template yaml: %w", err)
	}
	return &s, nil
}

// Validate checks the structural invariants of a template definition.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("template name is empty")
	}
	if len(s.Extractors) == 0 {
		return fmt.Errorf("template %q: at least one extractor is required", s.Name)
	}
	for name, expr := range s.Extractors {
		if expr == "" {
			return fmt.Errorf("template %q: extractor %q is empty", s.Name, name)
		}
	}
	if s.Template == "" {
		return fmt.Errorf("template %q: template body is empty", s.Name)
	}
	return nil
}

// Compiled is a template parsed once into executable form: the text
// template tree plus the composed filter namespace. It is immutable
// and safe for concurrent rendering.
type Compiled struct {
	Spec *Spec
	tmpl *texttemplate.Template
}

// Compile builds the executable form of a spec: custom filters compile
// together first (shared namespace, declaration order), then the
// template text parses against the full filter set.
func Compile(s *Spec) (*Compiled, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	funcs, err := filters.Compile(s.Filters)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", s.Name, err)
	}
	tmpl, err := texttemplate.New(s.Name).Funcs(funcs).Parse(s.Template)
	if err != nil {
		return nil, fmt.Errorf("template %q: parse: %w", s.Name, err)
	}
	return &Compiled{Spec: s, tmpl: tmpl}, nil
}

// Render executes the compiled template against a render context. On
// success the output is the rendered document bytes; any execution
// error is a per-event failure for the caller to route, never retried
// here.
func (c *Compiled) Render(ctx map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("render template %q: %w", c.Spec.Name, err)
	}
	return buf.Bytes(), nil
}
