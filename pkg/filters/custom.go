package filters

import (
	"fmt"
	"regexp"
	"text/template"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// Custom filters are declared per template as
//
//	filters:
//	  severity_label: "severity_label(value): upper(severity_name(value))"
//
// i.e. `name(param): <expression>`. The expression compiles into a
// sandboxed program that can reach only its input parameter, the
// built-in filter library, and custom filters declared earlier in the
// same template.
//
// Trust boundary: filter source originates from template authors who
// ship configuration with the process. It never comes from event
// payload content, and compiled programs have no filesystem, network
// or process surface.

// Declaration is one custom filter entry, in template declaration order.
type Declaration struct {
	Key    string
	Source string
}

var declHeader = regexp.MustCompile(`(?s)^\s*([A-Za-z_][A-Za-z0-9_]*)\s*\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*\)\s*:\s*(.+)$`)

// ParseDeclaration splits a filter source into its declared name, its
// parameter name and its expression body.
func ParseDeclaration(source string) (name, param, body string, err error) {
	m := declHeader.FindStringSubmatch(source)
	if m == nil {
		return "", "", "", fmt.Errorf("no filter function defined: expected \"name(param): expression\"")
	}
	return m[1], m[2], m[3], nil
}

// CheckDeclaration validates one declaration against its map key without
// building a runnable program. The static validator uses this.
func CheckDeclaration(key, source string) (param, body string, err error) {
	name, param, body, err := ParseDeclaration(source)
	if err != nil {
		return "", "", err
	}
	if name != key {
		return "", "", fmt.Errorf("declared filter name %q does not match key %q", name, key)
	}
	if _, err := parser.Parse(body); err != nil {
		return "", "", fmt.Errorf("filter expression: %w", err)
	}
	return param, body, nil
}

// BodyReferences reports whether the expression body references the
// given identifier. A filter that never reads its input parameter is
// almost certainly an authoring mistake.
func BodyReferences(body, ident string) bool {
	tree, err := parser.Parse(body)
	if err != nil {
		return false
	}
	v := &identVisitor{ident: ident}
	ast.Walk(&tree.Node, v)
	return v.found
}

type identVisitor struct {
	ident string
	found bool
}

func (v *identVisitor) Visit(node *ast.Node) {
	if n, ok := (*node).(*ast.IdentifierNode); ok && n.Value == v.ident {
		v.found = true
	}
}

// Compile builds the full filter FuncMap for one template: every
// built-in plus every custom declaration, compiled together in
// declaration order into a single shared namespace so a later filter
// may call an earlier one by name.
func Compile(decls []Declaration) (template.FuncMap, error) {
	funcs := Builtins()

	// Shared expression environment. Snapshot semantics do not apply:
	// the same map backs every program, so by the time any filter runs,
	// all of its template's filters are visible.
	env := make(map[string]any, len(funcs)+len(decls)+1)
	for name, fn := range funcs {
		env[name] = fn
	}

	for _, decl := range decls {
		name, param, body, err := ParseDeclaration(decl.Source)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", decl.Key, err)
		}
		if name != decl.Key {
			return nil, fmt.Errorf("filter %q: declared name %q does not match key", decl.Key, name)
		}
		if _, exists := env[name]; exists {
			return nil, fmt.Errorf("filter %q: name collides with an existing filter", decl.Key)
		}

		program, err := expr.Compile(body, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("filter %q: compile: %w", decl.Key, err)
		}

		fn := newCustomFilter(program, param, env)
		funcs[decl.Key] = fn
		env[decl.Key] = fn
	}

	return funcs, nil
}

func newCustomFilter(program *vm.Program, param string, shared map[string]any) func(any) (any, error) {
	return func(v any) (any, error) {
		callEnv := make(map[string]any, len(shared)+1)
		for name, fn := range shared {
			callEnv[name] = fn
		}
		callEnv[param] = v
		return expr.Run(program, callEnv)
	}
}
