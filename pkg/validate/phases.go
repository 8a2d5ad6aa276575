package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template/parse"

	"gopkg.in/yaml.v3"

	"github.com/shiftsec/eventshift/pkg/filters"
	tmpl "github.com/shiftsec/eventshift/pkg/template"
)

// fileContext carries one file's state through the phases. Phase 1
// populates spec and the line index; later phases read them.
type fileContext struct {
	file  string
	data  []byte
	spec  *tmpl.Spec
	lines map[string]position
}

func (fc *fileContext) at(path string) (int, int) {
	if pos, ok := fc.lines[path]; ok {
		return pos.line, pos.column
	}
	return 0, 0
}

type phase interface {
	tag() Phase
	run(fc *fileContext) []ValidationError
}

// --- Phase 1: YAML structure -------------------------------------------

type yamlStructurePhase struct{}

func (yamlStructurePhase) tag() Phase { return PhaseYAMLStructure }

func (p yamlStructurePhase) run(fc *fileContext) []ValidationError {
	var doc yaml.Node
	if err := yaml.Unmarshal(fc.data, &doc); err != nil {
		return []ValidationError{p.err(fc, fmt.Sprintf("not valid YAML: %v", err), "", 0, 0)}
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return []ValidationError{p.err(fc, "template file must be a YAML mapping", "", 0, 0)}
	}
	root := doc.Content[0]
	fc.lines = buildLineIndex(root)

	var spec tmpl.Spec
	if err := root.Decode(&spec); err != nil {
		return []ValidationError{p.err(fc, fmt.Sprintf("template structure: %v", err), "", 0, 0)}
	}
	fc.spec = &spec

	var out []ValidationError
	if spec.Name == "" {
		line, col := fc.at("name")
		out = append(out, p.err(fc, "required key \"name\" is missing or empty", "name", line, col))
	}
	if len(spec.Extractors) == 0 {
		line, col := fc.at("extractors")
		out = append(out, p.err(fc, "at least one extractor is required", "extractors", line, col))
	}
	for _, name := range sortedKeys(spec.Extractors) {
		if spec.Extractors[name] == "" {
			path := "extractors." + name
			line, col := fc.at(path)
			out = append(out, p.err(fc, fmt.Sprintf("extractor %q has an empty expression", name), path, line, col))
		}
	}
	if spec.Template == "" {
		line, col := fc.at("template")
		out = append(out, p.err(fc, "required key \"template\" is missing or empty", "template", line, col))
	}
	return out
}

func (yamlStructurePhase) err(fc *fileContext, msg, path string, line, col int) ValidationError {
	return ValidationError{
		Phase:        PhaseYAMLStructure,
		Severity:     SeverityError,
		Message:      msg,
		TemplateFile: fc.file,
		Line:         line,
		Column:       col,
		FieldPath:    path,
	}
}

// --- Phase 2: JSONPath syntax ------------------------------------------

type jsonpathSyntaxPhase struct {
	parse func(expression string) error
}

func (jsonpathSyntaxPhase) tag() Phase { return PhaseJSONPathSyntax }

func (p jsonpathSyntaxPhase) run(fc *fileContext) []ValidationError {
	var out []ValidationError
	for _, name := range sortedKeys(fc.spec.Extractors) {
		expr := fc.spec.Extractors[name]
		path := "extractors." + name
		line, col := fc.at(path)

		if msg, suggestion := diagnoseExpression(expr, p.parse); msg != "" {
			out = append(out, ValidationError{
				Phase:        PhaseJSONPathSyntax,
				Severity:     SeverityError,
				Message:      fmt.Sprintf("extractor %q: %s", name, msg),
				TemplateFile: fc.file,
				Line:         line,
				Column:       col,
				FieldPath:    path,
				Suggestion:   suggestion,
				RawValue:     expr,
			})
		}
	}
	return out
}

// diagnoseExpression returns a specific diagnostic for the common
// authoring mistakes before falling back to the parser's own error.
func diagnoseExpression(expr string, parseExpr func(string) error) (msg, suggestion string) {
	trimmed := strings.TrimSpace(expr)
	switch {
	case trimmed == "":
		return "expression is empty", ""
	case strings.HasPrefix(trimmed, ".."):
		return "expression starts with recursive descent \"..\"", "$" + trimmed
	case !strings.HasPrefix(trimmed, "$"):
		return "expression must start with \"$\"", "$." + strings.TrimPrefix(trimmed, ".")
	case strings.Count(trimmed, "[") != strings.Count(trimmed, "]"):
		return "unmatched brackets", ""
	}
	if err := parseExpr(trimmed); err != nil {
		return fmt.Sprintf("parse failed: %v", err), ""
	}
	return "", ""
}

// --- Phase 3: template syntax ------------------------------------------

type templateSyntaxPhase struct{}

func (templateSyntaxPhase) tag() Phase { return PhaseTemplateSyntax }

var blockAction = regexp.MustCompile(`\{\{-?\s*(if|range|with|block|define|end)\b`)

func (p templateSyntaxPhase) run(fc *fileContext) []ValidationError {
	text := fc.spec.Template
	baseLine, _ := fc.at("template")

	var out []ValidationError
	out = append(out, p.checkBlockPairing(fc, text, baseLine)...)

	tree := parse.New(fc.spec.Name)
	tree.Mode = parse.SkipFuncCheck
	treeSet := make(map[string]*parse.Tree)
	if _, err := tree.Parse(text, "{{", "}}", treeSet); err != nil {
		out = append(out, ValidationError{
			Phase:        PhaseTemplateSyntax,
			Severity:     SeverityError,
			Message:      fmt.Sprintf("template parse failed: %v", err),
			TemplateFile: fc.file,
			Line:         baseLine,
			FieldPath:    "template",
		})
		return out
	}

	known := knownFunctions(fc.spec)
	declared := sortedKeys(fc.spec.Extractors)
	seenFields := map[string]bool{}
	seenFuncs := map[string]bool{}

	walkTemplate(tree.Root, func(node parse.Node) {
		switch n := node.(type) {
		case *parse.FieldNode:
			if len(n.Ident) < 2 || n.Ident[0] != "extractors" {
				return
			}
			name := n.Ident[1]
			if _, ok := fc.spec.Extractors[name]; ok || seenFields[name] {
				return
			}
			seenFields[name] = true
			out = append(out, ValidationError{
				Phase:        PhaseTemplateSyntax,
				Severity:     SeverityWarning,
				Message:      fmt.Sprintf("template references undeclared extractor %q", name),
				TemplateFile: fc.file,
				Line:         baseLine + lineOf(text, n.Position()),
				FieldPath:    "template",
				Suggestion:   nearest(name, declared),
				RawValue:     ".extractors." + name,
			})
		case *parse.IdentifierNode:
			name := n.Ident
			if known[name] || seenFuncs[name] {
				return
			}
			seenFuncs[name] = true
			out = append(out, ValidationError{
				Phase:        PhaseTemplateSyntax,
				Severity:     SeverityError,
				Message:      fmt.Sprintf("template uses unknown filter %q", name),
				TemplateFile: fc.file,
				Line:         baseLine + lineOf(text, n.Position()),
				FieldPath:    "template",
				Suggestion:   nearest(name, sortedKeys(known)),
				RawValue:     name,
			})
		}
	})
	return out
}

// checkBlockPairing verifies open/end balance independently of the
// parser's own recovery, so a stray {{end}} reports even when the parse
// error message is opaque.
func (templateSyntaxPhase) checkBlockPairing(fc *fileContext, text string, baseLine int) []ValidationError {
	depth := 0
	var out []ValidationError
	for _, m := range blockAction.FindAllStringSubmatchIndex(text, -1) {
		keyword := text[m[2]:m[3]]
		if keyword == "end" {
			depth--
			if depth < 0 {
				out = append(out, ValidationError{
					Phase:        PhaseTemplateSyntax,
					Severity:     SeverityError,
					Message:      "unexpected {{end}} with no open block",
					TemplateFile: fc.file,
					Line:         baseLine + strings.Count(text[:m[0]], "\n") + 1,
					FieldPath:    "template",
				})
				depth = 0
			}
			continue
		}
		depth++
	}
	if depth > 0 {
		out = append(out, ValidationError{
			Phase:        PhaseTemplateSyntax,
			Severity:     SeverityError,
			Message:      fmt.Sprintf("%d unclosed block action(s): missing {{end}}", depth),
			TemplateFile: fc.file,
			Line:         baseLine,
			FieldPath:    "template",
		})
	}
	return out
}

// predefined text/template functions that are always callable.
var templateBuiltins = []string{
	"and", "call", "eq", "ge", "gt", "html", "index", "js", "le", "len",
	"lt", "ne", "not", "or", "print", "printf", "println", "slice",
	"urlquery",
}

func knownFunctions(s *tmpl.Spec) map[string]bool {
	known := make(map[string]bool)
	for _, name := range filters.Names() {
		known[name] = true
	}
	for _, name := range templateBuiltins {
		known[name] = true
	}
	for _, decl := range s.Filters {
		known[decl.Key] = true
	}
	known["uuid"] = true
	return known
}

// walkTemplate visits every node of a parsed template tree.
func walkTemplate(node parse.Node, visit func(parse.Node)) {
	if node == nil {
		return
	}
	visit(node)
	switch n := node.(type) {
	case *parse.ListNode:
		for _, child := range n.Nodes {
			walkTemplate(child, visit)
		}
	case *parse.ActionNode:
		if n.Pipe != nil {
			walkTemplate(n.Pipe, visit)
		}
	case *parse.PipeNode:
		for _, cmd := range n.Cmds {
			walkTemplate(cmd, visit)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			walkTemplate(arg, visit)
		}
	case *parse.ChainNode:
		walkTemplate(n.Node, visit)
	case *parse.IfNode:
		walkBranch(&n.BranchNode, visit)
	case *parse.RangeNode:
		walkBranch(&n.BranchNode, visit)
	case *parse.WithNode:
		walkBranch(&n.BranchNode, visit)
	case *parse.TemplateNode:
		if n.Pipe != nil {
			walkTemplate(n.Pipe, visit)
		}
	}
}

func walkBranch(b *parse.BranchNode, visit func(parse.Node)) {
	if b.Pipe != nil {
		walkTemplate(b.Pipe, visit)
	}
	if b.List != nil {
		walkTemplate(b.List, visit)
	}
	if b.ElseList != nil {
		walkTemplate(b.ElseList, visit)
	}
}

// lineOf converts a parse position (byte offset) into a 1-based line
// within the template body.
func lineOf(text string, pos parse.Pos) int {
	offset := int(pos)
	if offset > len(text) {
		offset = len(text)
	}
	return strings.Count(text[:offset], "\n") + 1
}

// --- Phase 4: filter code ----------------------------------------------

type filterCodePhase struct{}

func (filterCodePhase) tag() Phase { return PhaseFilterCode }

func (p filterCodePhase) run(fc *fileContext) []ValidationError {
	var out []ValidationError
	for _, decl := range fc.spec.Filters {
		path := "filters." + decl.Key
		line, col := fc.at(path)

		param, body, err := filters.CheckDeclaration(decl.Key, decl.Source)
		if err != nil {
			out = append(out, ValidationError{
				Phase:        PhaseFilterCode,
				Severity:     SeverityError,
				Message:      fmt.Sprintf("filter %q: %v", decl.Key, err),
				TemplateFile: fc.file,
				Line:         line,
				Column:       col,
				FieldPath:    path,
				RawValue:     decl.Source,
			})
			continue
		}
		if !filters.BodyReferences(body, param) {
			out = append(out, ValidationError{
				Phase:        PhaseFilterCode,
				Severity:     SeverityWarning,
				Message:      fmt.Sprintf("filter %q never references its parameter %q", decl.Key, param),
				TemplateFile: fc.file,
				Line:         line,
				Column:       col,
				FieldPath:    path,
				RawValue:     decl.Source,
			})
		}
	}
	return out
}

// --- helpers ------------------------------------------------------------

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
