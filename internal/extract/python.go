package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	ierr "github.com/codemem/repoingest/internal/errors"
)

// PythonExtractor extracts structural elements from Python sources.
type PythonExtractor struct{}

// Verify interface implementation at compile time
var _ Extractor = (*PythonExtractor)(nil)

// NewPythonExtractor creates a Python extractor.
func NewPythonExtractor() *PythonExtractor {
	return &PythonExtractor{}
}

// Language returns the language this extractor handles.
func (e *PythonExtractor) Language() string {
	return "python"
}

// branchNodeTypes are the node types that add one to complexity.
// elif clauses are separate nodes in tree-sitter, so they count like
// nested ifs do in a conventional AST.
var branchNodeTypes = map[string]bool{
	"if_statement":     true,
	"elif_clause":      true,
	"while_statement":  true,
	"for_statement":    true,
	"except_clause":    true,
	"boolean_operator": true,
}

// Extract parses content and returns elements in source order.
// Each call uses a fresh parser, so Extract is safe for concurrent use.
func (e *PythonExtractor) Extract(ctx context.Context, content []byte, path string) ([]Element, error) {
	parser := NewParser()
	defer parser.Close()

	tree, err := parser.Parse(ctx, content)
	if err != nil {
		return nil, ierr.ParseError(path, err)
	}
	if tree.Root.HasError {
		return nil, ierr.ParseError(path, nil)
	}

	w := &walker{
		source:  content,
		path:    path,
		symbols: moduleSymbols(tree.Root, content),
	}

	var elements []Element
	if mod, ok := w.moduleElement(tree.Root); ok {
		elements = append(elements, mod)
	}

	els, err := w.walkBlock(tree.Root, "")
	if err != nil {
		return nil, err
	}
	return append(elements, els...), nil
}

// walker carries per-file extraction state.
type walker struct {
	source  []byte
	path    string
	symbols map[string]bool
}

// walkBlock extracts definitions from the children of a module or class
// block node. classPrefix is the dotted class path, empty at module level.
func (w *walker) walkBlock(block *Node, classPrefix string) ([]Element, error) {
	var elements []Element

	for _, child := range block.Children {
		var def *Node
		var decorators []string

		switch child.Type {
		case "decorated_definition":
			for _, dec := range child.FindChildrenByType("decorator") {
				decorators = append(decorators, decoratorName(dec, w.source))
			}
			def = child.FindChildByType("function_definition")
			if def == nil {
				def = child.FindChildByType("class_definition")
			}
		case "function_definition", "class_definition":
			def = child
		}
		if def == nil {
			continue
		}

		var el Element
		var err error
		var nested []Element

		if def.Type == "class_definition" {
			el, err = w.classElement(def, classPrefix, decorators)
			if err != nil {
				return nil, err
			}
			if body := def.FindChildByType("block"); body != nil {
				nested, err = w.walkBlock(body, el.QualifiedName)
				if err != nil {
					return nil, err
				}
			}
		} else {
			el, err = w.functionElement(def, classPrefix, decorators)
			if err != nil {
				return nil, err
			}
		}

		elements = append(elements, el)
		elements = append(elements, nested...)
	}

	return elements, nil
}

// functionElement builds an element for a function or method definition.
func (w *walker) functionElement(def *Node, classPrefix string, decorators []string) (Element, error) {
	name := childContent(def, "identifier", w.source)
	qualified := name
	if classPrefix != "" {
		qualified = classPrefix + "." + name
	}

	async := def.FindChildByType("async") != nil

	var kind Kind
	if classPrefix == "" {
		kind = KindFunction
		if async {
			kind = KindAsyncFunction
		}
	} else {
		kind = methodKind(decorators, async)
	}

	source := def.GetContent(w.source)
	body := def.FindChildByType("block")

	return NewElement(Element{
		Kind:          kind,
		Name:          name,
		QualifiedName: qualified,
		FilePath:      w.path,
		StartLine:     int(def.StartPoint.Row) + 1,
		EndLine:       int(def.EndPoint.Row) + 1,
		Complexity:    complexityOf(def),
		Dependencies:  w.dependencies(def, name),
		Decorators:    decorators,
		ContentHash:   contentHash(qualified, source),
		Docstring:     docstringOf(body, w.source),
		Signature:     functionSignature(def, w.source, async),
		Source:        source,
	})
}

// classElement builds an element for a class definition.
func (w *walker) classElement(def *Node, classPrefix string, decorators []string) (Element, error) {
	name := childContent(def, "identifier", w.source)
	qualified := name
	if classPrefix != "" {
		qualified = classPrefix + "." + name
	}

	source := def.GetContent(w.source)
	body := def.FindChildByType("block")

	return NewElement(Element{
		Kind:          KindClass,
		Name:          name,
		QualifiedName: qualified,
		FilePath:      w.path,
		StartLine:     int(def.StartPoint.Row) + 1,
		EndLine:       int(def.EndPoint.Row) + 1,
		Complexity:    complexityOf(def),
		Dependencies:  w.dependencies(def, name),
		Decorators:    decorators,
		ContentHash:   contentHash(qualified, source),
		Docstring:     docstringOf(body, w.source),
		Signature:     classSignature(def, w.source),
		Source:        source,
	})
}

// moduleElement emits a module-level element when the file carries a
// module docstring. The docstring is prose, so it embeds with the text
// model downstream.
func (w *walker) moduleElement(root *Node) (Element, bool) {
	doc := docstringOf(root, w.source)
	if doc == "" {
		return Element{}, false
	}

	name := strings.TrimSuffix(filepath.Base(w.path), filepath.Ext(w.path))
	el, err := NewElement(Element{
		Kind:          KindModule,
		Name:          name,
		QualifiedName: name,
		FilePath:      w.path,
		StartLine:     1,
		EndLine:       int(root.EndPoint.Row) + 1,
		Complexity:    1,
		ContentHash:   contentHash(name, doc),
		Docstring:     doc,
		Source:        doc,
	})
	if err != nil {
		return Element{}, false
	}
	return el, true
}

// methodKind derives the method subtype from decorators.
func methodKind(decorators []string, async bool) Kind {
	for _, d := range decorators {
		switch lastDottedSegment(d) {
		case "property":
			return KindProperty
		case "staticmethod":
			return KindStaticMethod
		case "classmethod":
			return KindClassMethod
		}
	}
	if async {
		return KindAsyncMethod
	}
	return KindMethod
}

// complexityOf returns 1 plus the number of branch points in the subtree.
func complexityOf(def *Node) int {
	count := 1
	def.Walk(func(n *Node) bool {
		if branchNodeTypes[n.Type] {
			count++
		}
		return true
	})
	return count
}

// dependencies collects outer-scope names referenced in the definition,
// in first occurrence order, deduplicated, capped at MaxDependencies.
func (w *walker) dependencies(def *Node, ownName string) []string {
	seen := make(map[string]bool)
	var deps []string

	def.Walk(func(n *Node) bool {
		if len(deps) >= MaxDependencies {
			return false
		}
		if n.Type != "identifier" {
			return true
		}
		name := n.GetContent(w.source)
		if name == "" || name == ownName || seen[name] {
			return true
		}
		if strings.HasPrefix(name, "_") || name == "self" || name == "cls" {
			return true
		}
		if !w.symbols[name] {
			return true
		}
		seen[name] = true
		deps = append(deps, name)
		return true
	})

	return deps
}

// moduleSymbols collects the names importable or defined at module level.
// Element dependencies are restricted to this set.
func moduleSymbols(root *Node, source []byte) map[string]bool {
	symbols := make(map[string]bool)

	add := func(name string) {
		if name != "" {
			symbols[name] = true
		}
	}

	for _, child := range root.Children {
		switch child.Type {
		case "import_statement":
			// import a.b.c / import a as b
			for _, n := range child.Children {
				switch n.Type {
				case "dotted_name":
					add(firstDottedSegment(n.GetContent(source)))
				case "aliased_import":
					if alias := lastChildOfType(n, "identifier"); alias != nil {
						add(alias.GetContent(source))
					}
				}
			}
		case "import_from_statement":
			// from a import b, c / from a import b as d
			// Names before the "import" keyword belong to the source module.
			afterImport := false
			for _, n := range child.Children {
				if n.Type == "import" {
					afterImport = true
					continue
				}
				if !afterImport {
					continue
				}
				switch n.Type {
				case "dotted_name":
					add(firstDottedSegment(n.GetContent(source)))
				case "aliased_import":
					if alias := lastChildOfType(n, "identifier"); alias != nil {
						add(alias.GetContent(source))
					}
				}
			}
		case "function_definition", "class_definition":
			add(childContent(child, "identifier", source))
		case "decorated_definition":
			if def := child.FindChildByType("function_definition"); def != nil {
				add(childContent(def, "identifier", source))
			}
			if def := child.FindChildByType("class_definition"); def != nil {
				add(childContent(def, "identifier", source))
			}
		case "expression_statement":
			// Module-level assignment: NAME = ...
			if assign := child.FindChildByType("assignment"); assign != nil {
				if id := assign.FindChildByType("identifier"); id != nil {
					add(id.GetContent(source))
				}
			}
		}
	}

	return symbols
}

// contentHash hashes the qualified name plus the whitespace-normalized
// body. Lines are trimmed so reformatting indentation elsewhere in the
// file does not change the hash; any change to the element's own tokens
// does.
func contentHash(qualifiedName, source string) string {
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	normalized := strings.Join(lines, "\n")

	sum := sha256.Sum256([]byte(qualifiedName + "\x00" + normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// docstringOf returns the unquoted leading string literal of a block.
func docstringOf(block *Node, source []byte) string {
	if block == nil {
		return ""
	}
	for _, child := range block.Children {
		if child.Type == "comment" {
			continue
		}
		if child.Type != "expression_statement" {
			return ""
		}
		str := child.FindChildByType("string")
		if str == nil {
			return ""
		}
		return unquotePythonString(str.GetContent(source))
	}
	return ""
}

// unquotePythonString strips string prefixes and quote characters.
func unquotePythonString(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, "'''", `"`, "'"} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}

// functionSignature composes the definition header without body.
func functionSignature(def *Node, source []byte, async bool) string {
	name := childContent(def, "identifier", source)
	params := childContent(def, "parameters", source)

	var sb strings.Builder
	if async {
		sb.WriteString("async ")
	}
	sb.WriteString("def ")
	sb.WriteString(name)
	sb.WriteString(params)
	if ret := def.FindChildByType("type"); ret != nil {
		sb.WriteString(" -> ")
		sb.WriteString(ret.GetContent(source))
	}
	return sb.String()
}

// classSignature composes the class header without body.
func classSignature(def *Node, source []byte) string {
	name := childContent(def, "identifier", source)
	if args := def.FindChildByType("argument_list"); args != nil {
		return "class " + name + args.GetContent(source)
	}
	return "class " + name
}

// decoratorName returns the decorator expression without the leading "@"
// and without call arguments.
func decoratorName(dec *Node, source []byte) string {
	text := strings.TrimPrefix(dec.GetContent(source), "@")
	if i := strings.IndexByte(text, '('); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// childContent returns the content of the first child of the given type.
func childContent(n *Node, nodeType string, source []byte) string {
	if child := n.FindChildByType(nodeType); child != nil {
		return child.GetContent(source)
	}
	return ""
}

// lastChildOfType returns the last direct child with the given type.
func lastChildOfType(n *Node, nodeType string) *Node {
	var last *Node
	for _, child := range n.Children {
		if child.Type == nodeType {
			last = child
		}
	}
	return last
}

// firstDottedSegment returns the first segment of a dotted name.
func firstDottedSegment(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// lastDottedSegment returns the final segment of a dotted name.
func lastDottedSegment(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}
