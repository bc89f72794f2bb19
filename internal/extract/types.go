package extract

import (
	"context"
	"fmt"
)

// Kind identifies the structural kind of an extracted element.
// The set is closed: NewElement rejects anything else.
type Kind string

const (
	KindFunction      Kind = "function"
	KindAsyncFunction Kind = "async_function"
	KindClass         Kind = "class"
	KindMethod        Kind = "method"
	KindAsyncMethod   Kind = "async_method"
	KindProperty      Kind = "property"
	KindStaticMethod  Kind = "staticmethod"
	KindClassMethod   Kind = "classmethod"
	KindModule        Kind = "module"
)

// validKinds is the closed set of element kinds.
var validKinds = map[Kind]bool{
	KindFunction:      true,
	KindAsyncFunction: true,
	KindClass:         true,
	KindMethod:        true,
	KindAsyncMethod:   true,
	KindProperty:      true,
	KindStaticMethod:  true,
	KindClassMethod:   true,
	KindModule:        true,
}

// IsCode reports whether the kind carries source code (as opposed to prose).
// Module elements embed with the text model; everything else uses the code model.
func (k Kind) IsCode() bool {
	return k != KindModule
}

// MaxDependencies caps the dependency list per element.
const MaxDependencies = 10

// Element is a structural code element extracted from a source file.
// Instances are immutable after construction except for Tags, which the
// pipeline stamps from the ingestion request.
type Element struct {
	// Kind is one of the closed element kinds.
	Kind Kind

	// Name is the bare element name (e.g. "save").
	Name string

	// QualifiedName is the dotted path within the file (e.g. "User.save").
	QualifiedName string

	// FilePath is the file's path relative to the scan root.
	FilePath string

	// StartLine and EndLine are 1-indexed, inclusive.
	StartLine int
	EndLine   int

	// Complexity is 1 plus the number of branch points in the body.
	Complexity int

	// Dependencies are outer-scope names referenced by the body, in first
	// occurrence order, deduplicated, capped at MaxDependencies.
	Dependencies []string

	// Decorators are decorator names without the leading "@".
	Decorators []string

	// ContentHash identifies the element content: hex sha256 over the
	// qualified name and the whitespace-normalized body, truncated to 16
	// characters. Stable across edits elsewhere in the file.
	ContentHash string

	// Docstring is the leading string literal of the body, unquoted.
	Docstring string

	// Signature is the definition header (e.g. "def save(self) -> bool").
	Signature string

	// Source is the element's source text.
	Source string

	// Tags are free-form labels carried through to the memory store.
	Tags []string
}

// NewElement validates the kind and required fields before returning the
// element. Construction is the only place kinds are checked, so everything
// downstream can trust them.
func NewElement(e Element) (Element, error) {
	if !validKinds[e.Kind] {
		return Element{}, fmt.Errorf("invalid element kind: %q", e.Kind)
	}
	if e.Name == "" {
		return Element{}, fmt.Errorf("element name is required")
	}
	if e.QualifiedName == "" {
		e.QualifiedName = e.Name
	}
	if e.StartLine <= 0 || e.EndLine < e.StartLine {
		return Element{}, fmt.Errorf("invalid line range %d-%d for %s", e.StartLine, e.EndLine, e.QualifiedName)
	}
	if e.Complexity < 1 {
		e.Complexity = 1
	}
	return e, nil
}

// Extractor turns file content into structural elements.
type Extractor interface {
	// Extract parses content and returns elements in source order.
	// A syntax error fails only this file.
	Extract(ctx context.Context, content []byte, path string) ([]Element, error)

	// Language returns the language this extractor handles.
	Language() string
}
