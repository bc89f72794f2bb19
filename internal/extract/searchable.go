package extract

import (
	"fmt"
	"sort"
	"strings"
)

// SearchableText composes the text that gets embedded for an element.
// The layout is fixed: changing it would silently invalidate every
// previously stored embedding.
func SearchableText(el Element) string {
	parts := []string{fmt.Sprintf("%s: %s", el.Kind, el.QualifiedName)}

	if el.Signature != "" {
		parts = append(parts, "Signature: "+el.Signature)
	}
	if el.Docstring != "" {
		parts = append(parts, "Documentation: "+el.Docstring)
	}
	if len(el.Decorators) > 0 {
		parts = append(parts, "Decorators: "+strings.Join(el.Decorators, ", "))
	}
	if parent := parentClass(el); parent != "" {
		parts = append(parts, "Class: "+parent)
	}
	if len(el.Tags) > 0 {
		tags := append([]string(nil), el.Tags...)
		sort.Strings(tags)
		parts = append(parts, "Tags: "+strings.Join(tags, ", "))
	}
	if el.Source != "" && el.Kind != KindModule {
		parts = append(parts, "Source Code:\n"+el.Source)
	}

	return strings.Join(parts, "\n\n")
}

// parentClass returns the dotted class path an element belongs to,
// or empty for top-level elements.
func parentClass(el Element) string {
	switch el.Kind {
	case KindMethod, KindAsyncMethod, KindProperty, KindStaticMethod, KindClassMethod:
		if i := strings.LastIndexByte(el.QualifiedName, '.'); i > 0 {
			return el.QualifiedName[:i]
		}
	}
	return ""
}
