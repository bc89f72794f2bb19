package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/codemem/repoingest/internal/errors"
)

func extractAll(t *testing.T, source string) []Element {
	t.Helper()
	e := NewPythonExtractor()
	elements, err := e.Extract(context.Background(), []byte(source), "test.py")
	require.NoError(t, err)
	return elements
}

func findElement(t *testing.T, elements []Element, qualified string) Element {
	t.Helper()
	for _, el := range elements {
		if el.QualifiedName == qualified {
			return el
		}
	}
	t.Fatalf("element %q not found in %v", qualified, elements)
	return Element{}
}

func TestExtract_SimpleFunction(t *testing.T) {
	source := `def greet(name: str) -> str:
    """Say hello."""
    return "hello " + name
`
	elements := extractAll(t, source)
	require.Len(t, elements, 1)

	el := elements[0]
	assert.Equal(t, KindFunction, el.Kind)
	assert.Equal(t, "greet", el.Name)
	assert.Equal(t, "greet", el.QualifiedName)
	assert.Equal(t, "test.py", el.FilePath)
	assert.Equal(t, 1, el.StartLine)
	assert.Equal(t, 3, el.EndLine)
	assert.Equal(t, 1, el.Complexity)
	assert.Equal(t, "Say hello.", el.Docstring)
	assert.Equal(t, "def greet(name: str) -> str", el.Signature)
	assert.Len(t, el.ContentHash, 16)
}

func TestExtract_AsyncFunction(t *testing.T) {
	source := `async def fetch(url):
    return await get(url)
`
	elements := extractAll(t, source)
	require.Len(t, elements, 1)
	assert.Equal(t, KindAsyncFunction, elements[0].Kind)
	assert.Equal(t, "async def fetch(url)", elements[0].Signature)
}

func TestExtract_ClassWithMethods(t *testing.T) {
	source := `class User(Base):
    """A user."""

    def save(self):
        return True

    async def refresh(self):
        pass

    @property
    def display_name(self):
        return self.name

    @staticmethod
    def table():
        return "users"

    @classmethod
    def create(cls):
        return cls()
`
	elements := extractAll(t, source)

	cls := findElement(t, elements, "User")
	assert.Equal(t, KindClass, cls.Kind)
	assert.Equal(t, "class User(Base)", cls.Signature)
	assert.Equal(t, "A user.", cls.Docstring)

	assert.Equal(t, KindMethod, findElement(t, elements, "User.save").Kind)
	assert.Equal(t, KindAsyncMethod, findElement(t, elements, "User.refresh").Kind)
	assert.Equal(t, KindProperty, findElement(t, elements, "User.display_name").Kind)
	assert.Equal(t, KindStaticMethod, findElement(t, elements, "User.table").Kind)
	assert.Equal(t, KindClassMethod, findElement(t, elements, "User.create").Kind)
}

func TestExtract_NestedClassQualifiedNames(t *testing.T) {
	source := `class Outer:
    class Inner:
        def method(self):
            pass
`
	elements := extractAll(t, source)

	assert.Equal(t, KindClass, findElement(t, elements, "Outer").Kind)
	assert.Equal(t, KindClass, findElement(t, elements, "Outer.Inner").Kind)
	assert.Equal(t, KindMethod, findElement(t, elements, "Outer.Inner.method").Kind)
}

func TestExtract_SourceOrder(t *testing.T) {
	source := `def first():
    pass

class Second:
    def third(self):
        pass

def fourth():
    pass
`
	elements := extractAll(t, source)
	var names []string
	for _, el := range elements {
		names = append(names, el.QualifiedName)
	}
	assert.Equal(t, []string{"first", "Second", "Second.third", "fourth"}, names)
}

func TestExtract_Complexity(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"straight line", "    return 1\n", 1},
		{"one if", "    if x:\n        return 1\n    return 2\n", 2},
		{"if elif", "    if x:\n        return 1\n    elif y:\n        return 2\n    return 3\n", 3},
		{"for loop", "    for i in xs:\n        pass\n", 2},
		{"while loop", "    while x:\n        pass\n", 2},
		{"except clause", "    try:\n        pass\n    except ValueError:\n        pass\n    except KeyError:\n        pass\n", 3},
		{"boolean operators", "    return x and y or z\n", 3},
		{"nested", "    for i in xs:\n        if i:\n            pass\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elements := extractAll(t, "def f(x=None, y=None, z=None, xs=None, i=None):\n"+tt.body)
			require.NotEmpty(t, elements)
			assert.Equal(t, tt.expected, elements[0].Complexity)
		})
	}
}

func TestExtract_ComplexityNeverDecreasesWhenBranchAdded(t *testing.T) {
	base := extractAll(t, "def f(x):\n    return x\n")[0]
	branched := extractAll(t, "def f(x):\n    if x:\n        return x\n    return None\n")[0]
	assert.Greater(t, branched.Complexity, base.Complexity)
}

func TestExtract_Dependencies(t *testing.T) {
	source := `import os
import json as j
from pathlib import Path
from typing import _Private

HELPER = 1

def uses(x):
    p = Path(x)
    data = j.dumps(p)
    os.remove(x)

    return HELPER + data
`
	// Note: keep dependency order = first occurrence in the body.
	elements := extractAll(t, source)
	el := findElement(t, elements, "uses")
	assert.Equal(t, []string{"Path", "j", "os", "HELPER"}, el.Dependencies)
}

func TestExtract_DependenciesCappedAtTen(t *testing.T) {
	source := `import a1
import a2
import a3
import a4
import a5
import a6
import a7
import a8
import a9
import a10
import a11

def f():
    return [a1, a2, a3, a4, a5, a6, a7, a8, a9, a10, a11]
`
	elements := extractAll(t, source)
	el := findElement(t, elements, "f")
	assert.Len(t, el.Dependencies, MaxDependencies)
}

func TestExtract_DependenciesFilterSelfClsUnderscore(t *testing.T) {
	source := `import os
import _private

class C:
    def m(self):
        self.x = 1
        cls = None
        return os.path
`
	elements := extractAll(t, source)
	el := findElement(t, elements, "C.m")
	assert.Equal(t, []string{"os"}, el.Dependencies)
}

func TestExtract_ContentHashStableAcrossUnrelatedEdits(t *testing.T) {
	v1 := `def stable():
    return 42

def other():
    return 1
`
	v2 := `def stable():
    return 42

def other():
    return 2


def brand_new():
    pass
`
	h1 := findElement(t, extractAll(t, v1), "stable").ContentHash
	h2 := findElement(t, extractAll(t, v2), "stable").ContentHash
	assert.Equal(t, h1, h2)
}

func TestExtract_ContentHashChangesWithBody(t *testing.T) {
	h1 := findElement(t, extractAll(t, "def f():\n    return 1\n"), "f").ContentHash
	h2 := findElement(t, extractAll(t, "def f():\n    return 2\n"), "f").ContentHash
	assert.NotEqual(t, h1, h2)
}

func TestExtract_ContentHashIncludesQualifiedName(t *testing.T) {
	source := `class A:
    def go(self):
        return 1

class B:
    def go(self):
        return 1
`
	elements := extractAll(t, source)
	a := findElement(t, elements, "A.go")
	b := findElement(t, elements, "B.go")
	assert.NotEqual(t, a.ContentHash, b.ContentHash)
}

func TestExtract_SyntaxErrorFailsFile(t *testing.T) {
	e := NewPythonExtractor()
	_, err := e.Extract(context.Background(), []byte("def broken(:\n    pass\n"), "bad.py")
	require.Error(t, err)
	assert.Equal(t, ierr.ErrCodeParseFailed, ierr.GetCode(err))
	assert.False(t, ierr.IsFatal(err))
}

func TestExtract_ModuleDocstringElement(t *testing.T) {
	source := `"""Utility helpers for the billing service."""

def bill():
    pass
`
	elements := extractAll(t, source)
	require.Len(t, elements, 2)

	mod := elements[0]
	assert.Equal(t, KindModule, mod.Kind)
	assert.Equal(t, "test", mod.Name)
	assert.Equal(t, "Utility helpers for the billing service.", mod.Docstring)
	assert.False(t, mod.Kind.IsCode())
}

func TestExtract_Decorators(t *testing.T) {
	source := `import functools

@functools.lru_cache(maxsize=32)
@deprecated
def cached():
    pass
`
	elements := extractAll(t, source)
	el := findElement(t, elements, "cached")
	assert.Equal(t, []string{"functools.lru_cache", "deprecated"}, el.Decorators)
}

func TestNewElement_RejectsInvalidKind(t *testing.T) {
	_, err := NewElement(Element{Kind: "lambda", Name: "x", StartLine: 1, EndLine: 1})
	assert.Error(t, err)
}

func TestNewElement_RejectsBadLineRange(t *testing.T) {
	_, err := NewElement(Element{Kind: KindFunction, Name: "x", StartLine: 5, EndLine: 2})
	assert.Error(t, err)
}
