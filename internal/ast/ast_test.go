package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
)

func TestFacade_ParseGoFile(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewGoLinePlugin())
	f := NewFacade(registry)

	content := []byte("package demo\n\nimport \"fmt\"\n\nfunc Hello() {}\n\ntype Greeter struct{}\n")
	result, err := f.Parse("hello.go", content)
	require.NoError(t, err)
	assert.Equal(t, "go", result.Language)
	assert.Contains(t, result.Symbols, "Hello")
	assert.Contains(t, result.Symbols, "Greeter")
	assert.Contains(t, result.Imports, "fmt")
}

func TestFacade_NoPluginMatchIsParseError(t *testing.T) {
	f := NewFacade(NewRegistry())
	_, err := f.Parse("photo.png", []byte{0x89, 0x50})
	require.Error(t, err)
	assert.Equal(t, ferrors.ParseError, ferrors.CodeOf(err))
}

func TestFacade_MalformedInputNeverPanics(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewGoLinePlugin())
	f := NewFacade(registry)

	result, err := f.Parse("broken.go", []byte("func ((( not valid go at all"))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
}

func TestRegistry_SelectPrefersMostSpecificExtension(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&LinePlugin{LangName: "generic", Exts: []string{"x"}})
	js := NewJSLinePlugin()
	registry.Register(js)

	plugin, ok := registry.Select("component.tsx", nil)
	require.True(t, ok)
	assert.Equal(t, js, plugin)
}

func TestFacade_ExtractImportsReturnsEdges(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewJSLinePlugin())
	f := NewFacade(registry)

	content := []byte("import { foo } from './foo'\nconst x = require('bar')\n")
	edges := f.ExtractImports("index.js", content)
	require.Len(t, edges, 2)
	targets := []string{edges[0].Target, edges[1].Target}
	assert.Contains(t, targets, "./foo")
	assert.Contains(t, targets, "bar")
}

func TestFacade_ExtractImportsEmptyWithoutMatchingPlugin(t *testing.T) {
	f := NewFacade(NewRegistry())
	assert.Nil(t, f.ExtractImports("x.go", []byte("package x")))
}
