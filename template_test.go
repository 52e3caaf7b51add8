// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestGreedyLookup_ResolvesDottedAttrNameByBacktracking(t *testing.T) {
	target := &Primitive{raw: "v"}
	lookup := fieldLookup(func(name string) (Value, bool) {
		if name == "a.b" {
			return target, true
		}
		return nil, false
	})

	val, remaining, ok := greedyLookup(lookup, []string{"a", "b", "c"})
	require.True(t, ok)
	require.Same(t, target, val)
	require.Equal(t, []string{"c"}, remaining)
}

func TestGreedyLookup_PrefersShortestMatchingHead(t *testing.T) {
	target := &Primitive{raw: "v"}
	lookup := fieldLookup(func(name string) (Value, bool) {
		return target, name == "a"
	})

	val, remaining, ok := greedyLookup(lookup, []string{"a", "b"})
	require.True(t, ok)
	require.Same(t, target, val)
	require.Equal(t, []string{"b"}, remaining)
}

func TestGreedyLookup_ExhaustsWithoutMatch(t *testing.T) {
	lookup := fieldLookup(func(name string) (Value, bool) { return nil, false })
	_, _, ok := greedyLookup(lookup, []string{"a", "b"})
	require.False(t, ok)
}

func strPrimRendered(s string) *Primitive {
	p := &Primitive{raw: s, meta: meta{typeName: "str"}}
	p.wasRendered = true
	p.rendered = cty.StringVal(s)
	return p
}

func TestResolveTemplatePath_ZeroDotsStaysAtCurrentInstance(t *testing.T) {
	host := strPrimRendered("localhost")
	in := &Instance{Fields: map[string]Value{"host": host}, FieldOrder: []string{"host"}}
	host.parent = in

	p := &Primitive{meta: meta{parent: in}}
	c := newContext(nil, nil)

	got, err := c.resolveTemplatePath("host", p)
	require.Nil(t, err)
	require.Equal(t, "localhost", got)
}

func TestResolveTemplatePath_ParentOverflowFails(t *testing.T) {
	p := &Primitive{meta: meta{parent: nil}}
	c := newContext(nil, nil)

	_, err := c.resolveTemplatePath("..host", p)
	require.NotNil(t, err)
	require.Equal(t, KindParentOverflow, err.Kind)
}

func TestResolveTemplatePath_GlobalScopeEscapeHatch(t *testing.T) {
	g := strPrimRendered("prod")
	in := &Instance{Fields: map[string]Value{}, FieldOrder: nil}
	p := &Primitive{meta: meta{parent: in}}

	c := newContext(nil, nil)
	c.Globals["env"] = g
	c.GlobalOrder = []string{"env"}

	got, err := c.resolveTemplatePath("global.env", p)
	require.Nil(t, err)
	require.Equal(t, "prod", got)
}

func TestResolveTemplatePath_GlobalAsRealAttrNameWins(t *testing.T) {
	// When the current instance actually has a field literally named
	// "global", that field wins over the global-scope escape hatch: the
	// escape hatch only kicks in once the plain lookup has failed.
	real := strPrimRendered("instance-scoped")
	in := &Instance{Fields: map[string]Value{"global": real}, FieldOrder: []string{"global"}}
	real.parent = in
	p := &Primitive{meta: meta{parent: in}}

	c := newContext(nil, nil)
	c.Globals["global"] = strPrimRendered("global-scoped")
	c.GlobalOrder = []string{"global"}

	got, err := c.resolveTemplatePath("global", p)
	require.Nil(t, err)
	require.Equal(t, "instance-scoped", got)
}

func TestResolveTemplatePath_UntemplatableTypeFails(t *testing.T) {
	arr := &Array{meta: meta{typeName: "int", isArray: true}}
	in := &Instance{Fields: map[string]Value{"nums": arr}, FieldOrder: []string{"nums"}}
	p := &Primitive{meta: meta{parent: in}}

	c := newContext(nil, nil)
	_, err := c.resolveTemplatePath("nums", p)
	require.NotNil(t, err)
	require.Equal(t, KindUntemplatableType, err.Kind)
}

func TestResolveTemplatePath_UnresolvedReferenceFails(t *testing.T) {
	ref := &Reference{meta: meta{typeName: "Database"}}
	in := &Instance{Fields: map[string]Value{"db": ref}, FieldOrder: []string{"db"}}
	p := &Primitive{meta: meta{parent: in}}

	c := newContext(nil, nil)
	_, err := c.resolveTemplatePath("db", p)
	require.NotNil(t, err)
	require.Equal(t, KindUnresolvedReferenceInTemplate, err.Kind)
}

func TestResolveTemplatePath_DescendsThroughResolvedReference(t *testing.T) {
	host := strPrimRendered("db.internal")
	dbIn := &Instance{Fields: map[string]Value{"host": host}, FieldOrder: []string{"host"}}
	host.parent = dbIn

	ref := &Reference{meta: meta{typeName: "Database"}}
	ref.wasRendered = true
	ref.rendered = dbIn

	svcIn := &Instance{Fields: map[string]Value{"db": ref}, FieldOrder: []string{"db"}}
	ref.parent = svcIn
	p := &Primitive{meta: meta{parent: svcIn}}

	c := newContext(nil, nil)
	got, err := c.resolveTemplatePath("db.host", p)
	require.Nil(t, err)
	require.Equal(t, "db.internal", got)
}

func TestApplyEscapes(t *testing.T) {
	require.Equal(t, `a"b`, applyEscapes(`a\"b`))
	require.Equal(t, "a\tb", applyEscapes(`a\tb`))
	require.Equal(t, "a\nb", applyEscapes(`a\nb`))
	require.Equal(t, `a\b`, applyEscapes(`a\\b`))
	require.Equal(t, "ab", applyEscapes("a\\\nb"))
	require.Equal(t, "aéb", applyEscapes("a\\u00e9b"))
	require.Equal(t, "a\U0001F600b", applyEscapes(`a\U0001F600b`))
	require.Equal(t, `a\qb`, applyEscapes(`a\qb`), "unrecognized escape is left as-is")
}

func TestApplyEscapes_TruncatedUnicodeEscapeLeftLiteral(t *testing.T) {
	require.Equal(t, `a\u12`, applyEscapes(`a\u12`))
}
