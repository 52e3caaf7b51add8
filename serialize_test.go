// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestValueToAny_Primitive(t *testing.T) {
	p := strPrimRendered("hello")
	out, err := valueToAny(p)
	require.NoError(t, err)
	require.Equal(t, "hello", out)
}

func TestValueToAny_UnrenderedPrimitiveFails(t *testing.T) {
	p := &Primitive{raw: "x"}
	_, err := valueToAny(p)
	require.Error(t, err)
}

func TestValueToAny_Array(t *testing.T) {
	arr := &Array{Elements: []Value{strPrimRendered("a"), strPrimRendered("b")}}
	out, err := valueToAny(arr)
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b"}, out)
}

func TestValueToAny_Instance(t *testing.T) {
	in := &Instance{
		Fields:     map[string]Value{"name": strPrimRendered("primary")},
		FieldOrder: []string{"name"},
	}
	out, err := valueToAny(in)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "primary"}, out)
}

func TestValueToAny_ResolvedReferenceFollowsToItsInstance(t *testing.T) {
	in := &Instance{
		Fields:     map[string]Value{"name": strPrimRendered("primary")},
		FieldOrder: []string{"name"},
	}
	ref := &Reference{meta: meta{typeName: "Database"}}
	ref.wasRendered = true
	ref.rendered = in

	out, err := valueToAny(ref)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "primary"}, out)
}

func TestValueToAny_UnresolvedReferenceFails(t *testing.T) {
	ref := &Reference{meta: meta{typeName: "Database"}}
	_, err := valueToAny(ref)
	require.Error(t, err)
}

func TestToObject_SkipsKeylessStructsAndOrdersInstances(t *testing.T) {
	c := newContext(nil, nil)
	c.Globals["env"] = strPrimRendered("prod")
	c.GlobalOrder = []string{"env"}

	keyed := newStructSchema("Database")
	keyed.PrimaryKeys = []string{"name"}
	in1 := &Instance{Fields: map[string]Value{"name": strPrimRendered("primary")}, FieldOrder: []string{"name"}}
	in2 := &Instance{Fields: map[string]Value{"name": strPrimRendered("replica")}, FieldOrder: []string{"name"}}
	keyed.Instances = []*Instance{in1, in2}

	keyless := newStructSchema("Point")

	c.Structs["Database"] = keyed
	c.Structs["Point"] = keyless
	c.StructOrder = []string{"Database", "Point"}

	out, err := c.ToObject()
	require.Nil(t, err)
	require.Equal(t, "prod", out["env"])
	require.Equal(t, []any{
		map[string]any{"name": "primary"},
		map[string]any{"name": "replica"},
	}, out["Database"])
	_, hasPoint := out["Point"]
	require.False(t, hasPoint)
}

func TestToObject_PropagatesUntemplatableTypeError(t *testing.T) {
	c := newContext(nil, nil)
	c.Globals["bad"] = &Primitive{raw: "x"} // never rendered
	c.GlobalOrder = []string{"bad"}

	_, err := c.ToObject()
	require.NotNil(t, err)
	require.Equal(t, KindUntemplatableType, err.Kind)
}

func TestCtyToAny_NullProducesNil(t *testing.T) {
	out, err := ctyToAny(cty.NullVal(cty.String))
	require.NoError(t, err)
	require.Nil(t, out)
}
