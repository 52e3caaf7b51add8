// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplySchema_PropagatesIntoArrayElements(t *testing.T) {
	arr := &Array{Elements: []Value{&Primitive{raw: "1"}, &Primitive{raw: "2"}}}
	applySchema(arr, "int", "nums", false, true)

	require.Equal(t, "int", arr.typeName)
	require.True(t, arr.isArray)
	for _, e := range arr.Elements {
		p := e.(*Primitive)
		require.Equal(t, "int", p.typeName)
		require.Equal(t, "nums", p.attrName)
		require.False(t, p.isArray)
		require.False(t, p.isNullable)
	}
}

func TestApplySchema_NeverOverwritesInstanceTypeName(t *testing.T) {
	in := &Instance{meta: meta{typeName: "Point"}, Fields: map[string]Value{}}
	applySchema(in, "Database", "origin", false, false)
	require.Equal(t, "Point", in.typeName)
	require.Equal(t, "origin", in.attrName)
}

func TestApplySchema_NeverOverwritesReferenceTypeName(t *testing.T) {
	ref := &Reference{meta: meta{typeName: "Database"}}
	applySchema(ref, "Service", "db", false, false)
	require.Equal(t, "Database", ref.typeName)
	require.Equal(t, "db", ref.attrName)
}

func TestApplySchema_PrimitiveTakesDeclaredType(t *testing.T) {
	p := &Primitive{raw: "5"}
	applySchema(p, "int", "count", true, false)
	require.Equal(t, "int", p.typeName)
	require.True(t, p.isNullable)
}
