// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ToObject builds the final plain tree: one entry per global keyed by
// attribute name, plus one entry per struct type that declared at least
// one primary key (a list of per-instance maps, in declaration order).
// Inline-only struct types (no primary keys) never appear at the top
// level; they surface only as nested field values.
func (c *Context) ToObject() (map[string]any, *Error) {
	out := map[string]any{}
	for _, name := range c.GlobalOrder {
		v, err := valueToAny(c.Globals[name])
		if err != nil {
			return nil, newError(KindUntemplatableType, c.Globals[name].Meta().fragment, "%s", err)
		}
		out[name] = v
	}
	for _, name := range c.StructOrder {
		s := c.Structs[name]
		if !s.HasPrimaryKey() {
			continue
		}
		list := make([]any, 0, len(s.Instances))
		for _, in := range s.Instances {
			obj, err := valueToAny(in)
			if err != nil {
				return nil, newError(KindUntemplatableType, in.fragment, "%s", err)
			}
			list = append(list, obj)
		}
		out[name] = list
	}
	return out, nil
}

// valueToAny converts a fully-rendered Value tree into the plain
// string/int64/float64/bool/nil/[]any/map[string]any shape described in
// §6's programmatic surface.
func valueToAny(v Value) (any, error) {
	switch n := v.(type) {
	case *Primitive:
		cv, ok := n.rendered.(cty.Value)
		if !ok {
			return nil, fmt.Errorf("tyco: primitive %q was never rendered", n.attrName)
		}
		return ctyToAny(cv)
	case *Array:
		out := make([]any, 0, len(n.Elements))
		for _, e := range n.Elements {
			ev, err := valueToAny(e)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
		return out, nil
	case *Instance:
		out := make(map[string]any, len(n.FieldOrder))
		for _, name := range n.FieldOrder {
			fv, err := valueToAny(n.Fields[name])
			if err != nil {
				return nil, err
			}
			out[name] = fv
		}
		return out, nil
	case *Reference:
		target, resolved := n.resolved()
		if !resolved {
			return nil, fmt.Errorf("tyco: reference to %q was never resolved", n.typeName)
		}
		return valueToAny(target)
	default:
		return nil, fmt.Errorf("tyco: unrecognized value node %T", v)
	}
}
