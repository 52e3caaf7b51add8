// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

// Value is the tagged-sum node every parsed piece of Tyco source becomes.
// The four concrete variants (*Primitive, *Array, *Instance, *Reference)
// share a meta header and participate in the fixed render pipeline:
// set_parents -> render_base -> load_primary_keys -> render_references ->
// render_templates.
type Value interface {
	// Meta returns the shared schema/location header for this node.
	Meta() *meta
}

// meta is the header every Value variant embeds. It is populated by schema
// application (see applySchema) once the declaring struct or global
// attribute is known.
type meta struct {
	typeName   string
	attrName   string
	isNullable bool
	isArray    bool
	parent     Value // weak, non-owning
	fragment   *Fragment

	wasRendered bool
	rendered    any
}

func (m *meta) Meta() *meta { return m }

// applySchema stamps the attribute's declared type/nullable/array flags
// onto a node, mirroring struct-schema or global-declaration metadata.
// Array elements inherit the array's typeName/attrName with is_array and
// is_nullable cleared (§3's Array invariant). Instance and Reference nodes
// keep the struct name they were lexically constructed with rather than
// taking typeName from the slot they were assigned into, so a type
// mismatch between a declared field and the struct actually invoked is
// never silently papered over.
func applySchema(v Value, typeName, attrName string, nullable, array bool) {
	m := v.Meta()
	m.attrName = attrName
	m.isNullable = nullable
	m.isArray = array
	switch v.(type) {
	case *Instance, *Reference:
	default:
		m.typeName = typeName
	}
	if arr, ok := v.(*Array); ok {
		for _, e := range arr.Elements {
			applySchema(e, typeName, attrName, false, false)
		}
	}
}

// Primitive holds raw textual content until render_base converts it into a
// typed Go value. isLiteralStr is true when the source delimiter was
// `'` / `'''`, in which case render_templates leaves the content untouched.
type Primitive struct {
	meta
	raw          string
	isLiteralStr bool
}

// Array owns an ordered sequence of child nodes. On schema application each
// child inherits the array's typeName/attrName with isArray=false and
// isNullable=false (an array's elements are never themselves nullable
// arrays).
type Array struct {
	meta
	Elements []Value
}

// Instance owns an ordered mapping from attribute name to value node, the
// order given by the declaring struct's attribute order. Rendering an
// Instance delegates entirely to its fields.
type Instance struct {
	meta
	Fields     map[string]Value
	FieldOrder []string
	Struct     *StructSchema
}

// Field returns the named field's value node, or nil if unset.
func (in *Instance) Field(name string) Value {
	return in.Fields[name]
}

// Reference holds a type name plus the positional/keyed argument list that
// was written as Type(arg1, arg2, ...). rendered becomes the resolved
// *Instance once render_references runs.
type Reference struct {
	meta
	Args []Value
}

// resolved returns the *Instance this reference was rendered to, and
// whether rendering has happened yet.
func (r *Reference) resolved() (*Instance, bool) {
	if !r.wasRendered {
		return nil, false
	}
	in, ok := r.rendered.(*Instance)
	return in, ok
}
