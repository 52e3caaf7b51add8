// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

import "fmt"

// StructSchema is the per-type registry: ordered attribute names and
// types, nullable/array flags, primary keys, local defaults, declared
// instances, and the primary-key index built by loadPrimaryKeys.
type StructSchema struct {
	Name        string
	AttrOrder   []string
	AttrTypes   map[string]string
	Nullable    map[string]bool
	IsArray     map[string]bool
	PrimaryKeys []string
	Defaults    map[string]Value
	Instances   []*Instance

	mappedInstances map[string]*Instance
	attrSeen        map[string]bool
	frozen          bool // true once the first instance row has been parsed
}

func newStructSchema(name string) *StructSchema {
	return &StructSchema{
		Name:      name,
		AttrTypes: map[string]string{},
		Nullable:  map[string]bool{},
		IsArray:   map[string]bool{},
		Defaults:  map[string]Value{},
		attrSeen:  map[string]bool{},
	}
}

// HasPrimaryKey reports whether this struct declared at least one primary
// key; structs without one participate only as inline instances and are
// never indexed or emitted at the top level.
func (s *StructSchema) HasPrimaryKey() bool { return len(s.PrimaryKeys) > 0 }

// addAttr registers a schema row's attribute, per §4.2.3.
func (s *StructSchema) addAttr(name, typeName string, primaryKey, nullable, array bool, frag *Fragment) *Error {
	if s.frozen {
		return newError(KindSchemaAfterInit, frag, "attribute %q declared after first instance of %q", name, s.Name)
	}
	if s.attrSeen[name] {
		return newError(KindDuplicateAttr, frag, "duplicate attribute %q in %q", name, s.Name)
	}
	if primaryKey && array {
		return newError(KindPrimaryKeyOnArray, frag, "primary key %q of %q may not be an array", name, s.Name)
	}
	s.attrSeen[name] = true
	s.AttrOrder = append(s.AttrOrder, name)
	s.AttrTypes[name] = typeName
	s.Nullable[name] = nullable
	s.IsArray[name] = array
	if primaryKey {
		s.PrimaryKeys = append(s.PrimaryKeys, name)
	}
	return nil
}

// setDefault installs or clears (value == nil) a local default for an
// already-declared attribute, per §4.2.4.
func (s *StructSchema) setDefault(name string, value Value, frag *Fragment) *Error {
	if !s.attrSeen[name] {
		return newError(KindUnknownAttr, frag, "unknown attribute %q on %q", name, s.Name)
	}
	if value == nil {
		delete(s.Defaults, name)
		return nil
	}
	s.Defaults[name] = value
	return nil
}

// arg is one parsed instance/reference argument: a value node plus whether
// it was written with an explicit "name:" prefix.
type arg struct {
	value Value
	named bool
}

// createInstance builds an Instance from a parsed "- arg, arg, ..." row and
// records it in s.Instances, per §4.3. Use createInstance only for rows
// declared directly in a struct's own block; inline invocations embedded as
// another field's value go through buildInstance instead, so a key-less
// struct's inline instances are rendered exactly once, through whichever
// field embeds them, rather than also being walked as a top-level instance.
func (s *StructSchema) createInstance(args []arg, frag *Fragment) (*Instance, *Error) {
	in, err := s.buildInstance(args, frag)
	if err != nil {
		return nil, err
	}
	s.Instances = append(s.Instances, in)
	return in, nil
}

// buildInstance is createInstance's shared logic, without recording the
// result in s.Instances.
func (s *StructSchema) buildInstance(args []arg, frag *Fragment) (*Instance, *Error) {
	s.frozen = true

	chosen := map[string]Value{}
	keywordMode := false
	for i, a := range args {
		name := a.value.Meta().attrName
		if a.named {
			keywordMode = true
		} else {
			if keywordMode {
				return nil, newError(KindPositionalAfterKeyword, frag, "positional argument after keyword argument in %q", s.Name)
			}
			if i >= len(s.AttrOrder) {
				return nil, newError(KindMissingAttr, frag, "too many positional arguments for %q", s.Name)
			}
			name = s.AttrOrder[i]
			a.value.Meta().attrName = name
		}
		if !s.attrSeen[name] {
			return nil, newError(KindUnknownAttr, frag, "unknown attribute %q on %q", name, s.Name)
		}
		chosen[name] = a.value
	}

	in := &Instance{
		Fields:     map[string]Value{},
		FieldOrder: append([]string(nil), s.AttrOrder...),
		Struct:     s,
	}
	in.fragment = frag
	in.typeName = s.Name

	for _, name := range s.AttrOrder {
		field, ok := chosen[name]
		if !ok {
			def, hasDefault := s.Defaults[name]
			if !hasDefault {
				return nil, newError(KindMissingAttr, frag, "missing attribute %q on %q", name, s.Name)
			}
			field = deepCopy(def)
		}
		nullable := s.Nullable[name]
		array := s.IsArray[name]
		applySchema(field, s.AttrTypes[name], name, nullable, array)
		if array {
			if _, ok := field.(*Array); !ok {
				if p, ok := field.(*Primitive); !ok || !(nullable && p.raw == "null") {
					return nil, newError(KindExpectedArray, frag, "attribute %q of %q expects an array", name, s.Name)
				}
			}
		}
		in.Fields[name] = field
	}

	return in, nil
}

// loadReference resolves a Reference's argument list against this struct's
// primary keys and sets ref.rendered to the matching Instance, per §4.3's
// load_reference.
func (s *StructSchema) loadReference(ref *Reference) *Error {
	if ref.wasRendered {
		return newError(KindDoubleRender, ref.fragment, "reference to %q rendered twice", s.Name)
	}
	if len(s.PrimaryKeys) == 0 {
		return newError(KindUnknownReference, ref.fragment, "%q has no primary key and cannot be referenced", s.Name)
	}

	chosen := make([]Value, len(s.PrimaryKeys))
	keywordMode := false
	for i, a := range ref.Args {
		m := a.Meta()
		if m.attrName != "" {
			keywordMode = true
			idx := indexOf(s.PrimaryKeys, m.attrName)
			if idx < 0 {
				return newError(KindUnknownAttr, ref.fragment, "unknown primary key %q on %q", m.attrName, s.Name)
			}
			chosen[idx] = a
			continue
		}
		if keywordMode {
			return newError(KindPositionalAfterKeyword, ref.fragment, "positional argument after keyword argument in reference to %q", s.Name)
		}
		if i >= len(s.PrimaryKeys) {
			return newError(KindUnknownReference, ref.fragment, "too many arguments in reference to %q", s.Name)
		}
		chosen[i] = a
	}

	parts := make([]string, len(s.PrimaryKeys))
	for i, name := range s.PrimaryKeys {
		v := chosen[i]
		if v == nil {
			return newError(KindUnknownReference, ref.fragment, "missing primary key %q in reference to %q", name, s.Name)
		}
		applySchema(v, s.AttrTypes[name], name, false, false)
		if err := renderBase(v); err != nil {
			return err
		}
		part, convErr := renderedToKeyPart(v)
		if convErr != nil {
			return newError(KindUnknownReference, ref.fragment, "%s", convErr)
		}
		parts[i] = part
	}

	key := joinKeyParts(parts)
	target, ok := s.mappedInstances[key]
	if !ok {
		return newError(KindUnknownReference, ref.fragment, "no %q instance matches reference", s.Name)
	}
	ref.rendered = target
	ref.wasRendered = true
	return nil
}

// loadPrimaryKeys builds the primary-key index over all declared
// instances, per §4.3's load_primary_keys. Structs with no primary keys
// are skipped (they are inline-only).
func (s *StructSchema) loadPrimaryKeys() *Error {
	if !s.HasPrimaryKey() {
		return nil
	}
	s.mappedInstances = map[string]*Instance{}
	for _, in := range s.Instances {
		parts := make([]string, len(s.PrimaryKeys))
		for i, name := range s.PrimaryKeys {
			field := in.Fields[name]
			part, err := renderedToKeyPart(field)
			if err != nil {
				return newError(KindDuplicatePrimaryKey, in.fragment, "%s", err)
			}
			parts[i] = part
		}
		key := joinKeyParts(parts)
		if _, dup := s.mappedInstances[key]; dup {
			return newError(KindDuplicatePrimaryKey, in.fragment, "duplicate primary key for %q", s.Name)
		}
		s.mappedInstances[key] = in
	}
	return nil
}

func joinKeyParts(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\x00"
		}
		out += p
	}
	return out
}

func renderedToKeyPart(v Value) (string, error) {
	m := v.Meta()
	if !m.wasRendered {
		return "", fmt.Errorf("primary key field not yet rendered")
	}
	val, err := valueToAny(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", val), nil
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}

// deepCopy clones a Value tree so a single local default can be reused
// across multiple instances without aliasing mutable render state.
func deepCopy(v Value) Value {
	switch n := v.(type) {
	case *Primitive:
		cp := *n
		return &cp
	case *Array:
		cp := &Array{meta: n.meta}
		cp.Elements = make([]Value, len(n.Elements))
		for i, e := range n.Elements {
			cp.Elements[i] = deepCopy(e)
		}
		return cp
	case *Instance:
		cp := &Instance{meta: n.meta, Struct: n.Struct}
		cp.FieldOrder = append([]string(nil), n.FieldOrder...)
		cp.Fields = make(map[string]Value, len(n.Fields))
		for k, f := range n.Fields {
			cp.Fields[k] = deepCopy(f)
		}
		return cp
	case *Reference:
		cp := &Reference{meta: n.meta}
		cp.Args = make([]Value, len(n.Args))
		for i, a := range n.Args {
			cp.Args[i] = deepCopy(a)
		}
		return cp
	default:
		return v
	}
}
