// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

// Context is the per-parse container: globals, struct registries, and the
// #include path cache, plus the hooks (SourceReader, Trace) that were
// passed in through Options. Value nodes live as long as the Context;
// Instances own their field nodes, References and Arrays own their child
// nodes, and parents are always non-owning back-references.
type Context struct {
	Globals     map[string]Value
	GlobalOrder []string

	Structs     map[string]*StructSchema
	StructOrder []string

	includedPaths map[string]bool

	reader SourceReader
	trace  func(phase, msg string)
}

func newContext(reader SourceReader, trace func(phase, msg string)) *Context {
	if trace == nil {
		trace = func(string, string) {}
	}
	return &Context{
		Globals:       map[string]Value{},
		Structs:       map[string]*StructSchema{},
		includedPaths: map[string]bool{},
		reader:        reader,
		trace:         trace,
	}
}

// addGlobal registers a top-level named value; duplicates fail.
func (c *Context) addGlobal(name string, v Value, frag *Fragment) *Error {
	if _, exists := c.Globals[name]; exists {
		return newError(KindDuplicateGlobal, frag, "duplicate global %q", name)
	}
	c.Globals[name] = v
	c.GlobalOrder = append(c.GlobalOrder, name)
	return nil
}

// structFor returns the named struct schema, creating it (and recording
// declaration order) if it is being seen for the first time. The second
// return value reports whether the schema was just created.
func (c *Context) structFor(name string) (*StructSchema, bool) {
	if s, ok := c.Structs[name]; ok {
		return s, false
	}
	s := newStructSchema(name)
	c.Structs[name] = s
	c.StructOrder = append(c.StructOrder, name)
	return s, true
}

// markIncluded records path as included, returning false if it was already
// present (the caller should skip re-parsing it).
func (c *Context) markIncluded(path string) bool {
	if c.includedPaths[path] {
		return false
	}
	c.includedPaths[path] = true
	return true
}

// run drives the fixed render pipeline: parents -> base -> primary keys ->
// references -> templates. Order is load-bearing (see §5 of the design):
// templates read through references, references read the primary-key
// index, and the index needs base-rendered, comparable values.
func (c *Context) run() *Error {
	c.trace("set_parents", "assigning lexical parents")
	c.setParents()

	c.trace("render_base", "rendering primitive base values")
	if err := c.renderBaseAll(); err != nil {
		return err
	}

	c.trace("load_primary_keys", "indexing struct instances by primary key")
	for _, name := range c.StructOrder {
		if err := c.Structs[name].loadPrimaryKeys(); err != nil {
			return err
		}
	}

	c.trace("render_references", "resolving type(args) references")
	if err := c.renderReferencesAll(); err != nil {
		return err
	}

	c.trace("render_templates", "expanding {path} templates")
	if err := c.renderTemplates(); err != nil {
		return err
	}

	return nil
}

// setParents assigns each node's lexical parent. Globals and top-level
// instances have no parent. An Instance is the parent of its own fields.
// An Array or Reference is transparent for containment purposes: its
// children inherit *its own* parent, not the array/reference itself,
// because arrays and reference argument lists are not template scopes.
func (c *Context) setParents() {
	for _, v := range c.Globals {
		v.Meta().parent = nil
		propagateParent(v)
	}
	for _, name := range c.StructOrder {
		for _, in := range c.Structs[name].Instances {
			in.Meta().parent = nil
			propagateParent(in)
		}
	}
}

func propagateParent(v Value) {
	switch n := v.(type) {
	case *Array:
		for _, e := range n.Elements {
			e.Meta().parent = n.Meta().parent
			propagateParent(e)
		}
	case *Instance:
		for _, name := range n.FieldOrder {
			f := n.Fields[name]
			f.Meta().parent = n
			propagateParent(f)
		}
	case *Reference:
		for _, a := range n.Args {
			a.Meta().parent = n.Meta().parent
			propagateParent(a)
		}
	}
}

// renderBase recurses render_base across a single value tree; Array and
// Instance recurse into their children, Reference is a no-op at this
// phase (per §4.4, references render in render_references instead).
func renderBase(v Value) *Error {
	switch n := v.(type) {
	case *Primitive:
		if n.wasRendered {
			return nil
		}
		return renderBasePrimitive(n)
	case *Array:
		for _, e := range n.Elements {
			if err := renderBase(e); err != nil {
				return err
			}
		}
	case *Instance:
		for _, name := range n.FieldOrder {
			if err := renderBase(n.Fields[name]); err != nil {
				return err
			}
		}
	case *Reference:
		// no-op: resolved later, in render_references.
	}
	return nil
}

func (c *Context) renderBaseAll() *Error {
	for _, name := range c.GlobalOrder {
		if err := renderBase(c.Globals[name]); err != nil {
			return err
		}
	}
	for _, name := range c.StructOrder {
		for _, in := range c.Structs[name].Instances {
			if err := renderBase(in); err != nil {
				return err
			}
		}
	}
	return nil
}

// renderReferencesAll walks every value tree looking for Reference nodes
// and resolves each one against its target struct's primary-key index.
// Because load_primary_keys has already indexed every struct by the time
// this phase runs, references may point forward or backward in source
// order without any additional dependency ordering.
func (c *Context) renderReferencesAll() *Error {
	var resolveErr *Error
	visit := func(v Value) bool {
		ref, ok := v.(*Reference)
		if !ok {
			return true
		}
		target, ok := c.Structs[ref.typeName]
		if !ok {
			resolveErr = newError(KindUnknownReference, ref.fragment, "reference to undeclared type %q", ref.typeName)
			return false
		}
		if err := target.loadReference(ref); err != nil {
			resolveErr = err
			return false
		}
		return true
	}
	for _, name := range c.GlobalOrder {
		walkValues(c.Globals[name], visit)
		if resolveErr != nil {
			return resolveErr
		}
	}
	for _, name := range c.StructOrder {
		for _, in := range c.Structs[name].Instances {
			walkValues(in, visit)
			if resolveErr != nil {
				return resolveErr
			}
		}
	}
	return nil
}

// walkValues visits v and every node reachable from it (array elements,
// instance fields, reference arguments), calling fn on each in pre-order.
// fn returns false to abort the walk early.
func walkValues(v Value, fn func(Value) bool) bool {
	if !fn(v) {
		return false
	}
	switch n := v.(type) {
	case *Array:
		for _, e := range n.Elements {
			if !walkValues(e, fn) {
				return false
			}
		}
	case *Instance:
		for _, name := range n.FieldOrder {
			if !walkValues(n.Fields[name], fn) {
				return false
			}
		}
	case *Reference:
		for _, a := range n.Args {
			if !walkValues(a, fn) {
				return false
			}
		}
	}
	return true
}
