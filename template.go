// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// renderTemplates is render_templates: every non-literal str Primitive is
// scanned for `{dotted.path}` substitutions, which are resolved by walking
// the value's containment chain, then classic string escapes are applied
// once to the result.
func (c *Context) renderTemplates() *Error {
	var outErr *Error
	visit := func(v Value) bool {
		p, ok := v.(*Primitive)
		if !ok || p.typeName != "str" || p.isLiteralStr {
			return true
		}
		if err := c.renderTemplateString(p); err != nil {
			outErr = err
			return false
		}
		return true
	}
	for _, name := range c.GlobalOrder {
		if !walkValues(c.Globals[name], visit) {
			return outErr
		}
	}
	for _, name := range c.StructOrder {
		for _, in := range c.Structs[name].Instances {
			if !walkValues(in, visit) {
				return outErr
			}
		}
	}
	return nil
}

func (c *Context) renderTemplateString(p *Primitive) *Error {
	cv := p.rendered.(cty.Value)
	if cv.IsNull() {
		return nil
	}
	raw := cv.AsString()

	var b strings.Builder
	i := 0
	for i < len(raw) {
		if raw[i] != '{' {
			b.WriteByte(raw[i])
			i++
			continue
		}
		end := strings.IndexByte(raw[i+1:], '}')
		if end < 0 {
			b.WriteByte(raw[i])
			i++
			continue
		}
		path := raw[i+1 : i+1+end]
		resolved, err := c.resolveTemplatePath(path, p)
		if err != nil {
			return err
		}
		b.WriteString(resolved)
		i = i + 1 + end + 1
	}

	p.rendered = cty.StringVal(applyEscapes(b.String()))
	return nil
}

// fieldLookup abstracts "look up a name in the current scope" over both
// an Instance's fields and the Context's globals map.
type fieldLookup func(name string) (Value, bool)

func instanceLookup(in *Instance) fieldLookup {
	return func(name string) (Value, bool) {
		v, ok := in.Fields[name]
		return v, ok
	}
}

func globalsLookup(g map[string]Value) fieldLookup {
	return func(name string) (Value, bool) {
		v, ok := g[name]
		return v, ok
	}
}

// greedyLookup implements the backtracking rule needed because attribute
// names may themselves contain dots: try the leftmost segment; on miss,
// merge the next segment in with a dot and retry, growing the head until
// it resolves or the segment queue is exhausted.
func greedyLookup(lookup fieldLookup, segments []string) (Value, []string, bool) {
	head := segments[0]
	for i := 1; i <= len(segments); i++ {
		if v, ok := lookup(head); ok {
			return v, segments[i:], true
		}
		if i < len(segments) {
			head = head + "." + segments[i]
		}
	}
	return nil, nil, false
}

// resolveTemplatePath resolves a single `{path}` occurrence found inside
// p, per §4.4's template resolution algorithm, and returns its String()
// form.
func (c *Context) resolveTemplatePath(path string, p *Primitive) (string, *Error) {
	dots := 0
	for dots < len(path) && path[dots] == '.' {
		dots++
	}
	rest := path[dots:]
	if rest == "" {
		return "", newError(KindUnknownAttr, p.fragment, "empty template path")
	}
	hops := 0
	if dots > 0 {
		hops = dots - 1
	}

	cur := p.Meta().parent
	for i := 0; i < hops; i++ {
		if cur == nil {
			return "", newError(KindParentOverflow, p.fragment, "template path %q overflows containment chain", path)
		}
		cur = cur.Meta().parent
	}

	segments := strings.Split(rest, ".")

	var lookup fieldLookup
	if cur == nil {
		lookup = globalsLookup(c.Globals)
	} else {
		in, ok := cur.(*Instance)
		if !ok {
			return "", newError(KindUnknownAttr, p.fragment, "template path %q has no named scope to resolve against", path)
		}
		lookup = instanceLookup(in)
	}

	val, remaining, ok := greedyLookup(lookup, segments)
	if !ok && segments[0] == "global" {
		val, remaining, ok = greedyLookup(globalsLookup(c.Globals), segments[1:])
	}
	if !ok {
		return "", newError(KindUnknownAttr, p.fragment, "unresolved template path %q", path)
	}

	for len(remaining) > 0 {
		in, err := c.asInstanceScope(val, p)
		if err != nil {
			return "", err
		}
		val, remaining, ok = greedyLookup(instanceLookup(in), remaining)
		if !ok {
			return "", newError(KindUnknownAttr, p.fragment, "unresolved template path %q", path)
		}
	}

	prim, err := c.asTemplatableLeaf(val, p)
	if err != nil {
		return "", err
	}
	rendered, convErr := ctyToAny(prim.rendered.(cty.Value))
	if convErr != nil {
		return "", newError(KindUntemplatableType, p.fragment, "%s", convErr)
	}
	return fmt.Sprintf("%v", rendered), nil
}

// asInstanceScope follows a Reference to its resolved Instance so template
// resolution can continue descending into its fields.
func (c *Context) asInstanceScope(v Value, p *Primitive) (*Instance, *Error) {
	switch n := v.(type) {
	case *Instance:
		return n, nil
	case *Reference:
		target, resolved := n.resolved()
		if !resolved {
			return nil, newError(KindUnresolvedReferenceInTemplate, p.fragment, "reference not yet resolved")
		}
		return target, nil
	default:
		return nil, newError(KindUnknownAttr, p.fragment, "path segment does not resolve to a struct")
	}
}

// asTemplatableLeaf follows a Reference to its Instance if needed, then
// requires the final node to be a str or int Primitive.
func (c *Context) asTemplatableLeaf(v Value, p *Primitive) (*Primitive, *Error) {
	if ref, ok := v.(*Reference); ok {
		target, resolved := ref.resolved()
		if !resolved {
			return nil, newError(KindUnresolvedReferenceInTemplate, p.fragment, "reference not yet resolved")
		}
		v = target
	}
	prim, ok := v.(*Primitive)
	if !ok || (prim.typeName != "str" && prim.typeName != "int") {
		return nil, newError(KindUntemplatableType, p.fragment, "template path does not resolve to a str or int")
	}
	return prim, nil
}

// applyEscapes applies classic string escape sequences exactly once:
// \\ \" \b \t \n \f \r \uXXXX \UXXXXXXXX, plus \<EOL> line-continuation
// elision.
func applyEscapes(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			i++
			continue
		}
		switch s[i+1] {
		case '\\':
			b.WriteByte('\\')
			i += 2
		case '"':
			b.WriteByte('"')
			i += 2
		case 'b':
			b.WriteByte('\b')
			i += 2
		case 't':
			b.WriteByte('\t')
			i += 2
		case 'n':
			b.WriteByte('\n')
			i += 2
		case 'f':
			b.WriteByte('\f')
			i += 2
		case 'r':
			b.WriteByte('\r')
			i += 2
		case '\n':
			i += 2
		case 'u':
			if r, ok := hexRune(s, i+2, 4); ok {
				b.WriteRune(r)
				i += 6
				continue
			}
			b.WriteByte(s[i])
			i++
		case 'U':
			if r, ok := hexRune(s, i+2, 8); ok {
				b.WriteRune(r)
				i += 10
				continue
			}
			b.WriteByte(s[i])
			i++
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

func hexRune(s string, start, width int) (rune, bool) {
	if start+width > len(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s[start:start+width], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(n), true
}
