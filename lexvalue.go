// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

import (
	"regexp"
	"strings"
)

// delimSet is an explicit set of terminator bytes threaded through value
// parsing, rather than a global: each call site states which characters
// end its construct (good) and which are forbidden there (bad).
type delimSet map[byte]bool

func newDelimSet(chars string) delimSet {
	m := make(delimSet, len(chars))
	for i := 0; i < len(chars); i++ {
		m[chars[i]] = true
	}
	return m
}

var reNamedPrefix = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)[ \t]*:`)
var reInvocationStart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\(`)

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// loadTycoAttr reads one value node starting at the cursor (§4.2.5-4.2.6):
// an optional "name:" prefix, then an inline array, inline invocation,
// quoted string, or raw token. When popEmpty is true and no value is
// present (the cursor is already at a delimiter, comment or EOL), it
// returns (nil, nil) rather than erroring, for optional schema defaults.
func (p *parser) loadTycoAttr(good, bad delimSet, popEmpty, allowNewline bool) (Value, *Error) {
	p.skipWS(allowNewline)

	attrName := ""
	if m := reNamedPrefix.FindStringSubmatchIndex(p.src[p.pos:]); m != nil {
		attrName = p.src[p.pos+m[2] : p.pos+m[3]]
		p.advance(m[1])
		p.skipWS(allowNewline)
	}

	if popEmpty && p.isAtDelimOrEnd(good, bad) {
		return nil, nil
	}
	if p.atEOF() || p.peek() == '\n' {
		return nil, newError(KindMalformatted, p.here(), "expected a value")
	}

	var val Value
	var err *Error
	switch {
	case p.peek() == '[':
		val, err = p.parseInlineArray()
	case p.peek() == '"' || p.peek() == '\'':
		val, err = p.parseQuotedString()
	case isIdentStart(p.peek()) && reInvocationStart.MatchString(p.src[p.pos:]):
		val, err = p.parseInvocation()
	default:
		val, err = p.parseRawToken(good, bad)
	}
	if err != nil {
		return nil, err
	}
	if attrName != "" {
		val.Meta().attrName = attrName
	}
	return val, nil
}

// arg is one parsed instance/reference argument: a value node plus whether
// it carried an explicit "name:" prefix.
// (defined in structreg.go, consumed by createInstance/buildInstance)

func (p *parser) loadTycoArg(good, bad delimSet) (arg, *Error) {
	val, err := p.loadTycoAttr(good, bad, false, true)
	if err != nil {
		return arg{}, err
	}
	return arg{value: val, named: val.Meta().attrName != ""}, nil
}

func (p *parser) isAtDelimOrEnd(good, bad delimSet) bool {
	if p.atEOF() {
		return true
	}
	c := p.peek()
	if c == '\n' || c == '#' {
		return true
	}
	return good[c] || bad[c]
}

// parseRawToken scans a run of characters up to the next delimiter,
// unquoted comment, or end of line, then trims trailing whitespace. A
// stray ':' found mid-scan (one that loadTycoAttr's named-prefix check
// already passed over) is a positional-content error.
func (p *parser) parseRawToken(good, bad delimSet) (*Primitive, *Error) {
	frag := p.here()
	start := p.pos
	for !p.atEOF() {
		c := p.peek()
		if c == '\n' || c == '#' {
			break
		}
		if c == ':' {
			return nil, newError(KindStrayColon, p.here(), "unexpected ':' in value")
		}
		if good[c] || bad[c] {
			break
		}
		p.advance(1)
	}
	raw := strings.TrimRight(p.src[start:p.pos], " \t")
	if raw == "" {
		return nil, newError(KindMalformatted, frag, "expected a value")
	}
	return &Primitive{raw: raw, meta: meta{fragment: frag}}, nil
}

// parseInlineArray reads "[...]", recursing into loadTycoAttr for each
// element with good-delims {],} and bad-delims {)}.
func (p *parser) parseInlineArray() (*Array, *Error) {
	frag := p.here()
	p.advance(1) // '['
	arr := &Array{meta: meta{fragment: frag}}
	good := newDelimSet(",]")
	bad := newDelimSet(")")
	for {
		p.skipWS(true)
		if p.peek() == ']' {
			p.advance(1)
			return arr, nil
		}
		val, err := p.loadTycoAttr(good, bad, false, true)
		if err != nil {
			return nil, err
		}
		arr.Elements = append(arr.Elements, val)
		p.skipWS(true)
		switch {
		case p.peek() == ',':
			p.advance(1)
		case p.peek() == ']':
			p.advance(1)
			return arr, nil
		case bad[p.peek()]:
			return nil, newError(KindBadDelimiter, p.here(), "unexpected delimiter %q in array", string(p.peek()))
		default:
			return nil, newError(KindUnclosedString, p.here(), "unclosed array literal")
		}
	}
}

// parseInvocation reads "ident(...)". If ident names a struct with at
// least one primary key, or no struct named ident has been declared yet,
// the result is a Reference (resolved in render_references); otherwise it
// is an inline Instance of the already-declared, key-less struct.
func (p *parser) parseInvocation() (Value, *Error) {
	frag := p.here()
	m := reInvocationStart.FindString(p.src[p.pos:])
	ident := m[:len(m)-1]
	p.advance(len(m))

	target, exists := p.ctx.Structs[ident]
	isRef := !exists || target.HasPrimaryKey()

	good := newDelimSet(",)")
	bad := newDelimSet("]")
	var args []arg
loop:
	for {
		p.skipWS(true)
		if p.peek() == ')' {
			p.advance(1)
			break
		}
		a, err := p.loadTycoArg(good, bad)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		p.skipWS(true)
		switch {
		case p.peek() == ',':
			p.advance(1)
		case p.peek() == ')':
			p.advance(1)
			break loop
		case bad[p.peek()]:
			return nil, newError(KindBadDelimiter, p.here(), "unexpected delimiter %q in %q(...)", string(p.peek()), ident)
		default:
			return nil, newError(KindUnclosedString, p.here(), "unclosed argument list for %q", ident)
		}
	}

	if isRef {
		ref := &Reference{meta: meta{fragment: frag, typeName: ident}}
		for _, a := range args {
			ref.Args = append(ref.Args, a.value)
		}
		return ref, nil
	}
	in, cerr := target.buildInstance(args, frag)
	if cerr != nil {
		return nil, cerr
	}
	return in, nil
}

// parseQuotedString reads a single- or triple-quoted string opened at the
// cursor with either ' or ", per §4.2.6.
func (p *parser) parseQuotedString() (*Primitive, *Error) {
	frag := p.here()
	q := p.peek()
	triple := strings.HasPrefix(p.src[p.pos:], strings.Repeat(string(q), 3))
	isLiteral := q == '\''
	if triple {
		p.advance(3)
		return p.parseTripleQuotedBody(q, isLiteral, frag)
	}
	p.advance(1)
	return p.parseSingleLineQuotedBody(q, isLiteral, frag)
}

func (p *parser) parseSingleLineQuotedBody(q byte, isLiteral bool, frag *Fragment) (*Primitive, *Error) {
	var b strings.Builder
	for {
		if p.atEOF() || p.peek() == '\n' {
			return nil, newError(KindUnclosedString, frag, "unclosed string literal")
		}
		c := p.peek()
		if c == q {
			p.advance(1)
			break
		}
		if c != '\t' && (c < 32 || c == 127) {
			return nil, newError(KindUnclosedString, frag, "control character in string literal")
		}
		b.WriteByte(c)
		p.advance(1)
	}
	return &Primitive{raw: b.String(), isLiteralStr: isLiteral, meta: meta{fragment: frag}}, nil
}

// parseTripleQuotedBody reads the interior of a triple-quoted string,
// trimming a single leading newline, folding up to two extra trailing
// delimiter characters into the content, and (for non-literal triple
// double-quoted strings only) joining `\<EOL>`-continued lines.
func (p *parser) parseTripleQuotedBody(q byte, isLiteral bool, frag *Fragment) (*Primitive, *Error) {
	if p.peek() == '\n' {
		p.advance(1)
	}
	closer := strings.Repeat(string(q), 3)
	var b strings.Builder
	for {
		if p.atEOF() {
			return nil, newError(KindUnclosedString, frag, "unclosed triple-quoted string")
		}
		if strings.HasPrefix(p.src[p.pos:], closer) {
			p.advance(3)
			for i := 0; i < 2 && p.peek() == q; i++ {
				b.WriteByte(q)
				p.advance(1)
			}
			break
		}
		c := p.peek()
		if !isLiteral && q == '"' && c == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n' {
			p.advance(2)
			p.skipInlineWS()
			continue
		}
		if c != '\t' && c != '\r' && c != '\n' && (c < 32 || c == 127) {
			return nil, newError(KindUnclosedString, frag, "control character in triple-quoted string")
		}
		b.WriteByte(c)
		p.advance(1)
	}
	return &Primitive{raw: b.String(), isLiteralStr: isLiteral, meta: meta{fragment: frag}}, nil
}
