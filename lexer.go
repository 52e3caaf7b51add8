// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	reGlobal       = regexp.MustCompile(`^(\??)([A-Za-z_][A-Za-z0-9_]*)(\[\])?[ \t]+([A-Za-z_][A-Za-z0-9_.]*)[ \t]*:(.*)$`)
	reStructHeader = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)[ \t]*:[ \t]*$`)
	reSchemaRow    = regexp.MustCompile(`^([*?])?([A-Za-z_][A-Za-z0-9_]*)(\[\])?[ \t]+([A-Za-z_][A-Za-z0-9_.]*)[ \t]*:(.*)$`)
	reDefaultRow   = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)[ \t]*:(.*)$`)
	reAttrNoColon  = regexp.MustCompile(`^([*?])?[A-Za-z_][A-Za-z0-9_]*(\[\])?[ \t]+[A-Za-z_][A-Za-z0-9_.]*[ \t]*$`)
)

// parser consumes normalized Tyco source through a single forward-moving
// byte cursor, dispatching lines to global, struct-block, schema-row,
// default-row and instance-row handlers, and delegating value parsing
// (§4.2.5-4.2.6) to loadTycoAttr. It is the lexer: it consumes the source
// one logical construct at a time, taking Fragment snapshots (here) only
// to attach locations to values and errors.
type parser struct {
	ctx     *Context
	src     string
	pos     int
	row     int
	col     int
	source  string
	baseDir string
}

func newParser(ctx *Context, text, source, baseDir string) *parser {
	return &parser{
		ctx:     ctx,
		src:     strings.ReplaceAll(text, "\r\n", "\n"),
		pos:     0,
		row:     1,
		col:     1,
		source:  source,
		baseDir: baseDir,
	}
}

// here returns a Fragment snapshot of the current cursor position, used to
// attach a location to whatever value node or error is produced next.
func (p *parser) here() *Fragment {
	lineStart := strings.LastIndexByte(p.src[:p.pos], '\n') + 1
	lineEnd := strings.IndexByte(p.src[p.pos:], '\n')
	if lineEnd < 0 {
		lineEnd = len(p.src)
	} else {
		lineEnd += p.pos
	}
	return &Fragment{Text: p.src[p.pos:], Row: p.row, Column: p.col, Source: p.source, LineText: p.src[lineStart:lineEnd]}
}

func (p *parser) atEOF() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.atEOF() {
		return 0
	}
	return p.src[p.pos]
}

// advance consumes n bytes from the cursor, bumping row/col as newlines
// are crossed.
func (p *parser) advance(n int) {
	end := p.pos + n
	if end > len(p.src) {
		end = len(p.src)
	}
	for i := p.pos; i < end; i++ {
		if p.src[i] == '\n' {
			p.row++
			p.col = 1
		} else {
			p.col++
		}
	}
	p.pos = end
}

// restOfLine returns the remaining text of the current physical line,
// excluding the newline itself.
func (p *parser) restOfLine() string {
	idx := strings.IndexByte(p.src[p.pos:], '\n')
	if idx < 0 {
		return p.src[p.pos:]
	}
	return p.src[p.pos : p.pos+idx]
}

func (p *parser) skipToNextLine() {
	idx := strings.IndexByte(p.src[p.pos:], '\n')
	if idx < 0 {
		p.advance(len(p.src) - p.pos)
		return
	}
	p.advance(idx + 1)
}

func (p *parser) skipInlineWS() {
	for !p.atEOF() && (p.peek() == ' ' || p.peek() == '\t') {
		p.advance(1)
	}
}

// skipWS skips spaces, tabs, and (when allowNewline) newlines; used inside
// bracketed constructs where values may be formatted across lines.
func (p *parser) skipWS(allowNewline bool) {
	for !p.atEOF() {
		c := p.peek()
		if c == ' ' || c == '\t' || (allowNewline && c == '\n') {
			p.advance(1)
			continue
		}
		break
	}
}

// run drives the top-level dispatch loop (§4.2.2) until the whole source
// has been consumed.
func (p *parser) run() *Error {
	for !p.atEOF() {
		if err := p.topLevelLine(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) topLevelLine() *Error {
	lineRaw := p.restOfLine()
	trimmed := strings.TrimLeft(lineRaw, " \t")
	if rest, ok := cutDirective(trimmed, "#include"); ok {
		return p.handleInclude(rest)
	}

	stripped, cerr := stripComment(lineRaw)
	if cerr != nil {
		cerr.Fragment = p.here()
		return cerr
	}
	if strings.TrimSpace(stripped) == "" {
		p.skipToNextLine()
		return nil
	}

	if m := reGlobal.FindStringSubmatch(stripped); m != nil {
		return p.handleGlobal(m)
	}
	if m := reStructHeader.FindStringSubmatch(stripped); m != nil {
		return p.handleStructHeader(m[1])
	}
	return newError(KindMalformatted, p.here(), "malformed top-level line: %q", strings.TrimRight(lineRaw, " \t"))
}

// cutDirective reports whether trimmed begins with the named directive
// followed by whitespace (or end of line), returning the remainder.
func cutDirective(trimmed, name string) (string, bool) {
	if !strings.HasPrefix(trimmed, name) {
		return "", false
	}
	rest := trimmed[len(name):]
	if rest == "" {
		return "", true
	}
	if rest[0] == ' ' || rest[0] == '\t' {
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// handleInclude resolves path relative to the including file's directory
// (if not absolute), then parses it into the same Context, guarded by the
// path cache (§5's cycle-safety contract).
func (p *parser) handleInclude(path string) *Error {
	frag := p.here()
	p.skipToNextLine()

	resolved := path
	if !filepath.IsAbs(resolved) && p.baseDir != "" {
		resolved = filepath.Join(p.baseDir, resolved)
	}
	canon := resolved
	if abs, err := filepath.Abs(resolved); err == nil {
		canon = abs
	}
	if !p.ctx.markIncluded(canon) {
		return nil
	}

	text, err := p.ctx.reader.ReadSource(resolved)
	if err != nil {
		return newError(KindFileAccess, frag, "reading included file %q: %s", path, err)
	}
	sub := newParser(p.ctx, text, resolved, filepath.Dir(resolved))
	return sub.run()
}

func (p *parser) handleGlobal(m []string) *Error {
	idx := reGlobal.FindStringSubmatchIndex(p.restOfLine())
	frag := p.here()
	nullable := m[1] == "?"
	typeName := m[2]
	isArray := m[3] == "[]"
	ident := m[4]

	p.advance(idx[10]) // past the colon, to the start of the value text
	p.skipInlineWS()

	val, err := p.loadTycoAttr(newDelimSet(""), defaultBadDelims(newDelimSet("")), false, false)
	if err != nil {
		return err
	}
	applySchema(val, typeName, ident, nullable, isArray)
	val.Meta().fragment = frag

	if err := p.expectLineEnd(); err != nil {
		return err
	}
	return p.ctx.addGlobal(ident, val, frag)
}

// expectLineEnd requires the remainder of the current line (after a
// parsed value) to be blank or a comment.
func (p *parser) expectLineEnd() *Error {
	p.skipInlineWS()
	rest := p.restOfLine()
	stripped, cerr := stripComment(rest)
	if cerr != nil {
		cerr.Fragment = p.here()
		return cerr
	}
	if strings.TrimSpace(stripped) != "" {
		return newError(KindBadDelimiter, p.here(), "unexpected trailing content %q", strings.TrimSpace(stripped))
	}
	p.skipToNextLine()
	return nil
}

func (p *parser) handleStructHeader(name string) *Error {
	p.skipToNextLine()
	s, _ := p.ctx.structFor(name)
	return p.readStructBlock(s)
}

// readStructBlock reads a struct block's schema rows, local defaults and
// instance rows (§4.2.3-4.2.4), stopping at the first non-indented line.
func (p *parser) readStructBlock(s *StructSchema) *Error {
	schemaPhase := true
	for !p.atEOF() {
		lineRaw := p.restOfLine()
		stripped, cerr := stripComment(lineRaw)
		if cerr != nil {
			cerr.Fragment = p.here()
			return cerr
		}
		if strings.TrimSpace(stripped) == "" {
			// A blank or comment-only line never ends a block (§4.2.4 ends
			// it only on a non-indented line with real content), regardless
			// of whether it happens to carry leading whitespace.
			p.skipToNextLine()
			continue
		}
		if !strings.HasPrefix(lineRaw, " ") && !strings.HasPrefix(lineRaw, "\t") {
			return nil
		}
		content := strings.TrimLeft(stripped, " \t")
		indent := len(lineRaw) - len(strings.TrimLeft(lineRaw, " \t"))

		switch {
		case schemaPhase && reSchemaRow.MatchString(content):
			if err := p.handleSchemaRow(s, content, indent); err != nil {
				return err
			}
		case strings.HasPrefix(content, "-"):
			schemaPhase = false
			if err := p.handleInstanceRow(s, indent); err != nil {
				return err
			}
		case reDefaultRow.MatchString(content):
			schemaPhase = false
			if err := p.handleDefaultRow(s, content, indent); err != nil {
				return err
			}
		case reSchemaRow.MatchString(content):
			// schema phase already over: a schema-shaped row here means an
			// attribute declared after the first instance or default row.
			return newError(KindSchemaAfterInit, p.here(), "attribute declared after instance rows began in %q", s.Name)
		case reAttrNoColon.MatchString(content):
			return newError(KindMissingColon, p.here(), "attribute %q is missing a trailing colon", strings.TrimSpace(content))
		default:
			return newError(KindMalformatted, p.here(), "malformed line in struct %q: %q", s.Name, strings.TrimSpace(content))
		}
	}
	return nil
}

func (p *parser) handleSchemaRow(s *StructSchema, content string, indent int) *Error {
	idx := reSchemaRow.FindStringSubmatchIndex(content)
	m := reSchemaRow.FindStringSubmatch(content)
	frag := p.here()

	primaryKey := m[1] == "*"
	nullable := m[1] == "?"
	typeName := m[2]
	isArray := m[3] == "[]"
	ident := m[4]

	p.advance(indent + idx[10]) // past leading indent and the colon
	p.skipInlineWS()

	if err := s.addAttr(ident, typeName, primaryKey, nullable, isArray, frag); err != nil {
		return err
	}

	if p.atLineEndOrComment() {
		return p.expectLineEnd()
	}
	val, err := p.loadTycoAttr(newDelimSet(""), defaultBadDelims(newDelimSet("")), true, false)
	if err != nil {
		return err
	}
	if val != nil {
		applySchema(val, typeName, ident, nullable, isArray)
		val.Meta().fragment = frag
		s.Defaults[ident] = val
	}
	return p.expectLineEnd()
}

func (p *parser) handleDefaultRow(s *StructSchema, content string, indent int) *Error {
	idx := reDefaultRow.FindStringSubmatchIndex(content)
	m := reDefaultRow.FindStringSubmatch(content)
	frag := p.here()
	ident := m[1]

	p.advance(indent + idx[4])
	p.skipInlineWS()

	if p.atLineEndOrComment() {
		if err := s.setDefault(ident, nil, frag); err != nil {
			return err
		}
		return p.expectLineEnd()
	}
	typeName, nullable, isArray := s.AttrTypes[ident], s.Nullable[ident], s.IsArray[ident]
	val, err := p.loadTycoAttr(newDelimSet(""), defaultBadDelims(newDelimSet("")), false, false)
	if err != nil {
		return err
	}
	applySchema(val, typeName, ident, nullable, isArray)
	val.Meta().fragment = frag
	if err := s.setDefault(ident, val, frag); err != nil {
		return err
	}
	return p.expectLineEnd()
}

// handleInstanceRow reads one "- arg, arg, ..." row, joining any
// backslash-continued lines (§4.2.4's last paragraph) before parsing the
// comma-separated argument list.
func (p *parser) handleInstanceRow(s *StructSchema, indent int) *Error {
	frag := p.here()
	p.advance(indent + 1) // past the leading '-'
	p.skipInlineWS()

	var args []arg
	for {
		a, err := p.loadTycoArg(newDelimSet(","), defaultBadDelims(newDelimSet(",")))
		if err != nil {
			return err
		}
		args = append(args, a)
		p.skipInlineWS()
		if p.peek() == ',' {
			p.advance(1)
			p.skipWS(false)
			if p.consumeContinuation() {
				continue
			}
			if p.atLineEndOrComment() {
				return newError(KindMalformatted, p.here(), "trailing comma with nothing following in %q", s.Name)
			}
			continue
		}
		break
	}
	if err := p.expectLineEnd(); err != nil {
		return err
	}

	_, cerr := s.createInstance(args, frag)
	return cerr
}

// consumeContinuation absorbs a line whose sole non-comment content is
// '\', joining the instance row onto the next line. Returns false if the
// current line does not end in such a continuation.
func (p *parser) consumeContinuation() bool {
	rest := p.restOfLine()
	stripped, cerr := stripComment(rest)
	if cerr != nil {
		return false
	}
	if strings.TrimSpace(stripped) != "\\" {
		return false
	}
	p.skipToNextLine()
	p.skipWS(false)
	return true
}

func (p *parser) atLineEndOrComment() bool {
	rest := p.restOfLine()
	stripped, cerr := stripComment(rest)
	if cerr != nil {
		return false
	}
	return strings.TrimSpace(stripped) == ""
}

func defaultBadDelims(good delimSet) delimSet {
	base := newDelimSet("()[],")
	bad := delimSet{}
	for c := range base {
		if !good[c] {
			bad[c] = true
		}
	}
	return bad
}
