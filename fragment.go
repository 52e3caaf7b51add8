// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

import "strings"

// Fragment is a view onto one logical line of source text, carrying enough
// location information to render a diagnostic.
type Fragment struct {
	Text     string
	Row      int
	Column   int
	Source   string
	LineText string
}

// slice returns the fragment obtained by dropping the first n bytes of
// Text, re-deriving Row/Column so newlines bump the row and reset the
// column. LineText and Source are carried over unchanged.
func (f *Fragment) slice(n int) *Fragment {
	row, col := f.Row, f.Column
	for i := 0; i < n && i < len(f.Text); i++ {
		if f.Text[i] == '\n' {
			row++
			col = 1
		} else {
			col++
		}
	}
	return &Fragment{
		Text:     f.Text[min(n, len(f.Text)):],
		Row:      row,
		Column:   col,
		Source:   f.Source,
		LineText: f.LineText,
	}
}

// trimLeadingWS returns a fragment with leading spaces and tabs removed.
func (f *Fragment) trimLeadingWS() *Fragment {
	i := 0
	for i < len(f.Text) && (f.Text[i] == ' ' || f.Text[i] == '\t') {
		i++
	}
	return f.slice(i)
}

// coerceContentToFragments normalizes CRLF to LF and splits text into one
// Fragment per line, keeping the trailing newline attached to Text while
// LineText holds the line with the newline stripped. Empty input yields no
// fragments.
func coerceContentToFragments(text, source string) []*Fragment {
	if text == "" {
		return nil
	}
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var fragments []*Fragment
	row := 1
	start := 0
	for i := 0; i < len(normalized); i++ {
		if normalized[i] == '\n' {
			line := normalized[start : i+1]
			fragments = append(fragments, &Fragment{
				Text:     line,
				Row:      row,
				Column:   1,
				Source:   source,
				LineText: strings.TrimSuffix(line, "\n"),
			})
			row++
			start = i + 1
		}
	}
	if start < len(normalized) {
		line := normalized[start:]
		fragments = append(fragments, &Fragment{
			Text:     line,
			Row:      row,
			Column:   1,
			Source:   source,
			LineText: line,
		})
	}
	return fragments
}

// stripComment returns the content of a line up to the first unquoted '#',
// honoring single- and triple-quote spans so a '#' inside a string literal
// is not mistaken for a comment. It also validates that the comment tail
// (if any) contains no control characters other than TAB.
func stripComment(line string) (content string, err *Error) {
	inSingle, inDouble := false, false
	tripleSingle, tripleDouble := false, false
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case tripleSingle:
			if strings.HasPrefix(line[i:], "'''") {
				tripleSingle = false
				i += 3
				continue
			}
		case tripleDouble:
			if strings.HasPrefix(line[i:], `"""`) {
				tripleDouble = false
				i += 3
				continue
			}
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			if strings.HasPrefix(line[i:], "'''") {
				tripleSingle = true
				i += 3
				continue
			}
			inSingle = true
		case c == '"':
			if strings.HasPrefix(line[i:], `"""`) {
				tripleDouble = true
				i += 3
				continue
			}
			inDouble = true
		case c == '#':
			return validateCommentTail(line[:i], line[i:])
		}
		i++
	}
	return line, nil
}

func validateCommentTail(content, tail string) (string, *Error) {
	for _, r := range tail {
		if r != '\t' && (r < 32 || r == 127) {
			return "", newError(KindInvalidComment, nil, "control character in comment")
		}
	}
	return content, nil
}
