// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// renderBasePrimitive converts a Primitive's raw textual content into its
// typed cty.Value, per §4.4's per-type rules. Array and Instance nodes
// recurse through renderBase in context.go; References are a no-op here.
func renderBasePrimitive(p *Primitive) *Error {
	if p.isNullable && p.raw == "null" {
		p.rendered = cty.NullVal(ctyTypeFor(p.typeName))
		p.wasRendered = true
		return nil
	}
	var v cty.Value
	switch p.typeName {
	case "str":
		// Quote stripping and triple-string normalization already happened
		// during lexing (loadTycoAttr); escape application and template
		// substitution happen later, once, in render_templates.
		v = cty.StringVal(p.raw)
	case "int":
		n, err := parseTycoInt(p.raw)
		if err != nil {
			return newError(KindInvalidNumber, p.fragment, "invalid int %q: %s", p.raw, err)
		}
		v = cty.NumberIntVal(n)
	case "float", "decimal":
		f, err := strconv.ParseFloat(p.raw, 64)
		if err != nil {
			return newError(KindInvalidNumber, p.fragment, "invalid %s %q", p.typeName, p.raw)
		}
		v = cty.NumberFloatVal(f)
	case "bool":
		switch p.raw {
		case "true":
			v = cty.True
		case "false":
			v = cty.False
		default:
			return newError(KindInvalidBool, p.fragment, "invalid bool %q", p.raw)
		}
	case "date":
		v = cty.StringVal(p.raw)
	case "time":
		v = cty.StringVal(normalizeTycoTime(p.raw))
	case "datetime":
		v = cty.StringVal(normalizeTycoDatetime(p.raw))
	default:
		// User struct type name reaching here means a Primitive was
		// misclassified; the lexer only ever assigns base types here.
		return newError(KindInvalidNumber, p.fragment, "unrenderable primitive type %q", p.typeName)
	}
	p.rendered = v
	p.wasRendered = true
	return nil
}

func ctyTypeFor(typeName string) cty.Type {
	switch typeName {
	case "int":
		return cty.Number
	case "float", "decimal":
		return cty.Number
	case "bool":
		return cty.Bool
	default:
		return cty.String
	}
}

// parseTycoInt parses an optionally-signed integer, recognizing the
// 0x/0X (base 16), 0o/0O (base 8) and 0b/0B (base 2) prefixes; anything
// else is base 10.
func parseTycoInt(raw string) (int64, error) {
	s := raw
	neg := false
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	} else if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	base := 10
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		base = 16
		s = s[2:]
	case strings.HasPrefix(s, "0o"), strings.HasPrefix(s, "0O"):
		base = 8
		s = s[2:]
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		base = 2
		s = s[2:]
	}
	n, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		n = -n
	}
	return n, nil
}

// normalizeTycoTime normalizes a time literal to HH:MM:SS[.ffffff], right
// padding and truncating fractional seconds to exactly 6 digits.
func normalizeTycoTime(raw string) string {
	whole, frac, hasFrac := strings.Cut(raw, ".")
	if !hasFrac {
		return whole
	}
	return whole + "." + padTruncFrac(frac)
}

// normalizeTycoDatetime normalizes a datetime literal: a space separator
// between date and time becomes 'T', a trailing 'Z' becomes '+00:00',
// fractional seconds are normalized to 6 digits, and any explicit timezone
// offset is preserved verbatim.
func normalizeTycoDatetime(raw string) string {
	s := raw
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		s = s[:idx] + "T" + s[idx+1:]
	}
	tz := ""
	body := s
	if strings.HasSuffix(body, "Z") {
		body = body[:len(body)-1]
		tz = "+00:00"
	} else if idx := lastTZOffset(body); idx >= 0 {
		tz = body[idx:]
		body = body[:idx]
	}
	whole, frac, hasFrac := strings.Cut(body, ".")
	if hasFrac {
		body = whole + "." + padTruncFrac(frac)
	}
	return body + tz
}

// lastTZOffset finds a trailing "+HH:MM" or "-HH:MM" offset in a datetime
// body, searching after the 'T' separator so a leading date sign is never
// mistaken for a timezone.
func lastTZOffset(s string) int {
	tIdx := strings.IndexByte(s, 'T')
	if tIdx < 0 {
		tIdx = 0
	}
	for i := len(s) - 1; i > tIdx; i-- {
		if s[i] == '+' || s[i] == '-' {
			return i
		}
	}
	return -1
}

func padTruncFrac(frac string) string {
	if len(frac) >= 6 {
		return frac[:6]
	}
	return frac + strings.Repeat("0", 6-len(frac))
}

// ctyToAny converts a rendered cty.Value leaf into a plain Go value for
// serialization, using gocty where the target shape is unambiguous.
func ctyToAny(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	switch v.Type() {
	case cty.String:
		var s string
		if err := gocty.FromCtyValue(v, &s); err != nil {
			return nil, fmt.Errorf("tyco: converting string value: %w", err)
		}
		return s, nil
	case cty.Bool:
		var b bool
		if err := gocty.FromCtyValue(v, &b); err != nil {
			return nil, fmt.Errorf("tyco: converting bool value: %w", err)
		}
		return b, nil
	case cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int64()
			return i, nil
		}
		f, _ := bf.Float64()
		return f, nil
	default:
		return nil, fmt.Errorf("tyco: unsupported cty type %s", v.Type().FriendlyName())
	}
}
