// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package tyco

import "fmt"

// Kind identifies the category of a parse or render failure. The set is
// exhaustive: every failure the core can produce maps to exactly one Kind.
type Kind string

// The exhaustive set of error kinds the core can produce.
const (
	KindFileAccess                    Kind = "file_access"
	KindMalformatted                  Kind = "malformatted"
	KindInvalidComment                Kind = "invalid_comment"
	KindMissingColon                  Kind = "missing_colon"
	KindDuplicateGlobal               Kind = "duplicate_global"
	KindDuplicateAttr                 Kind = "duplicate_attr"
	KindSchemaAfterInit               Kind = "schema_after_init"
	KindPrimaryKeyOnArray             Kind = "primary_key_on_array"
	KindUnknownAttr                   Kind = "unknown_attr"
	KindUnknownReference              Kind = "unknown_reference"
	KindDuplicatePrimaryKey           Kind = "duplicate_primary_key"
	KindMissingAttr                   Kind = "missing_attr"
	KindPositionalAfterKeyword        Kind = "positional_after_keyword"
	KindExpectedArray                 Kind = "expected_array"
	KindStrayColon                    Kind = "stray_colon"
	KindBadDelimiter                  Kind = "bad_delimiter"
	KindUnclosedString                Kind = "unclosed_string"
	KindInvalidBool                   Kind = "invalid_bool"
	KindInvalidNumber                 Kind = "invalid_number"
	KindDoubleRender                  Kind = "double_render"
	KindUnresolvedReferenceInTemplate Kind = "unresolved_reference_in_template"
	KindParentOverflow                Kind = "parent_overflow"
	KindUntemplatableType             Kind = "untemplatable_type"
)

// Error is the single error type surfaced by the core. It always carries a
// Kind and, when one could be attributed, the Fragment it originated from.
type Error struct {
	Kind     Kind
	Fragment *Fragment
	Message  string
}

// Error renders "source:row:col - message\n    <line_text>" when a fragment
// is attached, or just the message otherwise.
func (e *Error) Error() string {
	if e.Fragment == nil {
		return e.Message
	}
	source := e.Fragment.Source
	if source == "" {
		source = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d - %s\n    %s", source, e.Fragment.Row, e.Fragment.Column, e.Message, e.Fragment.LineText)
}

// newError builds an *Error carrying the given Kind, fragment and formatted
// message, in the style of fmt.Errorf.
func newError(kind Kind, frag *Fragment, format string, args ...any) *Error {
	return &Error{Kind: kind, Fragment: frag, Message: fmt.Sprintf(format, args...)}
}
