// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package tyco implements the core of the Tyco configuration language: a
// pipeline that ingests source text and produces a rendered,
// reference-resolved, template-expanded configuration tree.
//
// The pipeline has four tightly coupled pieces: a line-oriented lexer
// (lexer.go, lexvalue.go), a deferred-evaluation value graph rendered in
// fixed phases (value.go, context.go), a primary-key index that resolves
// typed references (structreg.go), and a template expander that walks a
// value's containment chain (template.go). Command-line entry points,
// filesystem utilities beyond "read a file and #include other files",
// and output formatting are left to callers.
package tyco

import (
	"fmt"
	"os"
	"path/filepath"
)

// SourceReader abstracts reading a Tyco source file, so #include and
// ParseFile can be exercised against something other than the real
// filesystem (see tyco_test.go's fakeIncludeReader).
type SourceReader interface {
	ReadSource(path string) (string, error)
}

// osSourceReader is the default SourceReader, reading files from disk.
type osSourceReader struct{}

func (osSourceReader) ReadSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Option configures a Parse or ParseFile call.
type Option func(*parseConfig)

type parseConfig struct {
	reader     SourceReader
	trace      func(phase, msg string)
	sourceName string
}

// WithSourceReader overrides how #include paths (and ParseFile's own
// argument) are read. The default reads from the local filesystem.
func WithSourceReader(r SourceReader) Option {
	return func(c *parseConfig) { c.reader = r }
}

// WithTrace installs a hook invoked at the start of each render phase, with
// a short phase name and message. Lexing does not call it. The default is a
// no-op.
func WithTrace(fn func(phase, msg string)) Option {
	return func(c *parseConfig) { c.trace = fn }
}

// WithSourceName sets the file name reported in diagnostics for a Parse
// call (ParseFile uses the given path automatically).
func WithSourceName(name string) Option {
	return func(c *parseConfig) { c.sourceName = name }
}

func resolveConfig(opts []Option) *parseConfig {
	c := &parseConfig{reader: osSourceReader{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Parse parses Tyco source text and returns the rendered configuration as
// a plain tree of string, int64, float64, bool, nil, []any and
// map[string]any values.
func Parse(text string, opts ...Option) (any, error) {
	cfg := resolveConfig(opts)
	ctx := newContext(cfg.reader, cfg.trace)
	p := newParser(ctx, text, cfg.sourceName, "")
	if err := p.run(); err != nil {
		return nil, err
	}
	if err := ctx.run(); err != nil {
		return nil, err
	}
	obj, err := ctx.ToObject()
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// ParseFile reads path with the configured SourceReader (the OS
// filesystem by default) and parses it, resolving any #include
// directives relative to path's directory.
func ParseFile(path string, opts ...Option) (any, error) {
	cfg := resolveConfig(opts)
	text, err := cfg.reader.ReadSource(path)
	if err != nil {
		return nil, &Error{Kind: KindFileAccess, Message: fmt.Sprintf("reading %q: %s", path, err)}
	}
	ctx := newContext(cfg.reader, cfg.trace)
	if abs, absErr := filepath.Abs(path); absErr == nil {
		ctx.markIncluded(abs)
	}
	p := newParser(ctx, text, path, filepath.Dir(path))
	if err := p.run(); err != nil {
		return nil, err
	}
	if err := ctx.run(); err != nil {
		return nil, err
	}
	obj, err := ctx.ToObject()
	if err != nil {
		return nil, err
	}
	return obj, nil
}
