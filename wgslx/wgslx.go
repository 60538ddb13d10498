// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wgslx provides host-side helpers for WGSL shader source:
// hook splicing for fusing caller logic into a unit's shader template,
// fragment identity, and a light structural scan. It is not a WGSL
// parser; real validation happens when the shader module is created
// on the device.
package wgslx

import (
	"fmt"
	"hash/fnv"
	"io"
	"io/fs"
	"slices"
	"strings"
)

// Fragment is a WGSL snippet defining one function, used to fuse
// caller logic into a unit's shader template. Fragments are plain
// comparable values, so they work directly as unit parameters:
// equal source means an equal fragment, and change detection falls
// out of the parameter store's generation counters.
type Fragment struct {
	// Fn is the name of the function the fragment defines.
	Fn string

	// Source is the normalized WGSL text of the definition.
	Source string
}

// NewFragment validates source and returns a fragment defining the
// named function. The source must define fn at the top level and have
// balanced delimiters, and it must not declare resource bindings:
// those belong to the hosting template.
func NewFragment(fn, source string) (Fragment, error) {
	src := normalize(source)
	if err := Validate(src); err != nil {
		return Fragment{}, err
	}
	if strings.Contains(stripComments(src), "@group") {
		return Fragment{}, fmt.Errorf("wgslx: fragment %q declares @group bindings", fn)
	}
	if !slices.Contains(TopFuncs(src), fn) {
		return Fragment{}, fmt.Errorf("wgslx: fragment does not define fn %q", fn)
	}
	return Fragment{Fn: fn, Source: src}, nil
}

// MustFragment is [NewFragment] that panics on error,
// for fragments constant at compile time.
func MustFragment(fn, source string) Fragment {
	fr, err := NewFragment(fn, source)
	if err != nil {
		panic(err)
	}
	return fr
}

// IsZero reports whether the fragment is unset.
func (fr Fragment) IsZero() bool {
	return fr.Fn == "" && fr.Source == ""
}

// ID returns a stable FNV-1a hash of the fragment,
// usable as a cache or shader module key.
func (fr Fragment) ID() uint64 {
	h := fnv.New64a()
	io.WriteString(h, fr.Fn)
	io.WriteString(h, "\x00")
	io.WriteString(h, fr.Source)
	return h.Sum64()
}

// FromSource extracts the named top-level function from source
// and returns it as a fragment, so one shader file can feed its
// definitions to another unit's hooks.
func FromSource(source, fn string) (Fragment, error) {
	def, err := extractFunc(normalize(source), fn)
	if err != nil {
		return Fragment{}, err
	}
	return NewFragment(fn, def)
}

// FromFS reads the given file from fsys and extracts the named
// top-level function as a fragment.
func FromFS(fsys fs.FS, file, fn string) (Fragment, error) {
	b, err := fs.ReadFile(fsys, file)
	if err != nil {
		return Fragment{}, err
	}
	return FromSource(string(b), fn)
}

// normalize strips carriage returns and outer blank space so that
// fragments with equivalent text compare equal.
func normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}
