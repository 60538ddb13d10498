// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wgslx

import (
	"fmt"
	"strings"

	"github.com/hostedgpu/shade/base/stringsx"
)

// Hook markers delimit a replaceable region in a shader template:
//
//	//wgsl:hook combine
//	fn combine(a: f32, b: f32) -> f32 { return a + b; }
//	//wgsl:endhook
//
// The region holds the template's default definition; [Splice]
// swaps it for a caller fragment. Markers are ordinary comments,
// so an unspliced template compiles as-is.
const (
	hookPrefix = "//wgsl:hook "
	hookEnd    = "//wgsl:endhook"
)

// Hooks returns the hook names declared in template, in order.
func Hooks(template string) []string {
	var names []string
	for _, ln := range stringsx.SplitLines(template) {
		if nm, ok := hookName(ln); ok {
			names = append(names, nm)
		}
	}
	return names
}

// Splice replaces the named hook region in template with the
// fragment's source. The fragment must define a function named
// after the hook, and any further function it defines must not
// collide with one already in the template.
func Splice(template, hook string, fr Fragment) (string, error) {
	if fr.IsZero() {
		return "", fmt.Errorf("wgslx: hook %q: empty fragment", hook)
	}
	if fr.Fn != hook {
		return "", fmt.Errorf("wgslx: hook %q: fragment defines fn %q", hook, fr.Fn)
	}
	lines := stringsx.SplitLines(template)
	start, end := -1, -1
	for li, ln := range lines {
		if nm, ok := hookName(ln); ok && nm == hook {
			start = li
			continue
		}
		if start >= 0 && strings.TrimSpace(ln) == hookEnd {
			end = li
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("wgslx: hook %q not found in template", hook)
	}
	if end < 0 {
		return "", fmt.Errorf("wgslx: hook %q has no %s marker", hook, hookEnd)
	}
	var sb strings.Builder
	for _, ln := range lines[:start] {
		sb.WriteString(ln)
		sb.WriteString("\n")
	}
	sb.WriteString(fr.Source)
	sb.WriteString("\n")
	for li, ln := range lines[end+1:] {
		sb.WriteString(ln)
		if li < len(lines)-end-2 {
			sb.WriteString("\n")
		}
	}
	out := sb.String()
	if err := noDuplicateFuncs(out); err != nil {
		return "", fmt.Errorf("wgslx: hook %q: %w", hook, err)
	}
	return out, nil
}

func hookName(ln string) (string, bool) {
	t := strings.TrimSpace(ln)
	if !strings.HasPrefix(t, hookPrefix) {
		return "", false
	}
	return strings.TrimSpace(t[len(hookPrefix):]), true
}

func noDuplicateFuncs(src string) error {
	seen := map[string]bool{}
	for _, nm := range TopFuncs(src) {
		if seen[nm] {
			return fmt.Errorf("fn %q defined more than once", nm)
		}
		seen[nm] = true
	}
	return nil
}
