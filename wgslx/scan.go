// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wgslx

import (
	"fmt"
	"strings"
)

// Validate performs a light structural scan of WGSL source:
// block comments and bracketing delimiters must balance.
// It is a cheap host-side check that catches truncated or
// mispasted snippets before they reach the shader compiler.
func Validate(source string) error {
	src := stripComments(source)
	if strings.Contains(src, "\x00") {
		return fmt.Errorf("wgslx: unterminated block comment")
	}
	var stack []byte
	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case '(', '{', '[':
			stack = append(stack, c)
		case ')', '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != opener(c) {
				return fmt.Errorf("wgslx: unbalanced %q at offset %d", c, i)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("wgslx: unclosed %q", stack[len(stack)-1])
	}
	return nil
}

func opener(c byte) byte {
	switch c {
	case ')':
		return '('
	case '}':
		return '{'
	case ']':
		return '['
	}
	return 0
}

// stripComments replaces // line comments and nested /* */ block
// comments with spaces, preserving offsets and line structure.
// An unterminated block comment leaves a NUL marker for Validate.
func stripComments(src string) string {
	b := []byte(src)
	for i := 0; i < len(b); i++ {
		if b[i] != '/' || i+1 >= len(b) {
			continue
		}
		switch b[i+1] {
		case '/':
			for ; i < len(b) && b[i] != '\n'; i++ {
				b[i] = ' '
			}
		case '*':
			depth := 0
			j := i
			for j < len(b) {
				if j+1 < len(b) && b[j] == '/' && b[j+1] == '*' {
					depth++
					j += 2
				} else if j+1 < len(b) && b[j] == '*' && b[j+1] == '/' {
					depth--
					j += 2
					if depth == 0 {
						break
					}
				} else {
					j++
				}
			}
			if depth != 0 {
				b[i] = '\x00'
				i = len(b)
				break
			}
			for k := i; k < j; k++ {
				if b[k] != '\n' {
					b[k] = ' '
				}
			}
			i = j - 1
		}
	}
	return string(b)
}

// TopFuncs returns the names of top-level fn declarations in source,
// in order of appearance.
func TopFuncs(source string) []string {
	src := stripComments(source)
	var names []string
	depth := 0
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
			continue
		case '}':
			depth--
			continue
		}
		if depth != 0 || !isIdentStart(src[i]) {
			continue
		}
		j := i
		for j < len(src) && isIdentByte(src[j]) {
			j++
		}
		if src[i:j] == "fn" {
			k := j
			for k < len(src) && isSpace(src[k]) {
				k++
			}
			s := k
			for k < len(src) && isIdentByte(src[k]) {
				k++
			}
			if k > s {
				names = append(names, src[s:k])
			}
			j = k
		}
		i = j - 1
	}
	return names
}

// extractFunc returns the text of the named top-level function,
// from its fn keyword through the matching closing brace.
func extractFunc(source, fn string) (string, error) {
	src := stripComments(source)
	depth := 0
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
			continue
		case '}':
			depth--
			continue
		}
		if depth != 0 || !isIdentStart(src[i]) {
			continue
		}
		j := i
		for j < len(src) && isIdentByte(src[j]) {
			j++
		}
		if src[i:j] != "fn" {
			i = j - 1
			continue
		}
		k := j
		for k < len(src) && isSpace(src[k]) {
			k++
		}
		s := k
		for k < len(src) && isIdentByte(src[k]) {
			k++
		}
		if src[s:k] != fn {
			i = k - 1
			continue
		}
		d := 0
		for ; k < len(src); k++ {
			if src[k] == '{' {
				d++
			} else if src[k] == '}' {
				d--
				if d == 0 {
					return source[i : k+1], nil
				}
			}
		}
		return "", fmt.Errorf("wgslx: fn %q has no closing brace", fn)
	}
	return "", fmt.Errorf("wgslx: fn %q not found", fn)
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n'
}
