// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Suite describes one named benchmark from an HCL file:
//
//	suite "reduce-sweep" {
//		unit   = "reduce"
//		warmup = 2
//		cycles = 20
//		sizes  = [64 * kib, mib]
//	}
//
// The kib and mib variables are available in expressions.
type Suite struct {
	Name   string `hcl:"name,label"`
	Unit   string `hcl:"unit"`
	Warmup int    `hcl:"warmup,optional"`
	Cycles int    `hcl:"cycles,optional"`

	// Sizes are the input element counts to sweep; empty means 65536.
	Sizes []int `hcl:"sizes,optional"`

	// Radius applies to units with a kernel radius.
	Radius int `hcl:"radius,optional"`
}

type suiteFile struct {
	Suites []*Suite `hcl:"suite,block"`
}

// LoadSuites parses the HCL suite file at path.
func LoadSuites(path string) ([]*Suite, error) {
	p := hclparse.NewParser()
	f, diags := p.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("bench: parse %s: %w", path, diags)
	}
	return decodeSuites(f)
}

// ParseSuites parses HCL suite source held in memory; filename is
// used in diagnostics only.
func ParseSuites(src []byte, filename string) ([]*Suite, error) {
	p := hclparse.NewParser()
	f, diags := p.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("bench: parse %s: %w", filename, diags)
	}
	return decodeSuites(f)
}

func decodeSuites(f *hcl.File) ([]*Suite, error) {
	var sf suiteFile
	diags := gohcl.DecodeBody(f.Body, evalContext(), &sf)
	if diags.HasErrors() {
		return nil, fmt.Errorf("bench: decode: %w", diags)
	}
	for _, su := range sf.Suites {
		if len(su.Sizes) == 0 {
			su.Sizes = []int{65536}
		}
		if su.Cycles <= 0 {
			su.Cycles = 10
		}
	}
	return sf.Suites, nil
}

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"kib": cty.NumberIntVal(1 << 10),
			"mib": cty.NumberIntVal(1 << 20),
		},
	}
}
