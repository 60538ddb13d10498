// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bench measures full submission cycles of units: encode,
// submit, wait. Suites of runs are described in HCL files.
package bench

import (
	"math"
	"time"

	"github.com/hostedgpu/shade"
)

// Options controls one benchmark run.
type Options struct {
	// Warmup is the number of untimed cycles before measurement,
	// letting lazy builds and driver warmup fall outside the timings.
	Warmup int

	// Cycles is the number of timed cycles; 0 means 10.
	Cycles int
}

func (op *Options) defaults() {
	if op.Cycles <= 0 {
		op.Cycles = 10
	}
}

// Result is the timing of one run.
type Result struct {
	Name   string        `yaml:"name"`
	Cycles int           `yaml:"cycles"`
	Total  time.Duration `yaml:"total"`
	Mean   time.Duration `yaml:"mean"`
	Min    time.Duration `yaml:"min"`
	Max    time.Duration `yaml:"max"`

	// ResourceBuilds counts builds per unit resource over the whole
	// run, keyed unit/resource. Steady state shows warmup-only counts.
	ResourceBuilds map[string]int `yaml:"resourceBuilds,omitempty"`
}

// Run submits the units together opts.Warmup times untimed, then
// opts.Cycles timed cycles, and returns the timings.
func Run(dev *shade.Device, name string, opts Options, units ...shade.Unit) (Result, error) {
	opts.defaults()
	for i := 0; i < opts.Warmup; i++ {
		if err := shade.Submit(dev, units...); err != nil {
			return Result{}, err
		}
	}
	res := Result{Name: name, Cycles: opts.Cycles, Min: math.MaxInt64}
	for i := 0; i < opts.Cycles; i++ {
		start := time.Now()
		if err := shade.Submit(dev, units...); err != nil {
			return Result{}, err
		}
		dt := time.Since(start)
		res.Total += dt
		res.Min = min(res.Min, dt)
		res.Max = max(res.Max, dt)
	}
	res.Mean = res.Total / time.Duration(opts.Cycles)
	res.ResourceBuilds = map[string]int{}
	for _, un := range units {
		rb, ok := un.(interface{ ResourceBuilds() map[string]int })
		if !ok {
			continue
		}
		for nm, n := range rb.ResourceBuilds() {
			res.ResourceBuilds[un.Label()+"/"+nm] = n
		}
	}
	return res, nil
}
