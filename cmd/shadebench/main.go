// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command shadebench runs benchmark suites over the built-in units,
// described in an HCL file:
//
//	suite "fold-sweep" {
//		unit   = "reduce"
//		warmup = 2
//		cycles = 20
//		sizes  = [64 * kib, mib]
//	}
//
// Results print as a table; -o writes them to a YAML file as well.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"math/rand"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade"
	"github.com/hostedgpu/shade/bench"
	"github.com/hostedgpu/shade/bitonic"
	"github.com/hostedgpu/shade/blur"
	"github.com/hostedgpu/shade/gradient"
	"github.com/hostedgpu/shade/logx"
	"github.com/hostedgpu/shade/reduce"
	"github.com/hostedgpu/shade/scan"
	"gopkg.in/yaml.v3"
)

var (
	headStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB"))

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

func main() {
	var (
		suiteFile = flag.String("suites", "suites.hcl", "HCL suite file to run")
		outFile   = flag.String("o", "", "Write results to this YAML file")
		debug     = flag.Bool("debug", false, "Debug logging")
	)
	flag.Parse()

	if *debug {
		logx.UserLevel = slog.LevelDebug
	}
	if err := run(*suiteFile, *outFile); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func run(suiteFile, outFile string) error {
	suites, err := bench.LoadSuites(suiteFile)
	if err != nil {
		return err
	}
	gp, dev, err := shade.NoDisplayGPU()
	if err != nil {
		return err
	}
	defer gp.Release()
	defer dev.Release()

	var results []bench.Result
	for _, su := range suites {
		for _, size := range su.Sizes {
			logx.PrintfDebug("running %s unit=%s size=%d\n", su.Name, su.Unit, size)
			res, err := runOne(dev, su, size)
			if err != nil {
				return fmt.Errorf("suite %s, size %d: %w", su.Name, size, err)
			}
			results = append(results, res)
		}
	}
	fmt.Print(report(results))
	if outFile != "" {
		b, err := yaml.Marshal(results)
		if err != nil {
			return err
		}
		return os.WriteFile(outFile, b, 0666)
	}
	return nil
}

func runOne(dev *shade.Device, su *bench.Suite, size int) (bench.Result, error) {
	mk, ok := makers[su.Unit]
	if !ok {
		known := slices.Sorted(maps.Keys(makers))
		return bench.Result{}, fmt.Errorf("%w: unknown unit %q (have %s)",
			shade.ErrConfig, su.Unit, strings.Join(known, ", "))
	}
	un, cleanup, err := mk(dev, su, size)
	if err != nil {
		return bench.Result{}, err
	}
	defer cleanup()
	name := fmt.Sprintf("%s/%d", su.Name, size)
	return bench.Run(dev, name, bench.Options{Warmup: su.Warmup, Cycles: su.Cycles}, un)
}

// makers build one unit sized for a suite run, returning it with a
// cleanup that destroys the unit and its input.
var makers = map[string]func(dev *shade.Device, su *bench.Suite, size int) (shade.Unit, func(), error){
	"reduce": func(dev *shade.Device, su *bench.Suite, size int) (shade.Unit, func(), error) {
		in, err := randSpan(dev, size)
		if err != nil {
			return nil, nil, err
		}
		rd := reduce.New(dev, "reduce")
		rd.Set("input", in)
		return rd, func() { rd.Destroy(); in.Release() }, nil
	},
	"scan": func(dev *shade.Device, su *bench.Suite, size int) (shade.Unit, func(), error) {
		in, err := randSpan(dev, size)
		if err != nil {
			return nil, nil, err
		}
		sc := scan.New(dev, "scan")
		sc.Set("input", in)
		return sc, func() { sc.Destroy(); in.Release() }, nil
	},
	"bitonic": func(dev *shade.Device, su *bench.Suite, size int) (shade.Unit, func(), error) {
		n := nextPow2(size)
		if n != size {
			slog.Debug("bitonic size rounded up to power of two", "size", size, "n", n)
		}
		in, err := randSpan(dev, n)
		if err != nil {
			return nil, nil, err
		}
		st := bitonic.New(dev, "bitonic")
		st.Set("input", in)
		return st, func() { st.Destroy(); in.Release() }, nil
	},
	"blur": func(dev *shade.Device, su *bench.Suite, size int) (shade.Unit, func(), error) {
		w := min(size, 512)
		h := (size + w - 1) / w
		in, err := randSpan(dev, w*h)
		if err != nil {
			return nil, nil, err
		}
		bl := blur.New(dev, "blur")
		bl.Set("input", in)
		bl.Set("width", w)
		bl.Set("height", h)
		if su.Radius > 0 {
			bl.Set("radius", su.Radius)
		}
		return bl, func() { bl.Destroy(); in.Release() }, nil
	},
	"gradient": func(dev *shade.Device, su *bench.Suite, size int) (shade.Unit, func(), error) {
		side := max(int(math.Sqrt(float64(size))), 1)
		gr := gradient.New(dev, "gradient")
		gr.Set("width", side)
		gr.Set("height", side)
		return gr, func() { gr.Destroy() }, nil
	},
}

// randSpan uploads n pseudorandom floats, seeded so repeated runs
// sort and sum identical data.
func randSpan(dev *shade.Device, n int) (shade.Span, error) {
	rng := rand.New(rand.NewSource(1))
	vals := make([]float32, n)
	for i := range vals {
		vals[i] = rng.Float32()
	}
	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	return shade.SpanFrom(dev, "bench-input", vals, usage)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

const rowFmt = " %7s %12s %12s %12s %12s"

func report(results []bench.Result) string {
	var b strings.Builder
	head := fmt.Sprintf("%-28s", "name") +
		fmt.Sprintf(rowFmt, "cycles", "mean", "min", "max", "total")
	b.WriteString(headStyle.Render(head))
	b.WriteByte('\n')
	for _, r := range results {
		b.WriteString(nameStyle.Render(fmt.Sprintf("%-28s", r.Name)))
		b.WriteString(fmt.Sprintf(rowFmt, fmt.Sprint(r.Cycles),
			rnd(r.Mean), rnd(r.Min), rnd(r.Max), rnd(r.Total)))
		b.WriteByte('\n')
	}
	return b.String()
}

func rnd(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}
