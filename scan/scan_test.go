// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scan

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade"
	"github.com/hostedgpu/shade/wgslx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scanHost is the serial reference: exclusive prefix sum.
func scanHost(xs []float32) []float32 {
	out := make([]float32, len(xs))
	var acc float64
	for i, x := range xs {
		out[i] = float32(acc)
		acc += float64(x)
	}
	return out
}

func TestScanHost(t *testing.T) {
	assert.Equal(t, []float32{0, 1, 3, 6}, scanHost([]float32{1, 2, 3, 4}))
	assert.Empty(t, scanHost(nil))
}

func TestScanTemplate(t *testing.T) {
	assert.NoError(t, wgslx.Validate(scanWGSL))
	assert.Empty(t, wgslx.Hooks(scanWGSL))
	assert.Equal(t, []string{"scan_block", "scan_sums", "scan_add"}, wgslx.TopFuncs(scanWGSL))
}

func TestScanGPU(t *testing.T) {
	t.Skip("Need software GPU on CI")
	gp, dev, err := shade.NoDisplayGPU()
	require.NoError(t, err)
	defer gp.Release()
	defer dev.Release()

	mkSpan := func(n int) (shade.Span, []float32) {
		xs := make([]float32, n)
		for i := range xs {
			xs[i] = float32(i%7) * 0.5
		}
		sp, err := shade.SpanFrom(dev, "in", xs, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
		require.NoError(t, err)
		return sp, xs
	}

	in, xs := mkSpan(1000)
	defer in.Release()

	sc := New(dev, "prefix")
	defer sc.Destroy()
	sc.Set("input", in)

	require.NoError(t, shade.Submit(dev, sc))
	got, err := sc.Read(nil)
	require.NoError(t, err)
	want := scanHost(xs)
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-2)
	}

	builds := sc.ResourceBuilds()
	require.NoError(t, shade.Submit(dev, sc))
	assert.Equal(t, builds, sc.ResourceBuilds())

	// resize ripples through the size-dependent resources only
	in2, xs2 := mkSpan(5000)
	defer in2.Release()
	sc.Set("input", in2)
	require.NoError(t, shade.Submit(dev, sc))
	got, err = sc.Read(got)
	require.NoError(t, err)
	want = scanHost(xs2)
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-2)
	}
	after := sc.ResourceBuilds()
	assert.Equal(t, builds["layout"], after["layout"])
	assert.Equal(t, builds["pipelines"], after["pipelines"])
	assert.Equal(t, builds["output"]+1, after["output"])
	assert.Equal(t, builds["sums"]+1, after["sums"])
	assert.Equal(t, builds["bind"]+1, after["bind"])
}
