// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blur

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade"
	"github.com/hostedgpu/shade/wgslx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaussWeights(t *testing.T) {
	ws := gaussWeights(0, 0)
	assert.Equal(t, float32(1), ws[0])

	ws = gaussWeights(3, 0)
	sum := float64(ws[0])
	for tap := 1; tap <= 3; tap++ {
		assert.Less(t, ws[tap], ws[tap-1])
		sum += 2 * float64(ws[tap])
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	assert.Zero(t, ws[4])

	wide := gaussWeights(3, 100)
	assert.Greater(t, wide[3], ws[3])
}

// blurHost is the serial reference: horizontal then vertical pass
// with clamp-to-edge sampling.
func blurHost(xs []float32, w, h, radius int, ws [16]float32) []float32 {
	clamp := func(v, lo, hi int) int {
		return min(max(v, lo), hi)
	}
	tmp := make([]float32, len(xs))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := xs[y*w+x] * ws[0]
			for t := 1; t <= radius; t++ {
				xm := clamp(x-t, 0, w-1)
				xp := clamp(x+t, 0, w-1)
				acc += ws[t] * (xs[y*w+xm] + xs[y*w+xp])
			}
			tmp[y*w+x] = acc
		}
	}
	out := make([]float32, len(xs))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := tmp[y*w+x] * ws[0]
			for t := 1; t <= radius; t++ {
				ym := clamp(y-t, 0, h-1)
				yp := clamp(y+t, 0, h-1)
				acc += ws[t] * (tmp[ym*w+x] + tmp[yp*w+x])
			}
			out[y*w+x] = acc
		}
	}
	return out
}

func TestBlurTemplate(t *testing.T) {
	assert.NoError(t, wgslx.Validate(blurWGSL))
	assert.Empty(t, wgslx.Hooks(blurWGSL))
	assert.Equal(t, []string{"weight", "blur_h", "blur_v"}, wgslx.TopFuncs(blurWGSL))
}

func TestBlurGPU(t *testing.T) {
	t.Skip("Need software GPU on CI")
	gp, dev, err := shade.NoDisplayGPU()
	require.NoError(t, err)
	defer gp.Release()
	defer dev.Release()

	w, h := 64, 48
	xs := make([]float32, w*h)
	xs[(h/2)*w+w/2] = 1 // impulse
	for i := range xs {
		if i%17 == 0 {
			xs[i] += 0.25
		}
	}
	in, err := shade.SpanFrom(dev, "img", xs, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
	require.NoError(t, err)
	defer in.Release()

	bl := New(dev, "soften")
	defer bl.Destroy()
	bl.Set("input", in)
	bl.Set("width", w)
	bl.Set("height", h)
	bl.Set("radius", 4)

	require.NoError(t, shade.Submit(dev, bl))
	got, err := bl.Read(nil)
	require.NoError(t, err)
	want := blurHost(xs, w, h, 4, gaussWeights(4, 0))
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4)
	}

	// radius change rewrites the weights but rebuilds no bind groups
	builds := bl.ResourceBuilds()
	bl.Set("radius", 2)
	require.NoError(t, shade.Submit(dev, bl))
	after := bl.ResourceBuilds()
	assert.Equal(t, builds["meta"]+1, after["meta"])
	assert.Equal(t, builds["bindH"], after["bindH"])
	assert.Equal(t, builds["bindV"], after["bindV"])
	assert.Equal(t, builds["pipelines"], after["pipelines"])

	// bad radius is a configuration error
	bl.Set("radius", 99)
	assert.ErrorIs(t, shade.Submit(dev, bl), shade.ErrConfig)
}
