// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bitonic

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade"
	"github.com/hostedgpu/shade/wgslx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitonicSteps(t *testing.T) {
	assert.Empty(t, bitonicSteps(1))
	assert.Equal(t, []stepMeta{{K: 2, J: 1, N: 2}}, bitonicSteps(2))
	// log2(8)=3 rounds of 1, 2, 3 steps
	steps := bitonicSteps(8)
	assert.Len(t, steps, 6)
	assert.Equal(t, stepMeta{K: 2, J: 1, N: 8}, steps[0])
	assert.Equal(t, stepMeta{K: 8, J: 4, N: 8}, steps[3])
	assert.Equal(t, stepMeta{K: 8, J: 1, N: 8}, steps[5])
	assert.Len(t, bitonicSteps(1<<10), 55)
}

func TestPackSteps(t *testing.T) {
	b := packSteps(nil, 256)
	assert.Len(t, b, 256)

	steps := bitonicSteps(4)
	b = packSteps(steps, 256)
	assert.Len(t, b, 3*256)
	for i, sm := range steps {
		assert.Equal(t, wgpu.ToBytes([]stepMeta{sm}), b[i*256:i*256+16])
	}
}

func TestBitonicTemplate(t *testing.T) {
	assert.NoError(t, wgslx.Validate(bitonicWGSL))
	assert.Equal(t, []string{"sortKey"}, wgslx.Hooks(bitonicWGSL))
	assert.Equal(t, []string{"sortKey", "bitonic_step"}, wgslx.TopFuncs(bitonicWGSL))
}

func TestBitonicGPU(t *testing.T) {
	t.Skip("Need software GPU on CI")
	gp, dev, err := shade.NoDisplayGPU()
	require.NoError(t, err)
	defer gp.Release()
	defer dev.Release()

	n := 1 << 12
	rnd := rand.New(rand.NewSource(42))
	xs := make([]float32, n)
	for i := range xs {
		xs[i] = float32(i) * 0.5
	}
	rnd.Shuffle(n, func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
	in, err := shade.SpanFrom(dev, "data", xs,
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst|wgpu.BufferUsageCopySrc)
	require.NoError(t, err)
	defer in.Release()

	srt := New(dev, "sort")
	defer srt.Destroy()
	srt.Set("input", in)

	require.NoError(t, shade.Submit(dev, srt))
	got, err := shade.ReadSpan[float32](dev, srt.Output(), nil)
	require.NoError(t, err)
	want := slices.Clone(xs)
	slices.Sort(want)
	assert.Equal(t, want, got)

	// descending via the key hook
	srt.Set("sortKey", wgslx.MustFragment("sortKey",
		"fn sortKey(v: f32) -> f32 { return -v; }"))
	builds := srt.ResourceBuilds()
	require.NoError(t, shade.Submit(dev, srt))
	got, err = shade.ReadSpan[float32](dev, srt.Output(), got)
	require.NoError(t, err)
	slices.Reverse(want)
	assert.Equal(t, want, got)
	assert.Equal(t, builds["pipeline"]+1, srt.ResourceBuilds()["pipeline"])
	assert.Equal(t, builds["steps"], srt.ResourceBuilds()["steps"])

	// non power of two length is rejected
	odd, err := shade.NewSpan(dev, "odd", 1000, 4, wgpu.BufferUsageStorage)
	require.NoError(t, err)
	defer odd.Release()
	srt.Set("input", odd)
	err = shade.Submit(dev, srt)
	assert.ErrorIs(t, err, shade.ErrIncompatible)
}
