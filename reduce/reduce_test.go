// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reduce

import (
	"math"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade"
	"github.com/hostedgpu/shade/wgslx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceGroups(t *testing.T) {
	assert.Equal(t, 1, reduceGroups(0))
	assert.Equal(t, 1, reduceGroups(1))
	assert.Equal(t, 1, reduceGroups(threads))
	assert.Equal(t, 2, reduceGroups(threads+1))
	assert.Equal(t, maxGroups, reduceGroups(threads*maxGroups))
	assert.Equal(t, maxGroups, reduceGroups(threads*maxGroups+1))
	assert.Equal(t, maxGroups, reduceGroups(1<<24))
}

func TestReduceTemplate(t *testing.T) {
	assert.NoError(t, wgslx.Validate(reduceWGSL))
	assert.Equal(t, []string{"combine"}, wgslx.Hooks(reduceWGSL))
	assert.Equal(t, []string{"combine", "reduce"}, wgslx.TopFuncs(reduceWGSL))

	fr := wgslx.MustFragment("combine", "fn combine(a: f32, b: f32) -> f32 { return max(a, b); }")
	src, err := wgslx.Splice(reduceWGSL, "combine", fr)
	assert.NoError(t, err)
	assert.NoError(t, wgslx.Validate(src))
}

func TestReduceGPU(t *testing.T) {
	t.Skip("Need software GPU on CI")
	gp, dev, err := shade.NoDisplayGPU()
	require.NoError(t, err)
	defer gp.Release()
	defer dev.Release()

	n := 10000
	xs := make([]float32, n)
	var want float64
	for i := range xs {
		xs[i] = float32(i%100) * 0.25
		want += float64(xs[i])
	}
	in, err := shade.SpanFrom(dev, "in", xs, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
	require.NoError(t, err)
	defer in.Release()

	rd := New(dev, "fold")
	defer rd.Destroy()
	rd.Set("input", in)

	require.NoError(t, shade.Submit(dev, rd))
	got, err := rd.Read()
	require.NoError(t, err)
	assert.InDelta(t, want, float64(got), want*1e-4)

	// steady state: nothing rebuilds
	builds := rd.ResourceBuilds()
	require.NoError(t, shade.Submit(dev, rd))
	assert.Equal(t, builds, rd.ResourceBuilds())

	// swap the fold for max
	rd.Set("combine", wgslx.MustFragment("combine",
		"fn combine(a: f32, b: f32) -> f32 { return max(a, b); }"))
	rd.Set("identity", float32(-math.MaxFloat32))
	require.NoError(t, shade.Submit(dev, rd))
	got, err = rd.Read()
	require.NoError(t, err)
	assert.Equal(t, float32(24.75), got)
	assert.Equal(t, builds["pipeline"]+1, rd.ResourceBuilds()["pipeline"])
	assert.Equal(t, builds["partials"], rd.ResourceBuilds()["partials"])
}
