// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package signals_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hostedgpu/shade"
	"github.com/hostedgpu/shade/signals"
)

var _ shade.Tracker = (*signals.Graph)(nil)

// A parameter store in push mode behaves exactly like pull mode,
// except that resolvers only re-run after an upstream Set.
func TestGraphAsTracker(t *testing.T) {
	g := signals.NewGraph()
	width := signals.NewState(g, 512)

	ps := &shade.Params{}
	ps.SetTracker(g)

	runs := 0
	ps.Set("width", func() any { runs++; return width.Get() })

	v, err := ps.Resolve("width")
	assert.NoError(t, err)
	assert.Equal(t, 512, v)
	assert.Equal(t, 1, runs)
	g1 := ps.Generation("width")

	// clean: resolver skipped
	for range 5 {
		_, err := ps.Resolve("width")
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, runs)
	assert.Equal(t, g1, ps.Generation("width"))

	// upstream set: one re-run at the next resolve
	width.Set(1024)
	assert.Equal(t, 1, runs)
	v, err = ps.Resolve("width")
	assert.NoError(t, err)
	assert.Equal(t, 1024, v)
	assert.Equal(t, 2, runs)
	assert.Equal(t, g1+1, ps.Generation("width"))

	// equal upstream set: invalidation never fires
	width.Set(1024)
	_, err = ps.Resolve("width")
	assert.NoError(t, err)
	assert.Equal(t, 2, runs)
}
