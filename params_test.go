// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamsLiteral(t *testing.T) {
	ps := &Params{}
	ps.Set("n", 1024)
	g1 := ps.Generation("n")

	v, err := ps.Resolve("n")
	assert.NoError(t, err)
	assert.Equal(t, 1024, v)
	assert.Equal(t, g1, ps.Generation("n"))

	// equal value is a no-op
	ps.Set("n", 1024)
	assert.Equal(t, g1, ps.Generation("n"))

	// different value bumps this parameter only
	ps.Set("sigma", float32(2))
	gs := ps.Generation("sigma")
	ps.Set("n", 2048)
	assert.Equal(t, g1+1, ps.Generation("n"))
	assert.Equal(t, gs, ps.Generation("sigma"))
}

func TestParamsSliceLiteral(t *testing.T) {
	ps := &Params{}
	ps.Set("weights", []float32{1, 2, 3})
	g1 := ps.Generation("weights")

	ps.Set("weights", []float32{1, 2, 3})
	assert.Equal(t, g1, ps.Generation("weights"))

	ps.Set("weights", []float32{1, 2, 4})
	assert.Equal(t, g1+1, ps.Generation("weights"))
}

func TestParamsResolver(t *testing.T) {
	ps := &Params{}
	src := 7
	read := func() any { return src }
	ps.Set("in", read)

	v, err := ps.Resolve("in")
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
	g1 := ps.Generation("in")

	// unchanged resolver output: stable generation
	_, err = ps.Resolve("in")
	assert.NoError(t, err)
	assert.Equal(t, g1, ps.Generation("in"))

	// output changes: generation bumps at resolve
	src = 8
	assert.Equal(t, g1, ps.Generation("in"))
	v, err = ps.Resolve("in")
	assert.NoError(t, err)
	assert.Equal(t, 8, v)
	assert.Equal(t, g1+1, ps.Generation("in"))

	// setting the same function value again is a no-op
	ps.Set("in", read)
	_, err = ps.Resolve("in")
	assert.NoError(t, err)
	assert.Equal(t, g1+1, ps.Generation("in"))
}

func TestParamsResolverSwap(t *testing.T) {
	ps := &Params{}
	ps.Set("in", func() any { return 1 })
	_, err := ps.Resolve("in")
	assert.NoError(t, err)
	g1 := ps.Generation("in")

	// a different resolver producing an equal value: re-runs,
	// but no observed change
	ps.Set("in", func() any { return 1 })
	_, err = ps.Resolve("in")
	assert.NoError(t, err)
	assert.Equal(t, g1, ps.Generation("in"))

	// swap to a literal with a new value
	ps.Set("in", 2)
	assert.Equal(t, g1+1, ps.Generation("in"))
	assert.False(t, ps.ParamByName("in").IsResolver())
}

func TestParamsUnknown(t *testing.T) {
	ps := &Params{}
	_, err := ps.Resolve("nope")
	assert.ErrorIs(t, err, ErrConfig)
	_, err = ps.Value("nope")
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, uint64(0), ps.Generation("nope"))
}

func TestParamsOrder(t *testing.T) {
	ps := &Params{}
	ps.Set("b", 1)
	ps.Set("a", 2)
	ps.Set("c", 3)
	ps.Set("a", 4) // re-set keeps position
	assert.Equal(t, []string{"b", "a", "c"}, ps.Names())
	assert.NoError(t, ps.ResolveAll())
}

func TestResolveAs(t *testing.T) {
	ps := &Params{}
	ps.Set("n", 16)
	ps.Set("out", nil)

	n, err := ResolveAs[int](ps, "n")
	assert.NoError(t, err)
	assert.Equal(t, 16, n)

	// nil value yields the zero value: optional parameters
	sp, err := ResolveAs[Span](ps, "out")
	assert.NoError(t, err)
	assert.True(t, sp.IsNil())

	// wrong type is a configuration error
	_, err = ResolveAs[string](ps, "n")
	assert.ErrorIs(t, err, ErrConfig)

	_, err = ValueAs[int](ps, "n")
	assert.NoError(t, err)
}

func TestEqualValues(t *testing.T) {
	assert.True(t, equalValues(nil, nil))
	assert.False(t, equalValues(nil, 1))
	assert.True(t, equalValues(3, 3))
	assert.False(t, equalValues(3, int64(3)))
	assert.True(t, equalValues([]int{1, 2}, []int{1, 2}))
	assert.False(t, equalValues([]int{1, 2}, []int{2, 1}))
	assert.NotPanics(t, func() {
		equalValues(map[string]int{"a": 1}, map[string]int{"a": 1})
	})
}

// testTracker is a minimal push-mode tracker: every Observe
// subscription can be invalidated manually.
type testTracker struct {
	observes int
	pending  []func()
	stops    int
}

func (tk *testTracker) Observe(read func(), onInvalid func()) func() {
	tk.observes++
	read()
	tk.pending = append(tk.pending, onInvalid)
	return func() { tk.stops++ }
}

func (tk *testTracker) invalidateAll() {
	pend := tk.pending
	tk.pending = nil
	for _, fn := range pend {
		fn()
	}
}

func TestParamsTracker(t *testing.T) {
	ps := &Params{}
	tk := &testTracker{}
	ps.SetTracker(tk)

	src := 1
	runs := 0
	ps.Set("in", func() any { runs++; return src })

	_, err := ps.Resolve("in")
	assert.NoError(t, err)
	assert.Equal(t, 1, runs)
	g1 := ps.Generation("in")

	// clean subscription: resolver not re-run
	for range 3 {
		v, err := ps.Resolve("in")
		assert.NoError(t, err)
		assert.Equal(t, 1, v)
	}
	assert.Equal(t, 1, runs)
	assert.Equal(t, g1, ps.Generation("in"))

	// invalidation forces one re-run; value change bumps generation
	src = 2
	tk.invalidateAll()
	v, err := ps.Resolve("in")
	assert.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, runs)
	assert.Equal(t, g1+1, ps.Generation("in"))
	assert.Equal(t, 2, tk.observes)

	// invalidation with an equal value: re-run, no generation bump
	tk.invalidateAll()
	_, err = ps.Resolve("in")
	assert.NoError(t, err)
	assert.Equal(t, 3, runs)
	assert.Equal(t, g1+1, ps.Generation("in"))

	// removing the tracker stops subscriptions and reverts to pull
	ps.SetTracker(nil)
	assert.NotZero(t, tk.stops)
	_, err = ps.Resolve("in")
	assert.NoError(t, err)
	assert.Equal(t, 4, runs)
}

func TestParamsRelease(t *testing.T) {
	ps := &Params{}
	tk := &testTracker{}
	ps.SetTracker(tk)
	ps.Set("in", func() any { return 1 })
	_, err := ps.Resolve("in")
	assert.NoError(t, err)

	ps.Release()
	assert.Equal(t, 1, tk.stops)

	// still usable: next resolve re-subscribes
	_, err = ps.Resolve("in")
	assert.NoError(t, err)
	assert.Equal(t, 2, tk.observes)
}
