// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeHandle stands in for a GPU object in device-free tests.
type fakeHandle struct {
	id int
	n  int
}

func TestResourceBuildOnce(t *testing.T) {
	un := &UnitBase{}
	un.Init(nil, "test")
	un.Set("n", 16)

	nextID := 0
	buf := Define(un, "buf", func() (fakeHandle, Ownership, error) {
		n, err := ValueAs[int](un.Params(), "n")
		if err != nil {
			return fakeHandle{}, Internal, err
		}
		nextID++
		return fakeHandle{id: nextID, n: n}, Internal, nil
	}, nil)

	assert.Equal(t, Unbuilt, buf.State())
	assert.NoError(t, un.Start())

	h1, err := buf.Ensure()
	assert.NoError(t, err)
	assert.Equal(t, 16, h1.n)
	assert.Equal(t, 1, buf.Builds())
	assert.Equal(t, Built, buf.State())

	// repeated ensures with unchanged parameters: no rebuild
	for range 3 {
		assert.NoError(t, un.Start())
		h, err := buf.Ensure()
		assert.NoError(t, err)
		assert.Equal(t, h1, h)
	}
	assert.Equal(t, 1, buf.Builds())

	// idempotent set: still no rebuild
	un.Set("n", 16)
	assert.NoError(t, un.Start())
	_, err = buf.Ensure()
	assert.NoError(t, err)
	assert.Equal(t, 1, buf.Builds())

	// a real change rebuilds exactly once
	un.Set("n", 32)
	assert.Equal(t, Stale, buf.State())
	assert.NoError(t, un.Start())
	h2, err := buf.Ensure()
	assert.NoError(t, err)
	assert.Equal(t, 32, h2.n)
	assert.Equal(t, 2, buf.Builds())
}

func TestResourceUnreadParam(t *testing.T) {
	un := &UnitBase{}
	un.Init(nil, "test")
	un.Set("n", 16)
	un.Set("label", "a")

	buf := Define(un, "buf", func() (int, Ownership, error) {
		n, _ := ValueAs[int](un.Params(), "n")
		return n, Internal, nil
	}, nil)

	assert.NoError(t, un.Start())
	_, err := buf.Ensure()
	assert.NoError(t, err)

	// changing a parameter the build never read does not invalidate
	un.Set("label", "b")
	assert.Equal(t, Built, buf.State())
	assert.NoError(t, un.Start())
	_, err = buf.Ensure()
	assert.NoError(t, err)
	assert.Equal(t, 1, buf.Builds())
}

func TestResourceChainOrder(t *testing.T) {
	un := &UnitBase{}
	un.Init(nil, "test")
	un.Set("n", 8)

	var events []string
	nextID := 0

	buf := Define(un, "buf", func() (fakeHandle, Ownership, error) {
		n, _ := ValueAs[int](un.Params(), "n")
		nextID++
		events = append(events, fmt.Sprintf("build buf%d", nextID))
		return fakeHandle{id: nextID, n: n}, Internal, nil
	}, func(h fakeHandle) {
		events = append(events, fmt.Sprintf("release buf%d", h.id))
	})

	var bind *Resource[string]
	bind = Define(un, "bind", func() (string, Ownership, error) {
		n, _ := ValueAs[int](un.Params(), "n")
		events = append(events, "build bind")
		return fmt.Sprintf("bind(buf%d,n=%d)", buf.Handle().id, n), Internal, nil
	}, func(string) {
		events = append(events, "release bind")
	})

	assert.NoError(t, un.Start())
	assert.NoError(t, un.EnsureAll())
	assert.Equal(t, []string{"build buf1", "build bind"}, events)
	assert.Equal(t, "bind(buf1,n=8)", bind.Handle())

	// resize: both rebuild, in definition order, new handle built
	// before the old one is released
	events = nil
	un.Set("n", 64)
	assert.NoError(t, un.Start())
	assert.NoError(t, un.EnsureAll())
	assert.Equal(t, []string{"build buf2", "release buf1", "build bind", "release bind"}, events)
	assert.Equal(t, "bind(buf2,n=64)", bind.Handle())
}

func TestResourceOwnership(t *testing.T) {
	un := &UnitBase{}
	un.Init(nil, "test")
	un.Set("out", fakeHandle{})

	released := 0
	nextID := 10
	out := Define(un, "out", func() (fakeHandle, Ownership, error) {
		ext, err := ValueAs[fakeHandle](un.Params(), "out")
		if err != nil {
			return fakeHandle{}, Internal, err
		}
		if ext.id != 0 {
			return ext, External, nil
		}
		nextID++
		return fakeHandle{id: nextID, n: 4}, Internal, nil
	}, func(fakeHandle) { released++ })

	// zero parameter: builds internally
	assert.NoError(t, un.Start())
	h, err := out.Ensure()
	assert.NoError(t, err)
	assert.Equal(t, 11, h.id)
	assert.Equal(t, Internal, out.Ownership())

	// caller supplies a handle: internal one is released after the
	// replacement build, external one adopted
	un.Set("out", fakeHandle{id: 99, n: 4})
	assert.NoError(t, un.Start())
	h, err = out.Ensure()
	assert.NoError(t, err)
	assert.Equal(t, 99, h.id)
	assert.Equal(t, External, out.Ownership())
	assert.Equal(t, 1, released)

	// explicit release of an externally owned handle is refused
	err = out.Release()
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, 1, released)

	// unit destroy leaves the external handle untouched
	un.Destroy()
	assert.Equal(t, 1, released)
}

func TestResourceFailedBuild(t *testing.T) {
	un := &UnitBase{}
	un.Init(nil, "test")
	un.Set("n", 8)

	buf := Define(un, "buf", func() (fakeHandle, Ownership, error) {
		n, _ := ValueAs[int](un.Params(), "n")
		if n < 0 {
			return fakeHandle{}, Internal, fmt.Errorf("%w: negative size %d", ErrConfig, n)
		}
		return fakeHandle{id: 1, n: n}, Internal, nil
	}, nil)

	assert.NoError(t, un.Start())
	h1, err := buf.Ensure()
	assert.NoError(t, err)

	// failed rebuild keeps the previous handle and stays stale
	un.Set("n", -1)
	assert.NoError(t, un.Start())
	_, err = buf.Ensure()
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, h1, buf.Handle())
	assert.Equal(t, Stale, buf.State())
	assert.Equal(t, 2, buf.Builds())

	// the error repeats until the configuration is fixed
	_, err = buf.Ensure()
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, 3, buf.Builds())

	un.Set("n", 16)
	assert.NoError(t, un.Start())
	h2, err := buf.Ensure()
	assert.NoError(t, err)
	assert.Equal(t, 16, h2.n)
}

func TestResourceSameHandleRebuild(t *testing.T) {
	un := &UnitBase{}
	un.Init(nil, "test")
	un.Set("n", 8)

	released := 0
	keep := fakeHandle{id: 1, n: 8}
	buf := Define(un, "buf", func() (fakeHandle, Ownership, error) {
		ValueAs[int](un.Params(), "n")
		return keep, Internal, nil
	}, func(fakeHandle) { released++ })

	assert.NoError(t, un.Start())
	_, err := buf.Ensure()
	assert.NoError(t, err)

	// a rebuild that returns the same handle must not release it
	un.Set("n", 16)
	assert.NoError(t, un.Start())
	_, err = buf.Ensure()
	assert.NoError(t, err)
	assert.Equal(t, 2, buf.Builds())
	assert.Equal(t, 0, released)

	un.Destroy()
	assert.Equal(t, 1, released)
}

func TestResourceDestroyed(t *testing.T) {
	un := &UnitBase{}
	un.Init(nil, "test")

	released := 0
	buf := Define(un, "buf", func() (int, Ownership, error) {
		return 1, Internal, nil
	}, func(int) { released++ })

	assert.NoError(t, un.Start())
	_, err := buf.Ensure()
	assert.NoError(t, err)

	un.Destroy()
	assert.Equal(t, 1, released)
	assert.Equal(t, Destroyed, buf.State())
	assert.Equal(t, 0, buf.Handle())

	_, err = buf.Ensure()
	assert.ErrorIs(t, err, ErrDestroyed)

	// destroy and release are idempotent
	un.Destroy()
	assert.NoError(t, buf.Release())
	assert.Equal(t, 1, released)
}
