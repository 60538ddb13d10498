// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

import "fmt"

// Ownership says who is responsible for releasing a resource's
// current handle.
type Ownership int32

const (
	// Internal handles were built by the unit, which releases them
	// on rebuild and on destroy.
	Internal Ownership = iota

	// External handles were supplied by the caller and are never
	// released by the unit.
	External
)

func (ow Ownership) String() string {
	switch ow {
	case Internal:
		return "Internal"
	case External:
		return "External"
	}
	return fmt.Sprintf("Ownership(%d)", int32(ow))
}

// ResourceState is the lifecycle state of a [Resource].
type ResourceState int32

const (
	// Unbuilt means the resource has never been built.
	Unbuilt ResourceState = iota

	// Built means the current handle is up to date with every
	// parameter its build read.
	Built

	// Stale means a parameter read by the last build has changed,
	// so the next ensure will rebuild.
	Stale

	// Destroyed is terminal: the resource can no longer be ensured.
	Destroyed
)

func (st ResourceState) String() string {
	switch st {
	case Unbuilt:
		return "Unbuilt"
	case Built:
		return "Built"
	case Stale:
		return "Stale"
	case Destroyed:
		return "Destroyed"
	}
	return fmt.Sprintf("ResourceState(%d)", int32(st))
}

// resource is the untyped view of a [Resource] that [UnitBase]
// manages for ordered ensure and reverse-ordered destroy.
type resource interface {
	Name() string
	State() ResourceState
	Builds() int
	ensureErr() error
	destroy()
}

// Resource is a lazily built, cached GPU object of type T, such as a
// pipeline, buffer, or bind group. Each build runs with parameter
// recording on: the parameters the build function reads, and their
// generations at that moment, become the resource's staleness
// snapshot. [Resource.Ensure] rebuilds only when one of those
// parameters has changed since, so a chain of unchanged parameters
// costs a few integer compares per frame.
//
// The build function returns the new handle together with its
// [Ownership]: a build that passes through a caller-supplied handle
// returns [External], and such handles are never released here.
type Resource[T any] struct {
	nm string
	un *UnitBase

	build   func() (T, Ownership, error)
	release func(T)

	handle    T
	owner     Ownership
	snapshot  map[string]uint64
	built     bool
	destroyed bool
	nbuilds   int
}

// Define registers a resource on the given unit. Resources are
// ensured in definition order and destroyed in reverse, so define
// upstream resources (pipelines, buffers) before the bind groups
// that reference their handles. The release function may be nil for
// handles that need no explicit release.
func Define[T any](un *UnitBase, name string, build func() (T, Ownership, error), release func(T)) *Resource[T] {
	rs := &Resource[T]{nm: name, un: un, build: build, release: release}
	un.addResource(rs)
	return rs
}

// Name returns the resource's name, unique within its unit.
func (rs *Resource[T]) Name() string { return rs.nm }

// Builds returns how many times the build function has run,
// including failed builds.
func (rs *Resource[T]) Builds() int { return rs.nbuilds }

// Ownership returns who owns the current handle. Only meaningful
// in the Built or Stale states.
func (rs *Resource[T]) Ownership() Ownership { return rs.owner }

// Handle returns the current handle without ensuring it is up to
// date: the zero T before the first build and after destroy.
func (rs *Resource[T]) Handle() T { return rs.handle }

// State returns the resource's current lifecycle state. Staleness is
// computed from the snapshot, not stored, so it reflects any
// parameter changes made since the last build.
func (rs *Resource[T]) State() ResourceState {
	switch {
	case rs.destroyed:
		return Destroyed
	case !rs.built:
		return Unbuilt
	case rs.stale():
		return Stale
	}
	return Built
}

// Ensure returns the up-to-date handle, building or rebuilding only
// if a parameter read by the last build has changed. On rebuild the
// replacement is built first and the previous handle released after,
// and only if it was internally owned; a failed build keeps the
// previous handle and snapshot intact, so the resource stays stale
// and the next ensure retries.
func (rs *Resource[T]) Ensure() (T, error) {
	var zero T
	if rs.destroyed || rs.un.destroyed {
		return zero, fmt.Errorf("%w: resource %q", ErrDestroyed, rs.nm)
	}
	if rs.built && !rs.stale() {
		return rs.handle, nil
	}
	ps := rs.un.Params()
	prev := ps.beginRecord()
	h, ow, err := rs.build()
	snap := ps.endRecord(prev)
	rs.nbuilds++
	if err != nil {
		return zero, fmt.Errorf("resource %q: %w", rs.nm, err)
	}
	if rs.built && rs.owner == Internal && rs.release != nil && !equalValues(any(rs.handle), any(h)) {
		rs.release(rs.handle)
	}
	rs.handle = h
	rs.owner = ow
	rs.snapshot = snap
	rs.built = true
	return h, nil
}

// Release destroys the resource explicitly, releasing the current
// handle if internally owned. Releasing a resource whose current
// handle is externally owned is an [ErrNotOwner] error, and the
// handle is left untouched. Release after destroy is a no-op.
func (rs *Resource[T]) Release() error {
	if rs.destroyed {
		return nil
	}
	if rs.built && rs.owner == External {
		return fmt.Errorf("%w: resource %q", ErrNotOwner, rs.nm)
	}
	rs.destroy()
	return nil
}

// stale reports whether any parameter recorded by the last build has
// a different generation now.
func (rs *Resource[T]) stale() bool {
	for name, gen := range rs.snapshot {
		if rs.un.Params().Generation(name) != gen {
			return true
		}
	}
	return false
}

func (rs *Resource[T]) ensureErr() error {
	_, err := rs.Ensure()
	return err
}

// destroy releases the handle if internally owned. Externally owned
// handles are skipped, never released. Idempotent.
func (rs *Resource[T]) destroy() {
	if rs.destroyed {
		return
	}
	rs.destroyed = true
	if rs.built && rs.owner == Internal && rs.release != nil {
		rs.release(rs.handle)
	}
	var zero T
	rs.handle = zero
	rs.built = false
	rs.snapshot = nil
}
