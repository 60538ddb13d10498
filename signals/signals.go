// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package signals implements a small synchronous reactive graph.
// A [State] holds a value; [Graph.Observe] runs a read function and
// subscribes to every state it touched, firing a one-shot
// invalidation callback when any of them later changes.
//
// Graph satisfies the hosted shader runtime's Tracker contract, so
// installing one on a unit's parameter store switches its resolvers
// to push mode: they re-run only after an upstream Set, instead of
// on every resolve.
//
// Everything here is single-threaded, matching the runtime it
// serves: all Get, Set, and Observe calls must come from the same
// goroutine.
package signals

import "reflect"

// Graph owns the currently recording observer. Observers and states
// from different graphs must not be mixed.
type Graph struct {
	// active is the observer recording reads, nil outside Observe.
	active *observer
}

// NewGraph returns a new reactive graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Observe runs read, subscribing to every [State] of this graph that
// it reads. The first subsequent change to any of them calls
// onInvalid, exactly once; the subscription then ends, so the caller
// re-observes when it next re-reads. The returned stop function
// cancels the subscription early and is safe to call repeatedly.
// Observe calls may nest: inner reads belong to the inner observer.
func (g *Graph) Observe(read func(), onInvalid func()) (stop func()) {
	ob := &observer{onInvalid: onInvalid}
	prev := g.active
	g.active = ob
	read()
	g.active = prev
	return ob.release
}

// source is a dependency an observer can unlink from.
type source interface {
	unlink(ob *observer)
}

// observer is one live subscription created by [Graph.Observe].
type observer struct {
	onInvalid func()
	deps      []source
	done      bool
}

// invalidate fires the observer: it unlinks from all dependencies
// first, so the callback sees a fully dead subscription.
func (ob *observer) invalidate() {
	if ob.done {
		return
	}
	ob.release()
	ob.onInvalid()
}

func (ob *observer) release() {
	if ob.done {
		return
	}
	ob.done = true
	for _, dp := range ob.deps {
		dp.unlink(ob)
	}
	ob.deps = nil
}

// State is a reactive value. Reads inside [Graph.Observe] record a
// dependency; [State.Set] with a genuinely new value invalidates
// every observer that read it.
type State[T any] struct {
	g     *Graph
	value T
	subs  map[*observer]struct{}
}

// NewState returns a new state on the given graph holding v.
func NewState[T any](g *Graph, v T) *State[T] {
	return &State[T]{g: g, value: v, subs: make(map[*observer]struct{})}
}

// Get returns the current value, recording a dependency when called
// inside [Graph.Observe].
func (st *State[T]) Get() T {
	if ob := st.g.active; ob != nil {
		if _, has := st.subs[ob]; !has {
			st.subs[ob] = struct{}{}
			ob.deps = append(ob.deps, st)
		}
	}
	return st.value
}

// Peek returns the current value without recording a dependency.
func (st *State[T]) Peek() T {
	return st.value
}

// Set updates the value and invalidates every subscribed observer.
// Setting a value equal to the current one is a no-op.
func (st *State[T]) Set(v T) {
	if equal(st.value, v) {
		return
	}
	st.value = v
	if len(st.subs) == 0 {
		return
	}
	subs := st.subs
	st.subs = make(map[*observer]struct{})
	for ob := range subs {
		ob.invalidate()
	}
}

func (st *State[T]) unlink(ob *observer) {
	delete(st.subs, ob)
}

// equal compares values without panicking on non-comparable types.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
