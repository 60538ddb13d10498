// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

// Tracker is the contract for an optional reactive change-tracking
// system, such as the graph in the signals package. Installing one on
// a [Params] store via [Params.SetTracker] switches its resolver-backed
// parameters from pull mode, where every resolve re-runs the resolver,
// to push mode, where a resolver is only re-run after onInvalid has
// been called for its subscription.
//
// All Tracker calls happen on the unit's goroutine; implementations
// do not need to be safe for concurrent use.
type Tracker interface {
	// Observe runs read once, recording which tracked values it
	// accesses, and subscribes to them. When any of those values later
	// changes, onInvalid is called, at most once per subscription.
	// The returned stop function cancels the subscription; it must be
	// safe to call more than once.
	Observe(read func(), onInvalid func()) (stop func())
}
