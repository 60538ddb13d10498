// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package shade is a host-side runtime for composing hosted shader units:
reusable GPU components written in WGSL and driven from Go through WebGPU.

A unit owns a set of named parameters ([Params]) and a set of cached GPU
resources ([Resource]). Parameters are set with plain values or with
[Resolver] functions that read another unit's outputs, which is how units
are chained into larger graphs without any central registration.
Resources are built lazily: each build records which parameters it read,
along with their generation counters, and a resource is rebuilt only when
one of those parameters has actually changed since. Setting a parameter
to an equal value is a no-op all the way down, so steady-state frames
reuse every pipeline, buffer, and bind group from the previous frame.

Each frame (or compute cycle), the caller passes a [wgpu.CommandEncoder]
to the unit's Commands method, which resolves parameters, rebuilds
whatever became stale, and appends the unit's passes to the encoder.
Nothing executes until the caller submits the encoder, so multiple units
can contribute to one submission. Everything here follows WebGPU's
single-threaded model: all calls on a unit must come from one goroutine,
with resolution and rebuilds running synchronously inside Commands.

By default change detection is pull-based: every Commands call re-runs
resolvers and compares results. Installing a [Tracker] (for example a
graph from the signals package) switches a unit's parameters to push
mode, where resolvers only re-run after an upstream invalidation, with
identical results.
*/
package shade
