// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

import "github.com/hostedgpu/shade/base/errors"

var (
	// ErrConfig indicates an invalid configuration: an unknown or
	// mistyped parameter, or a shader that fails to compile.
	// These errors surface when the affected resource next rebuilds,
	// not at the set call that caused them.
	ErrConfig = errors.New("invalid configuration")

	// ErrDestroyed indicates a use-after-destroy: emitting commands or
	// ensuring resources on a unit whose Destroy method has run.
	ErrDestroyed = errors.New("unit destroyed")

	// ErrNotOwner indicates an attempt to release a resource whose
	// current handle was supplied by the caller rather than built
	// by the unit.
	ErrNotOwner = errors.New("resource not owned by unit")

	// ErrIncompatible indicates a caller-supplied resource that does
	// not meet a unit's requirements, such as a buffer that is too
	// small or missing a usage flag.
	ErrIncompatible = errors.New("incompatible resource")
)
