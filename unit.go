// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade/base/indent"
)

// Unit is a hosted shader unit: a self-contained GPU component that
// appends its passes to a caller-owned command encoder. Concrete
// units embed [UnitBase] and implement Commands.
type Unit interface {
	// Commands resolves parameters, rebuilds any stale resources, and
	// appends this unit's passes to the given encoder. Nothing runs on
	// the GPU until the caller finishes and submits the encoder. The
	// encoder must not be retained. After Destroy, Commands fails with
	// an [ErrDestroyed] error.
	Commands(enc *wgpu.CommandEncoder) error

	// Destroy releases every internally owned resource. Caller-supplied
	// resources are left untouched. Destroy is idempotent: second and
	// later calls do nothing.
	Destroy()

	// Label returns the unit's diagnostic name.
	Label() string
}

// UnitBase provides the parameter store, resource registry, and
// lifecycle shared by all units. Embed it by value and call
// [UnitBase.Init] from the unit's constructor, then [Define] each
// resource in dependency order.
type UnitBase struct {
	// Name is the optional diagnostic name, used in logs and errors.
	Name string

	device    *Device
	params    Params
	resources []resource
	destroyed bool
}

// Init sets the device and name. Call once from the constructor.
func (un *UnitBase) Init(dev *Device, name string) {
	un.device = dev
	un.Name = name
}

// Label returns the unit's diagnostic name.
func (un *UnitBase) Label() string { return un.Name }

// Device returns the device the unit was initialized with.
func (un *UnitBase) Device() *Device { return un.device }

// Params returns the unit's parameter store.
func (un *UnitBase) Params() *Params { return &un.params }

// Set sets the named parameter: a convenience for Params().Set.
func (un *UnitBase) Set(name string, input any) {
	un.params.Set(name, input)
}

// Destroyed reports whether Destroy has run.
func (un *UnitBase) Destroyed() bool { return un.destroyed }

func (un *UnitBase) addResource(rs resource) {
	un.resources = append(un.resources, rs)
}

// Start begins a command-emission cycle: it fails with [ErrDestroyed]
// if the unit has been destroyed, and otherwise resolves all
// parameters so that every generation update lands before any
// resource decides whether it is stale. Concrete units call this
// first in Commands.
func (un *UnitBase) Start() error {
	if un.destroyed {
		return fmt.Errorf("unit %q: %w", un.Name, ErrDestroyed)
	}
	return un.params.ResolveAll()
}

// EnsureAll ensures every resource in definition order, stopping at
// the first error. A failed build aborts the cycle before any
// commands are emitted, leaving previously built resources intact.
func (un *UnitBase) EnsureAll() error {
	for _, rs := range un.resources {
		if err := rs.ensureErr(); err != nil {
			return fmt.Errorf("unit %q: %w", un.Name, err)
		}
	}
	return nil
}

// Destroy releases all internally owned resources in reverse
// definition order and stops any reactive subscriptions. Idempotent.
func (un *UnitBase) Destroy() {
	if un.destroyed {
		return
	}
	un.destroyed = true
	for i := len(un.resources) - 1; i >= 0; i-- {
		un.resources[i].destroy()
	}
	un.params.Release()
}

// ResourceBuilds returns the build count of each resource by name,
// for tests and benchmark instrumentation.
func (un *UnitBase) ResourceBuilds() map[string]int {
	bc := make(map[string]int, len(un.resources))
	for _, rs := range un.resources {
		bc[rs.Name()] = rs.Builds()
	}
	return bc
}

// StringDoc returns a debug dump of the unit's parameters and
// resource states.
func (un *UnitBase) StringDoc() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "unit: %s\n", un.Name)
	b.WriteString(un.params.StringDoc())
	for _, rs := range un.resources {
		fmt.Fprintf(b, "%s%s: %s builds=%d\n", indent.Tabs(1), rs.Name(), rs.State(), rs.Builds())
	}
	return b.String()
}
