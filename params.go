// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hostedgpu/shade/base/errors"
	"github.com/hostedgpu/shade/base/indent"
	"github.com/hostedgpu/shade/base/ordmap"
)

// Resolver is a zero-argument accessor producing the current value of
// a parameter. Setting a parameter to a Resolver instead of a plain
// value wires it to read another unit's output at each resolve, which
// is how units are chained together.
type Resolver func() any

// Param is one named input to a unit: its source, which is either a
// literal value or a [Resolver], the value it last resolved to, and a
// generation counter that resources use for cheap change detection.
type Param struct {
	// Name is unique within the owning [Params] store.
	Name string

	// literal is the source value when not resolver-backed.
	literal any

	// resolver is the source function, nil for literal parameters.
	resolver Resolver

	// value is the last resolved value.
	value any

	// generation counts observed changes to the resolved value.
	generation uint64

	// resolved is whether value holds a valid resolved value.
	resolved bool

	// stop cancels the push-mode subscription, when one is live.
	stop func()

	// dirty marks a push-mode parameter whose subscription has
	// been invalidated, forcing the resolver to re-run.
	dirty bool
}

// Generation returns the parameter's generation counter, which
// increments each time its resolved value is observed to change.
func (pr *Param) Generation() uint64 { return pr.generation }

// IsResolver reports whether the parameter reads its value
// through a [Resolver].
func (pr *Param) IsResolver() bool { return pr.resolver != nil }

// commit installs a newly resolved value, bumping the generation
// only if it differs from the previous resolved value.
func (pr *Param) commit(v any) {
	if !pr.resolved || !equalValues(pr.value, v) {
		pr.value = v
		pr.generation++
	}
	pr.resolved = true
}

func (pr *Param) unsubscribe() {
	if pr.stop != nil {
		pr.stop()
		pr.stop = nil
	}
}

// Params is a unit's parameter store. Parameters keep the order in
// which they were first set. The zero value is ready to use.
//
// Set calls are idempotent: setting a parameter to a value equal to
// its current one changes nothing, so callers can push full
// configurations every frame without triggering rebuilds.
type Params struct {
	params ordmap.Map[string, *Param]

	// tracker is the optional push-mode change tracker.
	tracker Tracker

	// recording collects parameter reads during a resource build.
	recording map[string]uint64
}

// Set sets the named parameter, creating it on first use. A func() any
// (or [Resolver]) input becomes the parameter's resolver; any other
// value becomes its literal value. Equal literal values and identical
// resolver functions are no-ops. A genuinely new literal takes effect
// immediately; a new resolver takes effect at the next resolve.
func (ps *Params) Set(name string, input any) {
	pr, ok := ps.params.ValueByKeyTry(name)
	if !ok {
		pr = &Param{Name: name}
		ps.params.Add(name, pr)
	}
	switch fn := input.(type) {
	case Resolver:
		ps.setResolver(pr, fn)
	case func() any:
		ps.setResolver(pr, fn)
	default:
		ps.setLiteral(pr, input)
	}
}

func (ps *Params) setResolver(pr *Param, fn Resolver) {
	if pr.resolver != nil && sameFunc(pr.resolver, fn) {
		return
	}
	pr.unsubscribe()
	pr.resolver = fn
	pr.literal = nil
	pr.dirty = true
}

func (ps *Params) setLiteral(pr *Param, v any) {
	if pr.resolver == nil && pr.resolved && equalValues(pr.value, v) {
		return
	}
	pr.unsubscribe()
	pr.resolver = nil
	pr.literal = v
	pr.dirty = false
	pr.commit(v)
}

// Has reports whether the named parameter has been set.
func (ps *Params) Has(name string) bool {
	return ps.params.HasKey(name)
}

// Len returns the number of parameters.
func (ps *Params) Len() int {
	return ps.params.Len()
}

// Names returns the parameter names in the order first set.
func (ps *Params) Names() []string {
	return ps.params.Keys()
}

// ParamByName returns the named [Param], or nil if not present.
func (ps *Params) ParamByName(name string) *Param {
	return ps.params.ValueByKey(name)
}

// Generation returns the named parameter's generation counter,
// 0 for a parameter that has never been set.
func (ps *Params) Generation(name string) uint64 {
	pr, ok := ps.params.ValueByKeyTry(name)
	if !ok {
		return 0
	}
	return pr.generation
}

// Resolve returns the current value of the named parameter, re-running
// its resolver if needed, and bumping its generation if the value
// changed. In push mode (see [Params.SetTracker]) the resolver is
// skipped entirely while its subscription is live and clean.
func (ps *Params) Resolve(name string) (any, error) {
	pr, ok := ps.params.ValueByKeyTry(name)
	if !ok {
		return nil, fmt.Errorf("%w: no parameter named %q", ErrConfig, name)
	}
	defer ps.record(pr)
	if pr.resolver == nil {
		return pr.value, nil
	}
	if ps.tracker != nil {
		if pr.stop != nil && !pr.dirty {
			return pr.value, nil
		}
		pr.unsubscribe()
		var v any
		pr.stop = ps.tracker.Observe(func() { v = pr.resolver() }, func() { pr.dirty = true })
		pr.dirty = false
		pr.commit(v)
		return pr.value, nil
	}
	pr.commit(pr.resolver())
	return pr.value, nil
}

// ResolveAll resolves every parameter, in order, returning the join
// of any errors. Units call this at the start of command emission so
// that all generation updates happen before resources are ensured.
func (ps *Params) ResolveAll() error {
	var errs []error
	for _, kv := range ps.params.Order {
		if _, err := ps.Resolve(kv.Key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Value returns the last resolved value of the named parameter without
// re-running its resolver, resolving only if it has never been
// resolved. Resource builders read parameters through Value (or
// [ValueAs]) so that the values they see are the ones [Params.ResolveAll]
// already committed.
func (ps *Params) Value(name string) (any, error) {
	pr, ok := ps.params.ValueByKeyTry(name)
	if !ok {
		return nil, fmt.Errorf("%w: no parameter named %q", ErrConfig, name)
	}
	if !pr.resolved {
		return ps.Resolve(name)
	}
	ps.record(pr)
	return pr.value, nil
}

// SetTracker installs (or with nil, removes) the push-mode change
// tracker for this store. Any live subscriptions are stopped; the
// next resolve establishes new ones through the given tracker.
func (ps *Params) SetTracker(tk Tracker) {
	ps.Release()
	ps.tracker = tk
}

// Release stops any live push-mode subscriptions. The owning unit
// calls this on destroy; after Release the store remains usable and
// resolvers simply re-run on the next resolve.
func (ps *Params) Release() {
	for _, kv := range ps.params.Order {
		kv.Value.unsubscribe()
		kv.Value.dirty = true
	}
}

// record notes a parameter read during a resource build, capturing
// the post-resolve generation for the build's snapshot.
func (ps *Params) record(pr *Param) {
	if ps.recording != nil {
		ps.recording[pr.Name] = pr.generation
	}
}

// beginRecord starts collecting parameter reads for a resource build,
// returning the recording to restore in endRecord.
func (ps *Params) beginRecord() map[string]uint64 {
	prev := ps.recording
	ps.recording = make(map[string]uint64)
	return prev
}

// endRecord finishes collecting, restoring any outer recording.
func (ps *Params) endRecord(prev map[string]uint64) map[string]uint64 {
	rec := ps.recording
	ps.recording = prev
	return rec
}

// StringDoc returns a debug listing of all parameters.
func (ps *Params) StringDoc() string {
	b := &strings.Builder{}
	for _, kv := range ps.params.Order {
		pr := kv.Value
		src := "literal"
		if pr.IsResolver() {
			src = "resolver"
		}
		fmt.Fprintf(b, "%s%s: %s gen=%d value=%v\n", indent.Tabs(1), pr.Name, src, pr.generation, pr.value)
	}
	return b.String()
}

// ResolveAs resolves the named parameter and asserts its value to
// type T. A nil value yields the zero T, so optional parameters can
// be left unset-equivalent. A value of the wrong type is an
// [ErrConfig] error.
func ResolveAs[T any](ps *Params, name string) (T, error) {
	v, err := ps.Resolve(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return castParam[T](name, v)
}

// ValueAs returns the last resolved value of the named parameter,
// asserted to type T. See [Params.Value] for when resolvers run.
func ValueAs[T any](ps *Params, name string) (T, error) {
	v, err := ps.Value(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return castParam[T](name, v)
}

func castParam[T any](name string, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	tv, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: parameter %q has type %T, not %T", ErrConfig, name, v, zero)
	}
	return tv, nil
}

// sameFunc reports whether two resolvers are the same function value.
// Resolver identity, not output, is what makes a resolver set idempotent.
func sameFunc(a, b Resolver) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// equalValues compares two parameter values without panicking on
// non-comparable types: == for comparable types of the same dynamic
// type, reflect.DeepEqual otherwise.
func equalValues(a, b any) bool {
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
