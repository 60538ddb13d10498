// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bitonic provides an in-place bitonic sort of f32 device
// arrays, with a fusable key hook.
package bitonic

import (
	_ "embed"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade"
	"github.com/hostedgpu/shade/wgslx"
)

//go:embed bitonic.wgsl
var bitonicWGSL string

const threads = 256

// stepMeta mirrors the shader's uniform Meta struct: one
// compare-exchange step of the sorting network.
type stepMeta struct {
	K   uint32
	J   uint32
	N   uint32
	Pad uint32
}

// Sort orders an f32 array in place on the device. The array length
// must be a power of two.
//
// Parameters:
//   - input: [shade.Span] of f32 values to sort, storage usage.
//     Sorted in place; the unit never takes ownership.
//   - sortKey: optional [wgslx.Fragment] defining
//     fn sortKey(v: f32) -> f32, replacing the identity key.
//     Ordering is ascending by key.
type Sort struct {
	shade.UnitBase

	layout   *shade.Resource[*wgpu.BindGroupLayout]
	pipeline *shade.Resource[*wgpu.ComputePipeline]
	steps    *shade.Resource[*wgpu.Buffer]
	bind     *shade.Resource[*wgpu.BindGroup]

	stride    int
	stepBytes int
}

// New returns a sort unit on the given device.
func New(dev *shade.Device, name string) *Sort {
	st := &Sort{}
	st.Init(dev, name)
	st.Set("sortKey", wgslx.Fragment{})
	st.stride = dev.UniformAlign(16)

	st.layout = shade.Define(&st.UnitBase, "layout",
		func() (*wgpu.BindGroupLayout, shade.Ownership, error) {
			lay, err := shade.NewBindGroupLayout(st.Device(), st.Label(),
				shade.StorageEntryLayout(0, wgpu.ShaderStageCompute, false),
				shade.UniformEntryLayout(1, wgpu.ShaderStageCompute, true),
			)
			return lay, shade.Internal, err
		},
		func(lay *wgpu.BindGroupLayout) { lay.Release() })

	st.pipeline = shade.Define(&st.UnitBase, "pipeline",
		func() (*wgpu.ComputePipeline, shade.Ownership, error) {
			fr, err := shade.ResolveAs[wgslx.Fragment](st.Params(), "sortKey")
			if err != nil {
				return nil, shade.Internal, err
			}
			src := bitonicWGSL
			if !fr.IsZero() {
				src, err = wgslx.Splice(bitonicWGSL, "sortKey", fr)
				if err != nil {
					return nil, shade.Internal, fmt.Errorf("%w: %w", shade.ErrConfig, err)
				}
			}
			lay, err := st.layout.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			md, err := shade.NewShaderModule(st.Device(), st.Label(), src)
			if err != nil {
				return nil, shade.Internal, err
			}
			defer md.Release()
			play, err := shade.NewPipelineLayout(st.Device(), st.Label(), lay)
			if err != nil {
				return nil, shade.Internal, err
			}
			defer play.Release()
			pl, err := shade.NewComputePipeline(st.Device(), st.Label(), play, md, "bitonic_step")
			return pl, shade.Internal, err
		},
		func(pl *wgpu.ComputePipeline) { pl.Release() })

	st.steps = shade.Define(&st.UnitBase, "steps",
		func() (*wgpu.Buffer, shade.Ownership, error) {
			in, err := shade.ResolveAs[shade.Span](st.Params(), "input")
			if err != nil {
				return nil, shade.Internal, err
			}
			if err := in.Compat(wgpu.BufferUsageStorage, 1); err != nil {
				return nil, shade.Internal, err
			}
			if in.N&(in.N-1) != 0 {
				return nil, shade.Internal,
					fmt.Errorf("%w: length %d is not a power of two", shade.ErrIncompatible, in.N)
			}
			bytes := packSteps(bitonicSteps(in.N), st.stride)
			buf := st.steps.Handle()
			if buf == nil || st.stepBytes != len(bytes) {
				buf, err = st.Device().Device.CreateBuffer(&wgpu.BufferDescriptor{
					Label: st.Label() + ":steps",
					Size:  uint64(len(bytes)),
					Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
				})
				if err != nil {
					return nil, shade.Internal, err
				}
			}
			if err := st.Device().Queue.WriteBuffer(buf, 0, bytes); err != nil {
				return nil, shade.Internal, err
			}
			st.stepBytes = len(bytes)
			return buf, shade.Internal, nil
		},
		func(b *wgpu.Buffer) { b.Release() })

	st.bind = shade.Define(&st.UnitBase, "bind",
		func() (*wgpu.BindGroup, shade.Ownership, error) {
			in, err := shade.ResolveAs[shade.Span](st.Params(), "input")
			if err != nil {
				return nil, shade.Internal, err
			}
			lay, err := st.layout.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			sb, err := st.steps.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			bg, err := shade.NewBindGroup(st.Device(), st.Label(), lay,
				shade.BufferEntry(0, in.Buffer),
				shade.BufferEntrySized(1, sb, 16),
			)
			return bg, shade.Internal, err
		},
		func(bg *wgpu.BindGroup) { bg.Release() })

	return st
}

// Output returns the sorted span: the input itself, as the sort
// happens in place. Valid after Commands.
func (st *Sort) Output() shade.Span {
	sp, _ := shade.ValueAs[shade.Span](st.Params(), "input")
	return sp
}

// Commands resolves parameters, rebuilds anything stale, and appends
// one dispatch per sorting network step to enc.
func (st *Sort) Commands(enc *wgpu.CommandEncoder) error {
	if err := st.Start(); err != nil {
		return err
	}
	if err := st.EnsureAll(); err != nil {
		return err
	}
	in, err := shade.ValueAs[shade.Span](st.Params(), "input")
	if err != nil {
		return err
	}
	pl, err := st.pipeline.Ensure()
	if err != nil {
		return err
	}
	bg, err := st.bind.Ensure()
	if err != nil {
		return err
	}
	nsteps := len(bitonicSteps(in.N))
	groups := shade.Warps(in.N, threads)
	if groups < 1 {
		groups = 1
	}
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(pl)
	for si := 0; si < nsteps; si++ {
		pass.SetBindGroup(0, bg, []uint32{uint32(si * st.stride)})
		pass.DispatchWorkgroups(uint32(groups), 1, 1)
	}
	pass.End()
	pass.Release()
	return nil
}

// bitonicSteps returns the sorting network's (k, j) schedule for n
// elements, outer stride k doubling, inner stride j halving.
func bitonicSteps(n int) []stepMeta {
	var steps []stepMeta
	for k := 2; k <= n; k *= 2 {
		for j := k / 2; j >= 1; j /= 2 {
			steps = append(steps, stepMeta{K: uint32(k), J: uint32(j), N: uint32(n)})
		}
	}
	return steps
}

// packSteps lays the schedule out at the device's uniform offset
// stride, one step per slot. A single zeroed slot stands in when the
// schedule is empty so the buffer stays bindable.
func packSteps(steps []stepMeta, stride int) []byte {
	if len(steps) == 0 {
		return make([]byte, stride)
	}
	out := make([]byte, stride*len(steps))
	for i, sm := range steps {
		copy(out[i*stride:], wgpu.ToBytes([]stepMeta{sm}))
	}
	return out
}
