// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scan provides an exclusive prefix sum over f32 device
// arrays.
package scan

import (
	_ "embed"
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade"
)

//go:embed scan.wgsl
var scanWGSL string

const (
	threads  = 256
	maxDimWG = 65535
)

type meta struct {
	N       uint32
	NBlocks uint32
	Pad1    uint32
	Pad2    uint32
}

// pipelines holds the three entry points compiled from the one
// module; they share a layout and rebuild together.
type pipelines struct {
	block *wgpu.ComputePipeline
	sums  *wgpu.ComputePipeline
	add   *wgpu.ComputePipeline
}

func (p pipelines) release() {
	p.block.Release()
	p.sums.Release()
	p.add.Release()
}

// Scan computes the exclusive prefix sum of an f32 array.
//
// Parameters:
//   - input: [shade.Span] of f32 values, storage usage.
//   - output: optional [shade.Span] receiving the scanned values,
//     at least input's length; leave zero to have the unit allocate.
type Scan struct {
	shade.UnitBase

	layout *shade.Resource[*wgpu.BindGroupLayout]
	pipes  *shade.Resource[pipelines]
	out    *shade.Resource[shade.Span]
	sums   *shade.Resource[shade.Span]
	metaB  *shade.Resource[*wgpu.Buffer]
	bind   *shade.Resource[*wgpu.BindGroup]
}

// New returns a prefix sum unit on the given device.
func New(dev *shade.Device, name string) *Scan {
	sc := &Scan{}
	sc.Init(dev, name)
	sc.Set("output", shade.Span{})

	sc.layout = shade.Define(&sc.UnitBase, "layout",
		func() (*wgpu.BindGroupLayout, shade.Ownership, error) {
			lay, err := shade.NewBindGroupLayout(sc.Device(), sc.Label(),
				shade.StorageEntryLayout(0, wgpu.ShaderStageCompute, true),
				shade.StorageEntryLayout(1, wgpu.ShaderStageCompute, false),
				shade.StorageEntryLayout(2, wgpu.ShaderStageCompute, false),
				shade.UniformEntryLayout(3, wgpu.ShaderStageCompute, false),
			)
			return lay, shade.Internal, err
		},
		func(lay *wgpu.BindGroupLayout) { lay.Release() })

	sc.pipes = shade.Define(&sc.UnitBase, "pipelines",
		func() (pipelines, shade.Ownership, error) {
			lay, err := sc.layout.Ensure()
			if err != nil {
				return pipelines{}, shade.Internal, err
			}
			md, err := shade.NewShaderModule(sc.Device(), sc.Label(), scanWGSL)
			if err != nil {
				return pipelines{}, shade.Internal, err
			}
			defer md.Release()
			play, err := shade.NewPipelineLayout(sc.Device(), sc.Label(), lay)
			if err != nil {
				return pipelines{}, shade.Internal, err
			}
			defer play.Release()
			var pls pipelines
			for _, st := range []struct {
				entry string
				dst   **wgpu.ComputePipeline
			}{
				{"scan_block", &pls.block},
				{"scan_sums", &pls.sums},
				{"scan_add", &pls.add},
			} {
				pl, err := shade.NewComputePipeline(sc.Device(), sc.Label()+":"+st.entry, play, md, st.entry)
				if err != nil {
					return pipelines{}, shade.Internal, err
				}
				*st.dst = pl
			}
			return pls, shade.Internal, nil
		},
		func(pls pipelines) { pls.release() })

	sc.out = shade.Define(&sc.UnitBase, "output",
		func() (shade.Span, shade.Ownership, error) {
			in, err := shade.ResolveAs[shade.Span](sc.Params(), "input")
			if err != nil {
				return shade.Span{}, shade.Internal, err
			}
			if err := in.Compat(wgpu.BufferUsageStorage, 1); err != nil {
				return shade.Span{}, shade.Internal, err
			}
			ext, err := shade.ResolveAs[shade.Span](sc.Params(), "output")
			if err != nil {
				return shade.Span{}, shade.Internal, err
			}
			if !ext.IsNil() {
				if err := ext.Compat(wgpu.BufferUsageStorage, in.N); err != nil {
					return shade.Span{}, shade.Internal, err
				}
				return ext, shade.External, nil
			}
			if prior := sc.out.Handle(); !prior.IsNil() && prior.N == in.N && sc.out.Ownership() == shade.Internal {
				return prior, shade.Internal, nil
			}
			sp, err := shade.NewSpan(sc.Device(), sc.Label()+":out", in.N, 4,
				wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
			return sp, shade.Internal, err
		},
		func(sp shade.Span) { sp.Release() })

	sc.sums = shade.Define(&sc.UnitBase, "sums",
		func() (shade.Span, shade.Ownership, error) {
			in, err := shade.ResolveAs[shade.Span](sc.Params(), "input")
			if err != nil {
				return shade.Span{}, shade.Internal, err
			}
			blocks := shade.Warps(in.N, threads)
			if blocks > maxDimWG {
				return shade.Span{}, shade.Internal,
					fmt.Errorf("%w: %d elements exceeds one dispatch (max %d)",
						shade.ErrIncompatible, in.N, threads*maxDimWG)
			}
			if blocks < 1 {
				blocks = 1
			}
			if prior := sc.sums.Handle(); !prior.IsNil() && prior.N == blocks {
				return prior, shade.Internal, nil
			}
			sp, err := shade.NewSpan(sc.Device(), sc.Label()+":sums", blocks, 4, wgpu.BufferUsageStorage)
			return sp, shade.Internal, err
		},
		func(sp shade.Span) { sp.Release() })

	sc.metaB = shade.Define(&sc.UnitBase, "meta",
		func() (*wgpu.Buffer, shade.Ownership, error) {
			in, err := shade.ResolveAs[shade.Span](sc.Params(), "input")
			if err != nil {
				return nil, shade.Internal, err
			}
			blocks := shade.Warps(in.N, threads)
			if blocks < 1 {
				blocks = 1
			}
			m := meta{N: uint32(in.N), NBlocks: uint32(blocks)}
			buf := sc.metaB.Handle()
			if buf == nil {
				buf, err = sc.Device().Device.CreateBuffer(&wgpu.BufferDescriptor{
					Label: sc.Label() + ":meta",
					Size:  uint64(unsafe.Sizeof(m)),
					Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
				})
				if err != nil {
					return nil, shade.Internal, err
				}
			}
			if err := sc.Device().Queue.WriteBuffer(buf, 0, wgpu.ToBytes([]meta{m})); err != nil {
				return nil, shade.Internal, err
			}
			return buf, shade.Internal, nil
		},
		func(b *wgpu.Buffer) { b.Release() })

	sc.bind = shade.Define(&sc.UnitBase, "bind",
		func() (*wgpu.BindGroup, shade.Ownership, error) {
			in, err := shade.ResolveAs[shade.Span](sc.Params(), "input")
			if err != nil {
				return nil, shade.Internal, err
			}
			if _, err := shade.ResolveAs[shade.Span](sc.Params(), "output"); err != nil {
				return nil, shade.Internal, err
			}
			lay, err := sc.layout.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			out, err := sc.out.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			sums, err := sc.sums.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			mb, err := sc.metaB.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			bg, err := shade.NewBindGroup(sc.Device(), sc.Label(), lay,
				shade.BufferEntry(0, in.Buffer),
				shade.BufferEntry(1, out.Buffer),
				shade.BufferEntry(2, sums.Buffer),
				shade.BufferEntry(3, mb),
			)
			return bg, shade.Internal, err
		},
		func(bg *wgpu.BindGroup) { bg.Release() })

	return sc
}

// Output returns the span holding the scanned values.
// Valid after Commands.
func (sc *Scan) Output() shade.Span {
	return sc.out.Handle()
}

// Read copies the scanned values back to the host in its own
// submission, blocking until available.
func (sc *Scan) Read(dst []float32) ([]float32, error) {
	return shade.ReadSpan(sc.Device(), sc.Output(), dst)
}

// Commands resolves parameters, rebuilds anything stale, and appends
// the three scan dispatches to enc.
func (sc *Scan) Commands(enc *wgpu.CommandEncoder) error {
	if err := sc.Start(); err != nil {
		return err
	}
	if err := sc.EnsureAll(); err != nil {
		return err
	}
	in, err := shade.ValueAs[shade.Span](sc.Params(), "input")
	if err != nil {
		return err
	}
	pls, err := sc.pipes.Ensure()
	if err != nil {
		return err
	}
	bg, err := sc.bind.Ensure()
	if err != nil {
		return err
	}
	groups := shade.Warps(in.N, threads)
	if groups < 1 {
		groups = 1
	}
	pass := enc.BeginComputePass(nil)
	pass.SetBindGroup(0, bg, nil)
	pass.SetPipeline(pls.block)
	pass.DispatchWorkgroups(uint32(groups), 1, 1)
	pass.SetPipeline(pls.sums)
	pass.DispatchWorkgroups(1, 1, 1)
	pass.SetPipeline(pls.add)
	pass.DispatchWorkgroups(uint32(groups), 1, 1)
	pass.End()
	pass.Release()
	return nil
}
