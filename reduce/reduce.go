// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reduce provides a parallel fold over f32 device arrays,
// with a fusable combine hook.
package reduce

import (
	_ "embed"
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade"
	"github.com/hostedgpu/shade/wgslx"
)

//go:embed reduce.wgsl
var reduceWGSL string

const (
	threads   = 256
	maxGroups = 1024
)

// meta mirrors the shader's uniform Meta struct.
type meta struct {
	N     uint32
	Ident float32
	Pad1  uint32
	Pad2  uint32
}

// Reduce folds an f32 array to a single value on the device.
//
// Parameters:
//   - input: [shade.Span] of f32 values to fold, storage usage.
//   - output: optional [shade.Span] receiving the single result;
//     leave zero to have the unit allocate one.
//   - combine: optional [wgslx.Fragment] defining
//     fn combine(a: f32, b: f32) -> f32, replacing the default sum.
//   - identity: float32 identity element for combine, used to pad
//     idle lanes.
type Reduce struct {
	shade.UnitBase

	layout   *shade.Resource[*wgpu.BindGroupLayout]
	pipeline *shade.Resource[*wgpu.ComputePipeline]
	partials *shade.Resource[shade.Span]
	out      *shade.Resource[shade.Span]
	metaP    *shade.Resource[*wgpu.Buffer]
	metaF    *shade.Resource[*wgpu.Buffer]
	bindP    *shade.Resource[*wgpu.BindGroup]
	bindF    *shade.Resource[*wgpu.BindGroup]
}

// New returns a reduce unit on the given device. It folds by sum
// until a combine fragment is set.
func New(dev *shade.Device, name string) *Reduce {
	rd := &Reduce{}
	rd.Init(dev, name)
	rd.Set("output", shade.Span{})
	rd.Set("combine", wgslx.Fragment{})
	rd.Set("identity", float32(0))

	rd.layout = shade.Define(&rd.UnitBase, "layout",
		func() (*wgpu.BindGroupLayout, shade.Ownership, error) {
			lay, err := shade.NewBindGroupLayout(rd.Device(), rd.Label(),
				shade.StorageEntryLayout(0, wgpu.ShaderStageCompute, true),
				shade.StorageEntryLayout(1, wgpu.ShaderStageCompute, false),
				shade.UniformEntryLayout(2, wgpu.ShaderStageCompute, false),
			)
			return lay, shade.Internal, err
		},
		func(lay *wgpu.BindGroupLayout) { lay.Release() })

	rd.pipeline = shade.Define(&rd.UnitBase, "pipeline",
		func() (*wgpu.ComputePipeline, shade.Ownership, error) {
			fr, err := shade.ResolveAs[wgslx.Fragment](rd.Params(), "combine")
			if err != nil {
				return nil, shade.Internal, err
			}
			src := reduceWGSL
			if !fr.IsZero() {
				src, err = wgslx.Splice(reduceWGSL, "combine", fr)
				if err != nil {
					return nil, shade.Internal, fmt.Errorf("%w: %w", shade.ErrConfig, err)
				}
			}
			lay, err := rd.layout.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			md, err := shade.NewShaderModule(rd.Device(), rd.Label(), src)
			if err != nil {
				return nil, shade.Internal, err
			}
			defer md.Release()
			play, err := shade.NewPipelineLayout(rd.Device(), rd.Label(), lay)
			if err != nil {
				return nil, shade.Internal, err
			}
			defer play.Release()
			pl, err := shade.NewComputePipeline(rd.Device(), rd.Label(), play, md, "reduce")
			return pl, shade.Internal, err
		},
		func(pl *wgpu.ComputePipeline) { pl.Release() })

	rd.partials = shade.Define(&rd.UnitBase, "partials",
		func() (shade.Span, shade.Ownership, error) {
			in, err := shade.ResolveAs[shade.Span](rd.Params(), "input")
			if err != nil {
				return shade.Span{}, shade.Internal, err
			}
			if err := in.Compat(wgpu.BufferUsageStorage, 1); err != nil {
				return shade.Span{}, shade.Internal, err
			}
			groups := reduceGroups(in.N)
			if prior := rd.partials.Handle(); !prior.IsNil() && prior.N == groups {
				return prior, shade.Internal, nil
			}
			sp, err := shade.NewSpan(rd.Device(), rd.Label()+":partials", groups, 4, wgpu.BufferUsageStorage)
			return sp, shade.Internal, err
		},
		func(sp shade.Span) { sp.Release() })

	rd.out = shade.Define(&rd.UnitBase, "output",
		func() (shade.Span, shade.Ownership, error) {
			ext, err := shade.ResolveAs[shade.Span](rd.Params(), "output")
			if err != nil {
				return shade.Span{}, shade.Internal, err
			}
			if !ext.IsNil() {
				if err := ext.Compat(wgpu.BufferUsageStorage, 1); err != nil {
					return shade.Span{}, shade.Internal, err
				}
				return ext, shade.External, nil
			}
			if prior := rd.out.Handle(); !prior.IsNil() && rd.out.Ownership() == shade.Internal {
				return prior, shade.Internal, nil
			}
			sp, err := shade.NewSpan(rd.Device(), rd.Label()+":out", 1, 4,
				wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
			return sp, shade.Internal, err
		},
		func(sp shade.Span) { sp.Release() })

	rd.metaP = shade.Define(&rd.UnitBase, "metaPartial",
		func() (*wgpu.Buffer, shade.Ownership, error) {
			in, err := shade.ResolveAs[shade.Span](rd.Params(), "input")
			if err != nil {
				return nil, shade.Internal, err
			}
			ident, err := shade.ResolveAs[float32](rd.Params(), "identity")
			if err != nil {
				return nil, shade.Internal, err
			}
			return writeMeta(rd.Device(), rd.Label()+":metaPartial", rd.metaP.Handle(),
				meta{N: uint32(in.N), Ident: ident})
		},
		func(b *wgpu.Buffer) { b.Release() })

	rd.metaF = shade.Define(&rd.UnitBase, "metaFinal",
		func() (*wgpu.Buffer, shade.Ownership, error) {
			in, err := shade.ResolveAs[shade.Span](rd.Params(), "input")
			if err != nil {
				return nil, shade.Internal, err
			}
			ident, err := shade.ResolveAs[float32](rd.Params(), "identity")
			if err != nil {
				return nil, shade.Internal, err
			}
			return writeMeta(rd.Device(), rd.Label()+":metaFinal", rd.metaF.Handle(),
				meta{N: uint32(reduceGroups(in.N)), Ident: ident})
		},
		func(b *wgpu.Buffer) { b.Release() })

	rd.bindP = shade.Define(&rd.UnitBase, "bindPartial",
		func() (*wgpu.BindGroup, shade.Ownership, error) {
			in, err := shade.ResolveAs[shade.Span](rd.Params(), "input")
			if err != nil {
				return nil, shade.Internal, err
			}
			lay, err := rd.layout.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			parts, err := rd.partials.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			mb, err := rd.metaP.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			bg, err := shade.NewBindGroup(rd.Device(), rd.Label()+":partial", lay,
				shade.BufferEntry(0, in.Buffer),
				shade.BufferEntry(1, parts.Buffer),
				shade.BufferEntry(2, mb),
			)
			return bg, shade.Internal, err
		},
		func(bg *wgpu.BindGroup) { bg.Release() })

	rd.bindF = shade.Define(&rd.UnitBase, "bindFinal",
		func() (*wgpu.BindGroup, shade.Ownership, error) {
			if _, err := shade.ResolveAs[shade.Span](rd.Params(), "input"); err != nil {
				return nil, shade.Internal, err
			}
			lay, err := rd.layout.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			parts, err := rd.partials.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			out, err := rd.out.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			mb, err := rd.metaF.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			bg, err := shade.NewBindGroup(rd.Device(), rd.Label()+":final", lay,
				shade.BufferEntry(0, parts.Buffer),
				shade.BufferEntry(1, out.Buffer),
				shade.BufferEntry(2, mb),
			)
			return bg, shade.Internal, err
		},
		func(bg *wgpu.BindGroup) { bg.Release() })

	return rd
}

// Output returns the span holding the folded result.
// Valid after Commands.
func (rd *Reduce) Output() shade.Span {
	return rd.out.Handle()
}

// Read copies the result back to the host in its own submission,
// blocking until available.
func (rd *Reduce) Read() (float32, error) {
	res, err := shade.ReadSpan[float32](rd.Device(), rd.Output(), nil)
	if err != nil {
		return 0, err
	}
	return res[0], nil
}

// Commands resolves parameters, rebuilds anything stale, and appends
// the two fold dispatches to enc.
func (rd *Reduce) Commands(enc *wgpu.CommandEncoder) error {
	if err := rd.Start(); err != nil {
		return err
	}
	if err := rd.EnsureAll(); err != nil {
		return err
	}
	in, err := shade.ValueAs[shade.Span](rd.Params(), "input")
	if err != nil {
		return err
	}
	pl, err := rd.pipeline.Ensure()
	if err != nil {
		return err
	}
	bp, err := rd.bindP.Ensure()
	if err != nil {
		return err
	}
	bf, err := rd.bindF.Ensure()
	if err != nil {
		return err
	}
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(pl)
	pass.SetBindGroup(0, bp, nil)
	pass.DispatchWorkgroups(uint32(reduceGroups(in.N)), 1, 1)
	pass.SetBindGroup(0, bf, nil)
	pass.DispatchWorkgroups(1, 1, 1)
	pass.End()
	pass.Release()
	return nil
}

// reduceGroups returns the first-pass workgroup count for n elements:
// enough to cover n at one element per thread, capped so the partial
// array stays one workgroup's worth of final work.
func reduceGroups(n int) int {
	g := shade.Warps(n, threads)
	if g < 1 {
		g = 1
	}
	if g > maxGroups {
		g = maxGroups
	}
	return g
}

// writeMeta uploads m into prior if it exists, else into a new
// uniform buffer. Returning the same buffer keeps bind groups that
// reference it valid.
func writeMeta(dev *shade.Device, label string, prior *wgpu.Buffer, m meta) (*wgpu.Buffer, shade.Ownership, error) {
	buf := prior
	if buf == nil {
		var err error
		buf, err = dev.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: label,
			Size:  uint64(unsafe.Sizeof(m)),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, shade.Internal, err
		}
	}
	if err := dev.Queue.WriteBuffer(buf, 0, wgpu.ToBytes([]meta{m})); err != nil {
		return nil, shade.Internal, err
	}
	return buf, shade.Internal, nil
}
