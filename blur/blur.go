// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package blur provides a separable gaussian blur over
// single-channel f32 images in device buffers.
package blur

import (
	_ "embed"
	"fmt"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade"
)

//go:embed blur.wgsl
var blurWGSL string

const (
	tile = 16

	// MaxRadius is the largest supported kernel radius, set by the
	// uniform weight packing.
	MaxRadius = 15
)

type meta struct {
	Width   uint32
	Height  uint32
	Radius  uint32
	Pad     uint32
	Weights [16]float32
}

type pipelines struct {
	h *wgpu.ComputePipeline
	v *wgpu.ComputePipeline
}

func (p pipelines) release() {
	p.h.Release()
	p.v.Release()
}

// Blur applies a gaussian blur to a row-major single-channel f32
// image, horizontal pass into an internal intermediate, vertical
// pass into the output.
//
// Parameters:
//   - input: [shade.Span] of width*height f32 samples, storage usage.
//   - width, height: int image dimensions.
//   - radius: int kernel radius, 0..MaxRadius.
//   - sigma: float32 gaussian sigma; 0 derives it from the radius.
//   - output: optional [shade.Span] at least width*height long; leave
//     zero to have the unit allocate.
type Blur struct {
	shade.UnitBase

	layout *shade.Resource[*wgpu.BindGroupLayout]
	pipes  *shade.Resource[pipelines]
	tmp    *shade.Resource[shade.Span]
	out    *shade.Resource[shade.Span]
	metaB  *shade.Resource[*wgpu.Buffer]
	bindH  *shade.Resource[*wgpu.BindGroup]
	bindV  *shade.Resource[*wgpu.BindGroup]
}

// New returns a blur unit on the given device with radius 3 and a
// derived sigma.
func New(dev *shade.Device, name string) *Blur {
	bl := &Blur{}
	bl.Init(dev, name)
	bl.Set("output", shade.Span{})
	bl.Set("radius", 3)
	bl.Set("sigma", float32(0))

	bl.layout = shade.Define(&bl.UnitBase, "layout",
		func() (*wgpu.BindGroupLayout, shade.Ownership, error) {
			lay, err := shade.NewBindGroupLayout(bl.Device(), bl.Label(),
				shade.StorageEntryLayout(0, wgpu.ShaderStageCompute, true),
				shade.StorageEntryLayout(1, wgpu.ShaderStageCompute, false),
				shade.UniformEntryLayout(2, wgpu.ShaderStageCompute, false),
			)
			return lay, shade.Internal, err
		},
		func(lay *wgpu.BindGroupLayout) { lay.Release() })

	bl.pipes = shade.Define(&bl.UnitBase, "pipelines",
		func() (pipelines, shade.Ownership, error) {
			lay, err := bl.layout.Ensure()
			if err != nil {
				return pipelines{}, shade.Internal, err
			}
			md, err := shade.NewShaderModule(bl.Device(), bl.Label(), blurWGSL)
			if err != nil {
				return pipelines{}, shade.Internal, err
			}
			defer md.Release()
			play, err := shade.NewPipelineLayout(bl.Device(), bl.Label(), lay)
			if err != nil {
				return pipelines{}, shade.Internal, err
			}
			defer play.Release()
			var pls pipelines
			if pls.h, err = shade.NewComputePipeline(bl.Device(), bl.Label()+":h", play, md, "blur_h"); err != nil {
				return pipelines{}, shade.Internal, err
			}
			if pls.v, err = shade.NewComputePipeline(bl.Device(), bl.Label()+":v", play, md, "blur_v"); err != nil {
				pls.h.Release()
				return pipelines{}, shade.Internal, err
			}
			return pls, shade.Internal, nil
		},
		func(pls pipelines) { pls.release() })

	bl.tmp = shade.Define(&bl.UnitBase, "intermediate",
		func() (shade.Span, shade.Ownership, error) {
			w, h, err := bl.dims()
			if err != nil {
				return shade.Span{}, shade.Internal, err
			}
			if prior := bl.tmp.Handle(); !prior.IsNil() && prior.N == w*h {
				return prior, shade.Internal, nil
			}
			sp, err := shade.NewSpan(bl.Device(), bl.Label()+":tmp", w*h, 4, wgpu.BufferUsageStorage)
			return sp, shade.Internal, err
		},
		func(sp shade.Span) { sp.Release() })

	bl.out = shade.Define(&bl.UnitBase, "output",
		func() (shade.Span, shade.Ownership, error) {
			w, h, err := bl.dims()
			if err != nil {
				return shade.Span{}, shade.Internal, err
			}
			ext, err := shade.ResolveAs[shade.Span](bl.Params(), "output")
			if err != nil {
				return shade.Span{}, shade.Internal, err
			}
			if !ext.IsNil() {
				if err := ext.Compat(wgpu.BufferUsageStorage, w*h); err != nil {
					return shade.Span{}, shade.Internal, err
				}
				return ext, shade.External, nil
			}
			if prior := bl.out.Handle(); !prior.IsNil() && prior.N == w*h && bl.out.Ownership() == shade.Internal {
				return prior, shade.Internal, nil
			}
			sp, err := shade.NewSpan(bl.Device(), bl.Label()+":out", w*h, 4,
				wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
			return sp, shade.Internal, err
		},
		func(sp shade.Span) { sp.Release() })

	bl.metaB = shade.Define(&bl.UnitBase, "meta",
		func() (*wgpu.Buffer, shade.Ownership, error) {
			w, h, err := bl.dims()
			if err != nil {
				return nil, shade.Internal, err
			}
			radius, err := shade.ResolveAs[int](bl.Params(), "radius")
			if err != nil {
				return nil, shade.Internal, err
			}
			sigma, err := shade.ResolveAs[float32](bl.Params(), "sigma")
			if err != nil {
				return nil, shade.Internal, err
			}
			if radius < 0 || radius > MaxRadius {
				return nil, shade.Internal,
					fmt.Errorf("%w: radius %d out of range 0..%d", shade.ErrConfig, radius, MaxRadius)
			}
			m := meta{
				Width:   uint32(w),
				Height:  uint32(h),
				Radius:  uint32(radius),
				Weights: gaussWeights(radius, sigma),
			}
			buf := bl.metaB.Handle()
			if buf == nil {
				buf, err = bl.Device().Device.CreateBuffer(&wgpu.BufferDescriptor{
					Label: bl.Label() + ":meta",
					Size:  uint64(unsafe.Sizeof(m)),
					Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
				})
				if err != nil {
					return nil, shade.Internal, err
				}
			}
			if err := bl.Device().Queue.WriteBuffer(buf, 0, wgpu.ToBytes([]meta{m})); err != nil {
				return nil, shade.Internal, err
			}
			return buf, shade.Internal, nil
		},
		func(b *wgpu.Buffer) { b.Release() })

	bl.bindH = shade.Define(&bl.UnitBase, "bindH",
		func() (*wgpu.BindGroup, shade.Ownership, error) {
			w, h, err := bl.dims()
			if err != nil {
				return nil, shade.Internal, err
			}
			in, err := shade.ResolveAs[shade.Span](bl.Params(), "input")
			if err != nil {
				return nil, shade.Internal, err
			}
			if err := in.Compat(wgpu.BufferUsageStorage, w*h); err != nil {
				return nil, shade.Internal, err
			}
			lay, err := bl.layout.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			tmp, err := bl.tmp.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			mb, err := bl.metaB.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			bg, err := shade.NewBindGroup(bl.Device(), bl.Label()+":h", lay,
				shade.BufferEntry(0, in.Buffer),
				shade.BufferEntry(1, tmp.Buffer),
				shade.BufferEntry(2, mb),
			)
			return bg, shade.Internal, err
		},
		func(bg *wgpu.BindGroup) { bg.Release() })

	bl.bindV = shade.Define(&bl.UnitBase, "bindV",
		func() (*wgpu.BindGroup, shade.Ownership, error) {
			if _, _, err := bl.dims(); err != nil {
				return nil, shade.Internal, err
			}
			if _, err := shade.ResolveAs[shade.Span](bl.Params(), "output"); err != nil {
				return nil, shade.Internal, err
			}
			lay, err := bl.layout.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			tmp, err := bl.tmp.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			out, err := bl.out.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			mb, err := bl.metaB.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			bg, err := shade.NewBindGroup(bl.Device(), bl.Label()+":v", lay,
				shade.BufferEntry(0, tmp.Buffer),
				shade.BufferEntry(1, out.Buffer),
				shade.BufferEntry(2, mb),
			)
			return bg, shade.Internal, err
		},
		func(bg *wgpu.BindGroup) { bg.Release() })

	return bl
}

// dims resolves and validates the image dimensions.
func (bl *Blur) dims() (w, h int, err error) {
	if w, err = shade.ResolveAs[int](bl.Params(), "width"); err != nil {
		return 0, 0, err
	}
	if h, err = shade.ResolveAs[int](bl.Params(), "height"); err != nil {
		return 0, 0, err
	}
	if w < 1 || h < 1 {
		return 0, 0, fmt.Errorf("%w: image %dx%d", shade.ErrConfig, w, h)
	}
	return w, h, nil
}

// Output returns the span holding the blurred image.
// Valid after Commands.
func (bl *Blur) Output() shade.Span {
	return bl.out.Handle()
}

// Read copies the blurred image back to the host in its own
// submission, blocking until available.
func (bl *Blur) Read(dst []float32) ([]float32, error) {
	return shade.ReadSpan(bl.Device(), bl.Output(), dst)
}

// Commands resolves parameters, rebuilds anything stale, and appends
// the horizontal and vertical blur dispatches to enc.
func (bl *Blur) Commands(enc *wgpu.CommandEncoder) error {
	if err := bl.Start(); err != nil {
		return err
	}
	if err := bl.EnsureAll(); err != nil {
		return err
	}
	w, h, err := bl.dims()
	if err != nil {
		return err
	}
	pls, err := bl.pipes.Ensure()
	if err != nil {
		return err
	}
	bh, err := bl.bindH.Ensure()
	if err != nil {
		return err
	}
	bv, err := bl.bindV.Ensure()
	if err != nil {
		return err
	}
	gx := uint32(shade.Warps(w, tile))
	gy := uint32(shade.Warps(h, tile))
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(pls.h)
	pass.SetBindGroup(0, bh, nil)
	pass.DispatchWorkgroups(gx, gy, 1)
	pass.SetPipeline(pls.v)
	pass.SetBindGroup(0, bv, nil)
	pass.DispatchWorkgroups(gx, gy, 1)
	pass.End()
	pass.Release()
	return nil
}

// gaussWeights returns the normalized half-kernel: weight 0 is the
// center tap, weights 1..radius are mirrored by the shader.
func gaussWeights(radius int, sigma float32) [16]float32 {
	var ws [16]float32
	if radius < 0 {
		radius = 0
	}
	if radius > MaxRadius {
		radius = MaxRadius
	}
	if sigma <= 0 {
		sigma = math32.Max(float32(radius)/2, 0.5)
	}
	sum := float32(0)
	for t := 0; t <= radius; t++ {
		w := math32.Exp(-float32(t*t) / (2 * sigma * sigma))
		ws[t] = w
		if t == 0 {
			sum += w
		} else {
			sum += 2 * w
		}
	}
	for t := 0; t <= radius; t++ {
		ws[t] /= sum
	}
	return ws
}
