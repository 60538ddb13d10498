// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gradient provides a fullscreen render unit shading each
// pixel from its uv coordinate, with a fusable pixel hook.
package gradient

import (
	_ "embed"
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade"
	"github.com/hostedgpu/shade/wgslx"
)

//go:embed gradient.wgsl
var gradientWGSL string

// colors mirrors the shader's uniform Colors struct.
type colors struct {
	A [4]float32
	B [4]float32
}

// frame is a render target: the texture is nil when the view was
// supplied by the caller.
type frame struct {
	tex  *wgpu.Texture
	view *wgpu.TextureView
}

func (fr frame) release() {
	if fr.view != nil {
		fr.view.Release()
	}
	if fr.tex != nil {
		fr.tex.Release()
	}
}

// Gradient renders a fullscreen triangle into a color target,
// shading each pixel through the shadePixel hook. The default hook
// blends colorA to colorB down the image.
//
// Parameters:
//   - width, height: int target size in pixels.
//   - colorA, colorB: [4]float32 RGBA endpoints for the default hook.
//   - shadePixel: optional [wgslx.Fragment] defining
//     fn shadePixel(uv: vec2<f32>) -> vec4<f32>.
//   - target: optional *wgpu.TextureView to render into; leave nil to
//     have the unit allocate an offscreen texture.
//   - format: wgpu.TextureFormat of the target.
type Gradient struct {
	shade.UnitBase

	layout   *shade.Resource[*wgpu.BindGroupLayout]
	pipeline *shade.Resource[*wgpu.RenderPipeline]
	colorsB  *shade.Resource[*wgpu.Buffer]
	target   *shade.Resource[frame]
	bind     *shade.Resource[*wgpu.BindGroup]
}

// New returns a gradient unit on the given device, rendering
// black to white into an RGBA8 offscreen target until configured.
func New(dev *shade.Device, name string) *Gradient {
	gr := &Gradient{}
	gr.Init(dev, name)
	gr.Set("colorA", [4]float32{0, 0, 0, 1})
	gr.Set("colorB", [4]float32{1, 1, 1, 1})
	gr.Set("shadePixel", wgslx.Fragment{})
	gr.Set("target", (*wgpu.TextureView)(nil))
	gr.Set("format", wgpu.TextureFormatRGBA8Unorm)

	gr.layout = shade.Define(&gr.UnitBase, "layout",
		func() (*wgpu.BindGroupLayout, shade.Ownership, error) {
			lay, err := shade.NewBindGroupLayout(gr.Device(), gr.Label(),
				shade.UniformEntryLayout(0, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, false),
			)
			return lay, shade.Internal, err
		},
		func(lay *wgpu.BindGroupLayout) { lay.Release() })

	gr.pipeline = shade.Define(&gr.UnitBase, "pipeline",
		func() (*wgpu.RenderPipeline, shade.Ownership, error) {
			fr, err := shade.ResolveAs[wgslx.Fragment](gr.Params(), "shadePixel")
			if err != nil {
				return nil, shade.Internal, err
			}
			format, err := shade.ResolveAs[wgpu.TextureFormat](gr.Params(), "format")
			if err != nil {
				return nil, shade.Internal, err
			}
			src := gradientWGSL
			if !fr.IsZero() {
				src, err = wgslx.Splice(gradientWGSL, "shadePixel", fr)
				if err != nil {
					return nil, shade.Internal, fmt.Errorf("%w: %w", shade.ErrConfig, err)
				}
			}
			lay, err := gr.layout.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			md, err := shade.NewShaderModule(gr.Device(), gr.Label(), src)
			if err != nil {
				return nil, shade.Internal, err
			}
			defer md.Release()
			play, err := shade.NewPipelineLayout(gr.Device(), gr.Label(), lay)
			if err != nil {
				return nil, shade.Internal, err
			}
			defer play.Release()
			pl, err := shade.NewRenderPipeline(gr.Device(), gr.Label(), play, md, "vs_main", "fs_main", format)
			return pl, shade.Internal, err
		},
		func(pl *wgpu.RenderPipeline) { pl.Release() })

	gr.colorsB = shade.Define(&gr.UnitBase, "colors",
		func() (*wgpu.Buffer, shade.Ownership, error) {
			ca, err := shade.ResolveAs[[4]float32](gr.Params(), "colorA")
			if err != nil {
				return nil, shade.Internal, err
			}
			cb, err := shade.ResolveAs[[4]float32](gr.Params(), "colorB")
			if err != nil {
				return nil, shade.Internal, err
			}
			m := colors{A: ca, B: cb}
			buf := gr.colorsB.Handle()
			if buf == nil {
				buf, err = gr.Device().Device.CreateBuffer(&wgpu.BufferDescriptor{
					Label: gr.Label() + ":colors",
					Size:  uint64(unsafe.Sizeof(m)),
					Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
				})
				if err != nil {
					return nil, shade.Internal, err
				}
			}
			if err := gr.Device().Queue.WriteBuffer(buf, 0, wgpu.ToBytes([]colors{m})); err != nil {
				return nil, shade.Internal, err
			}
			return buf, shade.Internal, nil
		},
		func(b *wgpu.Buffer) { b.Release() })

	gr.target = shade.Define(&gr.UnitBase, "target",
		func() (frame, shade.Ownership, error) {
			w, h, err := gr.dims()
			if err != nil {
				return frame{}, shade.Internal, err
			}
			ext, err := shade.ResolveAs[*wgpu.TextureView](gr.Params(), "target")
			if err != nil {
				return frame{}, shade.Internal, err
			}
			if ext != nil {
				return frame{view: ext}, shade.External, nil
			}
			format, err := shade.ResolveAs[wgpu.TextureFormat](gr.Params(), "format")
			if err != nil {
				return frame{}, shade.Internal, err
			}
			tex, err := gr.Device().Device.CreateTexture(&wgpu.TextureDescriptor{
				Label: gr.Label(),
				Size: wgpu.Extent3D{
					Width:              uint32(w),
					Height:             uint32(h),
					DepthOrArrayLayers: 1,
				},
				MipLevelCount: 1,
				SampleCount:   1,
				Dimension:     wgpu.TextureDimension2D,
				Format:        format,
				Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
			})
			if err != nil {
				return frame{}, shade.Internal, err
			}
			view, err := tex.CreateView(nil)
			if err != nil {
				tex.Release()
				return frame{}, shade.Internal, err
			}
			return frame{tex: tex, view: view}, shade.Internal, nil
		},
		func(fr frame) { fr.release() })

	gr.bind = shade.Define(&gr.UnitBase, "bind",
		func() (*wgpu.BindGroup, shade.Ownership, error) {
			lay, err := gr.layout.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			cb, err := gr.colorsB.Ensure()
			if err != nil {
				return nil, shade.Internal, err
			}
			bg, err := shade.NewBindGroup(gr.Device(), gr.Label(), lay,
				shade.BufferEntry(0, cb),
			)
			return bg, shade.Internal, err
		},
		func(bg *wgpu.BindGroup) { bg.Release() })

	return gr
}

func (gr *Gradient) dims() (w, h int, err error) {
	if w, err = shade.ResolveAs[int](gr.Params(), "width"); err != nil {
		return 0, 0, err
	}
	if h, err = shade.ResolveAs[int](gr.Params(), "height"); err != nil {
		return 0, 0, err
	}
	if w < 1 || h < 1 {
		return 0, 0, fmt.Errorf("%w: target %dx%d", shade.ErrConfig, w, h)
	}
	return w, h, nil
}

// View returns the texture view that was rendered into.
// Valid after Commands.
func (gr *Gradient) View() *wgpu.TextureView {
	return gr.target.Handle().view
}

// Commands resolves parameters, rebuilds anything stale, and appends
// the fullscreen render pass to enc.
func (gr *Gradient) Commands(enc *wgpu.CommandEncoder) error {
	if err := gr.Start(); err != nil {
		return err
	}
	if err := gr.EnsureAll(); err != nil {
		return err
	}
	pl, err := gr.pipeline.Ensure()
	if err != nil {
		return err
	}
	tg, err := gr.target.Ensure()
	if err != nil {
		return err
	}
	bg, err := gr.bind.Ensure()
	if err != nil {
		return err
	}
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       tg.view,
			LoadOp:     wgpu.LoadOpClear,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			StoreOp:    wgpu.StoreOpStore,
		}},
	})
	pass.SetPipeline(pl)
	pass.SetBindGroup(0, bg, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()
	return nil
}

// Read copies the rendered pixels back to the host, 4 bytes per
// pixel rows packed to width, in its own submission. It needs the
// internal target; reading a caller-supplied view is not possible
// from here.
func (gr *Gradient) Read() ([]byte, error) {
	tg := gr.target.Handle()
	if tg.tex == nil {
		return nil, fmt.Errorf("%w: external target", shade.ErrIncompatible)
	}
	w, h, err := gr.dims()
	if err != nil {
		return nil, err
	}
	rowBytes := shade.MemSizeAlign(w*4, 256)
	sz := rowBytes * h
	stage, err := gr.Device().Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: gr.Label() + ":readback",
		Size:  uint64(sz),
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, err
	}
	defer stage.Release()
	enc, err := gr.Device().Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	enc.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Aspect:   wgpu.TextureAspectAll,
			Texture:  tg.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
		},
		&wgpu.ImageCopyBuffer{
			Buffer: stage,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(rowBytes),
				RowsPerImage: uint32(h),
			},
		},
		&wgpu.Extent3D{
			Width:              uint32(w),
			Height:             uint32(h),
			DepthOrArrayLayers: 1,
		},
	)
	cmd, err := enc.Finish(nil)
	if err != nil {
		enc.Release()
		return nil, err
	}
	gr.Device().Queue.Submit(cmd)
	cmd.Release()
	enc.Release()
	if err := shade.BufferReadSync(gr.Device(), sz, stage); err != nil {
		return nil, err
	}
	raw := stage.GetMappedRange(0, uint(sz))
	pix := make([]byte, w*4*h)
	for y := 0; y < h; y++ {
		copy(pix[y*w*4:(y+1)*w*4], raw[y*rowBytes:])
	}
	stage.Unmap()
	return pix, nil
}
