// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

import (
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
)

// NewShaderModule compiles WGSL source into a shader module.
// Compilation failures are [ErrConfig] errors: a unit whose spliced
// fragment fails to compile reports this from the rebuild inside its
// next Commands call, leaving prior state intact.
func NewShaderModule(dev *Device, label, src string) (*wgpu.ShaderModule, error) {
	md, err := dev.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: shader %q: %w", ErrConfig, label, err)
	}
	return md, nil
}

// NewComputePipeline creates a compute pipeline for one entry point
// of the given module.
func NewComputePipeline(dev *Device, label string, layout *wgpu.PipelineLayout, module *wgpu.ShaderModule, entry string) (*wgpu.ComputePipeline, error) {
	cp, err := dev.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label,
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: entry,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pipeline %q: %w", ErrConfig, label, err)
	}
	return cp, nil
}

// NewRenderPipeline creates a render pipeline with no vertex buffers,
// for fullscreen-style passes whose vertex shader synthesizes
// positions from the vertex index.
func NewRenderPipeline(dev *Device, label string, layout *wgpu.PipelineLayout, module *wgpu.ShaderModule, vsEntry, fsEntry string, format wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	rp, err := dev.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: vsEntry,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: fsEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pipeline %q: %w", ErrConfig, label, err)
	}
	return rp, nil
}

// NewBindGroupLayout creates a bind group layout from the given
// entries, typically built with [StorageEntryLayout] and
// [UniformEntryLayout].
func NewBindGroupLayout(dev *Device, label string, entries ...wgpu.BindGroupLayoutEntry) (*wgpu.BindGroupLayout, error) {
	return dev.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
}

// NewPipelineLayout creates a pipeline layout over the given bind
// group layouts.
func NewPipelineLayout(dev *Device, label string, layouts ...*wgpu.BindGroupLayout) (*wgpu.PipelineLayout, error) {
	return dev.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: layouts,
	})
}

// NewBindGroup creates a bind group on the given layout from entries
// built with [BufferEntry] and [BufferEntrySized].
func NewBindGroup(dev *Device, label string, layout *wgpu.BindGroupLayout, entries ...wgpu.BindGroupEntry) (*wgpu.BindGroup, error) {
	return dev.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
}

// StorageEntryLayout returns a bind group layout entry for a storage
// buffer at the given binding.
func StorageEntryLayout(binding int, vis wgpu.ShaderStage, readOnly bool) wgpu.BindGroupLayoutEntry {
	tp := wgpu.BufferBindingTypeStorage
	if readOnly {
		tp = wgpu.BufferBindingTypeReadOnlyStorage
	}
	return wgpu.BindGroupLayoutEntry{
		Binding:    uint32(binding),
		Visibility: vis,
		Buffer: wgpu.BufferBindingLayout{
			Type: tp,
		},
	}
}

// UniformEntryLayout returns a bind group layout entry for a uniform
// buffer at the given binding. Dynamic uniforms are bound once and
// offset per dispatch via SetBindGroup dynamic offsets.
func UniformEntryLayout(binding int, vis wgpu.ShaderStage, dynamic bool) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    uint32(binding),
		Visibility: vis,
		Buffer: wgpu.BufferBindingLayout{
			Type:             wgpu.BufferBindingTypeUniform,
			HasDynamicOffset: dynamic,
		},
	}
}

// BufferEntry returns a bind group entry binding the whole buffer.
func BufferEntry(binding int, buf *wgpu.Buffer) wgpu.BindGroupEntry {
	return wgpu.BindGroupEntry{
		Binding: uint32(binding),
		Buffer:  buf,
		Offset:  0,
		Size:    wgpu.WholeSize,
	}
}

// BufferEntrySized returns a bind group entry binding size bytes of
// the buffer from offset 0. For dynamic offset bindings this is the
// size of one element, not the whole buffer.
func BufferEntrySized(binding int, buf *wgpu.Buffer, size int) wgpu.BindGroupEntry {
	return wgpu.BindGroupEntry{
		Binding: uint32(binding),
		Buffer:  buf,
		Offset:  0,
		Size:    uint64(size),
	}
}

// Warps returns the number of warps (workgroups of compute threads)
// sufficient to compute n elements, given the number of threads per
// this dimension: Ceil(n / threads).
func Warps(n, threads int) int {
	return int(math.Ceil(float64(n) / float64(threads)))
}

// MemSizeAlign returns the size aligned according to align byte
// increments, e.g., if align = 16 and size = 12, it returns 16.
func MemSizeAlign(size, align int) int {
	if size%align == 0 {
		return size
	}
	nb := size / align
	return (nb + 1) * align
}
