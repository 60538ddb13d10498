// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

import (
	"log/slog"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade/base/errors"
)

// Debug enables additional debug printing of unit configurations
// and resource states.
var Debug = false

// GPU represents the physical GPU hardware: the WebGPU instance,
// the selected adapter, and its limits, which carry the alignment
// factors units need for dynamic offsets.
type GPU struct {
	// Instance represents the WebGPU system.
	Instance *wgpu.Instance

	// Adapter is the selected physical GPU.
	Adapter *wgpu.Adapter

	// Limits are the adapter's supported limits.
	Limits wgpu.SupportedLimits
}

// NewGPU creates the WebGPU instance and selects an adapter.
// The compatibleSurface may be nil for compute-only use.
func NewGPU(compatibleSurface *wgpu.Surface) (*GPU, error) {
	gp := &GPU{}
	gp.Instance = wgpu.CreateInstance(nil)
	adapter, err := gp.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: compatibleSurface,
	})
	if errors.Log(err) != nil {
		return nil, err
	}
	gp.Adapter = adapter
	gp.Limits = adapter.GetLimits()
	if Debug {
		slog.Debug("shade.NewGPU", "MaxBufferSize", gp.Limits.Limits.MaxBufferSize,
			"MinUniformBufferOffsetAlignment", gp.Limits.Limits.MinUniformBufferOffsetAlignment)
	}
	return gp, nil
}

// NoDisplayGPU returns a GPU and Device configured for headless
// compute or offscreen rendering, with no display surface.
func NoDisplayGPU() (*GPU, *Device, error) {
	gp, err := NewGPU(nil)
	if err != nil {
		return nil, nil, err
	}
	dev, err := NewDevice(gp)
	return gp, dev, err
}

// Release releases the adapter and instance. Release all devices
// created from this GPU first.
func (gp *GPU) Release() {
	if gp.Adapter != nil {
		gp.Adapter.Release()
		gp.Adapter = nil
	}
	if gp.Instance != nil {
		gp.Instance.Release()
		gp.Instance = nil
	}
}
