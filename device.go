// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade/base/errors"
)

// Device holds the logical device and its queue. Units sharing
// resources must share a Device.
type Device struct {
	// Device is the logical WebGPU device.
	Device *wgpu.Device

	// Queue is the device's command queue.
	Queue *wgpu.Queue

	// Limits are the limits the device was created with. Units use
	// these for offset alignment and size caps.
	Limits wgpu.Limits
}

// NewDevice requests a new logical device from the given GPU,
// with the WebGPU default limits.
func NewDevice(gp *GPU) (*Device, error) {
	limits := wgpu.DefaultLimits()
	wd, err := gp.Adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "shade.Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if errors.Log(err) != nil {
		return nil, err
	}
	return &Device{Device: wd, Queue: wd.GetQueue(), Limits: limits}, nil
}

// UniformAlign returns size aligned up to the device's minimum
// uniform buffer offset alignment, the stride for dynamic offset
// uniform arrays.
func (dv *Device) UniformAlign(size int) int {
	return MemSizeAlign(size, int(dv.Limits.MinUniformBufferOffsetAlignment))
}

// WaitDone blocks until the device is done with all submitted work.
func (dv *Device) WaitDone() {
	dv.Device.Poll(true, nil)
}

// Release releases the device. Destroy all units using it first.
func (dv *Device) Release() {
	if dv.Device == nil {
		return
	}
	dv.WaitDone()
	dv.Device.Release()
	dv.Device = nil
	dv.Queue = nil
}
