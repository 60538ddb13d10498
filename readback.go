// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/hostedgpu/shade/base/errors"
	"github.com/hostedgpu/shade/base/slicesx"
)

// note: WriteBuffer through the queue is the preferred write path,
// so only reading back needs the map machinery here.

// BufferMapAsyncError returns an error if the map status is not success.
func BufferMapAsyncError(status wgpu.BufferMapAsyncStatus) error {
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return errors.New("shade: BufferMapAsync was not successful: " + status.String())
	}
	return nil
}

// BufferReadSync maps the given buffer for reading, waiting on the
// device until the map is complete. The buffer must have MapRead
// usage. Callers read through GetMappedRange and then Unmap.
func BufferReadSync(dev *Device, size int, buffer *wgpu.Buffer) error {
	var status wgpu.BufferMapAsyncStatus
	err := buffer.MapAsync(wgpu.MapModeRead, 0, uint64(size), func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if errors.Log(err) != nil {
		return err
	}
	dev.WaitDone()
	return BufferMapAsyncError(status)
}

// ReadSpan reads the span's contents back to the host, returning dst
// resized to the span's element count. It copies through a staging
// buffer in its own submission and blocks until the data is mapped,
// so submit the commands that produce the data first. Intended for
// tests and verification, not per-frame use.
func ReadSpan[E any](dev *Device, sp Span, dst []E) ([]E, error) {
	if err := sp.Compat(wgpu.BufferUsageCopySrc, 1); err != nil {
		return dst, err
	}
	sz := sp.Size()
	stage, err := dev.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "readback",
		Size:             uint64(sz),
		Usage:            wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
		MappedAtCreation: false,
	})
	if errors.Log(err) != nil {
		return dst, err
	}
	defer stage.Release()

	enc, err := dev.Device.CreateCommandEncoder(nil)
	if errors.Log(err) != nil {
		return dst, err
	}
	enc.CopyBufferToBuffer(sp.Buffer, 0, stage, 0, uint64(sz))
	cmd, err := enc.Finish(nil)
	if errors.Log(err) != nil {
		enc.Release()
		return dst, err
	}
	dev.Queue.Submit(cmd)
	cmd.Release()
	enc.Release()

	if err := BufferReadSync(dev, sz, stage); err != nil {
		return dst, err
	}
	dst = slicesx.SetLength(dst, sp.N)
	copy(wgpu.ToBytes(dst), stage.GetMappedRange(0, uint(sz)))
	stage.Unmap()
	return dst, nil
}
