// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
)

// Span describes a GPU buffer as n elements of a fixed byte size.
// Spans are the values chained units exchange: a unit's output
// accessor returns a Span, and a downstream unit takes one as a
// parameter, usually through a [Resolver]. The buffer's sizes and
// usages travel with the handle so receiving units can check
// compatibility without querying the device.
type Span struct {
	// Buffer is the underlying GPU buffer.
	Buffer *wgpu.Buffer

	// N is the number of elements.
	N int

	// ElemSize is the size of one element in bytes.
	ElemSize int

	// Usage is the buffer's usage flags.
	Usage wgpu.BufferUsage
}

// Size returns the total size in bytes.
func (sp Span) Size() int { return sp.N * sp.ElemSize }

// IsNil reports whether the span has no buffer.
func (sp Span) IsNil() bool { return sp.Buffer == nil }

// Compat checks that the span can serve as a caller-supplied resource
// with the given required usage flags and minimum element count,
// returning an [ErrIncompatible] error if not.
func (sp Span) Compat(usage wgpu.BufferUsage, minN int) error {
	if sp.Buffer == nil {
		return fmt.Errorf("%w: nil buffer", ErrIncompatible)
	}
	if sp.N < minN {
		return fmt.Errorf("%w: %d elements, need at least %d", ErrIncompatible, sp.N, minN)
	}
	if sp.Usage&usage != usage {
		return fmt.Errorf("%w: usage %v missing required flags %v", ErrIncompatible, sp.Usage, usage)
	}
	return nil
}

// Release releases the underlying buffer, if any. Only call on spans
// you own; units never release caller-supplied spans.
func (sp Span) Release() {
	if sp.Buffer != nil {
		sp.Buffer.Release()
	}
}

// NewSpan creates a buffer of n elements of elemSize bytes each with
// the given usage flags.
func NewSpan(dev *Device, label string, n, elemSize int, usage wgpu.BufferUsage) (Span, error) {
	buf, err := dev.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             uint64(n * elemSize),
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return Span{}, err
	}
	return Span{Buffer: buf, N: n, ElemSize: elemSize, Usage: usage}, nil
}

// SpanFrom creates a buffer initialized with the given data.
func SpanFrom[E any](dev *Device, label string, data []E, usage wgpu.BufferUsage) (Span, error) {
	buf, err := dev.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: wgpu.ToBytes(data),
		Usage:    usage,
	})
	if err != nil {
		return Span{}, err
	}
	var e E
	return Span{Buffer: buf, N: len(data), ElemSize: int(unsafe.Sizeof(e)), Usage: usage}, nil
}

// WriteSpan copies data to the start of the span's buffer through the
// device queue. The write is ordered before any subsequently
// submitted commands.
func WriteSpan[E any](dev *Device, sp Span, data []E) error {
	return dev.Queue.WriteBuffer(sp.Buffer, 0, wgpu.ToBytes(data))
}
