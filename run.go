// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shade

import (
	"github.com/hostedgpu/shade/base/errors"
)

// Submit encodes each unit's commands into one command buffer in
// order, submits it, and waits for the device to finish. It is the
// simple driving loop for chained units; callers needing to interleave
// their own commands create the encoder themselves and call Commands
// directly.
func Submit(dev *Device, units ...Unit) error {
	enc, err := dev.Device.CreateCommandEncoder(nil)
	if errors.Log(err) != nil {
		return err
	}
	for _, un := range units {
		if err := un.Commands(enc); err != nil {
			enc.Release()
			return err
		}
	}
	cmd, err := enc.Finish(nil)
	if errors.Log(err) != nil {
		enc.Release()
		return err
	}
	dev.Queue.Submit(cmd)
	cmd.Release()
	enc.Release()
	dev.WaitDone()
	return nil
}
