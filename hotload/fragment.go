// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hotload

import (
	"log/slog"
	"os"

	"github.com/hostedgpu/shade/wgslx"
)

// Fragment watches a WGSL file and applies the named function from
// it whenever the file changes, loading it once immediately. Reload
// failures keep the previous fragment in effect, mirroring how a
// failed rebuild keeps a unit's prior resources.
func Fragment(w *Watcher, path, fn string, apply func(wgslx.Fragment)) error {
	load := func() (wgslx.Fragment, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return wgslx.Fragment{}, err
		}
		return wgslx.FromSource(string(b), fn)
	}
	fr, err := load()
	if err != nil {
		return err
	}
	apply(fr)
	return w.Watch(path, func(p string) {
		fr, err := load()
		if err != nil {
			slog.Warn("hotload: keeping previous fragment", "path", p, "fn", fn, "err", err)
			return
		}
		apply(fr)
	})
}
