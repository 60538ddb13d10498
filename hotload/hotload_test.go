// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hotload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hostedgpu/shade/wgslx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pollUntil polls on the test goroutine, the same way an app thread
// would between frames.
func pollUntil(t *testing.T, w *Watcher, within time.Duration) int {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		if n := w.Poll(); n > 0 {
			return n
		}
		if time.Now().After(deadline) {
			t.Fatal("no reload dispatched")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "combine.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("fn combine(a: f32, b: f32) -> f32 { return a + b; }\n"), 0666))

	w, err := New()
	require.NoError(t, err)
	defer w.Close()
	w.Debounce = 10 * time.Millisecond

	var got []string
	require.NoError(t, w.Watch(path, func(p string) { got = append(got, p) }))
	assert.Zero(t, w.Poll())

	require.NoError(t, os.WriteFile(path, []byte("fn combine(a: f32, b: f32) -> f32 { return a * b; }\n"), 0666))
	pollUntil(t, w, 2*time.Second)
	assert.NotEmpty(t, got)

	// a file in the same directory that nobody watches stays quiet
	other := filepath.Join(dir, "other.wgsl")
	require.NoError(t, os.WriteFile(other, []byte("fn f() {}\n"), 0666))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, w.Poll())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestFragmentReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hooks.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("fn combine(a: f32, b: f32) -> f32 { return a + b; }\n"), 0666))

	w, err := New()
	require.NoError(t, err)
	defer w.Close()
	w.Debounce = 10 * time.Millisecond

	var fr wgslx.Fragment
	require.NoError(t, Fragment(w, path, "combine", func(f wgslx.Fragment) { fr = f }))
	assert.Contains(t, fr.Source, "a + b")

	require.NoError(t, os.WriteFile(path, []byte("fn combine(a: f32, b: f32) -> f32 { return max(a, b); }\n"), 0666))
	pollUntil(t, w, 2*time.Second)
	assert.Contains(t, fr.Source, "max(a, b)")

	// a broken edit keeps the previous fragment
	require.NoError(t, os.WriteFile(path, []byte("fn something_else() {}\n"), 0666))
	pollUntil(t, w, 2*time.Second)
	assert.Contains(t, fr.Source, "max(a, b)")

	// missing file at setup is an error
	assert.Error(t, Fragment(w, filepath.Join(dir, "absent.wgsl"), "combine", func(wgslx.Fragment) {}))
}
