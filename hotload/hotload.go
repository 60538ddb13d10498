// Copyright (c) 2025, The Shade Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hotload watches shader source files and queues reload
// callbacks. Filesystem events arrive on a background goroutine, but
// callbacks only run from [Watcher.Poll], so units keep their single
// threaded model: poll from the thread that owns them.
package hotload

import (
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hostedgpu/shade/base/errors"
)

// Watcher watches files and dispatches change callbacks on Poll.
type Watcher struct {
	// Debounce is how long a file must be quiet after its last event
	// before Poll dispatches it. Editors often save in several steps.
	Debounce time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu      sync.Mutex
	closed  bool
	subs    map[string][]func(path string)
	pending map[string]time.Time
	dirs    map[string]bool
}

// New returns a running watcher. Close it when done.
func New() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if errors.Log(err) != nil {
		return nil, err
	}
	w := &Watcher{
		Debounce: 50 * time.Millisecond,
		watcher:  fw,
		done:     make(chan struct{}),
		subs:     map[string][]func(string){},
		pending:  map[string]time.Time{},
		dirs:     map[string]bool{},
	}
	go w.listen()
	return w, nil
}

func (w *Watcher) listen() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			switch {
			case ev.Op&fsnotify.Write == fsnotify.Write ||
				ev.Op&fsnotify.Create == fsnotify.Create ||
				ev.Op&fsnotify.Rename == fsnotify.Rename:
				w.note(ev.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("hotload: watcher", "err", err)
		}
	}
}

func (w *Watcher) note(path string) {
	path = filepath.Clean(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.subs[path]; ok {
		w.pending[path] = time.Now()
	}
}

// Watch registers fn to run after the given file changes. The file's
// directory is watched rather than the file itself, so editors that
// replace the file on save keep working.
func (w *Watcher) Watch(path string, fn func(path string)) error {
	ap, err := resolve(path)
	if err != nil {
		return errors.Log(err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	dir := filepath.Dir(ap)
	if !w.dirs[dir] {
		if err := w.watcher.Add(dir); err != nil {
			return errors.Log(err)
		}
		w.dirs[dir] = true
	}
	w.subs[ap] = append(w.subs[ap], fn)
	return nil
}

// Poll dispatches callbacks for files whose last event is at least
// Debounce old, on the calling goroutine, and reports how many
// callbacks ran.
func (w *Watcher) Poll() int {
	now := time.Now()
	w.mu.Lock()
	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.Debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	slices.Sort(ready)
	type call struct {
		fn   func(string)
		path string
	}
	var calls []call
	for _, path := range ready {
		for _, fn := range w.subs[path] {
			calls = append(calls, call{fn, path})
		}
	}
	w.mu.Unlock()
	for _, c := range calls {
		c.fn(c.path)
	}
	return len(calls)
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	close(w.done)
	return w.watcher.Close()
}

// resolve returns the absolute path with the directory's symlinks
// resolved, matching the names fsnotify reports.
func resolve(path string) (string, error) {
	ap, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(ap)
	if rd, err := filepath.EvalSymlinks(dir); err == nil {
		ap = filepath.Join(rd, filepath.Base(ap))
	}
	return ap, nil
}
