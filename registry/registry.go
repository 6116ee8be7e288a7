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

package registry

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry is the top-level, case-insensitively-keyed table of known UPS
// units. A daemon holds exactly one Registry; driver connectors register
// and mutate entries, client sessions and the command dispatcher read them.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*UPS // keyed by strings.ToLower(name)

	// pendingRemoval holds names slated for removal once no client
	// session remains bound to them (§4.2 "removal deferred until no
	// session is bound").
	pendingRemoval map[string]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byName:         make(map[string]*UPS),
		pendingRemoval: make(map[string]struct{}),
	}
}

// Add registers a UPS, or returns the existing entry if name is already
// present (reconciliation on config reload treats this as a no-op for an
// unchanged entry; callers update description/fields on the returned value).
func (r *Registry) Add(u *UPS) *UPS {
	key := strings.ToLower(u.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[key]; ok {
		delete(r.pendingRemoval, key)
		return existing
	}
	r.byName[key] = u
	return u
}

// Get looks up a UPS by name, case-insensitively.
func (r *Registry) Get(name string) (*UPS, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byName[strings.ToLower(name)]
	return u, ok
}

// List returns every UPS sorted by name.
func (r *Registry) List() []*UPS {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*UPS, 0, len(r.byName))
	for _, u := range r.byName {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// MarkForRemoval flags name for removal once unbound, per §4.2's config
// reconciliation rule that a removed ups.conf section does not evict
// clients currently bound to it.
func (r *Registry) MarkForRemoval(name string) {
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingRemoval[key] = struct{}{}
}

// PendingRemoval reports whether name is flagged for deferred removal.
func (r *Registry) PendingRemoval(name string) bool {
	key := strings.ToLower(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pendingRemoval[key]
	return ok
}

// Reap removes every entry flagged via MarkForRemoval whose bound-session
// count, as reported by boundCount, is zero. It is called from the
// periodic maintenance loop alongside staleness and tracking pruning.
func (r *Registry) Reap(boundCount func(name string) int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for key := range r.pendingRemoval {
		u, ok := r.byName[key]
		if !ok {
			delete(r.pendingRemoval, key)
			continue
		}
		if boundCount(u.Name()) > 0 {
			continue
		}
		delete(r.byName, key)
		delete(r.pendingRemoval, key)
		removed = append(removed, u.Name())
	}
	return removed
}

// Maintain runs the periodic per-UPS maintenance pass: staleness scan and
// tracking-ring pruning, driven by the daemon's ticker.
func (r *Registry) Maintain(now time.Time, maxage time.Duration) {
	for _, u := range r.List() {
		u.CheckStale(now, maxage)
		u.PruneTracking(now)
	}
}
