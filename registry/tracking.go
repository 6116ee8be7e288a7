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

import "time"

// TrackStatus is the outcome of a tracked instant command or SET, as
// reported to a client that requested tracking via GET TRACKING.
type TrackStatus uint8

const (
	Pending TrackStatus = iota
	Success
	Failed
	Unknown
)

func (s TrackStatus) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case Failed:
		return "FAILED"
	case Pending:
		return "PENDING"
	default:
		return "UNKNOWN"
	}
}

// TrackEntry is one tracked outcome held in a UPS's Ring.
type TrackEntry struct {
	ID        string
	Status    TrackStatus
	CreatedAt time.Time
}

// DefaultTrackingTTL is how long a TrackEntry survives before Prune removes
// it, absent an explicit TRACKING_TTL directive in upsd.conf.
const DefaultTrackingTTL = 10 * time.Minute

// DefaultRingCapacity bounds the number of entries a Ring holds regardless
// of TTL, so a burst of tracked commands cannot grow the ring unbounded.
const DefaultRingCapacity = 256

// Ring is a fixed-capacity, TTL-pruned collection of recent TrackEntry
// values for one UPS. It is not safe for concurrent use on its own; callers
// serialize access (UPS already holds the lock that guards its Ring).
type Ring struct {
	capacity int
	ttl      time.Duration
	entries  []TrackEntry
}

// NewRing returns a Ring with the given capacity and TTL. A zero or
// negative capacity/ttl falls back to the package defaults.
func NewRing(capacity int, ttl time.Duration) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTrackingTTL
	}
	return &Ring{capacity: capacity, ttl: ttl}
}

// Add records a new entry, evicting the oldest if the ring is at capacity.
func (r *Ring) Add(id string, status TrackStatus, now time.Time) {
	if len(r.entries) >= r.capacity {
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:len(r.entries)-1]
	}
	r.entries = append(r.entries, TrackEntry{ID: id, Status: status, CreatedAt: now})
}

// Update changes the status of an existing entry in place; it is a no-op if
// id is not present (e.g. already pruned).
func (r *Ring) Update(id string, status TrackStatus) {
	for i := range r.entries {
		if r.entries[i].ID == id {
			r.entries[i].Status = status
			return
		}
	}
}

// Lookup returns the entry for id and whether it was found.
func (r *Ring) Lookup(id string) (TrackEntry, bool) {
	for _, e := range r.entries {
		if e.ID == id {
			return e, true
		}
	}
	return TrackEntry{}, false
}

// Prune removes every entry older than the ring's TTL as of now.
func (r *Ring) Prune(now time.Time) {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if now.Sub(e.CreatedAt) < r.ttl {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}
