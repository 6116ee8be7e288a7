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
	"fmt"
	"sort"
	"sync"
	"time"
)

// UPS is one entry of the registry: everything known about a single UPS
// unit, mutated by its driver connector and read by client sessions. All
// exported methods lock their own state.
type UPS struct {
	mu sync.RWMutex

	name   string
	desc   string
	socket string // path to the driver's Unix domain socket

	vars map[string]*Variable
	cmds map[string]struct{}
	cmdDesc map[string]string

	ring *Ring

	logins int

	driverConnected bool
	stale           bool
	forcedShutdown  bool
	lastHeard       time.Time
}

// NewUPS returns a UPS named name, backed by the driver socket at socket,
// with no variables, commands or logins yet.
func NewUPS(name, socket string, ringCapacity int, ringTTL time.Duration) *UPS {
	return &UPS{
		name:    name,
		socket:  socket,
		vars:    make(map[string]*Variable),
		cmds:    make(map[string]struct{}),
		cmdDesc: make(map[string]string),
		ring:    NewRing(ringCapacity, ringTTL),
	}
}

func (u *UPS) Name() string   { return u.name }
func (u *UPS) Socket() string { return u.socket }

func (u *UPS) Description() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.desc
}

func (u *UPS) SetDescription(desc string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.desc = desc
}

// DriverConnected reports whether the driver connector currently holds an
// open connection to this UPS's socket; false yields the distinct
// DRIVER-NOT-CONNECTED state rather than staleness.
func (u *UPS) DriverConnected() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.driverConnected
}

func (u *UPS) SetDriverConnected(connected bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.driverConnected = connected
}

// Stale reports whether no data has arrived from the driver within maxage.
func (u *UPS) Stale() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.stale
}

// Touch records that fresh data arrived from the driver, clearing Stale.
func (u *UPS) Touch(now time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.lastHeard = now
	u.stale = false
}

// CheckStale marks the UPS stale if now is more than maxage past the last
// heard time; it is the staleness half of the periodic maintenance scan.
func (u *UPS) CheckStale(now time.Time, maxage time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.lastHeard.IsZero() {
		return
	}
	if now.Sub(u.lastHeard) > maxage {
		u.stale = true
	}
}

// ForcedShutdown reports the sticky FSD flag.
func (u *UPS) ForcedShutdown() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.forcedShutdown
}

// SetForcedShutdown sets or clears the sticky FSD flag. The daemon only
// ever sets it (on the FSD command); a driver reconnect leaves it set.
func (u *UPS) SetForcedShutdown(fsd bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.forcedShutdown = fsd
}

// Logins returns the current client login count, never negative.
func (u *UPS) Logins() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.logins
}

func (u *UPS) Login() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.logins++
}

func (u *UPS) Logout() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.logins > 0 {
		u.logins--
	}
}

// Variable returns a copy of the named variable and whether it exists.
func (u *UPS) Variable(name string) (Variable, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	v, ok := u.vars[name]
	if !ok {
		return Variable{}, false
	}
	return *v.clone(), true
}

// Variables returns a sorted-by-name copy of every variable.
func (u *UPS) Variables() []Variable {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]Variable, 0, len(u.vars))
	for _, v := range u.vars {
		out = append(out, *v.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetInfo implements the SETINFO ingress verb: create or overwrite a
// variable's value, defaulting its type to STRING and mutability to
// ReadOnly if it did not already exist.
func (u *UPS) SetInfo(name, value string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.vars[name]
	if !ok {
		v = newVariable(name)
		u.vars[name] = v
	}
	v.Value = value
}

// AddInfo implements ADDINFO: like SetInfo but only if the variable is
// absent; present variables are left untouched.
func (u *UPS) AddInfo(name, value string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.vars[name]; ok {
		return
	}
	v := newVariable(name)
	v.Value = value
	u.vars[name] = v
}

// SetVarDesc records a human description for a variable, used by GET DESC.
func (u *UPS) SetVarDesc(name, desc string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.vars[name]
	if !ok {
		v = newVariable(name)
		u.vars[name] = v
	}
	v.Desc = desc
}

// DelInfo implements DELINFO: remove a variable entirely.
func (u *UPS) DelInfo(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.vars, name)
}

// SetFlags implements SETFLAGS: replace the RW/flag set of a variable,
// deriving Mutability from presence of the "RW" flag.
func (u *UPS) SetFlags(name string, flags []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.vars[name]
	if !ok {
		v = newVariable(name)
		u.vars[name] = v
	}
	v.Flags = append([]string(nil), flags...)
	v.Mutability = ReadOnly
	for _, f := range flags {
		if f == "RW" {
			v.Mutability = ReadWrite
		}
	}
}

// SetAux implements SETAUX: set the display length auxiliary value.
func (u *UPS) SetAux(name string, displayLen int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.vars[name]
	if !ok {
		v = newVariable(name)
		u.vars[name] = v
	}
	v.DisplayLen = displayLen
}

// AddEnum implements ADDENUM: append a permitted value, marking the
// variable ENUM-typed.
func (u *UPS) AddEnum(name, value string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.vars[name]
	if !ok {
		v = newVariable(name)
		u.vars[name] = v
	}
	v.Type = TypeEnum
	for _, e := range v.Enum {
		if e == value {
			return
		}
	}
	v.Enum = append(v.Enum, value)
}

// DelEnum implements DELENUM: remove a permitted enum value.
func (u *UPS) DelEnum(name, value string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.vars[name]
	if !ok {
		return
	}
	for i, e := range v.Enum {
		if e == value {
			v.Enum = append(v.Enum[:i], v.Enum[i+1:]...)
			return
		}
	}
}

// AddRange implements ADDRANGE: append a permitted numeric interval,
// marking the variable RANGE-typed.
func (u *UPS) AddRange(name string, min, max float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.vars[name]
	if !ok {
		v = newVariable(name)
		u.vars[name] = v
	}
	v.Type = TypeRange
	v.Ranges = append(v.Ranges, NumRange{Min: min, Max: max})
}

// DelRange implements DELRANGE: remove a permitted numeric interval.
func (u *UPS) DelRange(name string, min, max float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.vars[name]
	if !ok {
		return
	}
	for i, r := range v.Ranges {
		if r.Min == min && r.Max == max {
			v.Ranges = append(v.Ranges[:i], v.Ranges[i+1:]...)
			return
		}
	}
}

// HasCommand reports whether the named instant command is supported.
func (u *UPS) HasCommand(name string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.cmds[name]
	return ok
}

// Commands returns the sorted set of supported instant command names.
func (u *UPS) Commands() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]string, 0, len(u.cmds))
	for c := range u.cmds {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// AddCmd implements ADDCMD.
func (u *UPS) AddCmd(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.cmds[name] = struct{}{}
}

// DelCmd implements DELCMD.
func (u *UPS) DelCmd(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.cmds, name)
	delete(u.cmdDesc, name)
}

// SetCmdDesc records a human description for an instant command, used by
// GET CMDDESC.
func (u *UPS) SetCmdDesc(name, desc string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.cmdDesc[name] = desc
}

// CmdDesc returns the description for an instant command, if any.
func (u *UPS) CmdDesc(name string) (string, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	d, ok := u.cmdDesc[name]
	return d, ok
}

// Track records a new tracking-ring entry under the caller-supplied id for
// a SET or INSTCMD, so a later GET TRACKING can look it up.
func (u *UPS) Track(id string, status TrackStatus, now time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ring.Add(id, status, now)
}

// UpdateTracking changes a previously recorded entry's outcome.
func (u *UPS) UpdateTracking(id string, status TrackStatus) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ring.Update(id, status)
}

// TrackingStatus implements GET TRACKING: look up a tracking id's outcome,
// defaulting to Unknown once it has aged out of the ring.
func (u *UPS) TrackingStatus(id string) TrackStatus {
	u.mu.RLock()
	defer u.mu.RUnlock()
	e, ok := u.ring.Lookup(id)
	if !ok {
		return Unknown
	}
	return e.Status
}

// PruneTracking drops tracking entries older than the ring's TTL; called
// from the periodic maintenance loop.
func (u *UPS) PruneTracking(now time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ring.Prune(now)
}

// Status describes a UPS's overall status string, as used by LIST UPS and
// similar bulk-listing commands.
func (u *UPS) Status() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	switch {
	case !u.driverConnected:
		return "DRIVER-NOT-CONNECTED"
	case u.forcedShutdown && u.stale:
		return "FSD STALE"
	case u.forcedShutdown:
		return "FSD"
	case u.stale:
		return "STALE"
	default:
		return "OK"
	}
}

func (u *UPS) String() string {
	return fmt.Sprintf("UPS(%s@%s)", u.name, u.socket)
}
