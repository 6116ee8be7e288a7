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

package daemon

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	tickrun "github.com/nabbar/golib/runner/ticker"

	"github.com/nutcore/upsd/session"
)

// maintenanceInterval is how often the background pass runs: staleness
// scan, tracking-ring pruning, idle-session eviction, deferred UPS reap,
// and reload-flag consumption (§4.6, §5).
const maintenanceInterval = 2 * time.Second

// StartMaintenance starts the periodic maintenance ticker and returns once
// it is running; call StopMaintenance or cancel ctx to stop it.
func (d *Daemon) StartMaintenance(ctx context.Context) error {
	d.maintTick = tickrun.New(maintenanceInterval, d.runMaintenance)
	return d.maintTick.Start(ctx)
}

// StopMaintenance halts the maintenance ticker started by StartMaintenance.
func (d *Daemon) StopMaintenance(ctx context.Context) error {
	if d.maintTick == nil {
		return nil
	}
	return d.maintTick.Stop(ctx)
}

// runMaintenance is one maintenance tick: reload reconciliation, staleness,
// idle eviction, and deferred reap, matching §9's "single maintenance
// goroutine" design note.
func (d *Daemon) runMaintenance(ctx context.Context, _ *time.Ticker) error {
	now := time.Now()

	if d.consumeReload() {
		d.logf("reload flag consumed, reconciling registry and users")
		if d.onReload != nil {
			d.onReload()
		}
	}

	d.Registry.Maintain(now, d.cfg.MaxAge)

	d.promoteHeldConns(ctx)
	d.evictIdleSessions(now)

	removed := d.Registry.Reap(d.boundCount)
	for _, name := range removed {
		d.logf("reaped ups %s after deferred removal", name)
	}

	if d.exiting() {
		d.drain()
	}

	return nil
}

// promoteHeldConns moves accepted-but-unserviced connections into real
// sessions as MAXCONN slots free up. Held connections are kept in a map,
// so the order in which they are promoted is not defined.
func (d *Daemon) promoteHeldConns(ctx context.Context) {
	d.heldMu.Lock()
	conns := make([]net.Conn, 0, len(d.held))
	for c := range d.held {
		conns = append(conns, c)
	}
	d.heldMu.Unlock()

	for _, conn := range conns {
		if !d.sem.TryAcquire(1) {
			return
		}
		d.unholdConn(conn)
		id := atomic.AddUint64(&d.nextID, 1)
		s := session.New(id, conn.RemoteAddr().String(), conn)
		d.register(s)
		go d.serveSession(ctx, s)
	}
}

func (d *Daemon) evictIdleSessions(now time.Time) {
	d.sessMu.RLock()
	var idle []*session.Session
	for _, s := range d.sessions {
		if s.Idle(now) {
			idle = append(idle, s)
		}
	}
	d.sessMu.RUnlock()

	for _, s := range idle {
		d.logf("evicting idle session %d (%s)", s.ID(), s.Peer())
		d.disconnect(s)
	}
}

// drain closes every live session, used once RequestExit has been
// observed so the process can shut down without leaving clients attached
// to UPS units that are about to disappear (§5 cancellation).
func (d *Daemon) drain() {
	d.sessMu.RLock()
	var all []*session.Session
	for _, s := range d.sessions {
		all = append(all, s)
	}
	d.sessMu.RUnlock()

	for _, s := range all {
		d.disconnect(s)
	}
}

// SetReloadHandler registers the function the maintenance loop invokes
// after consuming a reload request, typically config re-read and registry
// reconciliation (§4.6). Optional; reload still clears the flag without it.
func (d *Daemon) SetReloadHandler(fn func()) {
	d.onReload = fn
}
