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

// Package daemon owns the listener set, the live client sessions, the
// driver connectors, and the periodic maintenance pass: the single value
// that replaces the original's global firstups/firstclient/fds arrays
// (§9 design notes).
package daemon

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nutcore/upsd/acl"
	"github.com/nutcore/upsd/atomic"
	"github.com/nutcore/upsd/command"
	"github.com/nutcore/upsd/driver"
	"github.com/nutcore/upsd/logger"
	"github.com/nutcore/upsd/registry"
	"github.com/nutcore/upsd/session"
	"github.com/nutcore/upsd/users"
)

// Config bundles the runtime knobs a Daemon needs that come from upsd.conf
// (§6 configuration surface).
type Config struct {
	Listen      []string // "host:port" pairs
	MaxAge      time.Duration
	MaxConn     int64
	TLSConfig   *tls.Config // nil if plaintext-only
	TrackingTTL time.Duration
	Version     string
	NetVer      string
	Tracking    bool
}

// Daemon is the single value owning everything the event loop touches.
type Daemon struct {
	cfg Config
	log logger.Logger

	Registry *registry.Registry
	Users    *users.DB
	ACL      *acl.List

	dispatcher *command.Dispatcher

	connMu     sync.RWMutex
	connectors map[string]*driver.Connector

	sessMu   sync.RWMutex
	sessions map[uint64]*session.Session
	nextID   uint64

	heldMu  sync.Mutex
	held    map[net.Conn]struct{}

	sem *semaphore.Weighted

	reloadFlag atomic.Value[bool]
	exitFlag   atomic.Value[bool]

	maintTick maintenanceTicker
	onReload  func()
}

// maintenanceTicker is the subset of github.com/nabbar/golib/runner/ticker's
// Ticker the daemon drives; keeping it as a local interface avoids pinning
// to that package's exact returned type name.
type maintenanceTicker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// New wires a Daemon around reg/db/acl with the given configuration. The
// returned Daemon is not yet listening; call Listen to bind every
// configured address.
func New(cfg Config, log logger.Logger, reg *registry.Registry, db *users.DB, acls *acl.List) *Daemon {
	maxConn := cfg.MaxConn
	if maxConn <= 0 {
		maxConn = 1024
	}

	d := &Daemon{
		cfg:        cfg,
		log:        log,
		Registry:   reg,
		Users:      db,
		ACL:        acls,
		connectors: make(map[string]*driver.Connector),
		sessions:   make(map[uint64]*session.Session),
		held:       make(map[net.Conn]struct{}),
		sem:        semaphore.NewWeighted(maxConn),
		reloadFlag: atomic.NewValue[bool](),
		exitFlag:   atomic.NewValue[bool](),
	}

	d.dispatcher = &command.Dispatcher{
		Registry:  reg,
		Users:     db,
		ACL:       acls,
		Relay:     (*relay)(d),
		ClientsOf: d.clientsOf,
		TLSConfig: cfg.TLSConfig,
		Version:   cfg.Version,
		NetVer:    cfg.NetVer,
		Tracking:  cfg.Tracking,
	}

	return d
}

// AddConnector registers a driver connector for upsName so the command
// dispatcher's Relay can reach it. The caller is responsible for running
// c.Run in its own goroutine, passing d.KickBound as its KickFunc.
func (d *Daemon) AddConnector(c *driver.Connector, upsName string) {
	d.connMu.Lock()
	d.connectors[upsName] = c
	d.connMu.Unlock()
}

func (d *Daemon) connectorFor(upsName string) (*driver.Connector, bool) {
	d.connMu.RLock()
	defer d.connMu.RUnlock()
	c, ok := d.connectors[upsName]
	return c, ok
}

// RequestReload sets the reload flag, consulted at the top of the next
// maintenance tick (§4.6).
func (d *Daemon) RequestReload() {
	d.reloadFlag.Store(true)
}

// RequestExit sets the exit flag; the next maintenance tick that observes
// it set drains every session (§5 cancellation).
func (d *Daemon) RequestExit() {
	d.exitFlag.Store(true)
}

func (d *Daemon) exiting() bool {
	return d.exitFlag.Load()
}

func (d *Daemon) consumeReload() bool {
	if d.reloadFlag.Load() {
		d.reloadFlag.Store(false)
		return true
	}
	return false
}

func (d *Daemon) clientsOf(upsName string) []string {
	d.sessMu.RLock()
	defer d.sessMu.RUnlock()
	var out []string
	for _, s := range d.sessions {
		if s.BoundUPS() == upsName {
			out = append(out, s.Peer())
		}
	}
	return out
}

func (d *Daemon) boundCount(upsName string) int {
	return len(d.clientsOf(upsName))
}

// ClientCount reports the number of currently connected client sessions,
// exposed for operational metrics.
func (d *Daemon) ClientCount() int {
	d.sessMu.RLock()
	defer d.sessMu.RUnlock()
	return len(d.sessions)
}

// KickBound force-disconnects every session bound to upsName, used as the
// driver connector's KickFunc on a post-reconnect DUMPDONE (§4.6).
func (d *Daemon) KickBound(upsName string) {
	d.sessMu.RLock()
	var victims []*session.Session
	for _, s := range d.sessions {
		if s.BoundUPS() == upsName {
			victims = append(victims, s)
		}
	}
	d.sessMu.RUnlock()

	for _, s := range victims {
		d.disconnect(s)
	}
}

// holdConn tracks conn as accepted-but-unserviced: MAXCONN is reached, so
// the connection is kept open without a read loop rather than rejected
// (§5). It is released once the semaphore frees a slot or the daemon
// shuts down.
func (d *Daemon) holdConn(conn net.Conn) {
	d.heldMu.Lock()
	d.held[conn] = struct{}{}
	d.heldMu.Unlock()
}

func (d *Daemon) unholdConn(conn net.Conn) {
	d.heldMu.Lock()
	delete(d.held, conn)
	d.heldMu.Unlock()
}

func (d *Daemon) closeHeldConns() {
	d.heldMu.Lock()
	defer d.heldMu.Unlock()
	for conn := range d.held {
		conn.Close()
		delete(d.held, conn)
	}
}

func (d *Daemon) register(s *session.Session) {
	d.sessMu.Lock()
	d.sessions[s.ID()] = s
	d.sessMu.Unlock()
}

func (d *Daemon) disconnect(s *session.Session) {
	d.sessMu.Lock()
	_, live := d.sessions[s.ID()]
	delete(d.sessions, s.ID())
	d.sessMu.Unlock()
	if !live {
		return
	}

	if name := s.Unbind(); name != "" {
		if u, ok := d.Registry.Get(name); ok {
			u.Logout()
		}
	}
	_ = s.Close()

	d.sem.Release(1)
}
