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

// Package session models one client connection's authentication state
// machine and its per-connection bookkeeping (bound UPS, idle tracking,
// tracking opt-in).
package session

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/nutcore/upsd/protocol"
	"github.com/nutcore/upsd/users"
)

// State is the client session's position in the ANON -> USER_SET ->
// AUTH_SET -> AUTHED progression.
type State uint8

const (
	Anon State = iota
	UserSet
	AuthSet
	Authed
	Closed
)

func (s State) String() string {
	switch s {
	case UserSet:
		return "USER_SET"
	case AuthSet:
		return "AUTH_SET"
	case Authed:
		return "AUTHED"
	case Closed:
		return "CLOSED"
	default:
		return "ANON"
	}
}

// IdleTimeout is how long a session may go without a complete command
// before the maintenance loop disconnects it (§4.4).
const IdleTimeout = 60 * time.Second

// Session is one client connection's state. Conn is swapped in place by
// STARTTLS (an opaque io.ReadWriteCloser upgrade), so callers must always
// go through Conn() rather than caching the stream.
type Session struct {
	mu sync.Mutex

	id   uint64
	peer string
	conn io.ReadWriteCloser

	state State

	tlsActive bool

	username string
	password string

	boundUPS string

	primary      bool
	trackingOpt  bool

	lastHeard time.Time
	tok       *protocol.Tokenizer

	user *users.User
}

// New returns a fresh ANON session wrapping conn, identified by id for
// logging/disconnect bookkeeping.
func New(id uint64, peer string, conn io.ReadWriteCloser) *Session {
	return &Session{
		id:        id,
		peer:      peer,
		conn:      conn,
		state:     Anon,
		lastHeard: time.Now(),
		tok:       protocol.New(),
	}
}

func (s *Session) ID() uint64 { return s.id }
func (s *Session) Peer() string { return s.peer }

// Conn returns the current stream; guarded by the session lock so a
// concurrent STARTTLS swap is never observed half-done.
func (s *Session) Conn() io.ReadWriteCloser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// UpgradeTLS swaps in a TLS-wrapped stream, used once STARTTLS completes.
func (s *Session) UpgradeTLS(conn io.ReadWriteCloser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.tlsActive = true
}

func (s *Session) TLSActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tlsActive
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Tokenizer() *protocol.Tokenizer {
	return s.tok
}

// Touch records that a complete command line arrived, resetting the idle
// timer.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeard = now
}

// Idle reports whether the session has been silent for longer than
// IdleTimeout as of now.
func (s *Session) Idle(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastHeard) > IdleTimeout
}

// SetUsername implements USERNAME; fails if already set, per §4.5.
func (s *Session) SetUsername(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.username != "" {
		return false
	}
	s.username = name
	if s.state == Anon {
		s.state = UserSet
	}
	return true
}

// SetPassword implements PASSWORD; fails if already set. It does not
// require USERNAME to have been set first (Open Question (a) — preserved).
func (s *Session) SetPassword(pass string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.password != "" {
		return false
	}
	s.password = pass
	if s.state == Anon || s.state == UserSet {
		s.state = AuthSet
	}
	return true
}

// HasUsername/HasPassword report whether USERNAME/PASSWORD were already
// set, for the ALREADY-SET-* error checks.
func (s *Session) HasUsername() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username != ""
}

func (s *Session) HasPassword() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.password != ""
}

// Authenticate runs USERNAME/PASSWORD against db; on success the session
// moves to AUTHED and carries the matched user's permission set.
func (s *Session) Authenticate(db *users.DB) bool {
	s.mu.Lock()
	username, password := s.username, s.password
	s.mu.Unlock()

	if username == "" || password == "" {
		return false
	}
	u, ok := db.Authenticate(username, password)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	s.state = Authed
	return true
}

// User returns the authenticated user, if any.
func (s *Session) User() *users.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Bind implements LOGIN: binds the session to upsName. Rejected (returns
// false) if already bound to a UPS, per invariant 2.
func (s *Session) Bind(upsName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boundUPS != "" {
		return false
	}
	s.boundUPS = upsName
	return true
}

// BoundUPS returns the name of the UPS the session is bound to, or "".
func (s *Session) BoundUPS() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundUPS
}

// Unbind clears the bound UPS, used on LOGOUT/disconnect so the caller can
// decrement the UPS's login counter exactly once.
func (s *Session) Unbind() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.boundUPS
	s.boundUPS = ""
	return name
}

// SetPrimary records a successful PRIMARY/MASTER assertion.
func (s *Session) SetPrimary(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primary = v
}

func (s *Session) IsPrimary() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary
}

// SetTracking toggles client-tracking opt-in (GET TRACKING correlation).
func (s *Session) SetTracking(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackingOpt = v
}

func (s *Session) Tracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackingOpt
}

// Close marks the session CLOSED and closes the underlying stream.
func (s *Session) Close() error {
	s.mu.Lock()
	s.state = Closed
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// PeerIP extracts the IP address from a printable peer string, for ACL
// consultation; returns nil if it cannot be parsed.
func PeerIP(peer string) net.IP {
	host, _, err := net.SplitHostPort(peer)
	if err != nil {
		host = peer
	}
	return net.ParseIP(host)
}
