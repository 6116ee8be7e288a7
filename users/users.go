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

// Package users holds the upsd.users-derived user database: name, secret,
// and the set of actions each user is permitted to perform.
package users

import (
	"crypto/subtle"
	"path"
	"sync"
)

// Role distinguishes the upsmon declaration a user carries, if any.
type Role uint8

const (
	RoleNone Role = iota
	RolePrimary
	RoleSecondary
)

// User is one upsd.users entry.
type User struct {
	Name     string
	Password string

	// ReadAny grants unrestricted GET/LIST access regardless of the
	// "actions" list.
	ReadAny bool

	// SetVariable grants the SET VAR command on any writable variable.
	SetVariable bool

	// InstCmds holds glob patterns (matched with path.Match semantics,
	// e.g. "test.*") naming instant commands this user may invoke.
	InstCmds []string

	Role Role
}

// AllowsInstCmd reports whether cmd matches one of the user's glob
// patterns.
func (u *User) AllowsInstCmd(cmd string) bool {
	for _, pat := range u.InstCmds {
		if pat == "*" || pat == cmd {
			return true
		}
		if ok, err := path.Match(pat, cmd); err == nil && ok {
			return true
		}
	}
	return false
}

// IsPrimary reports whether this user may assert PRIMARY/MASTER and FSD.
func (u *User) IsPrimary() bool {
	return u.Role == RolePrimary
}

// DB is the atomically-replaceable table of known users, keyed
// case-sensitively on name (matching the wire protocol's USERNAME verb,
// which the original treats as an exact string).
type DB struct {
	mu    sync.RWMutex
	byName map[string]*User
}

// NewDB returns an empty DB.
func NewDB() *DB {
	return &DB{byName: make(map[string]*User)}
}

// Put inserts or replaces a user entry.
func (d *DB) Put(u *User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byName[u.Name] = u
}

// Lookup returns the user named name, if any.
func (d *DB) Lookup(name string) (*User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byName[name]
	return u, ok
}

// Authenticate verifies name/password and returns the matching user.
func (d *DB) Authenticate(name, password string) (*User, bool) {
	u, ok := d.Lookup(name)
	if !ok {
		return nil, false
	}
	if !secureEqual(u.Password, password) {
		return nil, false
	}
	return u, true
}

// All returns a shallow copy of the user table, keyed by name, for
// handing to another DB's Replace during config reload.
func (d *DB) All() map[string]*User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]*User, len(d.byName))
	for k, v := range d.byName {
		out[k] = v
	}
	return out
}

// Replace atomically swaps the entire user table, used by config reload.
func (d *DB) Replace(users map[string]*User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byName = users
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
