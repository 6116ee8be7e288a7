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

// Package acl implements the optional host-based allow/deny layer consulted
// before any authenticated command handler runs.
package acl

import (
	"net"
)

// Action is allow or deny, applied to the first matching entry in order.
type Action uint8

const (
	Allow Action = iota
	Deny
)

// Entry is one CIDR-or-host rule.
type Entry struct {
	Action Action
	Net    *net.IPNet
}

// List is an ordered set of Entry values, evaluated first-match-wins; an
// empty List allows everything (the optional layer is simply not
// configured).
type List struct {
	entries []Entry
}

// New returns an empty List (allow-all).
func New() *List {
	return &List{}
}

// Add appends a rule for action on cidr ("10.0.0.0/8", "192.168.1.5/32",
// or a bare address which is treated as a /32 or /128).
func (l *List) Add(action Action, cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		ip := net.ParseIP(cidr)
		if ip == nil {
			return &net.ParseError{Type: "CIDR address", Text: cidr}
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		network = &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
	}
	l.entries = append(l.entries, Entry{Action: action, Net: network})
	return nil
}

// Allowed reports whether addr is permitted: the first matching entry
// decides; no match defaults to Allow.
func (l *List) Allowed(addr net.IP) bool {
	if l == nil {
		return true
	}
	for _, e := range l.entries {
		if e.Net.Contains(addr) {
			return e.Action == Allow
		}
	}
	return true
}
