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

// Package command implements the client-facing command dispatcher and
// catalogue: the first token of every line is mapped to a handler that
// enforces its required flags before running.
package command

import (
	"crypto/tls"

	"github.com/nutcore/upsd/acl"
	"github.com/nutcore/upsd/protoerr"
	"github.com/nutcore/upsd/registry"
	"github.com/nutcore/upsd/session"
	"github.com/nutcore/upsd/users"
)

// Relay forwards a validated SET/INSTCMD request to the owning driver
// connector and reserves a tracking id for later correlation. It is
// implemented by the daemon package, which owns the live driver
// connections; command stays free of that dependency.
type Relay interface {
	// SetVar relays "SET <var> <value>" to ups's driver and returns a
	// tracking id.
	SetVar(ups, variable, value string) (trackingID string, err error)
	// InstCmd relays "INSTCMD <cmd> [<param>]" to ups's driver and
	// returns a tracking id.
	InstCmd(ups, cmd, param string) (trackingID string, err error)
}

// ClientsOf reports the peer addresses of sessions currently bound to ups,
// for LIST CLIENT. Implemented by the daemon's session manager.
type ClientsOf func(ups string) []string

// Dispatcher holds everything a handler needs to serve one command line.
type Dispatcher struct {
	Registry  *registry.Registry
	Users     *users.DB
	ACL       *acl.List
	Relay     Relay
	ClientsOf ClientsOf
	TLSConfig *tls.Config
	Version   string
	NetVer    string
	Tracking  bool
}

// Call bundles one parsed request with its owning session.
type Call struct {
	Session *session.Session
	Args    []string
}

// Dispatch looks up args[0] in the catalogue, enforces its flags, and runs
// the handler, returning the full wire reply (including trailing newline).
func (d *Dispatcher) Dispatch(s *session.Session, args []string) string {
	if len(args) == 0 {
		return ""
	}

	e, ok := lookup(args[0])
	if !ok {
		return protoerr.WireLine(protoerr.UnknownCommand, "") + "\n"
	}

	if msg := d.checkFlags(s, e.flags); msg != "" {
		return msg
	}

	if d.ACL != nil {
		ip := session.PeerIP(s.Peer())
		if ip != nil && !d.ACL.Allowed(ip) {
			return protoerr.WireLine(protoerr.AccessDenied, "") + "\n"
		}
	}

	return e.handler(d, &Call{Session: s, Args: args})
}

func (d *Dispatcher) checkFlags(s *session.Session, flags Flag) string {
	if flags&FlagUser != 0 && s.State() != session.Authed {
		switch {
		case !s.HasUsername():
			return protoerr.WireLine(protoerr.UsernameRequired, "") + "\n"
		case !s.HasPassword():
			return protoerr.WireLine(protoerr.PasswordRequired, "") + "\n"
		default:
			return protoerr.WireLine(protoerr.AccessDenied, "") + "\n"
		}
	}
	if flags&FlagTLS != 0 && !s.TLSActive() {
		return protoerr.WireLine(protoerr.TLSNotEnabled, "") + "\n"
	}
	if flags&FlagPrimary != 0 && !s.IsPrimary() {
		return protoerr.WireLine(protoerr.AccessDenied, "") + "\n"
	}
	return ""
}
