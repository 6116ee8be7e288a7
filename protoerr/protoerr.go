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

// Package protoerr maps the wire protocol's closed ERR <code> vocabulary
// (spec §6) onto coded, traced errors from the errors package, so internal
// logs keep a stack trace while a client only ever sees the short code.
package protoerr

import (
	liberr "github.com/nutcore/upsd/errors"
)

// Codes start at 9000 to stay well clear of the errors package's MinPkg*
// ranges and of MinAvailable (4000).
const (
	codeAccessDenied liberr.CodeError = 9000 + iota
	codeUnknownCommand
	codeInvalidArgument
	codeDataStale
	codeDriverNotConnected
	codeUsernameRequired
	codePasswordRequired
	codeAlreadyLoggedIn
	codeAlreadySetUsername
	codeAlreadySetPassword
	codeInvalidValue
	codeSetFailed
	codeUnknownUPS
	codeUnknownVar
	codeFeatureNotSupported
	codeFeatureNotConfigured
	codeTLSAlreadyStarted
	codeTLSNotEnabled
)

var wireText = map[liberr.CodeError]string{
	codeAccessDenied:         "ACCESS-DENIED",
	codeUnknownCommand:       "UNKNOWN-COMMAND",
	codeInvalidArgument:      "INVALID-ARGUMENT",
	codeDataStale:            "DATA-STALE",
	codeDriverNotConnected:   "DRIVER-NOT-CONNECTED",
	codeUsernameRequired:     "USERNAME-REQUIRED",
	codePasswordRequired:     "PASSWORD-REQUIRED",
	codeAlreadyLoggedIn:      "ALREADY-LOGGED-IN",
	codeAlreadySetUsername:   "ALREADY-SET-USERNAME",
	codeAlreadySetPassword:   "ALREADY-SET-PASSWORD",
	codeInvalidValue:         "INVALID-VALUE",
	codeSetFailed:            "SET-FAILED",
	codeUnknownUPS:           "UNKNOWN-UPS",
	codeUnknownVar:           "UNKNOWN-VAR",
	codeFeatureNotSupported:  "FEATURE-NOT-SUPPORTED",
	codeFeatureNotConfigured: "FEATURE-NOT-CONFIGURED",
	codeTLSAlreadyStarted:    "TLS-ALREADY-STARTED",
	codeTLSNotEnabled:        "TLS-NOT-ENABLED",
}

// Sentinel errors, one per wire code; handlers return these directly and
// the session writer renders them with WireLine.
var (
	AccessDenied         = newSentinel(codeAccessDenied)
	UnknownCommand       = newSentinel(codeUnknownCommand)
	InvalidArgument      = newSentinel(codeInvalidArgument)
	DataStale            = newSentinel(codeDataStale)
	DriverNotConnected   = newSentinel(codeDriverNotConnected)
	UsernameRequired     = newSentinel(codeUsernameRequired)
	PasswordRequired     = newSentinel(codePasswordRequired)
	AlreadyLoggedIn      = newSentinel(codeAlreadyLoggedIn)
	AlreadySetUsername   = newSentinel(codeAlreadySetUsername)
	AlreadySetPassword   = newSentinel(codeAlreadySetPassword)
	InvalidValue         = newSentinel(codeInvalidValue)
	SetFailed            = newSentinel(codeSetFailed)
	UnknownUPS           = newSentinel(codeUnknownUPS)
	UnknownVar           = newSentinel(codeUnknownVar)
	FeatureNotSupported  = newSentinel(codeFeatureNotSupported)
	FeatureNotConfigured = newSentinel(codeFeatureNotConfigured)
	TLSAlreadyStarted    = newSentinel(codeTLSAlreadyStarted)
	TLSNotEnabled        = newSentinel(codeTLSNotEnabled)
)

func newSentinel(code liberr.CodeError) liberr.Error {
	return liberr.New(code.Uint16(), wireText[code])
}

// WireLine renders err as the single-line "ERR <code> [<detail>]" the wire
// protocol expects. detail is included only when non-empty, e.g. for
// INVALID-VALUE carrying the offending variable name.
func WireLine(err liberr.Error, detail string) string {
	code := err.GetCode()
	text, ok := wireText[code]
	if !ok {
		text = "UNKNOWN-COMMAND"
	}
	if detail == "" {
		return "ERR " + text
	}
	return "ERR " + text + " " + detail
}

// Is reports whether err carries the given sentinel's code, looking
// through any parent chain it has accumulated.
func Is(err error, sentinel liberr.Error) bool {
	e := liberr.Get(err)
	if e == nil {
		return false
	}
	return e.HasCode(sentinel.GetCode())
}
