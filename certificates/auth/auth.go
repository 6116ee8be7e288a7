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

// Package auth provides the client authentication mode upsd.conf's
// CERTREQUEST directive selects; ParseInt reads the level as a
// crypto/tls ClientAuthType value (0-4).
package auth

import (
	"crypto/tls"
	"strings"
)

const (
	strict  = "strict"
	require = "require"
	verify  = "verify"
	request = "request"
	none    = "none"
)

// ClientAuth is the server's client-certificate policy for a TLS listener.
type ClientAuth tls.ClientAuthType

const (
	// NoClientCert requests no client certificate (CERTREQUEST 0).
	NoClientCert = ClientAuth(tls.NoClientCert)

	// RequestClientCert asks for a client certificate but does not require one.
	RequestClientCert = ClientAuth(tls.RequestClientCert)

	// RequireAnyClientCert requires a client certificate without verifying it.
	RequireAnyClientCert = ClientAuth(tls.RequireAnyClientCert)

	// VerifyClientCertIfGiven verifies a client certificate only if one was sent.
	VerifyClientCertIfGiven = ClientAuth(tls.VerifyClientCertIfGiven)

	// RequireAndVerifyClientCert requires and verifies a client certificate
	// (CERTREQUEST 4, the strictest level).
	RequireAndVerifyClientCert = ClientAuth(tls.RequireAndVerifyClientCert)
)

// List returns every known ClientAuth value.
func List() []ClientAuth {
	return []ClientAuth{
		NoClientCert,
		RequestClientCert,
		RequireAnyClientCert,
		VerifyClientCertIfGiven,
		RequireAndVerifyClientCert,
	}
}

// Parse maps a human-readable string to a ClientAuth, defaulting to
// NoClientCert when s matches nothing recognized.
func Parse(s string) ClientAuth {
	s = cleanString(s)

	switch {
	case strings.Contains(s, strict) || (strings.Contains(s, require) && strings.Contains(s, verify)):
		return RequireAndVerifyClientCert
	case strings.Contains(s, verify):
		return VerifyClientCertIfGiven
	case strings.Contains(s, require):
		return RequireAnyClientCert
	case strings.Contains(s, request):
		return RequestClientCert
	default:
		return NoClientCert
	}
}

// ParseInt maps upsd.conf's CERTREQUEST integer levels onto ClientAuth.
func ParseInt(d int) ClientAuth {
	switch tls.ClientAuthType(d) {
	case tls.RequireAndVerifyClientCert:
		return RequireAndVerifyClientCert
	case tls.VerifyClientCertIfGiven:
		return VerifyClientCertIfGiven
	case tls.RequireAnyClientCert:
		return RequireAnyClientCert
	case tls.RequestClientCert:
		return RequestClientCert
	default:
		return NoClientCert
	}
}

func cleanString(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "\"", "")
	s = strings.ReplaceAll(s, "'", "")
	return strings.TrimSpace(s)
}

func (a ClientAuth) String() string {
	switch a {
	case RequireAndVerifyClientCert:
		return strict + " " + require + " " + verify
	case VerifyClientCertIfGiven:
		return verify
	case RequireAnyClientCert:
		return require
	case RequestClientCert:
		return request
	default:
		return none
	}
}

// TLS returns the underlying tls.ClientAuthType.
func (a ClientAuth) TLS() tls.ClientAuthType {
	return tls.ClientAuthType(a)
}
