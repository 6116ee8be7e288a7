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

// Package tlsversion provides the TLS version floor upsd.conf's
// DISABLE_WEAK_SSL directive selects: plain crypto/tls versions wrapped
// with string parsing.
package tlsversion

import (
	"crypto/tls"
	"strings"
)

// Version is a TLS protocol version.
type Version int

const (
	// VersionUnknown is an unrecognized TLS version.
	VersionUnknown Version = iota

	// VersionTLS10 is TLS 1.0 (deprecated, legacy compatibility only).
	VersionTLS10 = Version(tls.VersionTLS10)

	// VersionTLS11 is TLS 1.1 (deprecated, legacy compatibility only).
	VersionTLS11 = Version(tls.VersionTLS11)

	// VersionTLS12 is TLS 1.2, the default minimum.
	VersionTLS12 = Version(tls.VersionTLS12)

	// VersionTLS13 is TLS 1.3.
	VersionTLS13 = Version(tls.VersionTLS13)
)

// Parse maps a version string (accepting forms like "1.2", "TLS1.2",
// "tls-1-2") to a Version, or VersionUnknown if unrecognized.
func Parse(s string) Version {
	s = strings.ToLower(s)
	s = strings.NewReplacer(
		"\"", "", "'", "", "tls", "", "ssl", "", ".", "", "-", "", "_", "", " ", "",
	).Replace(s)
	s = strings.TrimSpace(s)

	switch s {
	case "1", "10":
		return VersionTLS10
	case "11":
		return VersionTLS11
	case "12":
		return VersionTLS12
	case "13":
		return VersionTLS13
	default:
		return VersionUnknown
	}
}

// ParseInt maps a raw crypto/tls version constant to a Version.
func ParseInt(d int) Version {
	switch d {
	case tls.VersionTLS10:
		return VersionTLS10
	case tls.VersionTLS11:
		return VersionTLS11
	case tls.VersionTLS12:
		return VersionTLS12
	case tls.VersionTLS13:
		return VersionTLS13
	default:
		return VersionUnknown
	}
}

func (v Version) String() string {
	switch v {
	case VersionTLS10:
		return "TLS 1.0"
	case VersionTLS11:
		return "TLS 1.1"
	case VersionTLS12:
		return "TLS 1.2"
	case VersionTLS13:
		return "TLS 1.3"
	default:
		return ""
	}
}

// Uint16 returns the crypto/tls version constant this Version wraps.
func (v Version) Uint16() uint16 {
	switch v {
	case VersionTLS10:
		return tls.VersionTLS10
	case VersionTLS11:
		return tls.VersionTLS11
	case VersionTLS12:
		return tls.VersionTLS12
	case VersionTLS13:
		return tls.VersionTLS13
	default:
		return 0
	}
}
