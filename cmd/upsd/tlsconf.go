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

package main

import (
	"crypto/tls"
	"fmt"
	"path/filepath"

	"github.com/nutcore/upsd/certificates"
	tlsaut "github.com/nutcore/upsd/certificates/auth"
	tlsvrs "github.com/nutcore/upsd/certificates/tlsversion"
	"github.com/nutcore/upsd/config"
)

// buildTLSConfig turns CERTFILE/CERTPATH/CERTREQUEST/DISABLE_WEAK_SSL from
// upsd.conf into a *tls.Config, or nil when no certificate pair is
// configured (plaintext-only, matching the original's behavior absent a
// cert directive).
func buildTLSConfig(dcfg *config.Daemon) (*tls.Config, error) {
	if dcfg.CertFile == "" {
		return nil, nil
	}

	crtFile := dcfg.CertFile
	keyFile := dcfg.CertFile
	if dcfg.CertPath != "" {
		crtFile = filepath.Join(dcfg.CertPath, dcfg.CertFile)
		keyFile = crtFile
	}

	cfg := certificates.New()
	if err := cfg.AddCertificatePairFile(keyFile, crtFile); err != nil {
		return nil, fmt.Errorf("config: loading certificate pair %s: %w", crtFile, err)
	}
	cfg.SetClientAuth(tlsaut.ParseInt(dcfg.CertRequest))
	if dcfg.DisableWeakSSL {
		cfg.SetVersionMin(tlsvrs.VersionTLS12)
	}

	return cfg.TlsConfig(""), nil
}
