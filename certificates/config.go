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

// Package certificates builds the *tls.Config the daemon's listeners upgrade
// to on STARTTLS (§9). It covers exactly the surface upsd.conf exposes:
// one server certificate pair, a client-auth mode, and a minimum TLS
// version floor — not the general-purpose CA/cipher-suite/curve management
// a multi-tenant TLS terminator would need.
//
// Subpackages:
//   - auth: client authentication mode type and parsing (CERTREQUEST)
//   - tlsversion: TLS version type and parsing (DISABLE_WEAK_SSL)
package certificates

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"os"
	"sync"

	tlsaut "github.com/nutcore/upsd/certificates/auth"
	tlsvrs "github.com/nutcore/upsd/certificates/tlsversion"
)

// Config builds an immutable *tls.Config from an accumulated certificate
// pair, client-auth mode, and version floor/ceiling. All methods are
// safe for concurrent use.
type Config interface {
	// AddCertificatePairFile loads a PEM private key and certificate from
	// disk and adds them as a server certificate pair.
	AddCertificatePairFile(keyFile, crtFile string) error
	// AddCertificatePairString parses a PEM private key and certificate
	// already held in memory and adds them as a server certificate pair.
	AddCertificatePairString(key, crt string) error
	// LenCertificatePair returns the number of loaded certificate pairs.
	LenCertificatePair() int
	// GetCertificatePair returns the loaded certificate pairs.
	GetCertificatePair() []tls.Certificate

	// SetClientAuth sets the client certificate requirement (CERTREQUEST).
	SetClientAuth(a tlsaut.ClientAuth)
	// SetVersionMin sets the minimum accepted TLS version.
	SetVersionMin(v tlsvrs.Version)
	// SetVersionMax sets the maximum accepted TLS version.
	SetVersionMax(v tlsvrs.Version)

	// Clone returns an independent copy of the configuration.
	Clone() Config
	// TlsConfig renders the accumulated settings as a *tls.Config for the
	// given server name. An empty serverName omits tls.Config.ServerName.
	TlsConfig(serverName string) *tls.Config
}

type config struct {
	mu         sync.RWMutex
	cert       []tls.Certificate
	clientAuth tls.ClientAuthType
	minVersion uint16
	maxVersion uint16
}

// New returns a Config with no certificate pair and TLS 1.2 as the
// default floor, matching the original's behavior absent a
// DISABLE_WEAK_SSL directive.
func New() Config {
	return &config{
		cert:       make([]tls.Certificate, 0, 1),
		clientAuth: tls.NoClientCert,
		minVersion: tlsvrs.VersionTLS12.Uint16(),
	}
}

func readPEMFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("certificates: empty file path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("certificates: stat %s: %w", path, err)
	}
	/* #nosec */
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("certificates: read %s: %w", path, err)
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("certificates: %s is empty", path)
	}
	return b, nil
}

func (c *config) AddCertificatePairFile(keyFile, crtFile string) error {
	if _, err := readPEMFile(keyFile); err != nil {
		return err
	}
	if _, err := readPEMFile(crtFile); err != nil {
		return err
	}

	pair, err := tls.LoadX509KeyPair(crtFile, keyFile)
	if err != nil {
		return fmt.Errorf("certificates: loading certificate pair: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = append(c.cert, pair)
	return nil
}

func (c *config) AddCertificatePairString(key, crt string) error {
	key = string(bytes.TrimSpace([]byte(key)))
	crt = string(bytes.TrimSpace([]byte(crt)))
	if key == "" || crt == "" {
		return fmt.Errorf("certificates: empty certificate pair")
	}

	pair, err := tls.X509KeyPair([]byte(crt), []byte(key))
	if err != nil {
		return fmt.Errorf("certificates: parsing certificate pair: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = append(c.cert, pair)
	return nil
}

func (c *config) LenCertificatePair() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cert)
}

func (c *config) GetCertificatePair() []tls.Certificate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(make([]tls.Certificate, 0, len(c.cert)), c.cert...)
}

func (c *config) SetClientAuth(a tlsaut.ClientAuth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientAuth = a.TLS()
}

func (c *config) SetVersionMin(v tlsvrs.Version) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minVersion = v.Uint16()
}

func (c *config) SetVersionMax(v tlsvrs.Version) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxVersion = v.Uint16()
}

func (c *config) Clone() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &config{
		cert:       append(make([]tls.Certificate, 0, len(c.cert)), c.cert...),
		clientAuth: c.clientAuth,
		minVersion: c.minVersion,
		maxVersion: c.maxVersion,
	}
}

func (c *config) TlsConfig(serverName string) *tls.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	/* #nosec */
	cnf := &tls.Config{
		InsecureSkipVerify: false,
	}

	if serverName != "" {
		cnf.ServerName = serverName
	}
	if c.minVersion != 0 {
		cnf.MinVersion = c.minVersion
	}
	if c.maxVersion != 0 {
		cnf.MaxVersion = c.maxVersion
	}
	if len(c.cert) > 0 {
		cnf.Certificates = append(make([]tls.Certificate, 0, len(c.cert)), c.cert...)
	}
	if c.clientAuth != tls.NoClientCert {
		cnf.ClientAuth = c.clientAuth
	}

	return cnf
}
