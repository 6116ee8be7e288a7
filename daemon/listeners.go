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

package daemon

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nutcore/upsd/protocol"
	"github.com/nutcore/upsd/session"
)

// Listen binds every address in cfg.Listen and accepts connections until
// ctx is cancelled. The listener set itself is immutable across reloads
// (§3 invariant 5) — only the reload handler run by the maintenance pass
// (registry, users) reacts to SIGHUP.
func (d *Daemon) Listen(ctx context.Context) error {
	lns := make([]net.Listener, 0, len(d.cfg.Listen))
	for _, addr := range d.cfg.Listen {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			for _, o := range lns {
				o.Close()
			}
			return err
		}
		lns = append(lns, ln)
		d.logf("listening on %s", addr)
	}

	go func() {
		<-ctx.Done()
		for _, ln := range lns {
			ln.Close()
		}
		d.closeHeldConns()
	}()

	for _, ln := range lns {
		go d.acceptLoop(ctx, ln)
	}
	return nil
}

func (d *Daemon) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logf("accept error on %s: %v", ln.Addr(), err)
			continue
		}

		if !d.sem.TryAcquire(1) {
			// maxconn reached: per §5 new clients are accepted but left
			// unserviced rather than rejected. The connection stays open
			// with no read loop until maintenance promotes it into a
			// session as a slot frees up, or the daemon shuts down.
			d.holdConn(conn)
			continue
		}

		id := atomic.AddUint64(&d.nextID, 1)
		s := session.New(id, conn.RemoteAddr().String(), conn)
		d.register(s)
		go d.serveSession(ctx, s)
	}
}

// serveSession runs one client session's read/dispatch/write loop until
// disconnect.
func (d *Daemon) serveSession(ctx context.Context, s *session.Session) {
	defer d.disconnect(s)

	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn := s.Conn()

		n, err := conn.Read(buf)
		if err != nil {
			return
		}

		for i := 0; i < n; i++ {
			status := s.Tokenizer().Feed(buf[i])
			switch status {
			case protocol.Complete:
				vec := append([]string(nil), s.Tokenizer().Vector()...)
				s.Tokenizer().Reset()
				s.Touch(time.Now())

				reply := d.dispatcher.Dispatch(s, vec)
				if reply != "" {
					if _, werr := conn.Write([]byte(reply)); werr != nil {
						return
					}
				}

				if len(vec) > 0 && strings.EqualFold(vec[0], "STARTTLS") && strings.HasPrefix(reply, "OK") {
					if err := d.upgradeTLS(s); err != nil {
						return
					}
				}
				if s.State() == session.Closed {
					return
				}

			case protocol.Error:
				return
			}
		}
	}
}

// upgradeTLS performs the server-side TLS handshake and swaps the
// session's stream, matching §9's "opaque reader/writer swapped in
// atomically when STARTTLS completes before any further bytes are read".
func (d *Daemon) upgradeTLS(s *session.Session) error {
	if d.cfg.TLSConfig == nil {
		return nil
	}
	raw := s.Conn()
	tlsConn := tls.Server(raw.(net.Conn), d.cfg.TLSConfig)
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		return err
	}
	s.UpgradeTLS(tlsConn)
	return nil
}

func (d *Daemon) logf(format string, args ...interface{}) {
	if d.log == nil {
		return
	}
	d.log.Info(fmt.Sprintf(format, args...), nil)
}
