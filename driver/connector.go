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

// Package driver maintains one connection per configured UPS to its local
// driver endpoint, ingesting the driver's pushed records into the
// registry and relaying SET/INSTCMD requests back to it.
package driver

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nutcore/upsd/logger"
	"github.com/nutcore/upsd/protocol"
	"github.com/nutcore/upsd/registry"
)

// Dialer abstracts the local endpoint transport (§6 "driver endpoint").
// DialUnix is the only Dialer this package provides; there is no
// named-pipe dialer.
type Dialer func(ctx context.Context, socket string) (net.Conn, error)

// DialUnix dials a Unix domain socket at path; New uses it on every
// platform when no Dialer is given.
func DialUnix(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}

// minBackoff and maxBackoff bound how quickly a connector retries after losing its
// driver endpoint.
const (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

// KickFunc force-disconnects every client session bound to ups, invoked
// once a post-reconnect DUMPDONE lands (§4.6 kick-on-driver-restart).
type KickFunc func(ups string)

// Connector owns the lifecycle of one UPS's driver connection.
type Connector struct {
	ups    *registry.UPS
	dialer Dialer
	log    logger.Logger
	kick   KickFunc

	mu          sync.Mutex
	conn        net.Conn
	tok         *protocol.Tokenizer
	reconnected bool // set once the connection drops at least once

	backoff time.Duration
}

// New returns a Connector for ups, dialing through dialer (DialUnix if
// nil). Freshness is enforced separately by registry.Registry.Maintain.
func New(ups *registry.UPS, dialer Dialer, log logger.Logger, kick KickFunc) *Connector {
	if dialer == nil {
		dialer = DialUnix
	}
	return &Connector{
		ups:     ups,
		dialer:  dialer,
		log:     log,
		kick:    kick,
		tok:     protocol.New(),
		backoff: minBackoff,
	}
}

// Run drives the connect/read/reconnect loop until ctx is cancelled. It is
// meant to be run in its own goroutine, one per configured UPS (§5).
func (c *Connector) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.connectAndDump(ctx); err != nil {
			c.logf("driver connect failed: %v", err)
			c.ups.SetDriverConnected(false)
			if !c.sleepBackoff(ctx) {
				return
			}
			continue
		}

		c.backoff = minBackoff
		c.ups.SetDriverConnected(true)

		err := c.readLoop(ctx)
		c.ups.SetDriverConnected(false)
		c.closeConn()
		if err != nil {
			c.logf("driver read loop ended: %v", err)
		}
		c.reconnected = true

		if !c.sleepBackoff(ctx) {
			return
		}
	}
}

func (c *Connector) sleepBackoff(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.backoff):
	}
	c.backoff *= 2
	if c.backoff > maxBackoff {
		c.backoff = maxBackoff
	}
	return true
}

func (c *Connector) connectAndDump(ctx context.Context) error {
	conn, err := c.dialer(ctx, c.ups.Socket())
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if _, err := fmt.Fprintf(conn, "LOGIN %s\n", c.ups.Name()); err != nil {
		conn.Close()
		return err
	}
	if _, err := fmt.Fprintf(conn, "DUMPALL\n"); err != nil {
		conn.Close()
		return err
	}
	return nil
}

func (c *Connector) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// readLoop reads driver-pushed lines until EOF/error, applying each
// complete vector as an ingress verb.
func (c *Connector) readLoop(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("driver: no connection")
	}

	r := bufio.NewReaderSize(conn, 4096)
	c.tok.Reset()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		b, err := r.ReadByte()
		if err != nil {
			return err
		}

		status := c.tok.Feed(b)
		switch status {
		case protocol.Complete:
			vec := append([]string(nil), c.tok.Vector()...)
			c.tok.Reset()
			c.ups.Touch(time.Now())
			c.apply(vec)
		case protocol.Error:
			return c.tok.Err()
		}
	}
}

// apply interprets one complete ingress vector (§4.2).
func (c *Connector) apply(vec []string) {
	if len(vec) == 0 {
		return
	}
	verb := strings.ToUpper(vec[0])
	args := vec[1:]

	switch verb {
	case "SETINFO":
		if len(args) >= 2 {
			c.ups.SetInfo(args[0], strings.Join(args[1:], " "))
		}
	case "ADDINFO":
		if len(args) >= 1 {
			val := ""
			if len(args) >= 2 {
				val = strings.Join(args[1:], " ")
			}
			c.ups.AddInfo(args[0], val)
		}
	case "DELINFO":
		if len(args) >= 1 {
			c.ups.DelInfo(args[0])
		}
	case "SETFLAGS":
		if len(args) >= 1 {
			c.ups.SetFlags(args[0], args[1:])
		}
	case "SETAUX":
		if len(args) >= 2 {
			if n, err := strconv.Atoi(args[1]); err == nil {
				c.ups.SetAux(args[0], n)
			}
		}
	case "ADDENUM":
		if len(args) >= 2 {
			c.ups.AddEnum(args[0], strings.Join(args[1:], " "))
		}
	case "DELENUM":
		if len(args) >= 2 {
			c.ups.DelEnum(args[0], strings.Join(args[1:], " "))
		}
	case "ADDRANGE":
		if len(args) >= 3 {
			min, err1 := strconv.ParseFloat(args[1], 64)
			max, err2 := strconv.ParseFloat(args[2], 64)
			if err1 == nil && err2 == nil {
				c.ups.AddRange(args[0], min, max)
			}
		}
	case "DELRANGE":
		if len(args) >= 3 {
			min, err1 := strconv.ParseFloat(args[1], 64)
			max, err2 := strconv.ParseFloat(args[2], 64)
			if err1 == nil && err2 == nil {
				c.ups.DelRange(args[0], min, max)
			}
		}
	case "ADDCMD":
		if len(args) >= 1 {
			c.ups.AddCmd(args[0])
		}
	case "DELCMD":
		if len(args) >= 1 {
			c.ups.DelCmd(args[0])
		}
	case "TRACKING":
		if len(args) >= 2 {
			c.ups.UpdateTracking(args[0], parseTrackStatus(args[1]))
		}
	case "DUMPDONE":
		c.ups.Touch(time.Now())
		if c.reconnected && c.kick != nil {
			c.kick(c.ups.Name())
			c.reconnected = false
		}
	case "PONG":
		// heartbeat reply; last-heard already bumped above.
	default:
		c.logf("unknown driver verb %q from %s", verb, c.ups.Name())
	}
}

func parseTrackStatus(s string) registry.TrackStatus {
	switch strings.ToUpper(s) {
	case "SUCCESS":
		return registry.Success
	case "FAILED":
		return registry.Failed
	case "PENDING":
		return registry.Pending
	default:
		return registry.Unknown
	}
}

// Send relays one line to the driver endpoint, used by the command
// dispatcher's Relay implementation for SET/INSTCMD.
func (c *Connector) Send(line string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("driver %s: not connected", c.ups.Name())
	}
	_, err := fmt.Fprintf(conn, "%s\n", line)
	return err
}

func (c *Connector) logf(format string, args ...interface{}) {
	if c.log == nil {
		return
	}
	c.log.WithFields(logger.Fields{"ups": c.ups.Name()}).Warning(fmt.Sprintf(format, args...), nil)
}
