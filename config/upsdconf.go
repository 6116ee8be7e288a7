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

// Package config loads upsd.conf (directive/value pairs via Viper),
// ups.conf and upsd.users (section-per-entry via ini.v1), and watches all
// three for changes alongside SIGHUP.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nutcore/upsd/duration"
)

// Daemon bundles the upsd.conf directives (§6 configuration surface).
type Daemon struct {
	MaxAge         time.Duration
	MaxConn        int64
	Listen         []string
	StatePath      string
	CertFile       string
	CertPath       string
	CertRequest    int
	DisableWeakSSL bool
	TrackingTTL    time.Duration
}

const (
	defaultMaxAge      = 15 * time.Second
	defaultMaxConn     = 1024
	defaultStatePath   = "/var/state/upsd"
	defaultTrackingTTL = 10 * time.Minute
	defaultPort        = 3493
)

// LoadDaemon reads upsd.conf at path into a Daemon, applying the same
// defaults the original server falls back to when a directive is absent.
//
// upsd.conf directives are whitespace-delimited ("MAXAGE 15"), not the
// "key = value" syntax Viper's ini reader expects, and LISTEN may repeat
// to bind several addresses where a plain map loses all but the last
// occurrence. Both are reconciled here: each line is rewritten into
// "key = value" for Viper to decode the scalar directives, while LISTEN
// occurrences are collected separately and fed to parseListenDirectives.
func LoadDaemon(path string) (*Daemon, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var scalars bytes.Buffer
	var listenLines []string

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)
		if strings.EqualFold(key, "listen") {
			listenLines = append(listenLines, value)
			continue
		}
		fmt.Fprintf(&scalars, "%s = %s\n", strings.ToLower(key), value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigType("ini")
	v.SetDefault("maxage", strconv.FormatInt(int64(defaultMaxAge.Seconds()), 10))
	v.SetDefault("maxconn", defaultMaxConn)
	v.SetDefault("statepath", defaultStatePath)
	v.SetDefault("certrequest", 0)
	v.SetDefault("disable_weak_ssl", false)
	v.SetDefault("tracking_ttl", strconv.FormatInt(int64(defaultTrackingTTL.Seconds()), 10))

	if err := v.ReadConfig(&scalars); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	d := daemonFromViper(v)
	d.Listen = parseListenDirectives(listenLines)
	if len(d.Listen) == 0 {
		d.Listen = []string{fmt.Sprintf("127.0.0.1:%d", defaultPort)}
	}
	return d, nil
}

func daemonFromViper(v *viper.Viper) *Daemon {
	return &Daemon{
		MaxAge:         parseSecondsDirective(v.GetString("maxage"), defaultMaxAge),
		MaxConn:        int64(v.GetInt("maxconn")),
		StatePath:      v.GetString("statepath"),
		CertFile:       v.GetString("certfile"),
		CertPath:       v.GetString("certpath"),
		CertRequest:    v.GetInt("certrequest"),
		DisableWeakSSL: v.GetBool("disable_weak_ssl"),
		TrackingTTL:    parseSecondsDirective(v.GetString("tracking_ttl"), defaultTrackingTTL),
	}
}

// parseSecondsDirective accepts both the original's bare-integer-seconds
// directives ("MAXAGE 15") and a suffixed override ("MAXAGE 2m"), falling
// back to def when raw is empty or unparseable by either form.
func parseSecondsDirective(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	if d, err := duration.Parse(raw); err == nil {
		return d.Time()
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return duration.Seconds(int64(n)).Time()
	}
	return def
}

// parseListenDirectives turns each collected "LISTEN" value ("<addr>" or
// "<addr> <port>") into a dialable "host:port" pair.
func parseListenDirectives(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		host, port := entry, defaultPort
		var p int
		if n, err := fmt.Sscanf(entry, "%s %d", &host, &p); err == nil && n == 2 {
			port = p
		}
		out = append(out, fmt.Sprintf("%s:%d", host, port))
	}
	return out
}
