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

// Package metrics exposes upsd's operational state (driver freshness,
// login counts, connected clients) as Prometheus collectors, scraped
// from the registry and daemon on a fixed tick.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	tickrun "github.com/nabbar/golib/runner/ticker"

	"github.com/nutcore/upsd/registry"
)

const scrapeInterval = 5 * time.Second

// Source is the subset of *daemon.Daemon this package scrapes, kept
// narrow so metrics does not import daemon (daemon already imports
// registry and would otherwise form a cycle through a wider interface).
type Source interface {
	ClientCount() int
}

// Collector registers and periodically refreshes the upsd gauges.
type Collector struct {
	reg *registry.Registry
	src Source

	driverConnected *prometheus.GaugeVec
	stale           *prometheus.GaugeVec
	logins          *prometheus.GaugeVec
	clients         prometheus.Gauge

	tick interface {
		Start(ctx context.Context) error
		Stop(ctx context.Context) error
	}
}

// NewCollector builds a Collector and registers its metrics with reg.
func NewCollector(prom *prometheus.Registry, reg *registry.Registry, src Source) *Collector {
	c := &Collector{
		reg: reg,
		src: src,
		driverConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "upsd",
			Name:      "driver_connected",
			Help:      "1 if the driver for this UPS is currently connected, 0 otherwise.",
		}, []string{"ups"}),
		stale: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "upsd",
			Name:      "ups_stale",
			Help:      "1 if this UPS's data has exceeded MAXAGE without an update, 0 otherwise.",
		}, []string{"ups"}),
		logins: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "upsd",
			Name:      "ups_logins",
			Help:      "Number of client sessions currently logged in to this UPS.",
		}, []string{"ups"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "upsd",
			Name:      "clients_connected",
			Help:      "Number of client sessions currently connected to upsd.",
		}),
	}

	prom.MustRegister(c.driverConnected, c.stale, c.logins, c.clients)
	return c
}

// Start begins the periodic scrape. Stop it by cancelling ctx or by
// calling Stop.
func (c *Collector) Start(ctx context.Context) error {
	c.tick = tickrun.New(scrapeInterval, c.scrape)
	return c.tick.Start(ctx)
}

// Stop halts the periodic scrape.
func (c *Collector) Stop(ctx context.Context) error {
	if c.tick == nil {
		return nil
	}
	return c.tick.Stop(ctx)
}

// Scrape refreshes every gauge immediately, independent of the periodic
// tick; exported for tests and for an on-demand /metrics handler refresh.
func (c *Collector) Scrape() error {
	return c.scrape(context.Background(), nil)
}

func (c *Collector) scrape(_ context.Context, _ *time.Ticker) error {
	for _, u := range c.reg.List() {
		name := u.Name()
		c.driverConnected.WithLabelValues(name).Set(boolToFloat(u.DriverConnected()))
		c.stale.WithLabelValues(name).Set(boolToFloat(u.Stale()))
		c.logins.WithLabelValues(name).Set(float64(u.Logins()))
	}
	c.clients.Set(float64(c.src.ClientCount()))
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler returns the HTTP handler serving the Prometheus text exposition
// format for prom's registered collectors.
func Handler(prom *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(prom, promhttp.HandlerOpts{})
}
