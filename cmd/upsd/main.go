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

// Command upsd is the network server for UPS data: it loads upsd.conf,
// ups.conf and upsd.users, binds its listeners, and mediates between
// driver endpoints and client sessions until signalled to stop.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nutcore/upsd/acl"
	"github.com/nutcore/upsd/config"
	"github.com/nutcore/upsd/daemon"
	"github.com/nutcore/upsd/driver"
	"github.com/nutcore/upsd/logger"
	loglvl "github.com/nutcore/upsd/logger/level"
	"github.com/nutcore/upsd/metrics"
	"github.com/nutcore/upsd/registry"
)

const progname = "upsd"

var (
	flagConfDir string
	flagChroot  string
	flagUser    string
	flagCmd     string
	flagDebug   bool
	flagQuiet   bool
	flagIPv4    bool
	flagIPv6    bool
	flagVersion bool
)

func main() {
	root := &cobra.Command{
		Use:     progname,
		Short:   "Network server for UPS data",
		Version: "2.8.0",
		RunE:    run,
	}

	root.Flags().StringVarP(&flagConfDir, "confdir", "i", "/etc/ups", "directory holding upsd.conf, ups.conf, upsd.users")
	root.Flags().StringVarP(&flagChroot, "r", "r", "", "chroot to <dir>")
	root.Flags().StringVarP(&flagUser, "u", "u", "", "switch to <user> (if started as root)")
	root.Flags().StringVarP(&flagCmd, "c", "c", "", "send <command> (reload|stop) to the running process")
	root.Flags().BoolVarP(&flagDebug, "D", "D", false, "raise debugging level")
	root.Flags().BoolVarP(&flagQuiet, "q", "q", false, "raise log level threshold")
	root.Flags().BoolVarP(&flagIPv4, "4", "4", false, "IPv4 only")
	root.Flags().BoolVarP(&flagIPv6, "6", "6", false, "IPv6 only")
	root.Flags().BoolVarP(&flagVersion, "V", "V", false, "display the version of this software")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("upsd: %v", err))
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	fmt.Printf("Network UPS Tools %s 2.8.0\n", progname)

	if flagVersion {
		return nil
	}

	pidPath := filepath.Join(os.TempDir(), progname+".pid")

	if flagCmd != "" {
		return sendCommand(pidPath, flagCmd)
	}

	level := loglvl.InfoLevel
	if flagDebug {
		level = loglvl.DebugLevel
	}
	if flagQuiet {
		level = loglvl.WarnLevel
	}
	log, err := logger.New(logger.Options{Level: level, Output: logger.OutputStdout})
	if err != nil {
		return fmt.Errorf("upsd: logger: %w", err)
	}

	if flagChroot != "" {
		if err := syscall.Chroot(flagChroot); err != nil {
			return fmt.Errorf("upsd: chroot %s: %w", flagChroot, err)
		}
	}
	if flagUser != "" {
		if err := dropPrivileges(flagUser); err != nil {
			return fmt.Errorf("upsd: switching to user %s: %w", flagUser, err)
		}
	}

	if err := writePidfile(pidPath); err != nil {
		return fmt.Errorf("upsd: pidfile: %w", err)
	}
	defer os.Remove(pidPath)

	dcfg, err := config.LoadDaemon(filepath.Join(flagConfDir, "upsd.conf"))
	if err != nil {
		return err
	}
	if flagIPv4 {
		dcfg.Listen = filterListen(dcfg.Listen, "tcp4")
	} else if flagIPv6 {
		dcfg.Listen = filterListen(dcfg.Listen, "tcp6")
	}

	upsEntries, err := config.LoadUPSConf(filepath.Join(flagConfDir, "ups.conf"))
	if err != nil {
		return err
	}
	db, err := config.LoadUsersConf(filepath.Join(flagConfDir, "upsd.users"))
	if err != nil {
		return err
	}

	reg := registry.New()
	for _, e := range upsEntries {
		u := registry.NewUPS(e.Name, e.Socket(dcfg.StatePath), 0, dcfg.TrackingTTL)
		u.SetDescription(e.Desc)
		reg.Add(u)
	}

	tlsConf, err := buildTLSConfig(dcfg)
	if err != nil {
		return err
	}

	d := daemon.New(daemon.Config{
		Listen:      dcfg.Listen,
		MaxAge:      dcfg.MaxAge,
		MaxConn:     dcfg.MaxConn,
		TrackingTTL: dcfg.TrackingTTL,
		Version:     "2.8.0",
		NetVer:      "1.3",
		Tracking:    true,
		TLSConfig:   tlsConf,
	}, log, reg, db, acl.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, e := range upsEntries {
		ups, ok := reg.Get(e.Name)
		if !ok {
			continue
		}
		c := driver.New(ups, nil, log, d.KickBound)
		d.AddConnector(c, e.Name)
		go c.Run(ctx)
	}

	d.SetReloadHandler(func() {
		reloadConfig(log, d, dcfg.StatePath)
	})

	watcher, err := config.WatchFiles(ctx, d.RequestReload,
		filepath.Join(flagConfDir, "upsd.conf"),
		filepath.Join(flagConfDir, "ups.conf"),
		filepath.Join(flagConfDir, "upsd.users"),
	)
	if err != nil {
		log.Warning("fsnotify watch disabled", logger.Fields{"error": err.Error()})
	} else {
		defer watcher.Close()
	}

	if err := d.Listen(ctx); err != nil {
		return fmt.Errorf("upsd: listen: %w", err)
	}
	if err := d.StartMaintenance(ctx); err != nil {
		return fmt.Errorf("upsd: maintenance: %w", err)
	}

	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg, reg, d)
	if err := collector.Start(ctx); err != nil {
		return fmt.Errorf("upsd: metrics: %w", err)
	}
	defer collector.Stop(context.Background())
	startMetricsServer(ctx, log, promReg)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for s := range sig {
			if s == syscall.SIGHUP {
				d.RequestReload()
				continue
			}
			cancel()
			return
		}
	}()

	d.WaitForSignals(ctx)
	return nil
}

// reloadConfig re-reads ups.conf and upsd.users, reconciling the registry
// (marking removed sections for deferred removal rather than evicting
// bound clients) and swapping the user table atomically (§4.6).
func reloadConfig(log logger.Logger, d *daemon.Daemon, statePath string) {
	upsEntries, err := config.LoadUPSConf(filepath.Join(flagConfDir, "ups.conf"))
	if err != nil {
		log.Warning("reload: ups.conf", logger.Fields{"error": err.Error()})
		return
	}

	seen := map[string]struct{}{}
	for _, e := range upsEntries {
		seen[e.Name] = struct{}{}
		if u, ok := d.Registry.Get(e.Name); ok {
			u.SetDescription(e.Desc)
			continue
		}
		u := registry.NewUPS(e.Name, e.Socket(statePath), 0, 0)
		u.SetDescription(e.Desc)
		d.Registry.Add(u)
	}
	for _, u := range d.Registry.List() {
		if _, ok := seen[u.Name()]; !ok {
			d.Registry.MarkForRemoval(u.Name())
		}
	}

	newDB, err := config.LoadUsersConf(filepath.Join(flagConfDir, "upsd.users"))
	if err != nil {
		log.Warning("reload: upsd.users", logger.Fields{"error": err.Error()})
		return
	}
	d.Users.Replace(newDB.All())
}

// startMetricsServer serves the Prometheus exposition format on
// 127.0.0.1:9493/metrics until ctx is cancelled. Bind failures are logged,
// not fatal: metrics are diagnostic, not load-bearing for the protocol.
func startMetricsServer(ctx context.Context, log logger.Logger, prom *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(prom))
	srv := &http.Server{Addr: "127.0.0.1:9493", Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warning("metrics server stopped", logger.Fields{"error": err.Error()})
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

// filterListen drops addresses whose host parses as the family unwanted
// by -4/-6, leaving hostnames (resolved later by net.Listen) untouched.
func filterListen(addrs []string, family string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		host, _, err := net.SplitHostPort(a)
		if err != nil {
			out = append(out, a)
			continue
		}
		ip := net.ParseIP(host)
		if ip == nil {
			out = append(out, a)
			continue
		}
		isV4 := ip.To4() != nil
		if (family == "tcp4" && isV4) || (family == "tcp6" && !isV4) {
			out = append(out, a)
		}
	}
	return out
}

// dropPrivileges switches the process's user to username for "-u <user>";
// run calls it before the listeners are bound.
func dropPrivileges(username string) error {
	u, err := user.Lookup(username)
	if err != nil {
		return err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return err
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return err
	}
	if err := syscall.Setgid(gid); err != nil {
		return err
	}
	return syscall.Setuid(uid)
}

func writePidfile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func sendCommand(path, command string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("upsd: reading pidfile %s: %w", path, err)
	}
	pid, err := strconv.Atoi(string(raw))
	if err != nil {
		return fmt.Errorf("upsd: malformed pidfile %s: %w", path, err)
	}

	var sig syscall.Signal
	switch command {
	case "reload":
		sig = syscall.SIGHUP
	case "stop":
		sig = syscall.SIGTERM
	default:
		return fmt.Errorf("upsd: unknown command %q", command)
	}
	return syscall.Kill(pid, sig)
}
