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

package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nutcore/upsd/protoerr"
	"github.com/nutcore/upsd/registry"
	"github.com/nutcore/upsd/session"
)

func handleHelp(d *Dispatcher, c *Call) string {
	return "Commands: " + strings.Join(Names(), " ") + "\n"
}

func handleVer(d *Dispatcher, c *Call) string {
	v := d.Version
	if v == "" {
		v = "unknown"
	}
	return fmt.Sprintf("Network UPS Tools upsd %s\n", v)
}

func handleNetVer(d *Dispatcher, c *Call) string {
	v := d.NetVer
	if v == "" {
		v = "1.3"
	}
	return v + "\n"
}

func handleUsername(d *Dispatcher, c *Call) string {
	if len(c.Args) < 2 {
		return protoerr.WireLine(protoerr.InvalidArgument, "USERNAME") + "\n"
	}
	if !c.Session.SetUsername(c.Args[1]) {
		return protoerr.WireLine(protoerr.AlreadySetUsername, "") + "\n"
	}
	return "OK\n"
}

func handlePassword(d *Dispatcher, c *Call) string {
	if len(c.Args) < 2 {
		return protoerr.WireLine(protoerr.InvalidArgument, "PASSWORD") + "\n"
	}
	if !c.Session.SetPassword(c.Args[1]) {
		return protoerr.WireLine(protoerr.AlreadySetPassword, "") + "\n"
	}
	if c.Session.HasUsername() {
		c.Session.Authenticate(d.Users)
	}
	return "OK\n"
}

func handleStartTLS(d *Dispatcher, c *Call) string {
	if c.Session.TLSActive() {
		return protoerr.WireLine(protoerr.TLSAlreadyStarted, "") + "\n"
	}
	if d.TLSConfig == nil {
		return protoerr.WireLine(protoerr.TLSNotEnabled, "") + "\n"
	}
	// The actual stream swap happens in the daemon's session loop, which
	// observes this OK and performs the tls.Server handshake before
	// reading the next byte; the handler only validates preconditions.
	return "OK\n"
}

func handleLogin(d *Dispatcher, c *Call) string {
	if len(c.Args) < 2 {
		return protoerr.WireLine(protoerr.InvalidArgument, "LOGIN") + "\n"
	}
	name := c.Args[1]
	u, ok := d.Registry.Get(name)
	if !ok {
		return protoerr.WireLine(protoerr.UnknownUPS, name) + "\n"
	}
	if !c.Session.Bind(name) {
		return protoerr.WireLine(protoerr.AlreadyLoggedIn, "") + "\n"
	}
	u.Login()
	return "OK\n"
}

func handleLogout(d *Dispatcher, c *Call) string {
	if name := c.Session.Unbind(); name != "" {
		if u, ok := d.Registry.Get(name); ok {
			u.Logout()
		}
	}
	_ = c.Session.Close()
	return "OK Goodbye\n"
}

func handlePrimary(d *Dispatcher, c *Call) string {
	if len(c.Args) < 2 {
		return protoerr.WireLine(protoerr.InvalidArgument, "PRIMARY") + "\n"
	}
	u := c.Session.User()
	if u == nil || !u.IsPrimary() {
		return protoerr.WireLine(protoerr.AccessDenied, "") + "\n"
	}
	c.Session.SetPrimary(true)
	return "OK\n"
}

func handleFSD(d *Dispatcher, c *Call) string {
	if len(c.Args) < 2 {
		return protoerr.WireLine(protoerr.InvalidArgument, "FSD") + "\n"
	}
	name := c.Args[1]
	u, ok := d.Registry.Get(name)
	if !ok {
		return protoerr.WireLine(protoerr.UnknownUPS, name) + "\n"
	}
	u.SetForcedShutdown(true)
	return "OK FSD-SET\n"
}

func handleSet(d *Dispatcher, c *Call) string {
	// SET VAR <ups> <var> <value>
	if len(c.Args) < 5 || strings.ToUpper(c.Args[1]) != "VAR" {
		return protoerr.WireLine(protoerr.InvalidArgument, "SET") + "\n"
	}
	upsName, varName, value := c.Args[2], c.Args[3], strings.Join(c.Args[4:], " ")

	u, ok := d.Registry.Get(upsName)
	if !ok {
		return protoerr.WireLine(protoerr.UnknownUPS, upsName) + "\n"
	}
	v, ok := u.Variable(varName)
	if !ok {
		return protoerr.WireLine(protoerr.UnknownVar, varName) + "\n"
	}
	if v.Mutability != registry.ReadWrite {
		return protoerr.WireLine(protoerr.AccessDenied, varName) + "\n"
	}
	if usr := c.Session.User(); usr == nil || !usr.SetVariable {
		return protoerr.WireLine(protoerr.AccessDenied, varName) + "\n"
	}
	if !v.Accepts(value) {
		return protoerr.WireLine(protoerr.InvalidValue, varName) + "\n"
	}

	id := newTrackingID()
	if d.Relay != nil {
		relayID, err := d.Relay.SetVar(upsName, varName, value)
		if err != nil {
			return protoerr.WireLine(protoerr.SetFailed, varName) + "\n"
		}
		if relayID != "" {
			id = relayID
		}
	}
	u.Track(id, registry.Pending, time.Now())

	if d.Tracking && c.Session.Tracking() {
		return fmt.Sprintf("OK TRACKING %s\n", id)
	}
	return "OK\n"
}

func handleInstCmd(d *Dispatcher, c *Call) string {
	// INSTCMD <ups> <cmd> [<param>]
	if len(c.Args) < 3 {
		return protoerr.WireLine(protoerr.InvalidArgument, "INSTCMD") + "\n"
	}
	upsName, cmdName := c.Args[1], c.Args[2]
	param := ""
	if len(c.Args) > 3 {
		param = strings.Join(c.Args[3:], " ")
	}

	u, ok := d.Registry.Get(upsName)
	if !ok {
		return protoerr.WireLine(protoerr.UnknownUPS, upsName) + "\n"
	}
	if !u.HasCommand(cmdName) {
		return protoerr.WireLine(protoerr.InvalidArgument, cmdName) + "\n"
	}
	usr := c.Session.User()
	if usr == nil || !usr.AllowsInstCmd(cmdName) {
		return protoerr.WireLine(protoerr.AccessDenied, cmdName) + "\n"
	}

	id := newTrackingID()
	if d.Relay != nil {
		relayID, err := d.Relay.InstCmd(upsName, cmdName, param)
		if err != nil {
			return protoerr.WireLine(protoerr.SetFailed, cmdName) + "\n"
		}
		if relayID != "" {
			id = relayID
		}
	}
	u.Track(id, registry.Pending, time.Now())

	if d.Tracking && c.Session.Tracking() {
		return fmt.Sprintf("OK TRACKING %s\n", id)
	}
	return "OK\n"
}

func handleList(d *Dispatcher, c *Call) string {
	if len(c.Args) < 2 {
		return protoerr.WireLine(protoerr.InvalidArgument, "LIST") + "\n"
	}
	sub := strings.ToUpper(c.Args[1])

	if sub == "UPS" {
		var b strings.Builder
		b.WriteString("BEGIN LIST UPS\n")
		for _, u := range d.Registry.List() {
			fmt.Fprintf(&b, "UPS %s %q\n", u.Name(), u.Description())
		}
		b.WriteString("END LIST UPS\n")
		return b.String()
	}

	if len(c.Args) < 3 {
		return protoerr.WireLine(protoerr.InvalidArgument, "LIST") + "\n"
	}
	upsName := c.Args[2]
	u, ok := d.Registry.Get(upsName)
	if !ok {
		return protoerr.WireLine(protoerr.UnknownUPS, upsName) + "\n"
	}

	if !u.DriverConnected() {
		return protoerr.WireLine(protoerr.DriverNotConnected, "") + "\n"
	}
	if u.Stale() {
		return protoerr.WireLine(protoerr.DataStale, "") + "\n"
	}

	switch sub {
	case "VAR":
		var b strings.Builder
		fmt.Fprintf(&b, "BEGIN LIST VAR %s\n", upsName)
		for _, v := range u.Variables() {
			fmt.Fprintf(&b, "VAR %s %s %q\n", upsName, v.Name, v.Value)
		}
		fmt.Fprintf(&b, "END LIST VAR %s\n", upsName)
		return b.String()

	case "RW":
		var b strings.Builder
		fmt.Fprintf(&b, "BEGIN LIST RW %s\n", upsName)
		for _, v := range u.Variables() {
			if v.Mutability == registry.ReadWrite {
				fmt.Fprintf(&b, "RW %s %s %q\n", upsName, v.Name, v.Value)
			}
		}
		fmt.Fprintf(&b, "END LIST RW %s\n", upsName)
		return b.String()

	case "CMD":
		var b strings.Builder
		fmt.Fprintf(&b, "BEGIN LIST CMD %s\n", upsName)
		for _, cmd := range u.Commands() {
			fmt.Fprintf(&b, "CMD %s %s\n", upsName, cmd)
		}
		fmt.Fprintf(&b, "END LIST CMD %s\n", upsName)
		return b.String()

	case "ENUM":
		if len(c.Args) < 4 {
			return protoerr.WireLine(protoerr.InvalidArgument, "LIST ENUM") + "\n"
		}
		varName := c.Args[3]
		v, ok := u.Variable(varName)
		if !ok {
			return protoerr.WireLine(protoerr.UnknownVar, varName) + "\n"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "BEGIN LIST ENUM %s %s\n", upsName, varName)
		for _, e := range v.Enum {
			fmt.Fprintf(&b, "ENUM %s %s %q\n", upsName, varName, e)
		}
		fmt.Fprintf(&b, "END LIST ENUM %s %s\n", upsName, varName)
		return b.String()

	case "RANGE":
		if len(c.Args) < 4 {
			return protoerr.WireLine(protoerr.InvalidArgument, "LIST RANGE") + "\n"
		}
		varName := c.Args[3]
		v, ok := u.Variable(varName)
		if !ok {
			return protoerr.WireLine(protoerr.UnknownVar, varName) + "\n"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "BEGIN LIST RANGE %s %s\n", upsName, varName)
		for _, r := range v.Ranges {
			fmt.Fprintf(&b, "RANGE %s %s %s %s\n", upsName, varName, formatFloat(r.Min), formatFloat(r.Max))
		}
		fmt.Fprintf(&b, "END LIST RANGE %s %s\n", upsName, varName)
		return b.String()

	case "CLIENT":
		if c.Session.State() != session.Authed {
			return protoerr.WireLine(protoerr.AccessDenied, "") + "\n"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "BEGIN LIST CLIENT %s\n", upsName)
		if d.ClientsOf != nil {
			for _, peer := range d.ClientsOf(upsName) {
				fmt.Fprintf(&b, "CLIENT %s %s\n", upsName, peer)
			}
		}
		fmt.Fprintf(&b, "END LIST CLIENT %s\n", upsName)
		return b.String()

	default:
		return protoerr.WireLine(protoerr.InvalidArgument, sub) + "\n"
	}
}

func handleGet(d *Dispatcher, c *Call) string {
	if len(c.Args) < 2 {
		return protoerr.WireLine(protoerr.InvalidArgument, "GET") + "\n"
	}
	sub := strings.ToUpper(c.Args[1])

	if sub == "TRACKING" {
		if len(c.Args) < 3 {
			return protoerr.WireLine(protoerr.InvalidArgument, "GET TRACKING") + "\n"
		}
		id := c.Args[2]
		if _, err := uuid.Parse(id); err != nil {
			return protoerr.WireLine(protoerr.InvalidArgument, "GET TRACKING") + "\n"
		}
		for _, u := range d.Registry.List() {
			if st := u.TrackingStatus(id); st != registry.Unknown {
				return st.String() + "\n"
			}
		}
		return registry.Unknown.String() + "\n"
	}

	if len(c.Args) < 3 {
		return protoerr.WireLine(protoerr.InvalidArgument, "GET") + "\n"
	}
	upsName := c.Args[2]
	u, ok := d.Registry.Get(upsName)
	if !ok {
		return protoerr.WireLine(protoerr.UnknownUPS, upsName) + "\n"
	}

	switch sub {
	case "NUMLOGINS":
		return fmt.Sprintf("NUMLOGINS %s %d\n", upsName, u.Logins())

	case "UPSDESC":
		return fmt.Sprintf("UPSDESC %s %q\n", upsName, u.Description())

	case "VAR":
		if len(c.Args) < 4 {
			return protoerr.WireLine(protoerr.InvalidArgument, "GET VAR") + "\n"
		}
		if !u.DriverConnected() {
			return protoerr.WireLine(protoerr.DriverNotConnected, "") + "\n"
		}
		if u.Stale() {
			return protoerr.WireLine(protoerr.DataStale, "") + "\n"
		}
		varName := c.Args[3]
		v, ok := u.Variable(varName)
		if !ok {
			return protoerr.WireLine(protoerr.UnknownVar, varName) + "\n"
		}
		return fmt.Sprintf("VAR %s %s %q\n", upsName, varName, v.Value)

	case "TYPE":
		if len(c.Args) < 4 {
			return protoerr.WireLine(protoerr.InvalidArgument, "GET TYPE") + "\n"
		}
		varName := c.Args[3]
		v, ok := u.Variable(varName)
		if !ok {
			return protoerr.WireLine(protoerr.UnknownVar, varName) + "\n"
		}
		rw := "RO"
		if v.Mutability == registry.ReadWrite {
			rw = "RW"
		}
		return fmt.Sprintf("TYPE %s %s %s %s\n", upsName, varName, v.Type.String(), rw)

	case "DESC":
		if len(c.Args) < 4 {
			return protoerr.WireLine(protoerr.InvalidArgument, "GET DESC") + "\n"
		}
		varName := c.Args[3]
		v, ok := u.Variable(varName)
		if !ok {
			return protoerr.WireLine(protoerr.UnknownVar, varName) + "\n"
		}
		return fmt.Sprintf("DESC %s %s %q\n", upsName, varName, v.Desc)

	case "CMDDESC":
		if len(c.Args) < 4 {
			return protoerr.WireLine(protoerr.InvalidArgument, "GET CMDDESC") + "\n"
		}
		cmdName := c.Args[3]
		if !u.HasCommand(cmdName) {
			return protoerr.WireLine(protoerr.InvalidArgument, cmdName) + "\n"
		}
		desc, _ := u.CmdDesc(cmdName)
		return fmt.Sprintf("CMDDESC %s %s %q\n", upsName, cmdName, desc)

	case "RANGE":
		if len(c.Args) < 4 {
			return protoerr.WireLine(protoerr.InvalidArgument, "GET RANGE") + "\n"
		}
		varName := c.Args[3]
		v, ok := u.Variable(varName)
		if !ok {
			return protoerr.WireLine(protoerr.UnknownVar, varName) + "\n"
		}
		if len(v.Ranges) == 0 {
			return fmt.Sprintf("RANGE %s %s 0 0\n", upsName, varName)
		}
		return fmt.Sprintf("RANGE %s %s %s %s\n", upsName, varName, formatFloat(v.Ranges[0].Min), formatFloat(v.Ranges[0].Max))

	default:
		return protoerr.WireLine(protoerr.InvalidArgument, sub) + "\n"
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func newTrackingID() string {
	return uuid.NewString()
}
