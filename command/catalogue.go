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

import "strings"

// Flag bits gate a command entry behind session state, matching §4.5's
// "required-flag bitset".
type Flag uint8

const (
	// FlagUser requires the session to have reached AUTHED.
	FlagUser Flag = 1 << iota
	// FlagTLS requires TLS_ACTIVE.
	FlagTLS
	// FlagPrimary requires the authenticated user to carry primary
	// authority (PRIMARY/MASTER, FSD).
	FlagPrimary
)

// Handler executes one command's semantics and returns the full wire
// reply, including its trailing newline(s).
type Handler func(d *Dispatcher, ctx *Call) string

// entry is one row of the command table: data, not code, per §9 design
// notes, enumerated programmatically for HELP/VER rather than hand-written
// prose.
type entry struct {
	name    string
	flags   Flag
	handler Handler
}

// table is built once at init and never mutated; Dispatch looks up by the
// case-folded first token.
var table []entry

func register(name string, flags Flag, h Handler) {
	table = append(table, entry{name: name, flags: flags, handler: h})
}

func lookup(verb string) (entry, bool) {
	up := strings.ToUpper(verb)
	for _, e := range table {
		if e.name == up {
			return e, true
		}
	}
	return entry{}, false
}

// Names returns every registered command name in catalogue order, used by
// HELP to enumerate the table instead of a hand-maintained string
// (grounded on the original's cmdtab).
func Names() []string {
	out := make([]string, 0, len(table))
	for _, e := range table {
		out = append(out, e.name)
	}
	return out
}

func init() {
	register("HELP", 0, handleHelp)
	register("VER", 0, handleVer)
	register("NETVER", 0, handleNetVer)

	register("LIST", 0, handleList)
	register("GET", 0, handleGet)

	register("USERNAME", 0, handleUsername)
	register("PASSWORD", 0, handlePassword)
	register("STARTTLS", 0, handleStartTLS)
	register("LOGIN", FlagUser, handleLogin)
	register("LOGOUT", 0, handleLogout)
	register("PRIMARY", FlagUser, handlePrimary)
	register("MASTER", FlagUser, handlePrimary)
	register("FSD", FlagUser|FlagPrimary, handleFSD)
	register("SET", FlagUser, handleSet)
	register("INSTCMD", FlagUser, handleInstCmd)
}
