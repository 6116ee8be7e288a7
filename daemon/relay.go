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
	"fmt"

	"github.com/google/uuid"

	"github.com/nutcore/upsd/protocol"
)

// relay is Daemon viewed through the command.Relay interface; it has no
// state of its own beyond the Daemon it is cast from.
type relay Daemon

func (r *relay) asDaemon() *Daemon { return (*Daemon)(r) }

// SetVar implements command.Relay: forwards "SET <id> <var> <value>" to
// the owning driver connection, the id placed right after the verb so the
// driver echoes it back in its "TRACKING <id> <status>" ingress line
// (driver/connector.go's apply) once the change lands.
func (r *relay) SetVar(ups, variable, value string) (string, error) {
	d := r.asDaemon()
	c, ok := d.connectorFor(ups)
	if !ok {
		return "", fmt.Errorf("daemon: no connector for %s", ups)
	}
	id := uuid.NewString()
	line := protocol.Render([]string{"SET", id, variable, value})
	if err := c.Send(line); err != nil {
		return "", err
	}
	return id, nil
}

// InstCmd implements command.Relay: forwards "INSTCMD <id> <cmd> [<param>]",
// same id-placement convention as SetVar.
func (r *relay) InstCmd(ups, cmd, param string) (string, error) {
	d := r.asDaemon()
	c, ok := d.connectorFor(ups)
	if !ok {
		return "", fmt.Errorf("daemon: no connector for %s", ups)
	}
	id := uuid.NewString()
	vec := []string{"INSTCMD", id, cmd}
	if param != "" {
		vec = append(vec, param)
	}
	if err := c.Send(protocol.Render(vec)); err != nil {
		return "", err
	}
	return id, nil
}
