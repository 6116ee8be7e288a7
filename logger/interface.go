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

// Package logger provides the structured logging surface used throughout
// the daemon: level filtering, persistent fields, and a choice of stdout,
// file or syslog output, backed by logrus.
package logger

import (
	loglvl "github.com/nutcore/upsd/logger/level"
)

// Logger is the logging surface handed to every daemon component. Every
// method is safe for concurrent use: each client session, driver connector
// and the event loop itself log through the same instance.
type Logger interface {
	// SetLevel changes the minimal severity that reaches the output.
	SetLevel(lvl loglvl.Level)

	// GetLevel returns the current minimal severity.
	GetLevel() loglvl.Level

	// SetFields replaces the base fields attached to every entry emitted
	// by this Logger (not by clones taken before the call).
	SetFields(f Fields)

	// WithFields returns a child Logger that merges the given fields on
	// top of the parent's base fields for every entry it emits.
	WithFields(f Fields) Logger

	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warning(msg string, f Fields)
	Error(msg string, f Fields)

	// Close closes the log file opened for OutputFile; a syslog connection
	// is not closed, and on a child Logger Close does nothing.
	Close() error
}
