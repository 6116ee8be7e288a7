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

package logger

import loglvl "github.com/nutcore/upsd/logger/level"

// Output selects where log entries are written.
type Output uint8

const (
	// OutputStdout writes to the process's standard output.
	OutputStdout Output = iota
	// OutputFile writes to the file named by Options.FilePath, created if
	// missing and appended to otherwise.
	OutputFile
	// OutputSyslog writes to the local syslog daemon. On windows, New
	// returns an error for this output.
	OutputSyslog
)

// Options configures a Logger at construction time. It mirrors the
// LOG directives a daemon reads from its configuration file.
type Options struct {
	Level    loglvl.Level
	Output   Output
	FilePath string

	// Facility is the syslog facility name (e.g. "daemon"), used only
	// when Output is OutputSyslog.
	Facility string
}
