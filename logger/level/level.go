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

// Package level defines the logging severity levels shared by the logger
// package and the -D/-q CLI flags.
package level

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is the minimal severity a log entry must carry to be emitted.
type Level uint8

const (
	NilLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

// Parse converts a case-insensitive level name into a Level, defaulting to
// InfoLevel when the string is not recognised.
func Parse(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fatal":
		return FatalLevel
	case "error":
		return ErrorLevel
	case "warn", "warning":
		return WarnLevel
	case "debug":
		return DebugLevel
	case "nil", "none", "off":
		return NilLevel
	default:
		return InfoLevel
	}
}

// String returns the lower-case name of the level.
func (l Level) String() string {
	switch l {
	case FatalLevel:
		return "fatal"
	case ErrorLevel:
		return "error"
	case WarnLevel:
		return "warning"
	case DebugLevel:
		return "debug"
	case NilLevel:
		return "nil"
	default:
		return "info"
	}
}

// Logrus maps a Level onto the equivalent logrus.Level.
func (l Level) Logrus() logrus.Level {
	switch l {
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case DebugLevel:
		return logrus.DebugLevel
	case NilLevel:
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// Raise returns the next more verbose level, staying at DebugLevel once
// there; used by -D/-q to step the configured level up or down.
func (l Level) Raise() Level {
	if l >= DebugLevel {
		return DebugLevel
	}
	return l + 1
}

// Lower returns the next less verbose level, staying at FatalLevel once there.
func (l Level) Lower() Level {
	if l <= FatalLevel {
		return FatalLevel
	}
	return l - 1
}
