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

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	loglvl "github.com/nutcore/upsd/logger/level"
)

type logger struct {
	mu     sync.RWMutex
	base   Fields
	level  atomic.Uint32
	entry  *logrus.Logger
	closer func() error
}

// New builds a Logger from the given Options. The returned Logger owns
// the log file it opens for OutputFile; call Close on shutdown. Close does
// not close the syslog connection opened for OutputSyslog.
func New(opt Options) (Logger, error) {
	l := &logger{
		entry: logrus.New(),
		base:  Fields{},
	}
	l.level.Store(uint32(opt.Level))
	l.entry.SetLevel(opt.Level.Logrus())
	l.entry.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	switch opt.Output {
	case OutputFile:
		f, err := os.OpenFile(opt.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("logger: open %q: %w", opt.FilePath, err)
		}
		l.entry.SetOutput(f)
		l.closer = f.Close
	case OutputSyslog:
		hook, err := newSyslogHook(opt.Facility)
		if err != nil {
			return nil, err
		}
		l.entry.SetOutput(os.Stdout)
		l.entry.AddHook(hook)
	default:
		l.entry.SetOutput(os.Stdout)
	}

	return l, nil
}

func (l *logger) SetLevel(lvl loglvl.Level) {
	l.level.Store(uint32(lvl))
	l.entry.SetLevel(lvl.Logrus())
}

func (l *logger) GetLevel() loglvl.Level {
	return loglvl.Level(l.level.Load())
}

func (l *logger) SetFields(f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base = f.Clone()
}

func (l *logger) WithFields(f Fields) Logger {
	l.mu.RLock()
	merged := l.base.Clone()
	l.mu.RUnlock()

	for k, v := range f {
		merged[k] = v
	}

	return &child{parent: l, fields: merged}
}

func (l *logger) Debug(msg string, f Fields)   { l.log(loglvl.DebugLevel, msg, f) }
func (l *logger) Info(msg string, f Fields)    { l.log(loglvl.InfoLevel, msg, f) }
func (l *logger) Warning(msg string, f Fields) { l.log(loglvl.WarnLevel, msg, f) }
func (l *logger) Error(msg string, f Fields)   { l.log(loglvl.ErrorLevel, msg, f) }

func (l *logger) Close() error {
	if l.closer != nil {
		return l.closer()
	}
	return nil
}

func (l *logger) log(lvl loglvl.Level, msg string, f Fields) {
	if lvl > l.GetLevel() {
		return
	}

	l.mu.RLock()
	merged := l.base.Clone()
	l.mu.RUnlock()
	for k, v := range f {
		merged[k] = v
	}

	l.entry.WithFields(merged.toLogrus()).Log(lvl.Logrus(), msg)
}

// child is a Logger returned by WithFields; it shares the parent's output
// and level but carries its own merged field set.
type child struct {
	parent *logger
	fields Fields
}

func (c *child) SetLevel(lvl loglvl.Level)  { c.parent.SetLevel(lvl) }
func (c *child) GetLevel() loglvl.Level     { return c.parent.GetLevel() }
func (c *child) SetFields(f Fields)         { c.fields = f.Clone() }
func (c *child) Close() error               { return nil }
func (c *child) WithFields(f Fields) Logger {
	merged := c.fields.Clone()
	for k, v := range f {
		merged[k] = v
	}
	return &child{parent: c.parent, fields: merged}
}

func (c *child) Debug(msg string, f Fields)   { c.parent.log(loglvl.DebugLevel, msg, c.merge(f)) }
func (c *child) Info(msg string, f Fields)    { c.parent.log(loglvl.InfoLevel, msg, c.merge(f)) }
func (c *child) Warning(msg string, f Fields) { c.parent.log(loglvl.WarnLevel, msg, c.merge(f)) }
func (c *child) Error(msg string, f Fields)   { c.parent.log(loglvl.ErrorLevel, msg, c.merge(f)) }

func (c *child) merge(f Fields) Fields {
	merged := c.fields.Clone()
	for k, v := range f {
		merged[k] = v
	}
	return merged
}
