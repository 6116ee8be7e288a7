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

import "github.com/sirupsen/logrus"

// Fields carries structured context attached to a log entry (ups name,
// peer address, command verb, ...) instead of being interpolated into the
// message string.
type Fields map[string]interface{}

func (f Fields) toLogrus() logrus.Fields {
	if f == nil {
		return logrus.Fields{}
	}
	r := make(logrus.Fields, len(f))
	for k, v := range f {
		r[k] = v
	}
	return r
}

// Clone returns a shallow copy, so a base set of fields can be extended per
// call-site without mutating the shared base.
func (f Fields) Clone() Fields {
	r := make(Fields, len(f))
	for k, v := range f {
		r[k] = v
	}
	return r
}

// With returns a copy of f with the given key set, leaving f untouched.
func (f Fields) With(key string, val interface{}) Fields {
	r := f.Clone()
	r[key] = val
	return r
}
