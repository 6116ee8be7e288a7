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

// Package protocol tokenises the wire format shared by the driver ingress
// stream and the client command stream: whitespace-separated, quote-aware
// argument vectors, one vector per line.
package protocol

import "fmt"

// Status is returned by Tokenizer.Feed for every byte consumed.
type Status uint8

const (
	// Pending means the current line is not yet complete.
	Pending Status = iota
	// Complete means a full argument vector is available via Vector.
	Complete
	// Error means the stream is no longer parseable; the caller must
	// drop the connection. Err holds the reason.
	Error
)

// MaxTokenLen and MaxLineLen bound a single token/line to defend against a
// misbehaving or malicious peer feeding an unbounded line.
const (
	MaxTokenLen = 1024
	MaxLineLen  = 8192
)

// Tokenizer holds the state of one stream's worth of in-progress parsing.
// It is not safe for concurrent use; each driver connection and each
// client session owns exactly one.
type Tokenizer struct {
	tok     []byte   // current token being accumulated
	vec     []string // tokens completed so far on this line
	quoted  bool
	hadQuote bool // current token contained a quoted section, so keep it even if empty
	escaped bool
	lineLen int
	err     error
}

// New returns a ready-to-use Tokenizer.
func New() *Tokenizer {
	return &Tokenizer{}
}

// Err returns the error that put the Tokenizer into the Error state, if any.
func (t *Tokenizer) Err() error {
	return t.err
}

// Vector returns the argument vector completed by the most recent Feed call
// that returned Complete. The slice is only valid until the next Feed call.
func (t *Tokenizer) Vector() []string {
	return t.vec
}

// Feed consumes a single byte of input. Zero-token lines (blank lines, or
// lines that were pure whitespace) are absorbed silently and reported as
// Pending, matching §4.1's "lines of zero tokens are dropped silently".
func (t *Tokenizer) Feed(b byte) Status {
	if t.err != nil {
		return Error
	}

	t.lineLen++
	if t.lineLen > MaxLineLen {
		return t.fail(fmt.Errorf("line exceeds %d bytes", MaxLineLen))
	}

	if t.escaped {
		t.tok = append(t.tok, b)
		t.escaped = false
		return t.afterToken()
	}

	switch {
	case b == '\\':
		t.escaped = true
		return Pending
	case b == '"':
		t.quoted = !t.quoted
		t.hadQuote = true
		return Pending
	case b == '\n' && t.quoted:
		return t.endLine()
	case t.quoted:
		t.tok = append(t.tok, b)
		return t.afterToken()
	case b == ' ' || b == '\t':
		t.flushToken()
		return Pending
	case b == '\n' || b == '\r':
		if b == '\r' {
			return Pending
		}
		return t.endLine()
	default:
		t.tok = append(t.tok, b)
		return t.afterToken()
	}
}

func (t *Tokenizer) afterToken() Status {
	if len(t.tok) > MaxTokenLen {
		return t.fail(fmt.Errorf("token exceeds %d bytes", MaxTokenLen))
	}
	return Pending
}

func (t *Tokenizer) flushToken() {
	if len(t.tok) > 0 || t.hadQuote {
		t.vec = append(t.vec, string(t.tok))
		t.tok = t.tok[:0]
	}
	t.hadQuote = false
}

func (t *Tokenizer) endLine() Status {
	if t.quoted {
		return t.fail(fmt.Errorf("unterminated quote"))
	}
	if t.escaped {
		return t.fail(fmt.Errorf("dangling escape at end of line"))
	}

	t.flushToken()
	t.lineLen = 0

	if len(t.vec) == 0 {
		return Pending
	}
	return Complete
}

// Reset prepares the Tokenizer for the next line after a Complete result.
// Callers must call Reset before feeding further bytes, so Vector's result
// remains valid until they are done with it.
func (t *Tokenizer) Reset() {
	t.vec = nil
	t.tok = t.tok[:0]
}

func (t *Tokenizer) fail(err error) Status {
	t.err = err
	return Error
}

// FeedAll feeds an entire buffer and returns every complete vector found in
// it, in order. It is a convenience used by tests and by callers that read
// in bursts rather than byte-at-a-time; it is equivalent, vector for
// vector, to feeding the same bytes one at a time (see
// TestBufferBoundaryIndependence).
func (t *Tokenizer) FeedAll(buf []byte) ([][]string, error) {
	var out [][]string
	for _, b := range buf {
		switch t.Feed(b) {
		case Complete:
			v := make([]string, len(t.Vector()))
			copy(v, t.Vector())
			out = append(out, v)
			t.Reset()
		case Error:
			return out, t.Err()
		}
	}
	return out, nil
}

// Quote renders a single argument the way the wire protocol expects it:
// quoted (with backslash-escaping of quotes and backslashes) if it is empty
// or contains a space, tab, quote or backslash, bare otherwise.
func Quote(arg string) string {
	needsQuote := arg == ""
	for _, r := range arg {
		if r == ' ' || r == '\t' || r == '"' || r == '\\' {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return arg
	}

	out := make([]byte, 0, len(arg)+2)
	out = append(out, '"')
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		if c == '"' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	out = append(out, '"')
	return string(out)
}

// Render joins a vector into one wire line (without the trailing newline),
// quoting each argument as needed. Render followed by feeding the result
// (plus "\n") back through a fresh Tokenizer reproduces the original vector
// exactly, for any vector that contains no control bytes.
func Render(vec []string) string {
	s := ""
	for i, a := range vec {
		if i > 0 {
			s += " "
		}
		s += Quote(a)
	}
	return s
}
