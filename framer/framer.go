/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

// Package framer implements the pluggable stream-to-request parser (the
// "Request Filter") that sits between a Socket Session's receive buffer and
// the command dispatcher. Every concrete framer is stateful and scoped to
// one session.
package framer

// Request is one parsed application request: the framed payload plus an
// optional command key (the framers of this package leave Key empty and the
// command dispatcher derives it from the payload).
type Request struct {
	Payload []byte

	// Key is the command name extracted from Payload, when the wire
	// format has one (e.g. the first whitespace-delimited token in a
	// text protocol). None of the framers of this package sets it; when
	// it is empty the command dispatcher derives it itself from Payload.
	Key string
}

// Filter is the per-session, stateful stream parser. Each concrete
// implementation retains any partial accumulation between calls.
type Filter interface {
	// Process inspects buf[:length] (a window into the session's receive
	// buffer) and returns:
	//   - req: a parsed request, or nil if none is complete yet
	//   - residue: bytes at the tail of buf[:length] not yet consumed
	//   - next: a replacement Filter for subsequent calls (protocol
	//     upgrade), or nil to keep using the current one
	//   - err: a protocol error; the caller closes the session with
	//     ProtocolError
	Process(buf []byte, length int) (req *Request, residue int, next Filter, err error)

	// LeftBufferSize reports how many bytes this filter currently retains
	// internally (across partial receives). The session closes with the
	// oversize reason once this reaches MaxRequestLength.
	LeftBufferSize() int
}

// Factory creates a new Filter for one newly accepted session. Called once
// per session by the Server Core.
type Factory func() Filter
