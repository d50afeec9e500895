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

package framer

// Terminator frames requests delimited by a fixed byte sequence (e.g.
// "\r\n"). It is the canonical hard case: a terminator may straddle two
// receives, so it tracks how many leading terminator bytes have already
// matched against previously retained data.
type Terminator struct {
	term    []byte
	kept    []byte // bytes retained from previous, incomplete receives
	matched int     // count of term bytes matched so far at the tail of kept+buf
}

// NewTerminator returns a Filter that frames on term. An empty term panics,
// since it could never be found.
func NewTerminator(term []byte) *Terminator {
	if len(term) == 0 {
		panic("framer: NewTerminator requires a non-empty terminator")
	}

	t := make([]byte, len(term))
	copy(t, term)

	return &Terminator{term: t}
}

func (t *Terminator) LeftBufferSize() int {
	return len(t.kept)
}

// Process scans kept+buf[:length] byte by byte for term, maintaining the
// partial-match count across calls so a terminator split across receives
// (or across the kept/new boundary) is still found. On each call it
// advances at most one full frame; callers loop until req is nil.
func (t *Terminator) Process(buf []byte, length int) (*Request, int, Filter, error) {
	window := buf[:length]

	// Search starting from just before the kept bytes, since a partial
	// match may continue into window.
	searchFrom := len(t.kept) - t.matched
	if searchFrom < 0 {
		searchFrom = 0
	}

	combined := append(append([]byte(nil), t.kept...), window...)

	idx := indexTermFrom(combined, t.term, searchFrom)
	if idx < 0 {
		// No full terminator found; retain everything and report the
		// longest suffix match so the next call resumes correctly.
		t.kept = combined
		t.matched = longestSuffixMatch(combined, t.term)

		return nil, 0, nil, nil
	}

	frameEnd := idx
	payload := make([]byte, frameEnd)
	copy(payload, combined[:frameEnd])

	afterTerm := idx + len(t.term)
	rest := combined[afterTerm:]

	// rest is handed back purely as residue, replayed by the caller on
	// the next Process call; it must not also be retained in kept, or
	// the next call would see it twice (once via kept, once replayed).
	residue := len(rest)
	if residue > length {
		residue = length
	}

	t.kept = nil
	t.matched = 0

	return &Request{Payload: payload}, residue, nil, nil
}

// indexTermFrom finds the first full occurrence of term in data at or
// after start, scanning conservatively from max(0, start-len(term)+1) so a
// partial match spanning the boundary is not missed.
func indexTermFrom(data, term []byte, start int) int {
	from := start - len(term) + 1
	if from < 0 {
		from = 0
	}

	for i := from; i+len(term) <= len(data); i++ {
		if bytesEqual(data[i:i+len(term)], term) {
			return i
		}
	}

	return -1
}

// longestSuffixMatch returns how many trailing bytes of data match a
// leading prefix of term (0 if none), used to carry partial-match state
// forward without rescanning data already known not to contain term.
func longestSuffixMatch(data, term []byte) int {
	max := len(term) - 1
	if max > len(data) {
		max = len(data)
	}

	for l := max; l > 0; l-- {
		if bytesEqual(data[len(data)-l:], term[:l]) {
			return l
		}
	}

	return 0
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
