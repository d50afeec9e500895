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

import "errors"

// ErrMarkOverlap is returned by NewBeginEndMark when one mark contains the
// other (including equal marks), making frame boundaries ambiguous.
var ErrMarkOverlap = errors.New("framer: begin and end marks must not overlap")

// BeginEndMark frames requests wrapped in a begin marker and an end
// marker, e.g. begin "<STX>" ... end "<ETX>". Bytes before begin are
// discarded; this lets a session re-synchronize after a protocol error
// without closing the connection.
type BeginEndMark struct {
	begin, end []byte
	kept       []byte
	inFrame    bool
}

// NewBeginEndMark returns a Filter using the given begin/end byte
// sequences. Either may be multiple bytes.
func NewBeginEndMark(begin, end []byte) (*BeginEndMark, error) {
	if len(begin) == 0 || len(end) == 0 {
		return nil, ErrInvalidSize
	}

	if bytesContains(begin, end) || bytesContains(end, begin) {
		return nil, ErrMarkOverlap
	}

	b := make([]byte, len(begin))
	copy(b, begin)
	e := make([]byte, len(end))
	copy(e, end)

	return &BeginEndMark{begin: b, end: e}, nil
}

func (f *BeginEndMark) LeftBufferSize() int {
	return len(f.kept)
}

func (f *BeginEndMark) Process(buf []byte, length int) (*Request, int, Filter, error) {
	combined := append(append([]byte(nil), f.kept...), buf[:length]...)

	if !f.inFrame {
		idx := indexTermFrom(combined, f.begin, 0)
		if idx < 0 {
			f.kept = trailingPartial(combined, f.begin)
			return nil, 0, nil, nil
		}

		combined = combined[idx+len(f.begin):]
		f.inFrame = true
	}

	idx := indexTermFrom(combined, f.end, 0)
	if idx < 0 {
		f.kept = combined
		return nil, 0, nil, nil
	}

	payload := make([]byte, idx)
	copy(payload, combined[:idx])

	rest := combined[idx+len(f.end):]

	// rest is handed back purely as residue, replayed by the caller on
	// the next Process call; it must not also be retained in kept, or
	// the next call would see it twice.
	residue := len(rest)
	if residue > length {
		residue = length
	}

	f.kept = nil
	f.inFrame = false

	return &Request{Payload: payload}, residue, nil, nil
}

// trailingPartial returns the longest suffix of data that could still be
// the start of mark, so a begin/end marker split across receives is not
// lost when no full match is found yet.
func trailingPartial(data, mark []byte) []byte {
	l := longestSuffixMatch(data, mark)
	if l == 0 {
		return nil
	}

	return append([]byte(nil), data[len(data)-l:]...)
}

func bytesContains(haystack, needle []byte) bool {
	if len(needle) > len(haystack) {
		return false
	}

	for i := 0; i+len(needle) <= len(haystack); i++ {
		if bytesEqual(haystack[i:i+len(needle)], needle) {
			return true
		}
	}

	return false
}
