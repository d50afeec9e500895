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

// ErrInvalidSize is returned by NewFixedSize when size is not positive.
var ErrInvalidSize = errors.New("framer: fixed size must be greater than zero")

// FixedSize frames requests of a constant, pre-agreed byte length. There is
// no header to parse: a request is simply the next size bytes.
type FixedSize struct {
	size int
	kept []byte
}

// NewFixedSize returns a Filter that frames fixed-length requests of size
// bytes each.
func NewFixedSize(size int) (*FixedSize, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	return &FixedSize{size: size}, nil
}

func (f *FixedSize) LeftBufferSize() int {
	return len(f.kept)
}

func (f *FixedSize) Process(buf []byte, length int) (*Request, int, Filter, error) {
	combined := append(append([]byte(nil), f.kept...), buf[:length]...)

	if len(combined) < f.size {
		f.kept = combined
		return nil, 0, nil, nil
	}

	payload := make([]byte, f.size)
	copy(payload, combined[:f.size])

	rest := combined[f.size:]

	// rest is handed back purely as residue, replayed by the caller on
	// the next Process call; it must not also be retained in kept, or
	// the next call would see it twice.
	residue := len(rest)
	if residue > length {
		residue = length
	}

	f.kept = nil

	return &Request{Payload: payload}, residue, nil, nil
}
