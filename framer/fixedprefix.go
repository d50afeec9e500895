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

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/fxamacker/cbor/v2"
)

// ErrInvalidPrefixSize is returned by NewFixedPrefixLength when the prefix
// width is not one of the supported sizes.
var ErrInvalidPrefixSize = errors.New("framer: prefix length must be 1, 2, 4 or 8 bytes")

// ErrHeaderDecode is returned when the CBOR header mode fails to decode
// the fixed-width length header.
var ErrHeaderDecode = errors.New("framer: cbor header decode failed")

// FixedPrefixLength frames requests with a fixed-width, big-endian length
// prefix followed by that many payload bytes. When cbor is true, the
// prefix width bytes are instead a CBOR-encoded unsigned integer, padded
// to prefixSize on the wire; bytes after the integer are ignored, and a
// length whose encoding is longer than prefixSize cannot be decoded (used
// by peers that already speak CBOR for their payloads and want one framing
// convention end to end).
type FixedPrefixLength struct {
	prefixSize int
	cbor       bool
	kept       []byte
}

// NewFixedPrefixLength returns a Filter using a prefixSize-byte big-endian
// length header. prefixSize must be 1, 2, 4 or 8.
func NewFixedPrefixLength(prefixSize int) (*FixedPrefixLength, error) {
	return newFixedPrefixLength(prefixSize, false)
}

// NewFixedPrefixLengthCBOR is identical to NewFixedPrefixLength except the
// length header is read as a CBOR-encoded unsigned integer instead of a
// raw big-endian one.
func NewFixedPrefixLengthCBOR(prefixSize int) (*FixedPrefixLength, error) {
	return newFixedPrefixLength(prefixSize, true)
}

func newFixedPrefixLength(prefixSize int, useCBOR bool) (*FixedPrefixLength, error) {
	switch prefixSize {
	case 1, 2, 4, 8:
	default:
		return nil, ErrInvalidPrefixSize
	}

	return &FixedPrefixLength{prefixSize: prefixSize, cbor: useCBOR}, nil
}

func (f *FixedPrefixLength) LeftBufferSize() int {
	return len(f.kept)
}

func (f *FixedPrefixLength) Process(buf []byte, length int) (*Request, int, Filter, error) {
	combined := append(append([]byte(nil), f.kept...), buf[:length]...)

	if len(combined) < f.prefixSize {
		f.kept = combined
		return nil, 0, nil, nil
	}

	payloadLen, err := f.decodeHeader(combined[:f.prefixSize])
	if err != nil {
		return nil, 0, nil, err
	}

	total := f.prefixSize + payloadLen
	if len(combined) < total {
		f.kept = combined
		return nil, 0, nil, nil
	}

	payload := make([]byte, payloadLen)
	copy(payload, combined[f.prefixSize:total])

	rest := combined[total:]

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

func (f *FixedPrefixLength) decodeHeader(header []byte) (int, error) {
	if !f.cbor {
		return int(f.decodeBigEndian(header)), nil
	}

	var v uint64
	// Decode only the first item: the padding after it is not CBOR data.
	if err := cbor.NewDecoder(bytes.NewReader(header)).Decode(&v); err != nil {
		return 0, ErrHeaderDecode
	}

	return int(v), nil
}

func (f *FixedPrefixLength) decodeBigEndian(header []byte) uint64 {
	switch f.prefixSize {
	case 1:
		return uint64(header[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(header))
	case 4:
		return uint64(binary.BigEndian.Uint32(header))
	default:
		return binary.BigEndian.Uint64(header)
	}
}
