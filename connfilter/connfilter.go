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

// Package connfilter implements the pre-accept Connection Filter Chain
// (§4.G): an ordered list of admission checks run against a dialing
// peer's address before a Socket Session is ever created for it.
package connfilter

import (
	"net"
)

// Filter is one named admission check. AllowConnect answers whether the
// remote endpoint may proceed to session creation.
type Filter interface {
	Name() string
	AllowConnect(remote net.Addr) bool
}

// FilterFunc adapts a plain function to Filter.
type FilterFunc struct {
	FilterName string
	Fn         func(remote net.Addr) bool
}

func (f FilterFunc) Name() string                    { return f.FilterName }
func (f FilterFunc) AllowConnect(remote net.Addr) bool { return f.Fn(remote) }

// Chain runs an ordered list of Filters; the first denial short-circuits
// the rest, per §4.G.
type Chain struct {
	filters []Filter
}

// NewChain builds a Chain from filters, rejecting any unnamed one.
func NewChain(filters ...Filter) (*Chain, error) {
	for _, f := range filters {
		if f.Name() == "" {
			return nil, ErrorEmptyName.Error()
		}
	}

	return &Chain{filters: filters}, nil
}

// Allow runs every filter in order against remote. It returns true (and
// an empty deniedBy) only if every filter allows the connection;
// otherwise it returns false and the name of the first filter that
// denied it, for info-level logging by the caller.
func (c *Chain) Allow(remote net.Addr) (allowed bool, deniedBy string) {
	for _, f := range c.filters {
		if !f.AllowConnect(remote) {
			return false, f.Name()
		}
	}

	return true, ""
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	return len(c.filters)
}
