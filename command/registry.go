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

// Package command implements the Command Registry & Dispatcher: an
// immutable, atomically-published command-key → handler mapping with a
// per-command filter chain, and the dispatch sequence that drives it for
// one session's incoming requests.
package command

import (
	"strings"
	"sync/atomic"

	"github.com/sabouaram/sockd/framer"
)

// Session is the slice of session.Session the dispatcher needs. Expressed
// as an interface (rather than importing package session directly) so
// command has no dependency on session's internals, and so tests can
// dispatch against a double.
type Session interface {
	BeginDispatch(key string)
	EndDispatch(key string)
	SendText(text string, appendEOL bool) bool
}

// Handler executes one dispatched request for a session.
type Handler interface {
	Name() string
	Execute(s Session, req *framer.Request) error
}

// HandlerFunc adapts a plain function to Handler for commands that need
// no extra state.
type HandlerFunc struct {
	CmdName string
	Fn      func(s Session, req *framer.Request) error
}

func (h HandlerFunc) Name() string { return h.CmdName }

func (h HandlerFunc) Execute(s Session, req *framer.Request) error { return h.Fn(s, req) }

// FilterContext is passed through a command's filter chain.
type FilterContext struct {
	Session Session
	Request *framer.Request
	Command string
	Cancel  bool
}

// Filter brackets a command's execution. Setting ctx.Cancel = true in
// OnExecuting skips the handler and every remaining filter's OnExecuting,
// but OnExecuted is still only called for filters that ran OnExecuting
// before the cancellation.
type Filter interface {
	OnExecuting(ctx *FilterContext)
	OnExecuted(ctx *FilterContext)
}

type entry struct {
	handler Handler
	filters []Filter
}

// table is the immutable, copy-on-write snapshot published by Registry.
type table map[string]entry

// Registry is the atomically-swapped command-key → handler mapping
// described in §4.F: readers never lock, updates are copy-on-write.
type Registry struct {
	cur     atomic.Pointer[table]
	globals []Filter
}

// NewRegistry returns an empty Registry. globalFilters run, in order,
// around every command in addition to that command's own filters.
func NewRegistry(globalFilters ...Filter) *Registry {
	r := &Registry{globals: globalFilters}
	empty := make(table)
	r.cur.Store(&empty)

	return r
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// snapshot returns the currently published table.
func (r *Registry) snapshot() table {
	if p := r.cur.Load(); p != nil {
		return *p
	}
	return nil
}

// Add registers handler under its Name(), with per-command filters in
// addition to the registry's global filters. It rejects an empty name, a
// nil handler, and a name already present (duplicate command names are
// fatal at load time, per §4.F/§4.E).
func (r *Registry) Add(handler Handler, filters ...Filter) error {
	if handler == nil {
		return ErrorNilHandler.Error()
	}

	key := normalize(handler.Name())
	if key == "" {
		return ErrorEmptyName.Error()
	}

	cur := r.snapshot()
	if _, exists := cur[key]; exists {
		return ErrorDuplicateName.Error()
	}

	next := make(table, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[key] = entry{handler: handler, filters: filters}

	r.cur.Store(&next)

	return nil
}

// Remove drops a command by name. It is a no-op if the name is not
// registered.
func (r *Registry) Remove(name string) {
	key := normalize(name)

	cur := r.snapshot()
	if _, exists := cur[key]; !exists {
		return
	}

	next := make(table, len(cur))
	for k, v := range cur {
		if k != key {
			next[k] = v
		}
	}

	r.cur.Store(&next)
}

// Update replaces an existing command's handler/filters atomically,
// equivalent to Remove followed by Add but without the window where the
// name is briefly absent.
func (r *Registry) Update(handler Handler, filters ...Filter) error {
	if handler == nil {
		return ErrorNilHandler.Error()
	}

	key := normalize(handler.Name())
	if key == "" {
		return ErrorEmptyName.Error()
	}

	cur := r.snapshot()
	next := make(table, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[key] = entry{handler: handler, filters: filters}

	r.cur.Store(&next)

	return nil
}

// Lookup returns the handler and resolved filter chain (command filters
// followed by global filters) registered for name, case-insensitively.
func (r *Registry) Lookup(name string) (Handler, []Filter, bool) {
	cur := r.snapshot()

	e, ok := cur[normalize(name)]
	if !ok {
		return nil, nil, false
	}

	if len(r.globals) == 0 {
		return e.handler, e.filters, true
	}

	chain := make([]Filter, 0, len(e.filters)+len(r.globals))
	chain = append(chain, e.filters...)
	chain = append(chain, r.globals...)

	return e.handler, chain, true
}

// Len returns the number of distinct commands currently published.
func (r *Registry) Len() int {
	return len(r.snapshot())
}
