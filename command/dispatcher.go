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

package command

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/sabouaram/sockd/framer"
	"github.com/sabouaram/sockd/logger"
)

// RawHandler, when installed, receives every request before key lookup —
// the "new_request_received" raw hook from §4.F step 2. Returning true
// tells the Dispatcher the raw handler fully handled the request (skip
// registry dispatch); false falls through to normal lookup/dispatch.
type RawHandler func(s Session, req *framer.Request) (handled bool, err error)

// UnknownHandler replies to a request whose key has no registered
// command. The default implementation sends "Unknown request: <key>".
type UnknownHandler func(s Session, key string, req *framer.Request)

// Dispatcher drives the §4.F dispatch sequence for a registry: raw hook,
// lookup, filter chain, handler invocation, bookkeeping.
type Dispatcher struct {
	registry *Registry
	raw      RawHandler
	unknown  UnknownHandler
	log      logger.Logger

	logCommand bool

	totalHandled atomic.Uint64
}

// NewDispatcher binds a Dispatcher to registry. log may be nil (discarded
// logging); logCommand mirrors the host config's LogCommand flag (§6).
func NewDispatcher(registry *Registry, log logger.Logger, logCommand bool) *Dispatcher {
	if log == nil {
		log = logger.NewDiscard()
	}

	return &Dispatcher{
		registry:   registry,
		unknown:    defaultUnknownHandler,
		log:        log,
		logCommand: logCommand,
	}
}

// SetRawHandler installs or clears the raw "new_request_received" hook.
func (d *Dispatcher) SetRawHandler(h RawHandler) {
	d.raw = h
}

// SetUnknownHandler overrides the default "Unknown request: <key>" reply.
func (d *Dispatcher) SetUnknownHandler(h UnknownHandler) {
	if h == nil {
		h = defaultUnknownHandler
	}
	d.unknown = h
}

func defaultUnknownHandler(s Session, key string, _ *framer.Request) {
	s.SendText(fmt.Sprintf("Unknown request: %s", key), true)
}

// ExtractKey returns req.Key if the framer already populated it, otherwise
// the first whitespace-delimited token of the payload (the text-protocol
// convention used by the end-to-end scenarios in §8).
func ExtractKey(req *framer.Request) string {
	if req.Key != "" {
		return req.Key
	}

	fields := bytes.Fields(req.Payload)
	if len(fields) == 0 {
		return ""
	}

	return string(fields[0])
}

// TotalHandled returns the running count of dispatches (successful or
// failed), incremented exactly once per call to Dispatch.
func (d *Dispatcher) TotalHandled() uint64 {
	return d.totalHandled.Load()
}

// Dispatch runs the full §4.F sequence for req on s: mark the current
// command, consult the raw hook, look up and run the command (with its
// filter chain), record the previous command, and bump the handled
// counter. onException is called if the handler (or raw hook) returns an
// error, mirroring the session's handle_exception contract; it is the
// caller's responsibility to close the session with ApplicationError.
func (d *Dispatcher) Dispatch(s Session, req *framer.Request, onException func(error)) {
	defer d.totalHandled.Add(1)

	key := ExtractKey(req)
	s.BeginDispatch(key)

	if d.raw != nil {
		handled, err := d.raw(s, req)
		if err != nil {
			onException(err)
			return
		}
		if handled {
			s.EndDispatch(key)
			return
		}
	}

	handler, filters, ok := d.registry.Lookup(key)
	if !ok {
		d.unknown(s, key, req)
		return
	}

	if len(filters) == 0 {
		if err := handler.Execute(s, req); err != nil {
			onException(err)
			return
		}
	} else {
		ctx := &FilterContext{Session: s, Request: req, Command: key}

		ran := 0
		for _, f := range filters {
			f.OnExecuting(ctx)
			ran++
			if ctx.Cancel {
				d.log.Info("command %s: canceled by filter", key)
				break
			}
		}

		if !ctx.Cancel {
			if err := handler.Execute(s, req); err != nil {
				onException(err)
				return
			}
		}

		for i := 0; i < ran; i++ {
			filters[i].OnExecuted(ctx)
		}
	}

	s.EndDispatch(key)

	if d.logCommand {
		d.log.Info("session dispatched command %q", key)
	}
}
