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

// Package session implements the Socket Session and App Session layers: a
// per-connection request loop driven by a framer.Filter, a batched send
// pump backed by queue.Queue, and an idempotent close path that records
// the CloseReason observed.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	libctx "github.com/sabouaram/sockd/context"
	"github.com/sabouaram/sockd/framer"
	"github.com/sabouaram/sockd/logger"
	"github.com/sabouaram/sockd/queue"
	"github.com/sabouaram/sockd/socket"
)

// MaxUserItems bounds the per-session item bag (the data field), matching
// the App Session invariant of at most 10 host-supplied entries.
const MaxUserItems = 10

// CloseReason classifies why a session ended, for logging and for a host
// application's own bookkeeping.
type CloseReason uint8

const (
	Unknown CloseReason = iota
	ClientClosing
	ServerClosing
	ServerShutdown
	TimeOut
	SocketError
	ProtocolError
	ApplicationError
)

func (r CloseReason) String() string {
	switch r {
	case ClientClosing:
		return "client closing"
	case ServerClosing:
		return "server closing"
	case ServerShutdown:
		return "server shutdown"
	case TimeOut:
		return "timeout"
	case SocketError:
		return "socket error"
	case ProtocolError:
		return "protocol error"
	case ApplicationError:
		return "application error"
	default:
		return "unknown"
	}
}

// RequestHandler processes one framed request for a session. Returning a
// non-nil error closes the session with ApplicationError.
type RequestHandler func(s *Session, req *framer.Request) error

// IDFactory generates the identifier assigned to a new session. The
// default is uuid.NewString.
type IDFactory func() string

// Session is one accepted connection, wrapped with request framing and a
// batched send queue. It is safe for concurrent use: Send may be called
// from any goroutine while the receive loop runs in the one that called
// Run.
type Session struct {
	id        string
	startTime time.Time
	ctx       socket.Context

	filter  framer.Filter
	handler RequestHandler
	sendQ   queue.Queue
	log     logger.Logger
	charset encoding.Encoding

	lastActive atomic.Int64 // unix nano

	current  atomic.Pointer[string]
	previous atomic.Pointer[string]

	closed     atomic.Bool
	closeOnce  sync.Once
	closeReasn atomic.Uint32

	items libctx.Config[string]

	maxRequestLength int
}

// New wraps an accepted connection. filter and handler must not be nil;
// sendQueueSize is clamped to queue.MinCapacity. ids defaults to
// uuid.NewString when nil.
func New(ctx socket.Context, filter framer.Filter, handler RequestHandler, sendQueueSize int, ids IDFactory, log logger.Logger) *Session {
	if ids == nil {
		ids = uuid.NewString
	}

	if log == nil {
		log = logger.NewDiscard()
	}

	s := &Session{
		id:        ids(),
		startTime: time.Now(),
		ctx:       ctx,
		filter:    filter,
		handler:   handler,
		sendQ:     queue.New(sendQueueSize),
		log:       log,
		charset:   unicode.UTF8,
		items:     libctx.New[string](context.Background()),
	}
	s.lastActive.Store(s.startTime.UnixNano())

	return s
}

// SetMaxRequestLength installs the retained-bytes limit (§4.B's
// max_request_length): after each receive, drain closes the session
// with ServerClosing once the active filter's LeftBufferSize() reaches
// n. 0 (the default) disables the check. Must be called before Run.
func (s *Session) SetMaxRequestLength(n int) {
	s.maxRequestLength = n
}

// StartTime returns when this session was created.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

// LastActive returns the last time a receive or successful send was
// recorded for this session.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// Charset returns the text encoding used by SendText; UTF-8 by default.
func (s *Session) Charset() encoding.Encoding {
	return s.charset
}

// SetCharset changes the text encoding used by SendText.
func (s *Session) SetCharset(enc encoding.Encoding) {
	if enc != nil {
		s.charset = enc
	}
}

// CurrentCommand returns the key of the request currently (or most
// recently) being dispatched.
func (s *Session) CurrentCommand() string {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return ""
}

// PreviousCommand returns the key of the last command that completed
// dispatch.
func (s *Session) PreviousCommand() string {
	if p := s.previous.Load(); p != nil {
		return *p
	}
	return ""
}

// BeginDispatch records key as the command currently executing. Called by
// the command dispatcher before invoking a handler.
func (s *Session) BeginDispatch(key string) {
	s.current.Store(&key)
}

// EndDispatch records key as the last command that completed dispatch.
// Called by the command dispatcher after a handler returns normally.
func (s *Session) EndDispatch(key string) {
	s.previous.Store(&key)
}

// ID returns this session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Context returns the underlying connection context.
func (s *Session) Context() socket.Context {
	return s.ctx
}

// ErrTooManyItems is returned by Set when the session's item bag is
// already at MaxUserItems and key is not already present.
var ErrTooManyItems = errors.New("session: item bag is full")

// Set stores an arbitrary value against this session, for a command
// handler to stash per-connection state (e.g. an authenticated user). It
// fails once MaxUserItems distinct keys are stored.
func (s *Session) Set(key string, value any) error {
	if _, exists := s.items.Load(key); !exists && s.itemCount() >= MaxUserItems {
		return ErrTooManyItems
	}

	s.items.Store(key, value)

	return nil
}

// Get retrieves a value previously stored with Set.
func (s *Session) Get(key string) (any, bool) {
	return s.items.Load(key)
}

func (s *Session) itemCount() int {
	n := 0
	s.items.Walk(func(_ string, _ any) bool {
		n++
		return true
	})

	return n
}

// Send enqueues p on the batched send queue. It never blocks and returns
// false if the queue is full, in which case the caller should treat the
// session as backed up (the spec's "drop when saturated" behavior, left to
// the caller rather than imposed here, since what to do next is
// domain-specific).
func (s *Session) Send(p []byte) bool {
	if s.closed.Load() {
		return false
	}

	ok := s.sendQ.Enqueue(queue.Segment(p))
	if ok {
		s.touch()
	}

	return ok
}

// sendBackoffInitial and sendBackoffMax bound SendBlocking's retry
// spacing: it starts at sendBackoffInitial and doubles up to
// sendBackoffMax between attempts.
const (
	sendBackoffInitial = time.Millisecond
	sendBackoffMax     = 50 * time.Millisecond
)

// SendBlocking is Send's blocking counterpart (§4.C): it retries
// Enqueue with an exponential backoff until it succeeds, ctx is done,
// or the session becomes closed, returning false in the latter two
// cases. The literal spin-wait is replaced by a capped backoff sleep,
// per §9's cooperative-yield allowance.
func (s *Session) SendBlocking(ctx context.Context, p []byte) bool {
	wait := sendBackoffInitial

	for {
		if s.Send(p) {
			return true
		}

		if s.closed.Load() {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}

		if wait < sendBackoffMax {
			wait *= 2
			if wait > sendBackoffMax {
				wait = sendBackoffMax
			}
		}
	}
}

// SendText encodes text with the session's charset and sends it,
// appending a trailing EOL when appendEOL is true (the App Session text
// convenience; never used for datagram-mode sessions).
func (s *Session) SendText(text string, appendEOL bool) bool {
	enc := s.charset.NewEncoder()

	out, err := enc.Bytes([]byte(text))
	if err != nil {
		return false
	}

	if appendEOL {
		out = append(out, socket.EOL)
	}

	return s.Send(out)
}

// flushSend drains the send queue and writes every segment in order. It
// runs after each receive-loop iteration, per the Batch Send Queue design:
// coalesce what accumulated while the handler ran into as few writes as
// the OS will allow.
func (s *Session) flushSend() error {
	segs, ok := s.sendQ.TryDequeue()
	if !ok {
		return nil
	}

	for _, seg := range segs {
		if _, err := s.ctx.Write(seg); err != nil {
			return err
		}
	}

	return nil
}

// Run drives the receive loop: read into a buffer, hand what's available
// to the framer, dispatch every complete request to handler, flush any
// queued sends, and repeat until the connection errors, the context is
// canceled, or Close is called. It returns the CloseReason recorded for
// this session.
func (s *Session) Run(ctx context.Context) CloseReason {
	buf := make([]byte, socket.DefaultBufferSize)

	for {
		select {
		case <-ctx.Done():
			return s.Close(ServerShutdown)
		default:
		}

		n, err := s.ctx.Read(buf)
		if err != nil {
			reason := SocketError
			if err.Error() == "EOF" {
				reason = ClientClosing
			}

			return s.Close(reason)
		}

		if n == 0 {
			continue
		}

		s.touch()

		if reason, done := s.drain(buf, n); done {
			return reason
		}

		if err := s.flushSend(); err != nil {
			return s.Close(SocketError)
		}
	}
}

// drain feeds buf[:n] to the active filter repeatedly, since one receive
// may contain several complete frames (pipelining), dispatching each to
// handler. It returns (reason, true) if the session should stop.
func (s *Session) drain(buf []byte, n int) (CloseReason, bool) {
	window := buf[:n]

	for {
		req, residue, next, err := s.filter.Process(window, len(window))
		if err != nil {
			return s.Close(ProtocolError), true
		}

		if next != nil {
			s.filter = next
		}

		if s.maxRequestLength > 0 && s.filter.LeftBufferSize() >= s.maxRequestLength {
			return s.Close(ServerClosing), true
		}

		if req == nil {
			return Unknown, false
		}

		if err := s.handler(s, req); err != nil {
			s.log.Error("session %s: handler error: %v", s.id, err)
			return s.Close(ApplicationError), true
		}

		if residue == 0 {
			return Unknown, false
		}

		window = window[len(window)-residue:]
	}
}

// Close idempotently closes the underlying connection and records reason
// as the first (and only) CloseReason observed for this session.
func (s *Session) Close(reason CloseReason) CloseReason {
	s.closeOnce.Do(func() {
		s.closeReasn.Store(uint32(reason))
		s.closed.Store(true)
		_ = s.ctx.Close()
	})

	return CloseReason(s.closeReasn.Load())
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// CloseReason returns the reason recorded by the first Close call, or
// Unknown if the session is still open.
func (s *Session) Reason() CloseReason {
	return CloseReason(s.closeReasn.Load())
}
