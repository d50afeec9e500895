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

// Package socket defines the low-level contracts shared by every socket
// server/client implementation in this module: the per-connection Context,
// the connection-lifecycle state enumeration, and the callback shapes a
// transport registers to observe errors and state changes.
package socket

import (
	"context"
	"io"
	"net"
	"strings"
)

// DefaultBufferSize is the default size of a Socket Session receive buffer.
const DefaultBufferSize = 32 * 1024

// EOL is the byte appended by text-oriented send helpers when configured to
// do so. Never appended in datagram mode.
const EOL = byte('\n')

// ConnState enumerates the phases a single connection passes through, used
// for info-callback logging and as the argument to FuncInfo.
type ConnState uint8

const (
	ConnectionDial ConnState = iota
	ConnectionNew
	ConnectionRead
	ConnectionCloseRead
	ConnectionHandler
	ConnectionWrite
	ConnectionCloseWrite
	ConnectionClose
)

func (c ConnState) String() string {
	switch c {
	case ConnectionDial:
		return "Dial Connection"
	case ConnectionNew:
		return "New Connection"
	case ConnectionRead:
		return "Read Incoming Stream"
	case ConnectionCloseRead:
		return "Close Incoming Stream"
	case ConnectionHandler:
		return "Run HandlerFunc"
	case ConnectionWrite:
		return "Write Outgoing Steam"
	case ConnectionCloseWrite:
		return "Close Outgoing Stream"
	case ConnectionClose:
		return "Close Connection"
	default:
		return "unknown connection state"
	}
}

// errClosedConnMessage is the exact message net.ErrClosed-derived errors
// carry; ErrorFilter only swallows an error whose full message matches it,
// so errors that merely mention it in a wrapped context still propagate.
const errClosedConnMessage = "use of closed network connection"

// ErrorFilter returns nil for errors that are an expected side effect of
// closing a socket from this side (so callers don't log noise during
// shutdown), and returns every other error, including nil, unchanged.
func ErrorFilter(err error) error {
	if err == nil {
		return nil
	}

	if err == io.EOF {
		return nil
	}

	if strings.EqualFold(err.Error(), errClosedConnMessage) {
		return nil
	}

	return err
}

// FuncError is registered by a server or client to receive socket-level
// errors that are not tied to a single handler invocation.
type FuncError func(errs ...error)

// FuncInfo is registered by a server or client to observe connection state
// transitions, for logging or metrics.
type FuncInfo func(local, remote net.Addr, state ConnState)

// HandlerFunc processes one accepted connection, exposed to it only via the
// Context abstraction (never the raw net.Conn).
type HandlerFunc func(ctx Context)

// UpdateConn lets the host tune a freshly dialed/accepted net.Conn (TCP
// keepalive, buffer sizes, deadlines) before it is handed to a HandlerFunc.
type UpdateConn func(conn net.Conn)

// Context is the per-connection view handed to a HandlerFunc. It exposes
// I/O and addressing without leaking the raw net.Conn, and carries a
// context.Context so handlers can select on cancellation.
type Context interface {
	context.Context

	IsConnected() bool

	LocalHost() string
	RemoteHost() string

	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)

	Close() error
}

// Server is the contract shared by every protocol-specific server
// (socket/server/tcp, and any future UDP/unix implementation): register
// callbacks, run the accept loop until the context is done, and shut down
// cleanly afterward.
type Server interface {
	RegisterFuncError(f FuncError)
	RegisterFuncInfo(f FuncInfo)

	// Listen runs the accept loop until ctx is canceled or a fatal error
	// occurs, and returns a context that is done once the loop has exited.
	Listen(ctx context.Context) context.Context

	Shutdown(ctx context.Context) error

	IsRunning() bool
	IsGone() bool

	OpenConnections() int64
}

// Client is the contract shared by every protocol-specific client.
type Client interface {
	RegisterFuncError(f FuncError)

	Connect(ctx context.Context) error
	Close() error

	Write(p []byte) (n int, err error)
	Read(p []byte) (n int, err error)

	// Once connects, writes req, and hands the response reader to fct
	// before closing the connection. Convenience wrapper for simple
	// request/response protocols.
	Once(ctx context.Context, req []byte, fct func(r io.Reader)) error
}
