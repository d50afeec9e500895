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

// Package tcp is the TCP implementation of socket.Server: an accept loop
// that hands each connection to a socket.HandlerFunc through a Context,
// with optional TLS and connection counting.
package tcp

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	libtls "github.com/sabouaram/sockd/certificates"
	libsck "github.com/sabouaram/sockd/socket"
	sckcfg "github.com/sabouaram/sockd/socket/config"
)

var (
	ErrInvalidAddress  = errors.New("tcp server: invalid or empty address")
	ErrInvalidHandler  = errors.New("tcp server: handler func is nil")
	ErrShutdownTimeout = errors.New("tcp server: shutdown timeout exceeded")
	ErrGoneTimeout     = errors.New("tcp server: timeout waiting for listener to stop")
	ErrInvalidInstance = errors.New("tcp server: invalid server instance")
)

// ServerTcp is the TCP flavor of socket.Server, with TLS toggling added.
type ServerTcp interface {
	libsck.Server

	// SetTLS enables or disables TLS for subsequent Listen calls. It
	// validates cfg (when enabling) before applying it.
	SetTLS(enable bool, cfg *libtls.Config) error

	// Close stops accepting new connections and closes all open ones
	// immediately, without waiting for handlers to return.
	Close() error

	// Addr returns the listener's bound address, or nil before Listen has
	// run (useful to discover the actual port after binding to ":0").
	Addr() net.Addr
}

type server struct {
	mu  sync.Mutex
	cfg sckcfg.Server
	upd libsck.UpdateConn
	hdl libsck.HandlerFunc

	fctErr  atomic.Pointer[libsck.FuncError]
	fctInfo atomic.Pointer[libsck.FuncInfo]

	listener net.Listener
	running  atomic.Bool
	gone     atomic.Bool
	open     atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

// New validates cfg and returns a ServerTcp bound to it. upd may be nil;
// handler is required only to successfully accept connections, not to
// construct the instance (a handler-less server still reports ErrInvalidHandler
// the first time Listen tries to dispatch a connection... here we fail fast
// instead, since a server with no handler can never do useful work).
func New(upd libsck.UpdateConn, handler libsck.HandlerFunc, cfg sckcfg.Server) (ServerTcp, error) {
	if cfg.Address == "" {
		return nil, ErrInvalidAddress
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &server{
		cfg: cfg,
		upd: upd,
		hdl: handler,
	}
	s.gone.Store(true)

	return s, nil
}

func (s *server) RegisterFuncError(f libsck.FuncError) {
	if f == nil {
		s.fctErr.Store(nil)
		return
	}
	s.fctErr.Store(&f)
}

func (s *server) RegisterFuncInfo(f libsck.FuncInfo) {
	if f == nil {
		s.fctInfo.Store(nil)
		return
	}
	s.fctInfo.Store(&f)
}

func (s *server) SetTLS(enable bool, cfg *libtls.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.TLS.Enabled = enable

	if enable {
		if cfg == nil {
			return sckcfg.ErrInvalidTLSConfig
		}

		s.cfg.TLS.Config = *cfg
	}

	return s.cfg.Validate()
}

func (s *server) emitErr(err error) {
	err = libsck.ErrorFilter(err)
	if err == nil {
		return
	}

	if p := s.fctErr.Load(); p != nil {
		(*p)(err)
	}
}

func (s *server) emitInfo(local, remote net.Addr, state libsck.ConnState) {
	if p := s.fctInfo.Load(); p != nil {
		(*p)(local, remote, state)
	}
}

// Listen runs the accept loop until ctx is canceled, returning a context
// that is done once the loop has fully exited (including in-flight
// handlers for a graceful Shutdown, but not for Close).
func (s *server) Listen(ctx context.Context) context.Context {
	lctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.running.Load() {
		s.mu.Unlock()
		return lctx
	}

	lis, err := s.newListener()
	if err != nil {
		s.mu.Unlock()
		s.emitErr(err)
		cancel()
		return lctx
	}

	s.listener = lis
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)
	s.gone.Store(false)
	s.mu.Unlock()

	go s.acceptLoop(ctx, lis)

	go func() {
		<-ctx.Done()
		_ = s.closeListener()
	}()

	return lctx
}

func (s *server) newListener() (net.Listener, error) {
	network := s.cfg.Network.Code()

	lis, err := net.Listen(network, s.cfg.Address)
	if err != nil {
		return nil, err
	}

	enable, tcfg := s.cfg.GetTLS()
	if !enable {
		return lis, nil
	}

	tlsCfg, err := s.buildTLSConfig(tcfg)
	if err != nil {
		_ = lis.Close()
		return nil, err
	}

	return tls.NewListener(lis, tlsCfg), nil
}

func (s *server) buildTLSConfig(cfg *libtls.Config) (*tls.Config, error) {
	if cfg == nil || len(cfg.Certs) == 0 {
		return nil, sckcfg.ErrInvalidTLSConfig
	}

	return cfg.New().TlsConfig(""), nil
}

func (s *server) acceptLoop(ctx context.Context, lis net.Listener) {
	defer close(s.done)
	defer func() {
		s.running.Store(false)
		s.gone.Store(true)
	}()

	var wg sync.WaitGroup

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}

			s.emitErr(err)

			continue
		}

		if s.cfg.ConIdleTimeout.Time() > 0 {
			_ = conn.SetDeadline(time.Now().Add(s.cfg.ConIdleTimeout.Time()))
		}

		if s.upd != nil {
			s.upd(conn)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, conn)
		}()
	}

	wg.Wait()
}

func (s *server) handle(ctx context.Context, conn net.Conn) {
	s.open.Add(1)
	defer s.open.Add(-1)

	s.emitInfo(conn.LocalAddr(), conn.RemoteAddr(), libsck.ConnectionNew)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sc := &sCtx{Context: cctx, conn: conn, connected: true}

	defer func() {
		s.emitInfo(conn.LocalAddr(), conn.RemoteAddr(), libsck.ConnectionCloseWrite)
		_ = sc.Close()
		s.emitInfo(conn.LocalAddr(), conn.RemoteAddr(), libsck.ConnectionClose)
	}()

	if s.hdl == nil {
		s.emitErr(ErrInvalidHandler)
		return
	}

	s.emitInfo(conn.LocalAddr(), conn.RemoteAddr(), libsck.ConnectionHandler)
	s.hdl(sc)
}

// Shutdown stops accepting new connections and waits for in-flight
// handlers to finish, up to ctx's deadline.
func (s *server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ErrShutdownTimeout
	}
}

// Close is the immediate variant: it closes the listener directly (any
// open connections are left to their own deadlines/handlers) rather than
// waiting on the accept loop's WaitGroup.
func (s *server) Close() error {
	return s.closeListener()
}

func (s *server) closeListener() error {
	s.mu.Lock()
	lis := s.listener
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if lis == nil {
		return nil
	}

	return lis.Close()
}

func (s *server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

func (s *server) IsRunning() bool {
	return s.running.Load()
}

func (s *server) IsGone() bool {
	return s.gone.Load()
}

func (s *server) OpenConnections() int64 {
	return s.open.Load()
}
