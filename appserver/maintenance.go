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

package appserver

import (
	"context"
	"net"
	"time"

	"github.com/sabouaram/sockd/framer"
	"github.com/sabouaram/sockd/session"
	libsck "github.com/sabouaram/sockd/socket"
)

// acceptSession is the transport's HandlerFunc: it runs the connection
// filter chain, registers an App Session, drives its receive/send loop,
// and tears it down on exit — the accept-time half of §4.E.
func (c *Core) acceptSession(ctx libsck.Context) {
	if c.filters != nil {
		remote, _ := net.ResolveTCPAddr("tcp", ctx.RemoteHost())

		if allowed, deniedBy := c.filters.Allow(remote); !allowed {
			c.log.Info("connection from %s denied by filter %q", ctx.RemoteHost(), deniedBy)
			_ = ctx.Close()
			return
		}
	}

	if c.cfg.MaxConnections > 0 && int(c.totalConnections.Load()) >= c.cfg.MaxConnections {
		c.log.Info("connection from %s refused: %s", ctx.RemoteHost(), ErrorMaxConnections.Error().Error())
		_ = ctx.Close()
		return
	}

	handler := func(s *session.Session, req *framer.Request) error {
		if err := c.pool.Acquire(context.Background()); err != nil {
			return err
		}
		defer c.pool.Release()

		var handlerErr error

		c.dispatcher.Dispatch(s, req, func(e error) { handlerErr = e })

		return handlerErr
	}

	s := session.New(ctx, c.framerFactory(), handler, c.cfg.SendQueueSize, nil, c.log)
	s.SetMaxRequestLength(c.cfg.MaxRequestLength)

	if _, collision := c.sessions.LoadOrStore(s.ID(), s); collision {
		c.log.Error("%s: %s", ErrorSessionCollision.Error().Error(), s.ID())
		_ = s.Close(session.Unknown)
		return
	}

	c.totalConnections.Add(1)

	if c.hooks.OnNewSessionConnect != nil {
		c.hooks.OnNewSessionConnect(s)
	}

	reason := s.Run(ctx)

	c.closeSession(s, reason)
}

// closeSession removes s from the registry and fires the close hook. It
// is idempotent because session.Session.Close is, and because a session
// already removed from the registry is simply a further no-op on the next
// call.
func (c *Core) closeSession(s *session.Session, reason session.CloseReason) {
	actual := s.Close(reason)

	if _, existed := c.sessions.LoadAndDelete(s.ID()); !existed {
		return
	}

	c.totalConnections.Add(-1)

	quiet := !c.cfg.LogBasicSessionActivity &&
		(actual == session.ClientClosing || actual == session.ServerClosing || actual == session.ServerShutdown)

	if !quiet {
		c.log.Info("session %s closed: %s", s.ID(), actual.String())
	}

	if c.hooks.OnSessionClosed != nil {
		c.hooks.OnSessionClosed(s, actual)
	}
}

// sweepIdle closes every session whose last-active time is older than
// IdleSessionTimeout. A try-lock on c.sweeping skips the tick entirely if
// the previous sweep is still running, per §4.I.
func (c *Core) sweepIdle(ctx context.Context, _ *time.Ticker) error {
	if !c.sweeping.CompareAndSwap(false, true) {
		return nil
	}
	defer c.sweeping.Store(false)

	cutoff := time.Now().Add(-c.cfg.IdleSessionTimeout.Time())

	for _, s := range c.Sessions() {
		if s.LastActive().Before(cutoff) {
			go c.closeSession(s, session.TimeOut)
		}
	}

	return nil
}

// takeSnapshot republishes the session registry as an immutable slice,
// consulted by idle sweep and read-only enumerators when snapshots are
// enabled.
func (c *Core) takeSnapshot(ctx context.Context, _ *time.Ticker) error {
	out := c.liveSessions()
	c.snapshot.Store(&out)

	return nil
}

func (c *Core) liveSessions() []*session.Session {
	out := make([]*session.Session, 0)

	c.sessions.Range(func(_ string, s *session.Session) bool {
		out = append(out, s)
		return true
	})

	return out
}

// Sessions returns the current snapshot when snapshots are enabled, or
// walks the live registry directly otherwise (§4.I).
func (c *Core) Sessions() []*session.Session {
	if c.cfg.DisableSnapshot {
		return c.liveSessions()
	}

	if p := c.snapshot.Load(); p != nil {
		return *p
	}

	return nil
}

// GetSession looks up one session by id.
func (c *Core) GetSession(id string) (*session.Session, bool) {
	return c.sessions.Load(id)
}

// CollectState builds the ServerState record described in §4.I, with
// RequestsPerSecond measured since the previous call.
func (c *Core) CollectState() State {
	now := time.Now()
	handled := c.dispatcher.TotalHandled()

	prevAt := c.lastSampleAt.Swap(now.UnixNano())
	prevHandled := c.lastSampleHandled.Swap(handled)

	elapsed := now.Sub(time.Unix(0, prevAt)).Seconds()

	var rps float64
	if elapsed > 0 {
		rps = float64(handled-prevHandled) / elapsed
	}

	return State{
		CollectedAt:         now,
		Name:                c.cfg.Name,
		StartedAt:           time.Unix(0, c.startedAt.Load()),
		IsRunning:           c.lifecycle.IsRunning(),
		TotalConnections:    c.totalConnections.Load(),
		MaxConnections:      c.cfg.MaxConnections,
		TotalHandledRequest: handled,
		RequestsPerSecond:   rps,
	}
}
