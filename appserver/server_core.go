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

// Package appserver implements the Server Core (§4.E) and Maintenance
// Loops (§4.I): it owns the session registry, wires a transport
// (socket.Server), a framer factory, a connection filter chain and a
// command dispatcher together, and runs the idle-sweep and
// session-snapshot timers.
package appserver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	libatm "github.com/sabouaram/sockd/atomic"
	"github.com/sabouaram/sockd/command"
	"github.com/sabouaram/sockd/connfilter"
	libdur "github.com/sabouaram/sockd/duration"
	"github.com/sabouaram/sockd/framer"
	"github.com/sabouaram/sockd/logger"
	"github.com/sabouaram/sockd/runner/startStop"
	"github.com/sabouaram/sockd/runner/ticker"
	"github.com/sabouaram/sockd/session"
	libsck "github.com/sabouaram/sockd/socket"
)

// Config is the Server Core's own configuration (§3's "Server Config"),
// distinct from the low-level socket.Config bind settings a transport
// already validates on its own.
type Config struct {
	Name string `mapstructure:"name" json:"name" yaml:"name" toml:"name"`

	MaxConnections int `mapstructure:"maxConnections" json:"maxConnections" yaml:"maxConnections" toml:"maxConnections"` // 0 disables the cap

	ReceiveBufferSize int `mapstructure:"receiveBufferSize" json:"receiveBufferSize" yaml:"receiveBufferSize" toml:"receiveBufferSize"`
	SendQueueSize     int `mapstructure:"sendQueueSize" json:"sendQueueSize" yaml:"sendQueueSize" toml:"sendQueueSize"`

	MaxRequestLength int `mapstructure:"maxRequestLength" json:"maxRequestLength" yaml:"maxRequestLength" toml:"maxRequestLength"` // bytes retained by the framer before the session is closed; 0 disables the check

	IdleSessionTimeout libdur.Duration `mapstructure:"idleSessionTimeout" json:"idleSessionTimeout" yaml:"idleSessionTimeout" toml:"idleSessionTimeout"` // 0 disables the idle sweep
	IdleSweepInterval  libdur.Duration `mapstructure:"idleSweepInterval" json:"idleSweepInterval" yaml:"idleSweepInterval" toml:"idleSweepInterval"`
	DisableSnapshot    bool            `mapstructure:"disableSnapshot" json:"disableSnapshot" yaml:"disableSnapshot" toml:"disableSnapshot"`
	SnapshotInterval   libdur.Duration `mapstructure:"snapshotInterval" json:"snapshotInterval" yaml:"snapshotInterval" toml:"snapshotInterval"` // clamped up to 1s when snapshots are enabled

	MetricsEnabled   bool   `mapstructure:"metricsEnabled" json:"metricsEnabled" yaml:"metricsEnabled" toml:"metricsEnabled"`
	MinServerVersion string `mapstructure:"minServerVersion" json:"minServerVersion" yaml:"minServerVersion" toml:"minServerVersion"`

	LogCommand              bool `mapstructure:"logCommand" json:"logCommand" yaml:"logCommand" toml:"logCommand"`
	LogBasicSessionActivity bool `mapstructure:"logBasicSessionActivity" json:"logBasicSessionActivity" yaml:"logBasicSessionActivity" toml:"logBasicSessionActivity"`
}

const minSnapshotInterval = 1 * time.Second

// Hooks are the application-supplied lifecycle callbacks (§4.D/§4.E).
// Every field is optional.
type Hooks struct {
	OnInit              func()
	OnStartup           func()
	OnNewSessionConnect func(s *session.Session)
	OnSessionClosed     func(s *session.Session, reason session.CloseReason)
}

// TransportFactory builds the transport server, binding handler as the
// per-connection entry point. Resolved once during Setup, mirroring the
// "resolve the socket-server factory" step of §4.E.
type TransportFactory func(handler libsck.HandlerFunc) (libsck.Server, error)

// State is a ServerState snapshot (§4.I).
type State struct {
	CollectedAt         time.Time
	Name                string
	StartedAt           time.Time
	IsRunning           bool
	TotalConnections    int64
	MaxConnections      int
	TotalHandledRequest uint64
	RequestsPerSecond   float64
}

// Core is one Server Core instance: a transport, a session registry, a
// command dispatcher, an optional connection filter chain, and the two
// maintenance timers.
type Core struct {
	cfg   Config
	hooks Hooks
	log   logger.Logger

	framerFactory framer.Factory
	dispatcher    *command.Dispatcher
	filters       *connfilter.Chain
	pool          *WorkerPool

	transport libsck.Server
	lifecycle startStop.StartStop

	sessions libatm.MapTyped[string, *session.Session]
	snapshot atomic.Pointer[[]*session.Session]

	totalConnections atomic.Int64
	startedAt         atomic.Int64 // unix nano
	lastSampleAt      atomic.Int64
	lastSampleHandled atomic.Uint64

	idleTicker ticker.Ticker
	snapTicker ticker.Ticker

	sweeping atomic.Bool
}

// New validates cfg and wires the Core's dependencies. Setup must still be
// called (and succeed) before Start.
func New(cfg Config, hooks Hooks, framerFactory framer.Factory, dispatcher *command.Dispatcher, filters *connfilter.Chain, log logger.Logger) (*Core, error) {
	if framerFactory == nil {
		return nil, ErrorNilFramerFactory.Error()
	}

	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 8
	}

	if !cfg.DisableSnapshot && cfg.SnapshotInterval.Time() < minSnapshotInterval {
		cfg.SnapshotInterval = libdur.ParseDuration(minSnapshotInterval)
	}

	if log == nil {
		log = logger.NewDiscard()
	}

	c := &Core{
		cfg:           cfg,
		hooks:         hooks,
		log:           log,
		framerFactory: framerFactory,
		dispatcher:    dispatcher,
		filters:       filters,
		sessions:      libatm.NewMapTyped[string, *session.Session](),
	}

	empty := make([]*session.Session, 0)
	c.snapshot.Store(&empty)

	c.idleTicker = ticker.New(cfg.IdleSweepInterval.Time(), c.sweepIdle)
	c.snapTicker = ticker.New(cfg.SnapshotInterval.Time(), c.takeSnapshot)

	c.lifecycle = startStop.New(c.run, c.teardown)

	return c, nil
}

// Setup resolves transportFactory into a live transport bound to this
// Core's accept handler. It is the Server Core's setup sequence (§4.E),
// collapsed to the one step this package doesn't already get for free
// from socket/config and socket/server/tcp's own Validate/New.
func (c *Core) Setup(transportFactory TransportFactory) error {
	if transportFactory == nil {
		return ErrorNilTransport.Error()
	}

	transport, err := transportFactory(c.acceptSession)
	if err != nil {
		return err
	}

	transport.RegisterFuncError(func(errs ...error) {
		for _, e := range errs {
			c.log.Error("transport error: %v", e)
		}
	})

	c.transport = transport

	if c.hooks.OnInit != nil {
		c.hooks.OnInit()
	}

	return nil
}

// Start runs the transport's accept loop and the maintenance timers. It
// refuses if already running or if Setup has not completed.
func (c *Core) Start(ctx context.Context) error {
	if c.transport == nil {
		return ErrorSetupIncomplete.Error()
	}

	if c.lifecycle.IsRunning() {
		return ErrorAlreadyRunning.Error()
	}

	c.startedAt.Store(time.Now().UnixNano())
	c.lastSampleAt.Store(c.startedAt.Load())

	if err := c.lifecycle.Start(ctx); err != nil {
		return err
	}

	if c.hooks.OnStartup != nil {
		c.hooks.OnStartup()
	}

	if c.cfg.IdleSessionTimeout.Time() > 0 {
		_ = c.idleTicker.Start(ctx)
	}

	if !c.cfg.DisableSnapshot {
		_ = c.snapTicker.Start(ctx)
	}

	return nil
}

// run is the startStop.StartFunc: it drives the transport's accept loop
// until ctx is canceled.
func (c *Core) run(ctx context.Context) error {
	lctx := c.transport.Listen(ctx)
	<-lctx.Done()

	return nil
}

// teardown is the startStop.StopFunc: stop accepting, then close every
// registered session in parallel with ServerShutdown, mirroring stop()'s
// sequence in §4.E.
func (c *Core) teardown(ctx context.Context) error {
	if err := c.transport.Shutdown(ctx); err != nil {
		if closer, ok := c.transport.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	_ = c.idleTicker.Stop(ctx)
	_ = c.snapTicker.Stop(ctx)

	var wg sync.WaitGroup

	c.sessions.Range(func(_ string, s *session.Session) bool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.closeSession(s, session.ServerShutdown)
		}()
		return true
	})

	wg.Wait()

	return nil
}

// Stop is the public entry point mirroring §4.E's stop().
func (c *Core) Stop(ctx context.Context) error {
	if !c.lifecycle.IsRunning() {
		return ErrorNotRunning.Error()
	}

	return c.lifecycle.Stop(ctx)
}

func (c *Core) IsRunning() bool {
	return c.lifecycle.IsRunning()
}

// OpenConnections returns the number of sessions currently registered.
func (c *Core) OpenConnections() int64 {
	return c.totalConnections.Load()
}

// Transport returns the transport resolved by Setup, or nil before Setup
// has run. Exposed mainly so a caller can recover transport-specific
// details (e.g. the bound ephemeral port) via a type assertion.
func (c *Core) Transport() libsck.Server {
	return c.transport
}

// SetWorkerPool installs pool to bound concurrent command dispatches.
// Typically shared process-wide across every Core (§6's thread-pool
// tuning is configured once, not per server).
func (c *Core) SetWorkerPool(pool *WorkerPool) {
	c.pool = pool
}
