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

// Package bootstrap implements Bootstrap (§4.H): composition of one or
// more appserver.Core instances behind named descriptors, started and
// stopped together, with a MinServerVersion gate and an optional
// fsnotify-backed endpoint-replacement reloader.
package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	hcver "github.com/hashicorp/go-version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/sabouaram/sockd/appserver"
	"github.com/sabouaram/sockd/command"
	"github.com/sabouaram/sockd/connfilter"
	"github.com/sabouaram/sockd/framer"
	"github.com/sabouaram/sockd/logger"
	"github.com/sabouaram/sockd/runner/ticker"
)

const metricsSampleInterval = 5 * time.Second

// FuncEvent is a before/after lifecycle hook, mirroring the config
// component registry's RegisterFuncStartBefore/After shape.
type FuncEvent func() error

// EndpointTransportFactory builds a transport bound to address. Descriptors
// that want to support ReplaceEndpoint supply this instead of a fixed
// appserver.TransportFactory.
type EndpointTransportFactory func(address string) appserver.TransportFactory

// Descriptor is one work-item: everything Bootstrap needs to build,
// gate, and run one appserver.Core.
type Descriptor struct {
	Name string

	// MinServerVersion is a hashicorp/go-version constraint string (e.g.
	// ">= 1.2.0"); empty skips the gate. A descriptor whose constraint the
	// running build doesn't satisfy is skipped, contributing to
	// PartialSuccess rather than aborting every other descriptor.
	MinServerVersion string

	Address    string
	Config     appserver.Config
	Hooks      appserver.Hooks
	Framer     framer.Factory
	Dispatcher *command.Dispatcher
	Filters    *connfilter.Chain
	Transport  EndpointTransportFactory
}

// StartStatus summarizes how many descriptors actually started.
type StartStatus uint8

const (
	None StartStatus = iota
	Success
	PartialSuccess
	Failed
)

func (s StartStatus) String() string {
	switch s {
	case Success:
		return "success"
	case PartialSuccess:
		return "partial success"
	case Failed:
		return "failed"
	default:
		return "none"
	}
}

type entry struct {
	mu   sync.Mutex
	desc Descriptor
	core *appserver.Core

	metrics       *appserver.Metrics
	metricsTicker ticker.Ticker
}

// Bootstrap owns a named set of Server Core instances and drives their
// combined setup/start/stop/reload sequence.
type Bootstrap struct {
	mu      sync.Mutex
	log     logger.Logger
	build   *hcver.Version
	order   []string
	entries map[string]*entry
	viper   *viper.Viper

	metricsRegisterer prometheus.Registerer

	startBefore  FuncEvent
	startAfter   FuncEvent
	stopBefore   FuncEvent
	stopAfter    FuncEvent
	reloadBefore FuncEvent
	reloadAfter  FuncEvent

	reloader *endpointWatcher
}

// New builds an empty Bootstrap. buildVersion is this binary's own
// version, checked against each descriptor's MinServerVersion; an empty
// buildVersion disables the gate entirely (every descriptor passes).
func New(buildVersion string, log logger.Logger) (*Bootstrap, error) {
	if log == nil {
		log = logger.NewDiscard()
	}

	b := &Bootstrap{
		log:               log,
		entries:           make(map[string]*entry),
		metricsRegisterer: prometheus.DefaultRegisterer,
	}

	if buildVersion != "" {
		v, err := hcver.NewVersion(buildVersion)
		if err != nil {
			return nil, ErrorInvalidVersion.Error(err)
		}
		b.build = v
	}

	return b, nil
}

// RegisterFuncStartBefore/After, RegisterFuncStopBefore/After,
// RegisterFuncReloadBefore/After install the composition-wide lifecycle
// hooks, mirroring the teacher's config component registry.
func (b *Bootstrap) RegisterFuncStartBefore(fct FuncEvent)  { b.startBefore = fct }
func (b *Bootstrap) RegisterFuncStartAfter(fct FuncEvent)   { b.startAfter = fct }
func (b *Bootstrap) RegisterFuncStopBefore(fct FuncEvent)   { b.stopBefore = fct }
func (b *Bootstrap) RegisterFuncStopAfter(fct FuncEvent)    { b.stopAfter = fct }
func (b *Bootstrap) RegisterFuncReloadBefore(fct FuncEvent) { b.reloadBefore = fct }
func (b *Bootstrap) RegisterFuncReloadAfter(fct FuncEvent)  { b.reloadAfter = fct }

// SetMetricsRegisterer overrides the Prometheus registerer used for
// descriptors with Config.MetricsEnabled set. Defaults to
// prometheus.DefaultRegisterer.
func (b *Bootstrap) SetMetricsRegisterer(reg prometheus.Registerer) {
	if reg != nil {
		b.metricsRegisterer = reg
	}
}

func (b *Bootstrap) satisfiesVersion(d Descriptor) (bool, error) {
	if d.MinServerVersion == "" || b.build == nil {
		return true, nil
	}

	c, err := hcver.NewConstraint(d.MinServerVersion)
	if err != nil {
		return false, ErrorInvalidConstraint.Error(err)
	}

	return c.Check(b.build), nil
}

// Register validates and stores d, building (but not starting) its
// appserver.Core. It rejects a nil transport and a duplicate name.
func (b *Bootstrap) Register(d Descriptor) error {
	if d.Transport == nil {
		return ErrorNilTransport.Error()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.entries[d.Name]; exists {
		return ErrorDuplicateName.Error()
	}

	core, err := appserver.New(d.Config, d.Hooks, d.Framer, d.Dispatcher, d.Filters, b.log)
	if err != nil {
		return err
	}

	if err = core.Setup(d.Transport(d.Address)); err != nil {
		return err
	}

	b.entries[d.Name] = &entry{desc: d, core: core}
	b.order = append(b.order, d.Name)

	return nil
}

// Start runs every registered descriptor's version gate then Start, in
// registration order, and returns the overall StartStatus (§4.H).
func (b *Bootstrap) Start(ctx context.Context) (StartStatus, error) {
	if b.startBefore != nil {
		if err := b.startBefore(); err != nil {
			return Failed, err
		}
	}

	b.mu.Lock()
	names := append([]string(nil), b.order...)
	b.mu.Unlock()

	var started, skipped, failed int

	for _, name := range names {
		b.mu.Lock()
		e := b.entries[name]
		b.mu.Unlock()

		ok, err := b.satisfiesVersion(e.desc)
		if err != nil {
			b.log.Error("bootstrap %q: %v", name, err)
			failed++
			continue
		}
		if !ok {
			b.log.Info("bootstrap %q: skipped, build does not satisfy %q", name, e.desc.MinServerVersion)
			skipped++
			continue
		}

		if err := e.core.Start(ctx); err != nil {
			b.log.Error("bootstrap %q: start failed: %v", name, err)
			failed++
			continue
		}

		started++

		if e.desc.Config.MetricsEnabled {
			b.startMetrics(ctx, name, e)
		}
	}

	if b.startAfter != nil {
		if err := b.startAfter(); err != nil {
			return Failed, err
		}
	}

	total := len(names)
	switch {
	case total == 0:
		return None, nil
	case started == total:
		return Success, nil
	case started == 0:
		return Failed, fmt.Errorf("bootstrap: every descriptor failed to start (%d skipped)", skipped)
	default:
		return PartialSuccess, nil
	}
}

// startMetrics starts a runner/ticker.Ticker that periodically publishes
// e.core's CollectState to Prometheus, stopped by Stop.
func (b *Bootstrap) startMetrics(ctx context.Context, name string, e *entry) {
	var prevHandled uint64

	e.mu.Lock()
	e.metrics = appserver.NewMetrics(b.metricsRegisterer, name)
	e.metricsTicker = ticker.New(metricsSampleInterval, func(_ context.Context, _ *time.Ticker) error {
		st := e.core.CollectState()
		e.metrics.Observe(st, prevHandled)
		prevHandled = st.TotalHandledRequest
		return nil
	})
	tk := e.metricsTicker
	e.mu.Unlock()

	_ = tk.Start(ctx)
}

// Stop stops every running server core and the endpoint watcher, if any.
func (b *Bootstrap) Stop(ctx context.Context) error {
	if b.stopBefore != nil {
		if err := b.stopBefore(); err != nil {
			return err
		}
	}

	b.mu.Lock()
	names := append([]string(nil), b.order...)
	b.mu.Unlock()

	var firstErr error

	for _, name := range names {
		b.mu.Lock()
		e := b.entries[name]
		b.mu.Unlock()

		e.mu.Lock()
		mt := e.metricsTicker
		e.mu.Unlock()

		if mt != nil {
			_ = mt.Stop(ctx)
		}

		if !e.core.IsRunning() {
			continue
		}

		if err := e.core.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if b.reloader != nil {
		_ = b.reloader.close()
	}

	if b.stopAfter != nil {
		if err := b.stopAfter(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Get returns the appserver.Core registered under name.
func (b *Bootstrap) Get(name string) (*appserver.Core, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[name]
	if !ok {
		return nil, false
	}

	return e.core, true
}
