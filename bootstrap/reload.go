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

package bootstrap

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/sabouaram/sockd/appserver"
)

// ReplaceEndpoint rebinds the named descriptor to address without touching
// any other entry: it stops the existing core (if running), rebuilds its
// transport from the descriptor's EndpointTransportFactory at the new
// address, and restarts it.
func (b *Bootstrap) ReplaceEndpoint(ctx context.Context, name, address string) error {
	b.mu.Lock()
	e, ok := b.entries[name]
	b.mu.Unlock()

	if !ok {
		return ErrorUnknownServer.Error()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wasRunning := e.core.IsRunning()

	if wasRunning {
		if err := e.core.Stop(ctx); err != nil {
			return err
		}
	}

	e.desc.Address = address

	core, err := appserver.New(e.desc.Config, e.desc.Hooks, e.desc.Framer, e.desc.Dispatcher, e.desc.Filters, b.log)
	if err != nil {
		return err
	}

	if err = core.Setup(e.desc.Transport(address)); err != nil {
		return err
	}

	e.core = core

	if wasRunning {
		return core.Start(ctx)
	}

	return nil
}

// endpointWatcher drives ReplaceEndpoint from a viper-backed endpoint map
// (descriptor name -> bind address) that is reloaded whenever the backing
// file changes, §4.H's "listener-endpoint replacement map" applied live
// instead of only at startup.
type endpointWatcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchEndpointFile watches path (a viper-readable file holding a flat
// string map of descriptor name to bind address) and calls ReplaceEndpoint
// for every entry each time the file changes.
func (b *Bootstrap) WatchEndpointFile(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return ErrorWatchFailed.Error(err)
	}

	if err = w.Add(path); err != nil {
		_ = w.Close()
		return ErrorWatchFailed.Error(err)
	}

	ew := &endpointWatcher{watcher: w, done: make(chan struct{})}
	b.reloader = ew

	apply := func() {
		if b.reloadBefore != nil {
			if err := b.reloadBefore(); err != nil {
				b.log.Error("bootstrap: reload hook failed: %v", err)
				return
			}
		}

		endpoints, err := readEndpointFile(path)
		if err != nil {
			b.log.Error("bootstrap: reload failed reading %s: %v", path, err)
			return
		}

		for name, address := range endpoints {
			if err := b.ReplaceEndpoint(ctx, name, address); err != nil {
				b.log.Error("bootstrap: reload of %q failed: %v", name, err)
			}
		}

		if b.reloadAfter != nil {
			if err := b.reloadAfter(); err != nil {
				b.log.Error("bootstrap: reload after-hook failed: %v", err)
			}
		}
	}

	go func() {
		defer close(ew.done)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, open := <-w.Events:
				if !open {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					apply()
				}
			case err, open := <-w.Errors:
				if !open {
					return
				}
				b.log.Error("bootstrap: endpoint watcher: %v", err)
			}
		}
	}()

	return nil
}

func (ew *endpointWatcher) close() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	if ew.watcher == nil {
		return nil
	}

	err := ew.watcher.Close()
	<-ew.done
	ew.watcher = nil

	return err
}

func readEndpointFile(path string) (map[string]string, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	out := make(map[string]string)
	if err := v.Unmarshal(&out); err != nil {
		return nil, err
	}

	return out, nil
}
