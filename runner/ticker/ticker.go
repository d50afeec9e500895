/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package ticker runs a function on a fixed interval until stopped, used by
// the appserver package for the idle sweep and session-snapshot timers.
package ticker

import (
	"context"
	"sync"
	"time"
)

// minInterval is the smallest tick period accepted; smaller requests fall
// back to it rather than hammering the scheduler.
const minInterval = 1 * time.Millisecond

// Func is run on every tick. A non-nil error is recorded but never stops
// the ticker.
type Func func(ctx context.Context, t *time.Ticker) error

// Ticker runs Func on a fixed interval in its own goroutine.
type Ticker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error

	IsRunning() bool
	Uptime() time.Duration

	ErrorsLast() error
	ErrorsList() []error
}

type ticker struct {
	mu       sync.Mutex
	interval time.Duration
	fct      Func

	running bool
	start   time.Time
	cancel  context.CancelFunc
	done    chan struct{}

	errMu sync.Mutex
	errs  []error
}

// New creates a Ticker running fct every interval once Start is called. A
// nil fct is replaced with a no-op. An interval below 1ms is clamped up.
func New(interval time.Duration, fct Func) Ticker {
	if interval < minInterval {
		interval = minInterval
	}

	if fct == nil {
		fct = func(ctx context.Context, t *time.Ticker) error { return nil }
	}

	return &ticker{interval: interval, fct: fct}
}

func (t *ticker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}

	cctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.running = true
	t.start = time.Now()
	t.done = make(chan struct{})

	t.errMu.Lock()
	t.errs = nil
	t.errMu.Unlock()

	done := t.done
	t.mu.Unlock()

	go t.run(cctx, done)

	return nil
}

func (t *ticker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if err := t.fct(ctx, tk); err != nil {
				t.errMu.Lock()
				t.errs = append(t.errs, err)
				t.errMu.Unlock()
			}
		}
	}
}

func (t *ticker) Stop(_ context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}

	cancel := t.cancel
	done := t.done
	t.running = false
	t.mu.Unlock()

	cancel()
	<-done

	return nil
}

func (t *ticker) Restart(ctx context.Context) error {
	if err := t.Stop(ctx); err != nil {
		return err
	}

	return t.Start(ctx)
}

func (t *ticker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.running
}

func (t *ticker) Uptime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return 0
	}

	return time.Since(t.start)
}

func (t *ticker) ErrorsLast() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()

	if len(t.errs) == 0 {
		return nil
	}

	return t.errs[len(t.errs)-1]
}

func (t *ticker) ErrorsList() []error {
	t.errMu.Lock()
	defer t.errMu.Unlock()

	out := make([]error, len(t.errs))
	copy(out, t.errs)

	return out
}
