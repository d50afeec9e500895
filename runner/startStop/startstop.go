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

// Package startStop wraps a pair of long-running-start / stop functions with
// uptime tracking and error collection, used by appserver.Core to drive its
// accept loop and by bootstrap.Bootstrap to drive each composed Core.
package startStop

import (
	"context"
	"sync"
	"time"
)

// StartFunc is launched in its own goroutine by Start; it is expected to
// block until its context is canceled (typically by Stop).
type StartFunc func(ctx context.Context) error

// StopFunc runs synchronously from Stop, after the start goroutine's
// context has been canceled, to release any remaining resources.
type StopFunc func(ctx context.Context) error

// StartStop tracks the running state of one start/stop pair.
type StartStop interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	IsRunning() bool
	Uptime() time.Duration

	ErrorsLast() error
	ErrorsList() []error
}

type startStop struct {
	mu      sync.Mutex
	start   StartFunc
	stop    StopFunc
	running bool
	since   time.Time
	cancel  context.CancelFunc
	done    chan struct{}

	errMu sync.Mutex
	errs  []error
}

// New builds a StartStop from the given start/stop functions. Either may be
// nil; a nil start is treated as an immediate no-op, a nil stop is skipped.
func New(start StartFunc, stop StopFunc) StartStop {
	return &startStop{start: start, stop: stop}
}

func (s *startStop) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	cctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.since = time.Now()
	s.done = make(chan struct{})
	done := s.done
	fn := s.start
	s.mu.Unlock()

	s.errMu.Lock()
	s.errs = nil
	s.errMu.Unlock()

	go func() {
		defer close(done)

		if fn == nil {
			<-cctx.Done()
			return
		}

		if err := fn(cctx); err != nil {
			s.errMu.Lock()
			s.errs = append(s.errs, err)
			s.errMu.Unlock()
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	return nil
}

func (s *startStop) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}

	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if s.stop == nil {
		return nil
	}

	if err := s.stop(ctx); err != nil {
		s.errMu.Lock()
		s.errs = append(s.errs, err)
		s.errMu.Unlock()

		return err
	}

	return nil
}

func (s *startStop) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

func (s *startStop) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return 0
	}

	return time.Since(s.since)
}

func (s *startStop) ErrorsLast() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	if len(s.errs) == 0 {
		return nil
	}

	return s.errs[len(s.errs)-1]
}

func (s *startStop) ErrorsList() []error {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	out := make([]error, len(s.errs))
	copy(out, s.errs)

	return out
}
