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

	"golang.org/x/sync/semaphore"
)

// ThreadPoolConfig is the process-wide worker-thread pool tuning surface
// from §6: {MaxWorkingThreads, MaxCompletionPortThreads, MinWorkingThreads,
// MinCompletionPortThreads}. Negative fields mean "leave default". Only
// MaxWorkingThreads has a direct analogue in a goroutine-scheduled
// runtime (there is no fixed completion-port thread count to tune), so
// the Min/CompletionPort fields are accepted for config-surface
// compatibility but do not change WorkerPool's behavior.
type ThreadPoolConfig struct {
	MaxWorkingThreads        int
	MaxCompletionPortThreads int
	MinWorkingThreads        int
	MinCompletionPortThreads int
}

// WorkerPool bounds the number of command dispatches running
// concurrently across every Core that shares it, via a weighted
// semaphore — the "configure the process-wide worker-thread pool once"
// step of §4.E. A zero-value WorkerPool (no limit configured) never
// blocks.
type WorkerPool struct {
	sem *semaphore.Weighted
}

// NewWorkerPool builds a WorkerPool from cfg. A non-positive
// MaxWorkingThreads means unlimited.
func NewWorkerPool(cfg ThreadPoolConfig) *WorkerPool {
	if cfg.MaxWorkingThreads <= 0 {
		return &WorkerPool{}
	}

	return &WorkerPool{sem: semaphore.NewWeighted(int64(cfg.MaxWorkingThreads))}
}

// Acquire blocks until a worker slot is free or ctx is done. It is a
// no-op (always succeeds immediately) on an unlimited pool.
func (p *WorkerPool) Acquire(ctx context.Context) error {
	if p == nil || p.sem == nil {
		return nil
	}

	return p.sem.Acquire(ctx, 1)
}

// Release returns a worker slot acquired with Acquire.
func (p *WorkerPool) Release() {
	if p == nil || p.sem == nil {
		return
	}

	p.sem.Release(1)
}
