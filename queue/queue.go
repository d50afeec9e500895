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

// Package queue implements the Batch Send Queue: a bounded, multi-producer
// single-consumer queue of outbound byte segments drained in arrival order
// to one session's socket.
package queue

import "sync"

// MinCapacity is the smallest accepted queue capacity; configured values
// below it are clamped up, per the "SendingQueueSize minimum 3" invariant.
const MinCapacity = 3

// Segment is one outbound chunk of bytes. The queue never copies or
// mutates it; the caller owns the backing array until it is drained.
type Segment []byte

// Queue is a bounded, multi-producer/single-consumer batch queue of byte
// segments. Any goroutine may Enqueue; only the owning session's send pump
// should call TryDequeue.
type Queue interface {
	// Enqueue appends one or more segments atomically. It returns false,
	// without enqueuing anything, if doing so would exceed the configured
	// capacity. It never blocks.
	Enqueue(segments ...Segment) bool

	// TryDequeue drains up to capacity queued segments, in FIFO order,
	// into the returned slice. The second return is false if the queue
	// was empty.
	TryDequeue() ([]Segment, bool)

	// Len returns the number of segments currently queued.
	Len() int
}

type queue struct {
	mu       sync.Mutex
	capacity int
	items    []Segment
}

// New returns a Queue with the given capacity, clamped up to MinCapacity.
func New(capacity int) Queue {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}

	return &queue{capacity: capacity, items: make([]Segment, 0, capacity)}
}

func (q *queue) Enqueue(segments ...Segment) bool {
	if len(segments) == 0 {
		return true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items)+len(segments) > q.capacity {
		return false
	}

	q.items = append(q.items, segments...)

	return true
}

func (q *queue) TryDequeue() ([]Segment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	out := q.items
	q.items = make([]Segment, 0, q.capacity)

	return out, true
}

func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
