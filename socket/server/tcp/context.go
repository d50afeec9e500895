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

package tcp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
)

// sCtx is the TCP socket.Context: a net.Conn wrapped with a derived
// context.Context (canceled when the accept loop's ctx is canceled or the
// connection is closed) and an IsConnected flag settled exactly once.
type sCtx struct {
	context.Context

	conn net.Conn

	mu        sync.Mutex
	connected bool
	closed    atomic.Bool
}

func (c *sCtx) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

func (c *sCtx) LocalHost() string {
	if c.conn == nil {
		return ""
	}

	return c.conn.LocalAddr().String()
}

func (c *sCtx) RemoteHost() string {
	if c.conn == nil {
		return ""
	}

	return c.conn.RemoteAddr().String()
}

func (c *sCtx) Read(p []byte) (int, error) {
	n, err := c.conn.Read(p)
	if err != nil {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}

	return n, err
}

func (c *sCtx) Write(p []byte) (int, error) {
	n, err := c.conn.Write(p)
	if err != nil {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}

	return n, err
}

func (c *sCtx) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	return c.conn.Close()
}
