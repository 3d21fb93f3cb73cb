// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cita_executor"

// InitializePrometheusMetrics switches the meters to prometheus, together with the
// process collector. Meters already resolved stay no-ops. Calling it again does nothing.
func InitializePrometheusMetrics() {
	if _, ok := provider.(*promProvider); ok {
		return
	}
	register(newProcessCollector())
	provider = &promProvider{}
}

// promProvider keeps one meter per kind and name.
type promProvider struct {
	meters sync.Map
}

func (p *promProvider) meter(kind, name string, create func() any) any {
	key := kind + ":" + name
	if m, ok := p.meters.Load(key); ok {
		return m
	}
	m, _ := p.meters.LoadOrStore(key, create())
	return m
}

func register(c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		log.Warn("unable to register metric", "err", err)
	}
}

func floatBuckets(buckets []int64) []float64 {
	fb := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		fb = append(fb, float64(b))
	}
	return fb
}

func (p *promProvider) Handler() http.Handler { return promhttp.Handler() }

func (p *promProvider) Counter(name string) CountMeter {
	return p.meter("counter", name, func() any {
		c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name})
		register(c)
		return &promCounter{c}
	}).(CountMeter)
}

func (p *promProvider) CounterVec(name string, labels []string) CountVecMeter {
	return p.meter("counterVec", name, func() any {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name}, labels)
		register(c)
		return &promCounterVec{c}
	}).(CountVecMeter)
}

func (p *promProvider) Gauge(name string) GaugeMeter {
	return p.meter("gauge", name, func() any {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name})
		register(g)
		return &promGauge{g}
	}).(GaugeMeter)
}

func (p *promProvider) Histogram(name string, buckets []int64) HistogramMeter {
	return p.meter("histogram", name, func() any {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: name, Buckets: floatBuckets(buckets)})
		register(h)
		return &promHistogram{h}
	}).(HistogramMeter)
}

func (p *promProvider) HistogramVec(name string, labels []string, buckets []int64) HistogramVecMeter {
	return p.meter("histogramVec", name, func() any {
		h := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Buckets: floatBuckets(buckets)}, labels)
		register(h)
		return &promHistogramVec{h}
	}).(HistogramVecMeter)
}

type promCounter struct{ c prometheus.Counter }

func (m *promCounter) Add(i int64) { m.c.Add(float64(i)) }

type promCounterVec struct{ c *prometheus.CounterVec }

func (m *promCounterVec) AddWithLabel(i int64, labels map[string]string) {
	m.c.With(labels).Add(float64(i))
}

type promGauge struct{ g prometheus.Gauge }

func (m *promGauge) Add(i int64) { m.g.Add(float64(i)) }
func (m *promGauge) Set(i int64) { m.g.Set(float64(i)) }

type promHistogram struct{ h prometheus.Histogram }

func (m *promHistogram) Observe(i int64) { m.h.Observe(float64(i)) }

type promHistogramVec struct{ h *prometheus.HistogramVec }

func (m *promHistogramVec) ObserveWithLabels(i int64, labels map[string]string) {
	m.h.With(labels).Observe(float64(i))
}
