// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package metrics provides the meters of the executor. Meters are no-ops until
// InitializePrometheusMetrics is called, so packages declare them with the LazyLoad
// helpers and resolve them on first use.
package metrics

import (
	"net/http"
	"sync"
	"time"
)

var provider Provider = noopProvider{}

// Provider creates meters by name. Asking twice for the same name returns the same meter.
type Provider interface {
	Counter(name string) CountMeter
	CounterVec(name string, labels []string) CountVecMeter
	Gauge(name string) GaugeMeter
	Histogram(name string, buckets []int64) HistogramMeter
	HistogramVec(name string, labels []string, buckets []int64) HistogramVecMeter
	// Handler serves the meters, nil if they cannot be exported.
	Handler() http.Handler
}

// Buckets in milliseconds or in counts, shared by the executor packages.
var (
	// block application and state commit
	BucketDurationMs = []int64{0, 5, 10, 25, 50, 100, 250, 500, 1000, 2000, 3000, 5000, 10_000}
	BucketHTTPReqs   = []int64{
		0, 1, 2, 5, 10, 20, 30, 50, 75, 100,
		150, 200, 300, 400, 500, 750, 1000,
		1500, 2000, 3000, 4000, 5000, 10000,
	}
	// transactions per block
	BucketTxs = []int64{0, 1, 10, 50, 100, 500, 1000, 5000}
)

// CountMeter only goes up.
type CountMeter interface {
	Add(int64)
}

// CountVecMeter is a CountMeter partitioned by labels.
type CountVecMeter interface {
	AddWithLabel(int64, map[string]string)
}

// GaugeMeter holds a value that goes up and down.
type GaugeMeter interface {
	Add(int64)
	Set(int64)
}

// HistogramMeter aggregates observations into buckets.
type HistogramMeter interface {
	Observe(int64)
}

// HistogramVecMeter is a HistogramMeter partitioned by labels.
type HistogramVecMeter interface {
	ObserveWithLabels(int64, map[string]string)
}

// HTTPHandler returns the handler exporting the meters, nil while metrics are disabled.
func HTTPHandler() http.Handler { return provider.Handler() }

func Counter(name string) CountMeter { return provider.Counter(name) }

func CounterVec(name string, labels []string) CountVecMeter {
	return provider.CounterVec(name, labels)
}

func Gauge(name string) GaugeMeter { return provider.Gauge(name) }

func Histogram(name string, buckets []int64) HistogramMeter {
	return provider.Histogram(name, buckets)
}

func HistogramVec(name string, labels []string, buckets []int64) HistogramVecMeter {
	return provider.HistogramVec(name, labels, buckets)
}

// Since observes the milliseconds elapsed from start.
func Since(h HistogramMeter, start time.Time) {
	h.Observe(time.Since(start).Milliseconds())
}

// lazy defers creating a meter until first use, when the provider is settled.
func lazy[T any](create func() T) func() T {
	var (
		once  sync.Once
		meter T
	)
	return func() T {
		once.Do(func() { meter = create() })
		return meter
	}
}

func LazyLoadCounter(name string) func() CountMeter {
	return lazy(func() CountMeter { return Counter(name) })
}

func LazyLoadCounterVec(name string, labels []string) func() CountVecMeter {
	return lazy(func() CountVecMeter { return CounterVec(name, labels) })
}

func LazyLoadGauge(name string) func() GaugeMeter {
	return lazy(func() GaugeMeter { return Gauge(name) })
}

func LazyLoadHistogram(name string, buckets []int64) func() HistogramMeter {
	return lazy(func() HistogramMeter { return Histogram(name, buckets) })
}

func LazyLoadHistogramVec(name string, labels []string, buckets []int64) func() HistogramVecMeter {
	return lazy(func() HistogramVecMeter { return HistogramVec(name, labels, buckets) })
}
