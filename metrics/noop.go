// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import "net/http"

type noopProvider struct{}

func (noopProvider) Counter(string) CountMeter                 { return noopMeter{} }
func (noopProvider) CounterVec(string, []string) CountVecMeter { return noopMeter{} }
func (noopProvider) Gauge(string) GaugeMeter                   { return noopMeter{} }
func (noopProvider) Histogram(string, []int64) HistogramMeter  { return noopMeter{} }
func (noopProvider) Handler() http.Handler                     { return nil }
func (noopProvider) HistogramVec(string, []string, []int64) HistogramVecMeter {
	return noopMeter{}
}

// noopMeter discards everything.
type noopMeter struct{}

func (noopMeter) Add(int64)                                  {}
func (noopMeter) Set(int64)                                  {}
func (noopMeter) Observe(int64)                              {}
func (noopMeter) AddWithLabel(int64, map[string]string)      {}
func (noopMeter) ObserveWithLabels(int64, map[string]string) {}
