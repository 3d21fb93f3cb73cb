// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"os"

	"github.com/elastic/gosigar"
	"github.com/prometheus/client_golang/prometheus"
)

// processCollector reports host and process memory figures read through gosigar.
type processCollector struct {
	pid int

	hostTotalDesc *prometheus.Desc
	hostUsedDesc  *prometheus.Desc
	residentDesc  *prometheus.Desc
}

func newProcessCollector() *processCollector {
	return &processCollector{
		pid: os.Getpid(),
		hostTotalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "host", "memory_total_bytes"),
			"Total physical memory of the host.", nil, nil),
		hostUsedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "host", "memory_used_bytes"),
			"Physical memory in use on the host.", nil, nil),
		residentDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "executor", "resident_memory_bytes"),
			"Resident memory of the executor process.", nil, nil),
	}
}

func (c *processCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hostTotalDesc
	ch <- c.hostUsedDesc
	ch <- c.residentDesc
}

func (c *processCollector) Collect(ch chan<- prometheus.Metric) {
	var mem gosigar.Mem
	if err := mem.Get(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.hostTotalDesc, prometheus.GaugeValue, float64(mem.Total))
		ch <- prometheus.MustNewConstMetric(c.hostUsedDesc, prometheus.GaugeValue, float64(mem.ActualUsed))
	}
	var procMem gosigar.ProcMem
	if err := procMem.Get(c.pid); err == nil {
		ch <- prometheus.MustNewConstMetric(c.residentDesc, prometheus.GaugeValue, float64(procMem.Resident))
	}
}
