// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import "github.com/citahub/cita-executor/metrics"

var (
	metricHeadNumber = metrics.LazyLoadGauge("head_number")
	metricBlockTxs   = metrics.LazyLoadHistogram("block_txs_count", metrics.BucketTxs)
)
