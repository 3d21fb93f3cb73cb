// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package processor

import (
	"github.com/citahub/cita-executor/metrics"
)

var (
	metricBlocksApplied  = metrics.LazyLoadCounter("processor_blocks_applied_count")
	metricBlockDuration  = metrics.LazyLoadHistogram("processor_block_duration_ms", metrics.BucketDurationMs)
	metricReceiptsErrors = metrics.LazyLoadCounterVec("processor_receipt_errors_count", []string{"error"})
	metricBlockGasUsed   = metrics.LazyLoadGauge("processor_block_gas_used")
)
