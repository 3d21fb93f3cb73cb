// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/citahub/cita-executor/metrics"
)

var (
	metricTxOutcomes   = metrics.LazyLoadCounterVec("runtime_transactions_count", []string{"outcome"})
	metricDepthHandOff = metrics.LazyLoadCounter("runtime_depth_hand_off_count")
	metricServiceCalls = metrics.LazyLoadCounterVec("runtime_service_calls_count", []string{"method", "status"})
)

func countTx(outcome string) {
	metricTxOutcomes().AddWithLabel(1, map[string]string{"outcome": outcome})
}
