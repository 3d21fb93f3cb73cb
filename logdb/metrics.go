// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

import (
	"strings"

	"github.com/citahub/cita-executor/metrics"
)

var (
	metricCriteriaLengthBucket = metrics.LazyLoadHistogram("logdb_criteria_length_bucket", []int64{0, 2, 5, 10, 25, 100, 1000})
	metricQueryParameters      = metrics.LazyLoadCounterVec("logdb_query_parameters", []string{"parameters"})
	metricQueryOrderCounter    = metrics.LazyLoadCounterVec("logdb_query_order", []string{"order"})
	metricLimitBucket          = metrics.LazyLoadHistogram("logdb_query_limit_bucket", []int64{0, 5, 10, 25, 50, 100, 250, 500, 1000})
	metricLogsWritten          = metrics.LazyLoadCounter("logdb_logs_written_count")
	metricStmtCache            = metrics.LazyLoadCounterVec("logdb_stmt_cache_count", []string{"event"})
)

func metricsHandleLogFilter(filter *LogFilter) {
	metricCriteriaLengthBucket().Observe(int64(len(filter.CriteriaSet)))

	order := "asc"
	if filter.Order == DESC {
		order = "desc"
	}
	metricQueryOrderCounter().AddWithLabel(1, map[string]string{"order": order})

	if filter.Options != nil {
		metricLimitBucket().Observe(int64(min(filter.Options.Limit, 1001)))
	}

	for _, c := range filter.CriteriaSet {
		var used []string
		if c.Address != nil {
			used = append(used, "address")
		}
		for i, topic := range c.Topics {
			if topic != nil {
				used = append(used, "topic"+string(rune('0'+i)))
			}
		}
		metricQueryParameters().AddWithLabel(1, map[string]string{"parameters": strings.Join(used, ",")})
	}
}
