// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package muxdb

import (
	"github.com/citahub/cita-executor/metrics"
)

var (
	metricCacheHitMiss     = metrics.LazyLoadCounterVec("trie_cache_hit_miss_count", []string{"type", "event"})
	metricTrieNodesWritten = metrics.LazyLoadCounter("trie_nodes_written_count")
)
