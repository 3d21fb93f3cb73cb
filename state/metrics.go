// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/citahub/cita-executor/metrics"
)

var (
	metricCheckpointReverts = metrics.LazyLoadCounter("state_checkpoint_reverts_count")
	metricTrieCommits       = metrics.LazyLoadCounter("state_commits_count")
	metricCommitDuration    = metrics.LazyLoadHistogram("state_commit_duration_ms", metrics.BucketDurationMs)
)
