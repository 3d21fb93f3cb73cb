// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package muxdb

import (
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/qianbin/directcache"
)

// Cache caches trie node blobs keyed by node hash.
type Cache interface {
	AddNodeBlob(hash []byte, blob []byte, isCommitting bool)
	GetNodeBlob(hash []byte) []byte
}

// cache is the cache layer for trie.
type cache struct {
	queriedNodes   *directcache.Cache // caches recently queried node blobs.
	committedNodes *directcache.Cache // caches newly committed node blobs.

	stats       cacheStats
	lastLogTime atomic.Int64
}

// newCache creates a cache object with the given cache size.
func newCache(sizeMB int) Cache {
	if sizeMB <= 0 {
		return &dummyCache{}
	}
	sizeBytes := sizeMB * 1024 * 1024
	c := &cache{
		queriedNodes:   directcache.New(sizeBytes / 4),
		committedNodes: directcache.New(sizeBytes - sizeBytes/4),
	}
	c.lastLogTime.Store(time.Now().UnixNano())
	return c
}

func (c *cache) log() {
	now := time.Now().UnixNano()
	last := c.lastLogTime.Swap(now)

	if now-last > int64(time.Second*20) {
		changed, hit, miss := c.stats.Stats()
		if changed {
			logStats("node cache stats", hit, miss)
		}
		metricCacheHitMiss().AddWithLabel(hit, map[string]string{"type": "node", "event": "hit"})
		metricCacheHitMiss().AddWithLabel(miss, map[string]string{"type": "node", "event": "miss"})
	} else {
		c.lastLogTime.CompareAndSwap(now, last)
	}
}

// AddNodeBlob adds encoded node blob into the cache.
func (c *cache) AddNodeBlob(hash []byte, blob []byte, isCommitting bool) {
	if isCommitting {
		_ = c.committedNodes.Set(hash, blob)
	} else {
		_ = c.queriedNodes.Set(hash, blob)
	}
}

// GetNodeBlob returns the cached node blob.
func (c *cache) GetNodeBlob(hash []byte) []byte {
	var blob []byte
	fn := func(val []byte) { blob = slices.Clone(val) }

	if (c.committedNodes.AdvGet(hash, fn, false) || c.queriedNodes.AdvGet(hash, fn, false)) && len(blob) > 0 {
		if c.stats.Hit()%2000 == 0 {
			c.log()
		}
		return blob
	}
	c.stats.Miss()
	return nil
}

type cacheStats struct {
	hit, miss atomic.Int64
	flag      atomic.Int32
}

func (cs *cacheStats) Hit() int64  { return cs.hit.Add(1) }
func (cs *cacheStats) Miss() int64 { return cs.miss.Add(1) }

func (cs *cacheStats) Stats() (bool, int64, int64) {
	hit := cs.hit.Load()
	miss := cs.miss.Load()
	lookups := hit + miss

	hitRate := float64(0)
	if lookups > 0 {
		hitRate = float64(hit) / float64(lookups)
	}
	flag := int32(hitRate * 1000)

	return cs.flag.Swap(flag) != flag, hit, miss
}

func logStats(msg string, hit, miss int64) {
	lookups := hit + miss
	var str string
	if lookups > 0 {
		str = fmt.Sprintf("%.3f", float64(hit)/float64(lookups))
	} else {
		str = "n/a"
	}

	logger.Info(msg,
		"lookups", lookups,
		"hitrate", str,
	)
}

type dummyCache struct{}

func (*dummyCache) AddNodeBlob(_ []byte, _ []byte, _ bool) {}
func (*dummyCache) GetNodeBlob(_ []byte) []byte            { return nil }
