// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package muxdb implements the storage layer of the executor.
// It manages instances of merkle-patricia-trie, and general purpose named kv-store.
package muxdb

import (
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/kv"
	"github.com/citahub/cita-executor/log"
	"github.com/citahub/cita-executor/lvldb"
)

const (
	trieNodeSpace   = byte(0) // the key space for trie nodes, keyed by node hash.
	namedStoreSpace = byte(1) // the key space for named store.
)

var logger = log.WithContext("pkg", "muxdb")

// Options optional parameters for MuxDB.
type Options struct {
	// TrieNodeCacheSizeMB is the size of the cache for trie node blobs.
	TrieNodeCacheSizeMB int
	// OpenFilesCacheCapacity is the capacity of open files caching for underlying database.
	OpenFilesCacheCapacity int
	// ReadCacheMB is the size of read cache for underlying database.
	ReadCacheMB int
	// ReadOnly opens the underlying database without write access.
	ReadOnly bool
}

// MuxDB is the database to efficiently store state tries and named kv stores.
type MuxDB struct {
	engine kv.StoreCloser
	nodes  *nodeDatabase
}

// Open opens or creates DB at the given path.
func Open(path string, options *Options) (*MuxDB, error) {
	ldb, err := lvldb.New(path, lvldb.Options{
		CacheMB:   options.ReadCacheMB,
		OpenFiles: options.OpenFilesCacheCapacity,
		ReadOnly:  options.ReadOnly,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("database opened", "path", path, "node-cache", options.TrieNodeCacheSizeMB, "read-only", options.ReadOnly)
	return newMuxDB(ldb, newCache(options.TrieNodeCacheSizeMB)), nil
}

// NewMem creates a memory-backed DB.
func NewMem() *MuxDB {
	ldb, err := lvldb.NewMem()
	if err != nil {
		panic(err)
	}
	return newMuxDB(ldb, &dummyCache{})
}

func newMuxDB(engine kv.StoreCloser, cache Cache) *MuxDB {
	return &MuxDB{
		engine: engine,
		nodes: &nodeDatabase{
			store: kv.Bucket([]byte{trieNodeSpace}).NewStore(engine),
			cache: cache,
		},
	}
}

// Close closes the DB.
func (db *MuxDB) Close() error {
	return db.engine.Close()
}

// NewTrie creates the account trie with the given root.
func (db *MuxDB) NewTrie(root cita.Bytes32) (*Trie, error) {
	return newTrie(db.nodes, cita.Bytes32{}, root)
}

// NewStorageTrie creates the storage trie of the account whose address hashes to addrHash.
func (db *MuxDB) NewStorageTrie(addrHash cita.Bytes32, root cita.Bytes32) (*Trie, error) {
	return newTrie(db.nodes, addrHash, root)
}

// Contains reports whether the root node of the trie is present.
func (db *MuxDB) Contains(root cita.Bytes32) (bool, error) {
	if root == cita.EmptyRoot || root.IsZero() {
		return true, nil
	}
	return db.nodes.store.Has(root[:])
}

// NewStore creates named kv-store.
func (db *MuxDB) NewStore(name string) kv.Store {
	return kv.Bucket(string(namedStoreSpace) + name).NewStore(db.engine)
}

// NewBlobStore creates a named kv-store whose values are snappy compressed.
func (db *MuxDB) NewBlobStore(name string) kv.Store {
	return newBlobStore(db.NewStore(name))
}

// IsNotFound returns if an error indicates key not found.
func (db *MuxDB) IsNotFound(err error) bool {
	return db.engine.IsNotFound(err)
}
