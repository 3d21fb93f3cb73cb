// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package lvldb is the goleveldb engine under the state database.
package lvldb

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/citahub/cita-executor/kv"
)

var _ kv.StoreCloser = (*Store)(nil)

const minCacheMB, minOpenFiles = 16, 16

// Options tune the engine. Values below the minimums are raised to them.
type Options struct {
	CacheMB   int
	OpenFiles int
	// rejects every write, for query-only commands
	ReadOnly bool
}

func (o Options) leveldb() *opt.Options {
	cache := max(o.CacheMB, minCacheMB)
	return &opt.Options{
		OpenFilesCacheCapacity: max(o.OpenFiles, minOpenFiles),
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		// two write buffers live at once
		WriteBuffer: cache / 4 * opt.MiB,
		Filter:      filter.NewBloomFilter(10),
		ReadOnly:    o.ReadOnly,
	}
}

// Store is a kv.Store on goleveldb. Writes are not synced, the trie nodes they
// carry can be rebuilt by applying the blocks again.
type Store struct {
	db *leveldb.DB
}

// New opens the database at path, creating it unless read only.
func New(path string, opts Options) (*Store, error) {
	stg, err := storage.OpenFile(path, opts.ReadOnly)
	if err != nil {
		return nil, errors.Wrap(err, "open level db storage")
	}
	return open(stg, opts)
}

// NewMem creates a database in memory.
func NewMem() (*Store, error) {
	return open(storage.NewMemStorage(), Options{})
}

func open(stg storage.Storage, opts Options) (*Store, error) {
	db, err := leveldb.Open(stg, opts.leveldb())
	if err != nil {
		_ = stg.Close()
		return nil, errors.Wrap(err, "open level db")
	}
	return &Store{db}, nil
}

// IsNotFound tells whether err is the not found error of Get.
func (s *Store) IsNotFound(err error) bool { return errors.Is(err, leveldb.ErrNotFound) }

func (s *Store) Get(key []byte) ([]byte, error) { return s.db.Get(key, nil) }
func (s *Store) Has(key []byte) (bool, error)   { return s.db.Has(key, nil) }
func (s *Store) Put(key, val []byte) error      { return s.db.Put(key, val, nil) }
func (s *Store) Delete(key []byte) error        { return s.db.Delete(key, nil) }

// Close releases the database, later calls fail.
func (s *Store) Close() error { return s.db.Close() }

// Iterate returns an iterator over the keys in r, in order.
func (s *Store) Iterate(r kv.Range) kv.Iterator {
	return s.db.NewIterator(&util.Range{Start: r.Start, Limit: r.Limit}, nil)
}

// NewBatch collects writes applied atomically by Write.
func (s *Store) NewBatch() kv.Batch {
	return &batch{db: s.db}
}

type batch struct {
	db *leveldb.DB
	b  leveldb.Batch
}

func (b *batch) Put(key, val []byte) error { b.b.Put(key, val); return nil }
func (b *batch) Delete(key []byte) error   { b.b.Delete(key); return nil }
func (b *batch) Len() int                  { return b.b.Len() }
func (b *batch) Write() error              { return b.db.Write(&b.b, nil) }
