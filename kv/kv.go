// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

// Getter defines methods to read kv.
type Getter interface {
	// Get value for given key.
	// An error returned if key not found. It can be checked via IsNotFound.
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	IsNotFound(err error) bool
}

// Putter defines methods to write kv.
type Putter interface {
	Put(key, val []byte) error
	Delete(key []byte) error
}

// GetPutter defines methods to read and write kv.
type GetPutter interface {
	Getter
	Putter
}

// Batch collects puts and deletes, and writes them atomically.
type Batch interface {
	Putter
	Len() int
	Write() error
}

// Range is the key range of iteration.
type Range struct {
	Start []byte // included
	Limit []byte // excluded
}

// Iterator iterates over kvs in key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Store defines the full functional kv store.
type Store interface {
	Getter
	Putter

	NewBatch() Batch
	Iterate(r Range) Iterator
}

// StoreCloser is a Store that must be closed after use.
type StoreCloser interface {
	Store
	Close() error
}
