// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package muxdb

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/kv"
)

// blobStore compresses values with snappy. Keys are stored as is.
type blobStore struct {
	kv.Store
}

func newBlobStore(s kv.Store) kv.Store {
	return &blobStore{s}
}

func (s *blobStore) Get(key []byte) ([]byte, error) {
	enc, err := s.Store.Get(key)
	if err != nil {
		return nil, err
	}
	val, err := snappy.Decode(nil, enc)
	if err != nil {
		return nil, errors.Wrap(err, "decode blob")
	}
	return val, nil
}

func (s *blobStore) Put(key, val []byte) error {
	return s.Store.Put(key, snappy.Encode(nil, val))
}

func (s *blobStore) NewBatch() kv.Batch {
	b := s.Store.NewBatch()
	return &struct {
		kv.PutFunc
		kv.DeleteFunc
		kv.LenFunc
		kv.WriteFunc
	}{
		func(key, val []byte) error { return b.Put(key, snappy.Encode(nil, val)) },
		b.Delete,
		b.Len,
		b.Write,
	}
}

func (s *blobStore) Iterate(r kv.Range) kv.Iterator {
	it := s.Store.Iterate(r)
	var decErr error
	return &struct {
		kv.NextFunc
		kv.KeyFunc
		kv.ValueFunc
		kv.ReleaseFunc
		kv.ErrorFunc
	}{
		it.Next,
		it.Key,
		func() []byte {
			val, err := snappy.Decode(nil, it.Value())
			if err != nil {
				decErr = errors.Wrap(err, "decode blob")
				return nil
			}
			return val
		},
		it.Release,
		func() error {
			if decErr != nil {
				return decErr
			}
			return it.Error()
		},
	}
}
