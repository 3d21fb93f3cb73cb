// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/block"
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/kv"
)

// number of recent hashes handed to the executive
const lastHashesLen = 256

var (
	headKey    = []byte("head")
	genesisKey = []byte("genesis")
	hashPrefix = []byte("h")
)

var errNotInitialized = errors.New("chain not initialized, run the init command first")

// chainStore keeps the applied head and the genesis it grew from.
type chainStore struct {
	store kv.Store
}

func hashKey(num uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte(nil), hashPrefix...), num)
}

// Genesis returns the raw genesis the chain was initialized with.
func (c *chainStore) Genesis() ([]byte, error) {
	data, err := c.store.Get(genesisKey)
	if err != nil {
		if c.store.IsNotFound(err) {
			return nil, errNotInitialized
		}
		return nil, err
	}
	return data, nil
}

// Head returns the last applied block.
func (c *chainStore) Head() (*block.Block, error) {
	data, err := c.store.Get(headKey)
	if err != nil {
		if c.store.IsNotFound(err) {
			return nil, errNotInitialized
		}
		return nil, err
	}
	var b block.Block
	if err := rlp.DecodeBytes(data, &b); err != nil {
		return nil, errors.Wrap(err, "decode head")
	}
	return &b, nil
}

// HeadRoot returns the state root of the head.
func (c *chainStore) HeadRoot() (cita.Bytes32, error) {
	head, err := c.Head()
	if err != nil {
		return cita.Bytes32{}, err
	}
	return head.Header().StateRoot(), nil
}

// Init writes the genesis block, together with the genesis it was built from.
func (c *chainStore) Init(genesis []byte, b *block.Block) error {
	batch := c.store.NewBatch()
	if err := batch.Put(genesisKey, genesis); err != nil {
		return err
	}
	if err := c.putHead(batch, b); err != nil {
		return err
	}
	return batch.Write()
}

// SetHead records b as the new head.
func (c *chainStore) SetHead(b *block.Block) error {
	batch := c.store.NewBatch()
	if err := c.putHead(batch, b); err != nil {
		return err
	}
	return batch.Write()
}

func (c *chainStore) putHead(p kv.Putter, b *block.Block) error {
	data, err := rlp.EncodeToBytes(b)
	if err != nil {
		return err
	}
	if err := p.Put(hashKey(b.Header().Number()), b.Header().Hash().Bytes()); err != nil {
		return err
	}
	return p.Put(headKey, data)
}

// LastHashes returns hashes of the blocks before num, the nearest first.
func (c *chainStore) LastHashes(num uint64) ([]cita.Bytes32, error) {
	hashes := make([]cita.Bytes32, 0, min(num, lastHashesLen))
	for n := num; n > 0 && len(hashes) < lastHashesLen; n-- {
		data, err := c.store.Get(hashKey(n - 1))
		if err != nil {
			return nil, errors.Wrapf(err, "hash of block %d", n-1)
		}
		hashes = append(hashes, cita.BytesToBytes32(data))
	}
	return hashes, nil
}
