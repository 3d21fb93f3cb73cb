// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package muxdb

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb/database"

	"github.com/citahub/cita-executor/kv"
)

// nodeDatabase stores trie nodes by hash. Being content addressed, all tries share it
// regardless of owner or state root.
type nodeDatabase struct {
	store kv.Store
	cache Cache
}

var (
	_ database.NodeDatabase = (*nodeDatabase)(nil)
	_ database.NodeReader   = (*nodeDatabase)(nil)
)

func (db *nodeDatabase) NodeReader(common.Hash) (database.NodeReader, error) {
	return db, nil
}

// Node returns the blob of the node with the given hash, or nil if absent.
func (db *nodeDatabase) Node(_ common.Hash, _ []byte, hash common.Hash) ([]byte, error) {
	if blob := db.cache.GetNodeBlob(hash[:]); len(blob) > 0 {
		return blob, nil
	}
	blob, err := db.store.Get(hash[:])
	if err != nil {
		if db.store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	db.cache.AddNodeBlob(hash[:], blob, false)
	return blob, nil
}

// flush writes the committed node set in a single batch.
func (db *nodeDatabase) flush(set *trienode.NodeSet) error {
	if set == nil {
		return nil
	}
	batch := db.store.NewBatch()
	var err error
	set.ForEachWithOrder(func(_ string, n *trienode.Node) {
		if err != nil || len(n.Blob) == 0 {
			return
		}
		if err = batch.Put(n.Hash[:], n.Blob); err == nil {
			db.cache.AddNodeBlob(n.Hash[:], n.Blob, true)
		}
	})
	if err != nil {
		return err
	}
	metricTrieNodesWritten().Add(int64(batch.Len()))
	return batch.Write()
}
