// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package muxdb

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/cita"
)

// Trie is the managed trie. Keys are stored as given, owner only scopes the nodes of storage tries.
type Trie struct {
	db    *nodeDatabase
	owner cita.Bytes32
	trie  *trie.Trie
	dirty bool
}

func newTrie(db *nodeDatabase, owner, root cita.Bytes32) (*Trie, error) {
	tr, err := openTrie(db, owner, root)
	if err != nil {
		return nil, err
	}
	return &Trie{db: db, owner: owner, trie: tr}, nil
}

func openTrie(db *nodeDatabase, owner, root cita.Bytes32) (*trie.Trie, error) {
	r := common.Hash(root)
	tr, err := trie.New(trie.StorageTrieID(r, common.Hash(owner), r), db)
	if err != nil {
		return nil, errors.Wrapf(err, "open trie %v", root)
	}
	return tr, nil
}

// Get returns the value for key stored in the trie, or nil if absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.trie.Get(key)
}

// Update associates key with value. An empty value removes the key.
func (t *Trie) Update(key, value []byte) error {
	t.dirty = true
	if len(value) == 0 {
		return t.trie.Delete(key)
	}
	return t.trie.Update(key, value)
}

// Hash returns the root hash of the trie, including uncommitted changes.
func (t *Trie) Hash() cita.Bytes32 {
	return cita.Bytes32(t.trie.Hash())
}

// Commit writes all modified nodes into the database and returns the new root.
// The trie stays usable after commit.
func (t *Trie) Commit() (cita.Bytes32, error) {
	if !t.dirty {
		return t.Hash(), nil
	}
	root, set := t.trie.Commit(false)
	if err := t.db.flush(set); err != nil {
		return cita.Bytes32{}, errors.Wrap(err, "commit trie")
	}
	tr, err := openTrie(t.db, t.owner, cita.Bytes32(root))
	if err != nil {
		return cita.Bytes32{}, err
	}
	t.trie = tr
	t.dirty = false
	return cita.Bytes32(root), nil
}
