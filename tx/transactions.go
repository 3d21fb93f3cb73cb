// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"bytes"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/citahub/cita-executor/cita"
)

// Transactions a slice of transactions.
type Transactions []*Transaction

// Copy returns a shallow copy.
func (txs Transactions) Copy() Transactions {
	return append(Transactions(nil), txs...)
}

// RootHash computes merkle root hash of transactions.
func (txs Transactions) RootHash() cita.Bytes32 {
	if len(txs) == 0 {
		return cita.EmptyRoot
	}
	return cita.Bytes32(types.DeriveSha(derivableTxs(txs), trie.NewStackTrie(nil)))
}

// implements DerivableList
type derivableTxs Transactions

func (txs derivableTxs) Len() int {
	return len(txs)
}

func (txs derivableTxs) EncodeIndex(i int, w *bytes.Buffer) {
	if err := rlp.Encode(w, txs[i]); err != nil {
		panic(err)
	}
}
