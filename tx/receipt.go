// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"bytes"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"

	"github.com/citahub/cita-executor/cita"
)

// Receipt represents the results of a transaction.
type Receipt struct {
	// state root after the tx, empty when not tracked per tx
	StateRoot cita.Bytes32
	// gas used by the block up to and including this tx
	CumulativeGasUsed uint64
	LogBloom          types.Bloom
	Logs              []*Log
	// failure of this tx, ReceiptOK on success
	Error ReceiptError
	// nonce of the sender before the tx
	AccountNonce *uint256.Int
	TxHash       cita.Bytes32
	// address of the created contract, if any
	ContractAddress *cita.Address `rlp:"nil"`
}

// Receipts slice of receipts.
type Receipts []*Receipt

// RootHash computes merkle root hash of receipts.
func (rs Receipts) RootHash() cita.Bytes32 {
	if len(rs) == 0 {
		return cita.EmptyRoot
	}
	return cita.Bytes32(types.DeriveSha(derivableReceipts(rs), trie.NewStackTrie(nil)))
}

// implements DerivableList
type derivableReceipts Receipts

func (rs derivableReceipts) Len() int {
	return len(rs)
}

func (rs derivableReceipts) EncodeIndex(i int, w *bytes.Buffer) {
	if err := rlp.Encode(w, rs[i]); err != nil {
		panic(err)
	}
}
