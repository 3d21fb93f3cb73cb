// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import (
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/tx"
)

// Builder to make it easy to build a block object.
type Builder struct {
	headerBody headerBody
	txs        tx.Transactions
}

// ParentHash set parent hash.
func (b *Builder) ParentHash(hash cita.Bytes32) *Builder {
	b.headerBody.ParentHash = hash
	return b
}

// Number set block number.
func (b *Builder) Number(n uint64) *Builder {
	b.headerBody.Number = n
	return b
}

// Timestamp set timestamp.
func (b *Builder) Timestamp(ts uint64) *Builder {
	b.headerBody.Timestamp = ts
	return b
}

// Proposer set the block author.
func (b *Builder) Proposer(addr cita.Address) *Builder {
	b.headerBody.Proposer = addr
	return b
}

// GasLimit set gas limit.
func (b *Builder) GasLimit(limit uint64) *Builder {
	b.headerBody.GasLimit = limit
	return b
}

// GasUsed set gas used.
func (b *Builder) GasUsed(used uint64) *Builder {
	b.headerBody.GasUsed = used
	return b
}

// StateRoot set state root.
func (b *Builder) StateRoot(hash cita.Bytes32) *Builder {
	b.headerBody.StateRoot = hash
	return b
}

// ReceiptsRoot set receipts root.
func (b *Builder) ReceiptsRoot(hash cita.Bytes32) *Builder {
	b.headerBody.ReceiptsRoot = hash
	return b
}

// Transaction add a transaction.
func (b *Builder) Transaction(tx *tx.Transaction) *Builder {
	b.txs = append(b.txs, tx)
	return b
}

// Build build a block object.
func (b *Builder) Build() *Block {
	header := Header{body: b.headerBody}
	header.body.TxsRoot = b.txs.RootHash()

	return &Block{
		header: &header,
		txs:    b.txs.Copy(),
	}
}
