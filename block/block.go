// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package block defines the blocks the executor applies.
package block

import (
	"io"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/tx"
)

// Block is an immutable block type.
type Block struct {
	header *Header
	txs    tx.Transactions
}

// New create a block instance.
// Note: This method is usually to recover a block by its portions, and the TxsRoot is not verified.
// To build up a block, use a Builder.
func New(header *Header, txs tx.Transactions) *Block {
	return &Block{
		header,
		txs.Copy(),
	}
}

// Header returns the block header.
func (b *Block) Header() *Header {
	return b.header
}

// Transactions returns a copy of transactions.
func (b *Block) Transactions() tx.Transactions {
	return b.txs.Copy()
}

// WithExecuted returns a block whose header carries the execution results.
func (b *Block) WithExecuted(gasUsed uint64, stateRoot, receiptsRoot cita.Bytes32) *Block {
	h := Header{body: b.header.body}
	h.body.GasUsed = gasUsed
	h.body.StateRoot = stateRoot
	h.body.ReceiptsRoot = receiptsRoot
	return &Block{&h, b.txs}
}

// EncodeRLP implements rlp.Encoder.
func (b *Block) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, []any{
		b.header,
		b.txs,
	})
}

// DecodeRLP implements rlp.Decoder.
func (b *Block) DecodeRLP(s *rlp.Stream) error {
	payload := struct {
		Header Header
		Txs    tx.Transactions
	}{}

	if err := s.Decode(&payload); err != nil {
		return err
	}
	*b = Block{
		header: &payload.Header,
		txs:    payload.Txs,
	}
	return nil
}
