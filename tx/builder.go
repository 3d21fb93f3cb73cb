// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/holiman/uint256"

	"github.com/citahub/cita-executor/cita"
)

// Builder to make it easy to build transaction.
type Builder struct {
	body body
}

// Nonce set nonce.
func (b *Builder) Nonce(nonce string) *Builder {
	b.body.Nonce = nonce
	return b
}

// GasPrice set gas price.
func (b *Builder) GasPrice(price *uint256.Int) *Builder {
	b.body.GasPrice = price.Clone()
	return b
}

// Gas set gas provision for tx.
func (b *Builder) Gas(gas uint64) *Builder {
	b.body.Gas = gas
	return b
}

// To set recipient. Nil means contract creation.
func (b *Builder) To(to *cita.Address) *Builder {
	if to == nil {
		b.body.To = nil
	} else {
		cpy := *to
		b.body.To = &cpy
	}
	return b
}

// Value set value to transfer.
func (b *Builder) Value(value *uint256.Int) *Builder {
	b.body.Value = value.Clone()
	return b
}

// Data set data.
func (b *Builder) Data(data []byte) *Builder {
	b.body.Data = append([]byte(nil), data...)
	return b
}

// ValidUntilBlock set the last block height the tx is valid for.
func (b *Builder) ValidUntilBlock(n uint64) *Builder {
	b.body.ValidUntilBlock = n
	return b
}

// ChainID set chain id.
func (b *Builder) ChainID(id uint32) *Builder {
	b.body.ChainID = id
	return b
}

// Version set tx version.
func (b *Builder) Version(v uint32) *Builder {
	b.body.Version = v
	return b
}

// Build build tx object.
func (b *Builder) Build() *Transaction {
	tx := Transaction{body: b.body}
	if tx.body.GasPrice == nil {
		tx.body.GasPrice = new(uint256.Int)
	}
	if tx.body.Value == nil {
		tx.body.Value = new(uint256.Int)
	}
	return &tx
}
