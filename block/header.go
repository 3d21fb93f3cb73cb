// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/citahub/cita-executor/cita"
)

// Header contains almost all information about a block, except block body.
// It's immutable.
type Header struct {
	body headerBody

	cache struct {
		hash atomic.Pointer[cita.Bytes32]
	}
}

// headerBody body of header
type headerBody struct {
	ParentHash cita.Bytes32
	Number     uint64
	Timestamp  uint64
	Proposer   cita.Address
	GasLimit   uint64
	GasUsed    uint64

	TxsRoot      cita.Bytes32
	StateRoot    cita.Bytes32
	ReceiptsRoot cita.Bytes32
}

// ParentHash returns hash of parent block.
func (h *Header) ParentHash() cita.Bytes32 {
	return h.body.ParentHash
}

// Number returns sequential number of this block.
func (h *Header) Number() uint64 {
	return h.body.Number
}

// Timestamp returns timestamp of this block, in milliseconds.
func (h *Header) Timestamp() uint64 {
	return h.body.Timestamp
}

// Proposer returns the author of the block, who collects the fees.
func (h *Header) Proposer() cita.Address {
	return h.body.Proposer
}

// GasLimit returns gas limit of this block.
func (h *Header) GasLimit() uint64 {
	return h.body.GasLimit
}

// GasUsed returns gas used by txs.
func (h *Header) GasUsed() uint64 {
	return h.body.GasUsed
}

// TxsRoot returns merkle root of txs contained in this block.
func (h *Header) TxsRoot() cita.Bytes32 {
	return h.body.TxsRoot
}

// StateRoot returns account state merkle root just after this block being applied.
func (h *Header) StateRoot() cita.Bytes32 {
	return h.body.StateRoot
}

// ReceiptsRoot returns merkle root of tx receipts.
func (h *Header) ReceiptsRoot() cita.Bytes32 {
	return h.body.ReceiptsRoot
}

// Hash computes hash of the header.
func (h *Header) Hash() (hash cita.Bytes32) {
	if cached := h.cache.hash.Load(); cached != nil {
		return *cached
	}
	defer func() { h.cache.hash.Store(&hash) }()

	data, err := rlp.EncodeToBytes(&h.body)
	if err != nil {
		panic(err)
	}
	return cita.Keccak256(data)
}

// EncodeRLP implements rlp.Encoder
func (h *Header) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &h.body)
}

// DecodeRLP implements rlp.Decoder.
func (h *Header) DecodeRLP(s *rlp.Stream) error {
	var body headerBody

	if err := s.Decode(&body); err != nil {
		return err
	}
	*h = Header{body: body}
	return nil
}

func (h *Header) String() string {
	return fmt.Sprintf(`Header(%v):
	Number:			%v
	ParentHash:		%v
	Timestamp:		%v
	Proposer:		%v
	GasLimit:		%v
	GasUsed:		%v
	TxsRoot:		%v
	StateRoot:		%v
	ReceiptsRoot:	%v`, h.Hash(), h.body.Number, h.body.ParentHash, h.body.Timestamp,
		h.body.Proposer, h.body.GasLimit, h.body.GasUsed,
		h.body.TxsRoot, h.body.StateRoot, h.body.ReceiptsRoot)
}
