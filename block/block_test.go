// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citahub/cita-executor/block"
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/tx"
)

func TestBlock(t *testing.T) {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := cita.BytesToAddress([]byte("to"))
	tx1 := tx.MustSign(new(tx.Builder).Gas(21000).To(&to).Build(), pk)
	tx2 := tx.MustSign(new(tx.Builder).Gas(53000).Build(), pk)

	var (
		now      = uint64(time.Now().UnixMilli())
		gasLimit = uint64(14000)
		parent   = cita.BytesToBytes32([]byte("parent"))
		proposer = cita.BytesToAddress([]byte("abc"))
	)

	blk := new(block.Builder).
		ParentHash(parent).
		Number(7).
		Timestamp(now).
		Proposer(proposer).
		GasLimit(gasLimit).
		Transaction(tx1).
		Transaction(tx2).
		Build()

	h := blk.Header()
	assert.Equal(t, parent, h.ParentHash())
	assert.Equal(t, uint64(7), h.Number())
	assert.Equal(t, now, h.Timestamp())
	assert.Equal(t, proposer, h.Proposer())
	assert.Equal(t, gasLimit, h.GasLimit())
	assert.Equal(t, tx.Transactions{tx1, tx2}.RootHash(), h.TxsRoot())
	assert.Len(t, blk.Transactions(), 2)

	data, err := rlp.EncodeToBytes(blk)
	require.NoError(t, err)
	var decoded block.Block
	require.NoError(t, rlp.DecodeBytes(data, &decoded))
	assert.Equal(t, h.Hash(), decoded.Header().Hash())
	require.Len(t, decoded.Transactions(), 2)
	assert.Equal(t, tx1.Hash(), decoded.Transactions()[0].Hash())

	root := cita.BytesToBytes32([]byte("state"))
	executed := blk.WithExecuted(100, root, cita.EmptyRoot)
	assert.Equal(t, uint64(100), executed.Header().GasUsed())
	assert.Equal(t, root, executed.Header().StateRoot())
	assert.NotEqual(t, h.Hash(), executed.Header().Hash())
	assert.Equal(t, cita.Bytes32{}, h.StateRoot(), "original untouched")
}

func TestEmptyTxsRoot(t *testing.T) {
	blk := new(block.Builder).Build()
	assert.Equal(t, cita.EmptyRoot, blk.Header().TxsRoot())
}
