// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citahub/cita-executor/block"
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/logdb"
	"github.com/citahub/cita-executor/tx"
)

var (
	contractA = cita.BytesToAddress([]byte("contract-a"))
	contractB = cita.BytesToAddress([]byte("contract-b"))
	topicX    = cita.Keccak256([]byte("x"))
	topicY    = cita.Keccak256([]byte("y"))
)

func newBlock(t *testing.T, number uint64, txCount int) *block.Block {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)

	b := new(block.Builder).Number(number).Timestamp(number * 3000)
	for i := range txCount {
		trx := tx.MustSign(new(tx.Builder).Nonce(string(rune('a'+i))).Gas(21000).To(&contractA).Build(), pk)
		b.Transaction(trx)
	}
	return b.Build()
}

func receiptsFor(blk *block.Block, logs ...[]*tx.Log) tx.Receipts {
	var receipts tx.Receipts
	for i, trx := range blk.Transactions() {
		receipts = append(receipts, &tx.Receipt{TxHash: trx.Hash(), Logs: logs[i]})
	}
	return receipts
}

func newTestDB(t *testing.T) *logdb.LogDB {
	db, err := logdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriteAndFilter(t *testing.T) {
	db := newTestDB(t)

	b1 := newBlock(t, 1, 2)
	b2 := newBlock(t, 2, 1)

	w := db.NewWriter()
	require.NoError(t, w.Write(b1, receiptsFor(b1,
		[]*tx.Log{{Address: contractA, Topics: []cita.Bytes32{topicX}, Data: []byte{1}}},
		[]*tx.Log{
			{Address: contractB, Topics: []cita.Bytes32{topicY}},
			{Address: contractA, Topics: []cita.Bytes32{topicX, topicY}},
		},
	)))
	require.NoError(t, w.Write(b2, receiptsFor(b2,
		[]*tx.Log{{Address: contractB, Topics: []cita.Bytes32{topicX}}},
	)))

	all, err := db.FilterLogs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, all, "uncommitted logs are invisible")

	require.NoError(t, w.Commit())

	all, err = db.FilterLogs(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 4)

	first := all[0]
	assert.Equal(t, uint64(1), first.BlockNumber)
	assert.Equal(t, uint32(0), first.Index)
	assert.Equal(t, b1.Header().Hash(), first.BlockHash)
	assert.Equal(t, uint64(3000), first.BlockTime)
	assert.Equal(t, b1.Transactions()[0].Hash(), first.TxHash)
	sender, err := b1.Transactions()[0].Sender()
	require.NoError(t, err)
	assert.Equal(t, sender, first.Sender)
	assert.Equal(t, contractA, first.Address)
	assert.Equal(t, &topicX, first.Topics[0])
	assert.Nil(t, first.Topics[1])
	assert.Equal(t, []byte{1}, first.Data)

	assert.Equal(t, uint32(2), all[2].Index)
	assert.Equal(t, uint32(1), all[2].TxIndex)
	assert.Equal(t, uint64(2), all[3].BlockNumber)

	tests := []struct {
		name   string
		filter *logdb.LogFilter
		want   []uint64 // block numbers
		index  []uint32
	}{
		{
			"by address",
			&logdb.LogFilter{CriteriaSet: []*logdb.LogCriteria{{Address: &contractA}}},
			[]uint64{1, 1},
			[]uint32{0, 2},
		},
		{
			"by topic",
			&logdb.LogFilter{CriteriaSet: []*logdb.LogCriteria{{Topics: [4]*cita.Bytes32{&topicX}}}},
			[]uint64{1, 1, 2},
			[]uint32{0, 2, 0},
		},
		{
			"address and second topic",
			&logdb.LogFilter{CriteriaSet: []*logdb.LogCriteria{{Address: &contractA, Topics: [4]*cita.Bytes32{nil, &topicY}}}},
			[]uint64{1},
			[]uint32{2},
		},
		{
			"either criteria",
			&logdb.LogFilter{CriteriaSet: []*logdb.LogCriteria{
				{Address: &contractB, Topics: [4]*cita.Bytes32{&topicY}},
				{Address: &contractB, Topics: [4]*cita.Bytes32{&topicX}},
			}},
			[]uint64{1, 2},
			[]uint32{1, 0},
		},
		{
			"range",
			&logdb.LogFilter{Range: &logdb.Range{From: 2, To: 2}},
			[]uint64{2},
			[]uint32{0},
		},
		{
			"open range",
			&logdb.LogFilter{Range: &logdb.Range{From: 2, To: 0}},
			[]uint64{2},
			[]uint32{0},
		},
		{
			"desc with limit",
			&logdb.LogFilter{Order: logdb.DESC, Options: &logdb.Options{Offset: 1, Limit: 2}},
			[]uint64{1, 1},
			[]uint32{2, 1},
		},
		{
			"out of range",
			&logdb.LogFilter{Range: &logdb.Range{From: 10, To: 20}},
			nil,
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs, err := db.FilterLogs(context.Background(), tt.filter)
			require.NoError(t, err)
			var (
				nums    []uint64
				indices []uint32
			)
			for _, l := range logs {
				nums = append(nums, l.BlockNumber)
				indices = append(indices, l.Index)
			}
			assert.Equal(t, tt.want, nums)
			assert.Equal(t, tt.index, indices)
		})
	}

	newest, ok, err := db.NewestBlockNumber()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), newest)

	has, err := db.HasBlockLogs(b2.Header().Hash())
	require.NoError(t, err)
	assert.True(t, has)
}

func TestTruncateAndRollback(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := db.NewestBlockNumber()
	require.NoError(t, err)
	assert.False(t, ok)

	w := db.NewWriter()
	for n := uint64(1); n <= 3; n++ {
		b := newBlock(t, n, 1)
		require.NoError(t, w.Write(b, receiptsFor(b, []*tx.Log{{Address: contractA}})))
	}
	require.NoError(t, w.Commit())

	require.NoError(t, w.Truncate(2))
	require.NoError(t, w.Rollback())
	logs, err := db.FilterLogs(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	require.NoError(t, w.Truncate(2))
	require.NoError(t, w.Commit())
	newest, ok, err := db.NewestBlockNumber()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), newest)
}

func TestWriteMismatch(t *testing.T) {
	db := newTestDB(t)
	b := newBlock(t, 1, 2)
	w := db.NewWriter()
	assert.Error(t, w.Write(b, tx.Receipts{}))
	assert.NoError(t, w.Rollback())
}
