// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logs

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/logdb"
)

// Log is the json form of an indexed log.
type Log struct {
	Address cita.Address   `json:"address"`
	Topics  []cita.Bytes32 `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
	Meta    LogMeta        `json:"meta"`
}

// LogMeta is where the log was emitted.
type LogMeta struct {
	BlockHash   cita.Bytes32 `json:"blockHash"`
	BlockNumber uint64       `json:"blockNumber"`
	BlockTime   uint64       `json:"blockTime"`
	LogIndex    uint32       `json:"logIndex"`
	TxHash      cita.Bytes32 `json:"txHash"`
	TxIndex     uint32       `json:"txIndex"`
	Sender      cita.Address `json:"sender"`
}

func convertLog(l *logdb.Log) *Log {
	out := &Log{
		Address: l.Address,
		Topics:  make([]cita.Bytes32, 0, logdb.MaxTopics),
		Data:    l.Data,
		Meta: LogMeta{
			BlockHash:   l.BlockHash,
			BlockNumber: l.BlockNumber,
			BlockTime:   l.BlockTime,
			LogIndex:    l.Index,
			TxHash:      l.TxHash,
			TxIndex:     l.TxIndex,
			Sender:      l.Sender,
		},
	}
	for _, topic := range l.Topics {
		if topic != nil {
			out.Topics = append(out.Topics, *topic)
		}
	}
	return out
}
