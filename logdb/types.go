// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

import (
	"github.com/citahub/cita-executor/cita"
)

// MaxTopics is the number of topics indexed per log.
const MaxTopics = 4

// Log is a tx.Log with its block and transaction context.
type Log struct {
	BlockNumber uint64
	Index       uint32 // position among the logs of the block
	BlockHash   cita.Bytes32
	BlockTime   uint64
	TxHash      cita.Bytes32
	TxIndex     uint32
	Sender      cita.Address
	Address     cita.Address // always a contract address
	Topics      [MaxTopics]*cita.Bytes32
	Data        []byte
}

type Order string

const (
	ASC  Order = "asc"
	DESC Order = "desc"
)

// Range of block numbers, both ends included. To below From leaves the range open.
type Range struct {
	From uint64
	To   uint64
}

type Options struct {
	Offset uint64
	Limit  uint64
}

// LogCriteria matches logs by emitter and topics. Nil fields match anything.
type LogCriteria struct {
	Address *cita.Address
	Topics  [MaxTopics]*cita.Bytes32
}

// LogFilter selects logs matching any of the criteria.
type LogFilter struct {
	CriteriaSet []*LogCriteria
	Range       *Range
	Options     *Options
	Order       Order // default asc
}
