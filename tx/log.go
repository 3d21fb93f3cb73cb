// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/citahub/cita-executor/cita"
)

// Log is an event emitted by a contract.
type Log struct {
	// address of the contract that emitted the log
	Address cita.Address
	// list of topics provided by the contract
	Topics []cita.Bytes32
	// supplied by the contract, usually ABI-encoded
	Data []byte
}

// Bloom computes the bloom filter of the log, over its address and topics.
func (l *Log) Bloom() (b types.Bloom) {
	b.Add(l.Address[:])
	for _, t := range l.Topics {
		b.Add(t[:])
	}
	return
}

// LogsBloom accrues the blooms of logs.
func LogsBloom(logs []*Log) (b types.Bloom) {
	for _, l := range logs {
		lb := l.Bloom()
		for i := range b {
			b[i] |= lb[i]
		}
	}
	return
}
