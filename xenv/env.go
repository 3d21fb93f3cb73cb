// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package xenv

import (
	"github.com/citahub/cita-executor/cita"
)

// LastHashesLen is the count of recent block hashes visible to contracts.
const LastHashesLen = 256

// EnvInfo is the block context a transaction executes in.
type EnvInfo struct {
	Number    uint64
	Author    cita.Address
	Timestamp uint64
	// block gas limit
	GasLimit uint64
	// hashes of recent blocks, LastHashes[0] is the parent
	LastHashes []cita.Bytes32
	// gas used by the block before this transaction
	GasUsed uint64
	// remaining gas the sender may spend in this block
	AccountGasLimit uint64
}

// BlockHash returns the hash of block number n, if it's one of the recent blocks.
// The zero hash is returned otherwise.
func (env *EnvInfo) BlockHash(n uint64) cita.Bytes32 {
	lowest := uint64(0)
	if env.Number > LastHashesLen {
		lowest = env.Number - LastHashesLen
	}
	if n >= env.Number || n < lowest {
		return cita.Bytes32{}
	}
	index := env.Number - n - 1
	if index >= uint64(len(env.LastHashes)) {
		return cita.Bytes32{}
	}
	return env.LastHashes[index]
}

// Copy returns a shallow copy, LastHashes is shared.
func (env *EnvInfo) Copy() *EnvInfo {
	c := *env
	return &c
}
