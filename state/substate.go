// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/holiman/uint256"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/tx"
)

// Substate accumulates side effects of one call frame until it is accrued into its parent or dropped.
type Substate struct {
	// Logs emitted, in order.
	Logs []*tx.Log
	// Suicides are accounts to remove when the transaction finalizes.
	Suicides map[cita.Address]struct{}
	// Garbage are accounts touched by value transfers that may end up null.
	Garbage map[cita.Address]struct{}
	// SStoreClearsCount counts storage slots cleared, for refund.
	SStoreClearsCount uint256.Int
	// ContractsCreated in creation order.
	ContractsCreated []cita.Address
}

// NewSubstate creates an empty substate.
func NewSubstate() *Substate {
	return &Substate{
		Suicides: make(map[cita.Address]struct{}),
		Garbage:  make(map[cita.Address]struct{}),
	}
}

// Accrue merges the child substate into s.
func (s *Substate) Accrue(child *Substate) {
	for addr := range child.Suicides {
		s.Suicides[addr] = struct{}{}
	}
	for addr := range child.Garbage {
		s.Garbage[addr] = struct{}{}
	}
	s.Logs = append(s.Logs, child.Logs...)
	s.SStoreClearsCount.Add(&s.SStoreClearsCount, &child.SStoreClearsCount)
	s.ContractsCreated = append(s.ContractsCreated, child.ContractsCreated...)
}
