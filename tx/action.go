// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"fmt"

	"github.com/citahub/cita-executor/cita"
)

// ActionKind classifies what a transaction does, derived from its recipient.
type ActionKind uint8

const (
	// ActionStore just stores the data, paying for its size.
	ActionStore ActionKind = iota
	// ActionCreate deploys a contract.
	ActionCreate
	// ActionCall calls an account, or transfers value to it.
	ActionCall
	// ActionAbiStore stores the abi of a contract.
	ActionAbiStore
	// ActionGoCreate registers a service contract.
	ActionGoCreate
	// ActionAmendData edits state directly, admin only.
	ActionAmendData
)

func (k ActionKind) String() string {
	switch k {
	case ActionStore:
		return "store"
	case ActionCreate:
		return "create"
	case ActionCall:
		return "call"
	case ActionAbiStore:
		return "abi-store"
	case ActionGoCreate:
		return "go-create"
	case ActionAmendData:
		return "amend-data"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Action is the decoded recipient of a transaction.
type Action struct {
	Kind ActionKind
	To   cita.Address // only meaningful for ActionCall
}

// ActionOf derives the action from the recipient. A nil recipient creates a contract.
func ActionOf(to *cita.Address) Action {
	if to == nil {
		return Action{Kind: ActionCreate}
	}
	switch *to {
	case cita.StoreAddress:
		return Action{Kind: ActionStore}
	case cita.AbiAddress:
		return Action{Kind: ActionAbiStore}
	case cita.GoContractAddress:
		return Action{Kind: ActionGoCreate}
	case cita.AmendAddress:
		return Action{Kind: ActionAmendData}
	}
	return Action{Kind: ActionCall, To: *to}
}
